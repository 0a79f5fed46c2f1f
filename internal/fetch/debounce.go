package fetch

import (
	"context"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// DefaultDebounceDelay is used when NewDebouncer gets a non-positive delay.
const DefaultDebounceDelay = 500 * time.Millisecond

// DebounceOptions configures a Debouncer.
type DebounceOptions[T comparable] struct {
	// Clock defaults to the real clock.
	Clock clock.WithDelayedExecution
	// OnSettle receives each newly published value.
	OnSettle func(v T)
}

// Debouncer publishes its input only after it has been stable for delay.
type Debouncer[T comparable] struct {
	delay    time.Duration
	clock    clock.WithDelayedExecution
	onSettle func(T)

	mu    sync.Mutex
	input T
	value T
	timer clock.Timer
	gen   uint64
	// idle is closed once nothing is pending; nil while idle.
	idle chan struct{}
}

// NewDebouncer creates a debouncer whose published value starts at initial.
func NewDebouncer[T comparable](initial T, delay time.Duration, opts DebounceOptions[T]) *Debouncer[T] {
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Debouncer[T]{
		delay:    delay,
		clock:    clk,
		onSettle: opts.OnSettle,
		input:    initial,
		value:    initial,
	}
}

// Set updates the input and restarts the delay. Setting the current input
// again is a no-op.
func (d *Debouncer[T]) Set(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if v == d.input {
		return
	}
	d.input = v
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	if d.idle == nil {
		d.idle = make(chan struct{})
	}
	d.timer = d.clock.AfterFunc(d.delay, func() { d.settle(gen) })
}

// Value returns the last published value.
func (d *Debouncer[T]) Value() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

// Pending reports whether a change is waiting to be published or is
// being delivered to OnSettle.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Wait blocks until no change is pending and the last settled value has
// been delivered to OnSettle, or ctx is done.
func (d *Debouncer[T]) Wait(ctx context.Context) error {
	d.mu.Lock()
	idle := d.idle
	d.mu.Unlock()
	if idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels any pending publication and releases waiters.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	d.markIdle()
}

// markIdle must be called with mu held.
func (d *Debouncer[T]) markIdle() {
	if d.idle != nil {
		close(d.idle)
		d.idle = nil
	}
}

func (d *Debouncer[T]) settle(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	changed := d.value != d.input
	d.value = d.input
	v := d.value
	d.mu.Unlock()

	if changed && d.onSettle != nil {
		d.onSettle(v)
	}

	// Pending stays true until OnSettle has returned.
	d.mu.Lock()
	if gen == d.gen {
		d.timer = nil
		d.markIdle()
	}
	d.mu.Unlock()
}
