package fetch

import (
	"context"
	"sync"

	"github.com/tekrabyte/pos-sub000/internal/metrics"
)

// MutationFunc performs a write against the backend.
type MutationFunc[A, R any] func(ctx context.Context, arg A) (R, error)

// MutationState is a snapshot of a mutation.
type MutationState[R any] struct {
	Data    R
	Loading bool
	Err     error
}

// MutationOptions holds the mutation lifecycle callbacks.
type MutationOptions[R any] struct {
	OnSuccess func(result R)
	OnError   func(err error)
	// OnSettled runs after OnSuccess or OnError.
	OnSettled func(result R, err error)
	OnChange  func(MutationState[R])
}

// Mutation wraps a write with loading and error state. Mutations never
// touch the read cache; callers invalidate what they changed.
type Mutation[A, R any] struct {
	fn   MutationFunc[A, R]
	opts MutationOptions[R]

	mu    sync.Mutex
	state MutationState[R]
}

// NewMutation creates a mutation around fn.
func NewMutation[A, R any](fn MutationFunc[A, R], opts MutationOptions[R]) *Mutation[A, R] {
	return &Mutation[A, R]{fn: fn, opts: opts}
}

// Mutate runs the mutation and returns its result or error.
func (m *Mutation[A, R]) Mutate(ctx context.Context, arg A) (R, error) {
	m.mu.Lock()
	m.state.Loading = true
	m.state.Err = nil
	st := m.state
	m.mu.Unlock()
	m.changed(st)

	result, err := m.fn(ctx, arg)

	m.mu.Lock()
	if err != nil {
		m.state.Err = err
	} else {
		m.state.Data = result
	}
	m.state.Loading = false
	st = m.state
	m.mu.Unlock()
	m.changed(st)

	if err != nil {
		metrics.MutationsTotal.WithLabelValues("error").Inc()
		var zero R
		if m.opts.OnError != nil {
			m.opts.OnError(err)
		}
		if m.opts.OnSettled != nil {
			m.opts.OnSettled(zero, err)
		}
		return zero, err
	}

	metrics.MutationsTotal.WithLabelValues("success").Inc()
	if m.opts.OnSuccess != nil {
		m.opts.OnSuccess(result)
	}
	if m.opts.OnSettled != nil {
		m.opts.OnSettled(result, nil)
	}
	return result, nil
}

// State returns a snapshot of the mutation state.
func (m *Mutation[A, R]) State() MutationState[R] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Mutation[A, R]) changed(st MutationState[R]) {
	if m.opts.OnChange != nil {
		m.opts.OnChange(st)
	}
}
