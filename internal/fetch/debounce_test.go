package fetch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

type settled struct {
	mu     sync.Mutex
	values []string
}

func (s *settled) add(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, v)
}

func (s *settled) get() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.values...)
}

func TestDebouncerPublishesFinalValueAfterDelay(t *testing.T) {
	clk := testingclock.NewFakeClock(t0)
	var out settled
	d := NewDebouncer("", 300*time.Millisecond, DebounceOptions[string]{Clock: clk, OnSettle: out.add})

	d.Set("k")
	clk.Step(100 * time.Millisecond)
	d.Set("ko")
	clk.Step(100 * time.Millisecond)
	d.Set("kop")

	clk.Step(299 * time.Millisecond)
	assert.Equal(t, "", d.Value())
	assert.True(t, d.Pending())

	clk.Step(time.Millisecond)
	assert.Eventually(t, func() bool { return d.Value() == "kop" }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return len(out.get()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"kop"}, out.get())
	assert.Eventually(t, func() bool { return !d.Pending() }, time.Second, 5*time.Millisecond)
}

func TestDebouncerSameInputKeepsTimer(t *testing.T) {
	clk := testingclock.NewFakeClock(t0)
	d := NewDebouncer(0, 500*time.Millisecond, DebounceOptions[int]{Clock: clk})

	d.Set(5)
	clk.Step(400 * time.Millisecond)
	d.Set(5)
	clk.Step(100 * time.Millisecond)

	assert.Eventually(t, func() bool { return d.Value() == 5 }, time.Second, 5*time.Millisecond)
}

func TestDebouncerRevertSkipsCallback(t *testing.T) {
	clk := testingclock.NewFakeClock(t0)
	var out settled
	d := NewDebouncer("kopi", 0, DebounceOptions[string]{Clock: clk, OnSettle: out.add})

	d.Set("kopi s")
	d.Set("kopi")
	clk.Step(DefaultDebounceDelay)

	assert.Eventually(t, func() bool { return !d.Pending() }, time.Second, 5*time.Millisecond)
	assert.Empty(t, out.get())
	assert.Equal(t, "kopi", d.Value())
}

func TestDebouncerStop(t *testing.T) {
	clk := testingclock.NewFakeClock(t0)
	d := NewDebouncer("", time.Second, DebounceOptions[string]{Clock: clk})

	d.Set("teh")
	d.Stop()
	clk.Step(2 * time.Second)

	assert.False(t, d.Pending())
	assert.Equal(t, "", d.Value())
	assert.False(t, clk.HasWaiters())
}

func TestDebouncerWaitBlocksUntilDelivered(t *testing.T) {
	clk := testingclock.NewFakeClock(t0)
	var out settled
	d := NewDebouncer("", 300*time.Millisecond, DebounceOptions[string]{Clock: clk, OnSettle: out.add})

	require.NoError(t, d.Wait(context.Background()), "nothing pending")

	d.Set("nasi")
	done := make(chan error, 1)
	go func() { done <- d.Wait(context.Background()) }()

	select {
	case <-done:
		t.Fatal("Wait returned before the value settled")
	case <-time.After(20 * time.Millisecond):
	}

	d.Set("nasi goreng")
	clk.Step(300 * time.Millisecond)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after the value settled")
	}
	assert.Equal(t, []string{"nasi goreng"}, out.get())
	assert.False(t, d.Pending())
}

func TestDebouncerWaitHonoursContext(t *testing.T) {
	clk := testingclock.NewFakeClock(t0)
	d := NewDebouncer("", time.Second, DebounceOptions[string]{Clock: clk})
	d.Set("es teh")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(ctx), context.DeadlineExceeded)
	assert.True(t, d.Pending())
}

func TestDebouncerStopReleasesWaiters(t *testing.T) {
	clk := testingclock.NewFakeClock(t0)
	d := NewDebouncer("", time.Second, DebounceOptions[string]{Clock: clk})
	d.Set("kopi")

	done := make(chan error, 1)
	go func() { done <- d.Wait(context.Background()) }()
	d.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Stop")
	}
}
