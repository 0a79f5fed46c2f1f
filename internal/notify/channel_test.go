package notify

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
	testingclock "k8s.io/utils/clock/testing"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeConn struct {
	frames    chan []byte
	fail      chan error
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		fail:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case d := <-f.frames:
		return d, nil
	case err := <-f.fail:
		return nil, err
	case <-f.closed:
		return nil, net.ErrClosed
	}
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

type fakeDialer struct {
	mu      sync.Mutex
	err     error
	conns   []*fakeConn
	dials   int
	headers []http.Header
}

func (d *fakeDialer) Dial(_ context.Context, _ string, header http.Header) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	d.headers = append(d.headers, header)
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) SetErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *fakeDialer) Last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}

type recordingHandler struct {
	mu        sync.Mutex
	newOrders []*NewOrderEvent
	updates   []*OrderStatusEvent
}

func (h *recordingHandler) HandleNewOrder(_ context.Context, ev *NewOrderEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.newOrders = append(h.newOrders, ev)
}

func (h *recordingHandler) HandleOrderStatusUpdate(_ context.Context, ev *OrderStatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, ev)
}

func (h *recordingHandler) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.newOrders), len(h.updates)
}

func newTestChannel(t *testing.T, policy ReconnectPolicy) (*Channel, *fakeDialer, *testingclock.FakeClock, *recordingHandler) {
	t.Helper()
	clk := testingclock.NewFakeClock(epoch)
	dialer := &fakeDialer{}
	handler := &recordingHandler{}
	ch := NewChannel(handler, Options{
		URL:       "ws://pos.test/api/ws/orders",
		Token:     func(context.Context) (string, error) { return "staff-token", nil },
		Dialer:    dialer,
		Reconnect: &policy,
		Clock:     clk,
		Logger:    zaptest.NewLogger(t),
	})
	t.Cleanup(func() { _ = ch.Close() })
	return ch, dialer, clk, handler
}

const eventually = time.Second
const tick = 5 * time.Millisecond

func TestConnectDispatchesEvents(t *testing.T) {
	ch, dialer, _, handler := newTestChannel(t, FixedReconnectPolicy(3*time.Second))

	require.NoError(t, ch.Connect(context.Background()))
	assert.Equal(t, StateConnected, ch.State())
	assert.Equal(t, "Bearer staff-token", dialer.headers[0].Get("Authorization"))

	conn := dialer.Last()
	conn.frames <- []byte(`{"type":"new_order","order_number":"ORD-17","total_amount":50000}`)
	conn.frames <- []byte(`{"type":"order_status_update","order_id":17,"status":"ready"}`)
	conn.frames <- []byte(`not json`)
	conn.frames <- []byte(`{"order_number":"ORD-18"}`)
	conn.frames <- []byte(`{"type":"table_called"}`)

	assert.Eventually(t, func() bool {
		return ch.Stats().Messages == 3 && ch.Stats().Dropped == 2
	}, eventually, tick)

	newOrders, updates := handler.counts()
	assert.Equal(t, 1, newOrders)
	assert.Equal(t, 1, updates)
	assert.Equal(t, StateConnected, ch.State(), "malformed frames must not drop the connection")

	handler.mu.Lock()
	assert.Equal(t, "ORD-17", handler.newOrders[0].OrderNumber.String())
	assert.Equal(t, "17", handler.updates[0].OrderID.String())
	handler.mu.Unlock()
}

func TestConnectIsNoopWhileConnected(t *testing.T) {
	ch, dialer, _, _ := newTestChannel(t, FixedReconnectPolicy(3*time.Second))

	require.NoError(t, ch.Connect(context.Background()))
	require.NoError(t, ch.Connect(context.Background()))
	assert.Equal(t, 1, dialer.Dials())
}

func TestRapidUncleanClosuresScheduleOneReconnect(t *testing.T) {
	ch, dialer, clk, _ := newTestChannel(t, FixedReconnectPolicy(3*time.Second))
	require.NoError(t, ch.Connect(context.Background()))
	conn := dialer.Last()

	conn.fail <- io.ErrUnexpectedEOF
	assert.Eventually(t, func() bool { return ch.Stats().ReconnectPending }, eventually, tick)

	// A second close event for the same handle arrives before the timer fires.
	ch.handleClosed(conn, io.ErrUnexpectedEOF)
	assert.Equal(t, int64(1), ch.Stats().ReconnectsScheduled)

	clk.Step(3 * time.Second)
	assert.Eventually(t, func() bool { return ch.State() == StateConnected }, eventually, tick)
	assert.Equal(t, 2, dialer.Dials())
	assert.False(t, ch.Stats().ReconnectPending)
}

func TestCleanCloseDoesNotReconnect(t *testing.T) {
	ch, dialer, clk, _ := newTestChannel(t, FixedReconnectPolicy(3*time.Second))
	require.NoError(t, ch.Connect(context.Background()))

	dialer.Last().fail <- &websocket.CloseError{Code: websocket.CloseNormalClosure}
	assert.Eventually(t, func() bool { return ch.State() == StateDisconnected }, eventually, tick)

	clk.Step(time.Minute)
	assert.False(t, ch.Stats().ReconnectPending)
	assert.Equal(t, int64(0), ch.Stats().ReconnectsScheduled)
	assert.Equal(t, 1, dialer.Dials())
}

func TestAbnormalCloseFrameReconnects(t *testing.T) {
	ch, dialer, _, _ := newTestChannel(t, FixedReconnectPolicy(3*time.Second))
	require.NoError(t, ch.Connect(context.Background()))

	dialer.Last().fail <- &websocket.CloseError{Code: websocket.CloseAbnormalClosure}
	assert.Eventually(t, func() bool { return ch.Stats().ReconnectPending }, eventually, tick)
}

func TestCloseCancelsPendingReconnect(t *testing.T) {
	ch, dialer, clk, _ := newTestChannel(t, FixedReconnectPolicy(3*time.Second))
	dialer.SetErr(errors.New("connection refused"))

	err := ch.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateDisconnected, ch.State())
	assert.True(t, ch.Stats().ReconnectPending)

	require.NoError(t, ch.Close())
	assert.False(t, clk.HasWaiters())

	clk.Step(time.Minute)
	assert.Equal(t, 1, dialer.Dials())
	assert.Equal(t, StateTerminated, ch.State())
	assert.ErrorIs(t, ch.Connect(context.Background()), ErrClosed)
}

func TestCloseEventAfterTeardownSchedulesNothing(t *testing.T) {
	ch, dialer, clk, _ := newTestChannel(t, FixedReconnectPolicy(3*time.Second))
	require.NoError(t, ch.Connect(context.Background()))
	conn := dialer.Last()

	require.NoError(t, ch.Close())
	ch.handleClosed(conn, io.EOF)

	assert.Equal(t, int64(0), ch.Stats().ReconnectsScheduled)
	assert.False(t, clk.HasWaiters())
	assert.Equal(t, StateTerminated, ch.State())
}

func TestBackoffGrowsAndResetsAfterConnect(t *testing.T) {
	policy := ReconnectPolicy{InitialDelay: time.Second, MaxDelay: 4 * time.Second, Multiplier: 2}
	ch, dialer, clk, _ := newTestChannel(t, policy)
	dialer.SetErr(errors.New("connection refused"))

	require.Error(t, ch.Connect(context.Background()))
	assert.True(t, clk.HasWaiters())

	// attempt 0 waits 1s
	clk.Step(time.Second)
	assert.Eventually(t, func() bool { return dialer.Dials() == 2 && clk.HasWaiters() }, eventually, tick)

	// attempt 1 waits 2s
	clk.Step(time.Second)
	assert.Equal(t, 2, dialer.Dials())
	dialer.SetErr(nil)
	clk.Step(time.Second)
	assert.Eventually(t, func() bool { return ch.State() == StateConnected }, eventually, tick)
	assert.Equal(t, 3, dialer.Dials())

	// A successful open resets the backoff.
	dialer.Last().fail <- io.ErrUnexpectedEOF
	assert.Eventually(t, func() bool { return ch.Stats().ReconnectPending }, eventually, tick)
	clk.Step(time.Second)
	assert.Eventually(t, func() bool { return dialer.Dials() == 4 }, eventually, tick)
}

func TestStateChangesAreStreamed(t *testing.T) {
	ch, _, _, _ := newTestChannel(t, FixedReconnectPolicy(time.Second))
	require.NoError(t, ch.Connect(context.Background()))

	assert.Equal(t, StateConnecting, <-ch.StateChanges())
	assert.Equal(t, StateConnected, <-ch.StateChanges())
}
