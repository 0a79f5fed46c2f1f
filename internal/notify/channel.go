// Package notify keeps a push connection to the backend open and turns its
// frames into order events.
//
// A Channel holds at most one connection and at most one pending reconnect
// timer. Unclean closures schedule a reconnect, clean closures and Close do
// not.
package notify

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/tekrabyte/pos-sub000/internal/logger"
	"github.com/tekrabyte/pos-sub000/internal/metrics"
)

// ConnectionState represents the state of the push connection
type ConnectionState string

const (
	StateDisconnected ConnectionState = "DISCONNECTED"
	StateConnecting   ConnectionState = "CONNECTING"
	StateConnected    ConnectionState = "CONNECTED"
	StateTerminated   ConnectionState = "TERMINATED"
)

// ErrClosed is returned by Connect after Close.
var ErrClosed = errors.New("notify: channel closed")

// Handler receives decoded events. Calls are made from the read loop, one
// at a time.
type Handler interface {
	HandleNewOrder(ctx context.Context, ev *NewOrderEvent)
	HandleOrderStatusUpdate(ctx context.Context, ev *OrderStatusEvent)
}

// Options configures a Channel.
type Options struct {
	URL string
	// Token supplies the bearer token for each dial. Optional.
	Token func(ctx context.Context) (string, error)
	// Dialer defaults to WebSocketDialer.
	Dialer Dialer
	// Reconnect defaults to DefaultReconnectPolicy.
	Reconnect *ReconnectPolicy
	// Clock defaults to the real clock.
	Clock  clock.WithDelayedExecution
	Logger *zap.Logger
	// Rand returns values in [0, 1) for jitter. Defaults to math/rand/v2.
	Rand func() float64
}

// Stats is a snapshot of channel counters.
type Stats struct {
	State               ConnectionState
	ConnectAttempts     int64
	Connects            int64
	ReconnectsScheduled int64
	Messages            int64
	Dropped             int64
	ReconnectPending    bool
	ConnectedAt         time.Time
}

// Channel is a self-healing push connection.
type Channel struct {
	handler Handler
	url     string
	token   func(ctx context.Context) (string, error)
	dialer  Dialer
	policy  ReconnectPolicy
	clock   clock.WithDelayedExecution
	rand    func() float64
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	state     ConnectionState
	conn      Conn
	timer     clock.Timer
	timerSeq  uint64
	attempt   int
	stats     Stats
	stateChan chan ConnectionState
}

// NewChannel creates a disconnected channel. Call Connect to open it.
func NewChannel(handler Handler, opts Options) *Channel {
	policy := DefaultReconnectPolicy()
	if opts.Reconnect != nil {
		policy = *opts.Reconnect
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = WebSocketDialer{}
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.Float64
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Channel{
		handler:   handler,
		url:       opts.URL,
		token:     opts.Token,
		dialer:    dialer,
		policy:    policy,
		clock:     clk,
		rand:      rnd,
		logger:    logger.OrNop(opts.Logger).Named("notify"),
		ctx:       ctx,
		cancel:    cancel,
		state:     StateDisconnected,
		stateChan: make(chan ConnectionState, 10),
	}
}

// Connect opens the connection. It is a no-op while a connection is open
// or being opened. A failed dial schedules a reconnect and returns the error.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateTerminated:
		c.mu.Unlock()
		return ErrClosed
	case StateConnected, StateConnecting:
		c.mu.Unlock()
		return nil
	}
	c.setState(StateConnecting)
	c.stats.ConnectAttempts++
	c.mu.Unlock()

	header := http.Header{}
	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			c.logger.Warn("failed to read session token", zap.Error(err))
		} else if token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	conn, err := c.dialer.Dial(dialCtx, c.url, header)

	c.mu.Lock()
	if c.state == StateTerminated {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return ErrClosed
	}
	if err != nil {
		c.setState(StateDisconnected)
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		c.logger.Warn("connect failed", zap.String("url", c.url), zap.Error(err))
		return fmt.Errorf("connect %s: %w", c.url, err)
	}

	c.conn = conn
	c.attempt = 0
	c.stats.Connects++
	c.stats.ConnectedAt = c.clock.Now()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.setState(StateConnected)
	c.wg.Add(1)
	c.mu.Unlock()

	metrics.NotifyConnected.Set(1)
	c.logger.Info("connected", zap.String("url", c.url))

	go c.readLoop(conn)
	return nil
}

// Close tears the channel down. Pending reconnects are cancelled and later
// closure events are ignored.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.state == StateTerminated {
		c.mu.Unlock()
		c.wg.Wait()
		return nil
	}
	c.setState(StateTerminated)
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	c.cancel()
	c.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	c.wg.Wait()
	metrics.NotifyConnected.Set(0)
	c.logger.Info("closed")
	return err
}

// State returns the current connection state.
func (c *Channel) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StateChanges streams state transitions. Updates are dropped when the
// reader falls behind.
func (c *Channel) StateChanges() <-chan ConnectionState {
	return c.stateChan
}

// Stats returns connection statistics.
func (c *Channel) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.State = c.state
	s.ReconnectPending = c.timer != nil
	return s
}

func (c *Channel) readLoop(conn Conn) {
	defer c.wg.Done()
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.handleClosed(conn, err)
			return
		}
		c.dispatch(data)
	}
}

func (c *Channel) dispatch(data []byte) {
	ev, err := ParseMessage(data)
	if err != nil {
		c.mu.Lock()
		c.stats.Dropped++
		c.mu.Unlock()
		metrics.NotifyDroppedMessagesTotal.Inc()
		c.logger.Warn("dropping malformed message", zap.Error(err), zap.Int("bytes", len(data)))
		return
	}

	c.mu.Lock()
	c.stats.Messages++
	c.mu.Unlock()
	metrics.NotifyMessagesTotal.WithLabelValues(ev.EventType()).Inc()

	switch e := ev.(type) {
	case *NewOrderEvent:
		c.handler.HandleNewOrder(c.ctx, e)
	case *OrderStatusEvent:
		c.handler.HandleOrderStatusUpdate(c.ctx, e)
	default:
		c.logger.Debug("ignoring message", zap.String("type", ev.EventType()))
	}
}

// handleClosed reacts to the end of conn's read loop.
func (c *Channel) handleClosed(conn Conn, err error) {
	_ = conn.Close()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == conn {
		c.conn = nil
	}
	if c.state == StateTerminated {
		return
	}
	c.setState(StateDisconnected)
	metrics.NotifyConnected.Set(0)

	if IsCleanClose(err) {
		c.logger.Info("connection closed by server", zap.Error(err))
		return
	}
	c.logger.Warn("connection lost", zap.Error(err))
	c.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the reconnect timer unless one is pending.
// Caller must hold c.mu.
func (c *Channel) scheduleReconnectLocked() {
	if c.timer != nil || c.state == StateTerminated {
		return
	}
	delay := c.policy.Delay(c.attempt, c.rand)
	c.attempt++
	c.stats.ReconnectsScheduled++
	metrics.NotifyReconnectsTotal.Inc()

	c.timerSeq++
	seq := c.timerSeq
	c.timer = c.clock.AfterFunc(delay, func() { c.reconnect(seq) })
	c.logger.Info("reconnect scheduled", zap.Duration("delay", delay), zap.Int("attempt", c.attempt))
}

func (c *Channel) reconnect(seq uint64) {
	c.mu.Lock()
	if c.state == StateTerminated || c.timer == nil || seq != c.timerSeq {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		_ = c.Connect(c.ctx)
	}()
}

// setState records a transition. Caller must hold c.mu.
func (c *Channel) setState(state ConnectionState) {
	c.state = state

	// Non-blocking send to state channel
	select {
	case c.stateChan <- state:
	default:
	}
}
