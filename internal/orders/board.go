// Package orders keeps the live order list of the order management screen
// in sync with the backend and the push channel.
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tekrabyte/pos-sub000/internal/api"
	"github.com/tekrabyte/pos-sub000/internal/catalog"
	"github.com/tekrabyte/pos-sub000/internal/fetch"
	"github.com/tekrabyte/pos-sub000/internal/logger"
	"github.com/tekrabyte/pos-sub000/internal/notify"
)

// Order statuses understood by the backend.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCooking   = "cooking"
	StatusReady     = "ready"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"

	// StatusAll selects every order in Filter.
	StatusAll = "all"
)

const (
	ordersPath     = "/orders"
	ordersCacheKey = "orders"
)

// Statuses lists the valid order statuses in lifecycle order.
var Statuses = []string{StatusPending, StatusConfirmed, StatusCooking, StatusReady, StatusCompleted, StatusCancelled}

// ErrUnknownStatus is returned for statuses the backend does not accept.
var ErrUnknownStatus = errors.New("unknown order status")

// ErrOrderNotFound is returned by Order when the backend has no such order.
var ErrOrderNotFound = errors.New("order not found")

// ValidStatus reports whether s is one of Statuses.
func ValidStatus(s string) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// Order is the subset of order fields the board displays.
type Order struct {
	ID              catalog.ID     `json:"id" yaml:"id"`
	OrderNumber     catalog.ID     `json:"order_number" yaml:"order_number"`
	Status          string         `json:"status" yaml:"status"`
	TotalAmount     catalog.Amount `json:"total_amount" yaml:"total_amount"`
	PaymentMethod   string         `json:"payment_method,omitempty" yaml:"payment_method,omitempty"`
	PaymentVerified bool           `json:"payment_verified" yaml:"payment_verified"`
	CustomerName    string         `json:"customer_name,omitempty" yaml:"customer_name,omitempty"`
	OrderType       string         `json:"order_type,omitempty" yaml:"order_type,omitempty"`
	CreatedAt       string         `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	Notes           string         `json:"notes,omitempty" yaml:"notes,omitempty"`
	Items           []OrderItem    `json:"items,omitempty" yaml:"items,omitempty"`
}

// OrderItem is one line of an order. Only order details carry items.
type OrderItem struct {
	ProductID   catalog.ID     `json:"product_id" yaml:"product_id"`
	ProductName string         `json:"product_name,omitempty" yaml:"product_name,omitempty"`
	Quantity    int            `json:"quantity" yaml:"quantity"`
	Price       catalog.Amount `json:"price" yaml:"price"`
	Subtotal    catalog.Amount `json:"subtotal,omitempty" yaml:"subtotal,omitempty"`
}

// API is the part of the REST client the board needs.
type API interface {
	fetch.Getter
	Put(ctx context.Context, path string, body any) (json.RawMessage, error)
}

// StatusChange is the body of an order status update.
type StatusChange struct {
	OrderID         string `json:"-"`
	Status          string `json:"status"`
	PaymentVerified *bool  `json:"payment_verified,omitempty"`
}

// Options configures a Board.
type Options struct {
	// CacheDuration of the order list. Defaults to fetch.DefaultCacheDuration.
	CacheDuration time.Duration
	Logger        *zap.Logger
}

// Board holds the current order list and applies status changes.
type Board struct {
	api     API
	cache   *fetch.Cache
	ttl     time.Duration
	alerter notify.Alerter
	logger  *zap.Logger

	query  *fetch.Query
	update *fetch.Mutation[StatusChange, json.RawMessage]

	mu      sync.RWMutex
	orders  []Order
	pending int
}

// NewBoard creates a board reading orders through client.
func NewBoard(client API, cache *fetch.Cache, alerter notify.Alerter, opts Options) *Board {
	log := logger.OrNop(opts.Logger)
	b := &Board{
		api:     client,
		cache:   cache,
		ttl:     opts.CacheDuration,
		alerter: alerter,
		logger:  log.Named("orders"),
	}
	b.query = fetch.NewQuery(client, cache, ordersPath, fetch.QueryOptions{
		CacheKey:      ordersCacheKey,
		CacheDuration: opts.CacheDuration,
		Logger:        log,
	})
	b.update = fetch.NewMutation(func(ctx context.Context, c StatusChange) (json.RawMessage, error) {
		return client.Put(ctx, ordersPath+"/"+url.PathEscape(c.OrderID)+"/status", c)
	}, fetch.MutationOptions[json.RawMessage]{
		OnSuccess: func(json.RawMessage) { cache.ClearByPattern(ordersCacheKey) },
	})
	return b
}

// Load reads the order list, from cache when fresh.
func (b *Board) Load(ctx context.Context) ([]Order, error) {
	if _, err := b.query.Fetch(ctx); err != nil && !errors.Is(err, fetch.ErrSuperseded) {
		return nil, err
	}
	return b.sync()
}

// Refresh reloads the order list from the backend. When a newer refresh
// overtakes this one, the newer list is kept and returned.
func (b *Board) Refresh(ctx context.Context) ([]Order, error) {
	if _, err := b.query.Refetch(ctx); err != nil && !errors.Is(err, fetch.ErrSuperseded) {
		return nil, err
	}
	return b.sync()
}

// sync rebuilds the list from the latest query state.
func (b *Board) sync() ([]Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := b.query.State().Data
	var list []Order
	if len(data) > 0 {
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decode orders: %w", err)
		}
	}

	pending := 0
	for _, o := range list {
		if o.Status == StatusPending {
			pending++
		}
	}

	b.orders = list
	b.pending = pending
	return append([]Order(nil), list...), nil
}

// Order reads one order with its items. Details are cached under
// "orders/<id>", so status changes invalidate them with the list.
func (b *Board) Order(ctx context.Context, orderID string) (*Order, error) {
	if orderID == "" {
		return nil, errors.New("order id is required")
	}
	path := ordersPath + "/" + url.PathEscape(orderID)
	q := fetch.NewQuery(b.api, b.cache, path, fetch.QueryOptions{
		CacheKey:      ordersCacheKey + "/" + orderID,
		CacheDuration: b.ttl,
		Logger:        b.logger,
	})
	defer q.Close()

	data, err := q.Fetch(ctx)
	if err != nil {
		if api.IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return nil, err
	}

	var envelope struct {
		Order *Order `json:"order"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Order != nil {
		return envelope.Order, nil
	}
	var o Order
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("decode order %s: %w", orderID, err)
	}
	return &o, nil
}

// Orders returns the last loaded order list.
func (b *Board) Orders() []Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Order(nil), b.orders...)
}

// Filter returns the orders with status, or all orders for StatusAll.
func (b *Board) Filter(status string) []Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if status == "" || status == StatusAll {
		return append([]Order(nil), b.orders...)
	}
	var out []Order
	for _, o := range b.orders {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}

// PendingCount returns the number of orders awaiting confirmation.
func (b *Board) PendingCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pending
}

// Confirm accepts an order and marks its payment as verified.
func (b *Board) Confirm(ctx context.Context, orderID string) error {
	verified := true
	return b.change(ctx, StatusChange{OrderID: orderID, Status: StatusConfirmed, PaymentVerified: &verified})
}

// Reject cancels an order.
func (b *Board) Reject(ctx context.Context, orderID string) error {
	verified := false
	return b.change(ctx, StatusChange{OrderID: orderID, Status: StatusCancelled, PaymentVerified: &verified})
}

// UpdateStatus moves an order to status.
func (b *Board) UpdateStatus(ctx context.Context, orderID, status string) error {
	return b.change(ctx, StatusChange{OrderID: orderID, Status: status})
}

func (b *Board) change(ctx context.Context, c StatusChange) error {
	if !ValidStatus(c.Status) {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, c.Status)
	}
	if c.OrderID == "" {
		return errors.New("order id is required")
	}

	if _, err := b.update.Mutate(ctx, c); err != nil {
		b.alerter.Toast(notify.Toast{
			Title:       "Failed to update order",
			Description: err.Error(),
			Duration:    notify.ToastDuration,
			Error:       true,
		})
		return fmt.Errorf("update order %s: %w", c.OrderID, err)
	}

	b.logger.Info("order status updated", zap.String("order_id", c.OrderID), zap.String("status", c.Status))
	b.alerter.Toast(notify.Toast{
		Title:       "Order updated",
		Description: fmt.Sprintf("Order %s is now %s", c.OrderID, c.Status),
		Duration:    notify.ToastDuration,
	})
	b.refreshAfterEvent(ctx)
	return nil
}

// HandleNewOrder alerts the operator and reloads the list.
func (b *Board) HandleNewOrder(ctx context.Context, ev *notify.NewOrderEvent) {
	if err := b.alerter.PlaySound(ctx); err != nil {
		b.logger.Debug("notification sound failed", zap.Error(err))
	}
	b.alerter.Toast(notify.NewOrderToast(ev))
	b.refreshAfterEvent(ctx)
}

// HandleOrderStatusUpdate reloads the list.
func (b *Board) HandleOrderStatusUpdate(ctx context.Context, ev *notify.OrderStatusEvent) {
	b.logger.Debug("order status changed remotely",
		zap.String("order_id", ev.OrderID.String()),
		zap.String("status", ev.Status),
	)
	b.refreshAfterEvent(ctx)
}

// refreshAfterEvent reloads orders and reports failures as a toast.
func (b *Board) refreshAfterEvent(ctx context.Context) {
	if _, err := b.Refresh(ctx); err != nil {
		if ctx.Err() != nil || errors.Is(err, fetch.ErrClosed) {
			return
		}
		b.logger.Warn("failed to refresh orders", zap.Error(err))
		b.alerter.Toast(notify.Toast{
			Title:       "Failed to load orders",
			Description: err.Error(),
			Duration:    notify.ToastDuration,
			Error:       true,
		})
	}
}

// Close stops the board from recording further results.
func (b *Board) Close() {
	b.query.Close()
}

var _ notify.Handler = (*Board)(nil)
