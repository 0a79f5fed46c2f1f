package notify

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ToastDuration is how long a new order toast stays visible.
const ToastDuration = 5 * time.Second

// Toast is a transient user notification.
type Toast struct {
	Title       string
	Description string
	Duration    time.Duration
	// Error marks failure notifications.
	Error bool
}

// Alerter surfaces notifications to the operator.
type Alerter interface {
	PlaySound(ctx context.Context) error
	Toast(t Toast)
}

// FormatRupiah formats v with Indonesian grouping, e.g. 1250000 as "1.250.000".
func FormatRupiah(v float64) string {
	return message.NewPrinter(language.Indonesian).Sprint(number.Decimal(v))
}

// NewOrderToast builds the toast shown for a new order.
func NewOrderToast(ev *NewOrderEvent) Toast {
	return Toast{
		Title:       "New order received",
		Description: fmt.Sprintf("Order #%s - Rp %s", ev.OrderNumber, FormatRupiah(float64(ev.TotalAmount))),
		Duration:    ToastDuration,
	}
}
