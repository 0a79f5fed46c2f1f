package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tekrabyte/pos-sub000/internal/catalog"
	"github.com/tekrabyte/pos-sub000/internal/config"
	"github.com/tekrabyte/pos-sub000/internal/metrics"
	"github.com/tekrabyte/pos-sub000/internal/notify"
	"github.com/tekrabyte/pos-sub000/internal/orders"
	"github.com/tekrabyte/pos-sub000/internal/session"
)

func newOrdersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Manage incoming orders",
	}
	cmd.AddCommand(
		newOrdersListCmd(a),
		newOrdersShowCmd(a),
		newOrderStatusCmd(a, "confirm ORDER_ID", "Confirm an order and mark its payment verified", func(ctx context.Context, b *orders.Board, args []string) error {
			return b.Confirm(ctx, args[0])
		}, 1),
		newOrderStatusCmd(a, "reject ORDER_ID", "Cancel an order", func(ctx context.Context, b *orders.Board, args []string) error {
			return b.Reject(ctx, args[0])
		}, 1),
		newOrderStatusCmd(a, "set-status ORDER_ID STATUS", "Move an order to STATUS ("+strings.Join(orders.Statuses, ", ")+")", func(ctx context.Context, b *orders.Board, args []string) error {
			return b.UpdateStatus(ctx, args[0], args[1])
		}, 2),
		newOrdersWatchCmd(a),
	)
	return cmd
}

func (a *app) newBoard(alerter notify.Alerter) (*orders.Board, error) {
	client, err := a.apiClient()
	if err != nil {
		return nil, err
	}
	return orders.NewBoard(client, a.cache, alerter, orders.Options{
		CacheDuration: a.cacheTTL(),
		Logger:        a.logger,
	}), nil
}

func newOrdersListCmd(a *app) *cobra.Command {
	var (
		status string
		output string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if status != orders.StatusAll && !orders.ValidStatus(status) {
				return fmt.Errorf("%w: %q", orders.ErrUnknownStatus, status)
			}
			board, err := a.newBoard(newTerminalAlerter(a.stderr, false))
			if err != nil {
				return err
			}
			defer board.Close()

			if _, err := board.Load(cmd.Context()); err != nil {
				return fmt.Errorf("load orders: %w", err)
			}
			list := board.Filter(status)
			if output != "table" {
				if list == nil {
					list = []orders.Order{}
				}
				return writeValue(a.stdout, output, list)
			}
			printOrders(a.stdout, list)
			fmt.Fprintf(a.stdout, "\n%d pending\n", board.PendingCount())
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", orders.StatusAll, "only show orders with this status")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

func newOrdersShowCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show ORDER_ID",
		Short: "Show one order with its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			board, err := a.newBoard(newTerminalAlerter(a.stderr, false))
			if err != nil {
				return err
			}
			defer board.Close()

			o, err := board.Order(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output != "table" {
				return writeValue(a.stdout, output, o)
			}
			printOrder(a.stdout, o)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

func newOrderStatusCmd(a *app, use, short string, run func(context.Context, *orders.Board, []string) error, nargs int) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			board, err := a.newBoard(newTerminalAlerter(a.stdout, false))
			if err != nil {
				return err
			}
			defer board.Close()
			return run(cmd.Context(), board, args)
		},
	}
}

func newOrdersWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow new orders and status changes live",
		Long: `Keep the order list in sync with the backend push channel.

New orders ring the terminal bell (notify.sound) and print a notice. Lost
connections are re-established with capped exponential backoff. Stop with
Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.watchOrders(ctx)
		},
	}
}

func (a *app) watchOrders(ctx context.Context) error {
	store, err := a.sessionStore()
	if err != nil {
		return err
	}
	alerter := newTerminalAlerter(a.stdout, a.cfg.Notify.Sound)
	board, err := a.newBoard(alerter)
	if err != nil {
		return err
	}
	defer board.Close()

	list, err := board.Load(ctx)
	if err != nil {
		return fmt.Errorf("load orders: %w", err)
	}
	fmt.Fprintf(a.stdout, "%d orders, %d pending\n", len(list), board.PendingCount())

	if token, err := session.Token(ctx, store); err == nil && token != "" {
		if info, err := session.InspectToken(token); err == nil && info.Expired(time.Now()) {
			fmt.Fprintf(a.stderr, "%sStored token expired at %s.%s The push channel may refuse it.\n",
				ansiYellow, info.ExpiresAt.Local().Format(time.RFC3339), ansiReset)
		}
	}

	url, err := notify.URLFromBase(a.cfg.Backend.BaseURL, a.cfg.Notify.Path)
	if err != nil {
		return err
	}
	policy := reconnectPolicy(a.cfg)
	ch := notify.NewChannel(board, notify.Options{
		URL: url,
		Token: func(ctx context.Context) (string, error) {
			return session.Token(ctx, store)
		},
		Reconnect: &policy,
		Logger:    a.logger,
	})
	defer ch.Close()

	if a.cfg.Metrics.Enabled {
		srv := startMetricsServer(a.cfg.Metrics.Address, a.logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := ch.Connect(ctx); err != nil {
		a.logger.Warn("initial connect failed, will retry", zap.Error(err))
	}

	updates := a.cfgMgr.Watch(ctx)
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(a.stdout, "Stopped watching orders.")
			return nil
		case st := <-ch.StateChanges():
			fmt.Fprintf(a.stderr, "%schannel %s%s\n", ansiGray, st, ansiReset)
		case cfg := <-updates:
			alerter.SetSound(cfg.Notify.Sound)
			a.logger.Info("configuration reloaded", zap.Bool("sound", cfg.Notify.Sound))
		}
	}
}

func reconnectPolicy(cfg *config.Config) notify.ReconnectPolicy {
	return notify.ReconnectPolicy{
		InitialDelay: time.Duration(cfg.Notify.ReconnectInitialMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Notify.ReconnectMaxMs) * time.Millisecond,
		Multiplier:   cfg.Notify.ReconnectMultiplier,
		Jitter:       cfg.Notify.ReconnectJitter,
	}
}

func startMetricsServer(addr string, log *zap.Logger) *http.Server {
	router := mux.NewRouter()
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("serving metrics", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}

func printOrders(w io.Writer, list []orders.Order) {
	if len(list) == 0 {
		fmt.Fprintf(w, "%sNo orders.%s\n", ansiGray, ansiReset)
		return
	}
	fmt.Fprintf(w, "%s%-8s %-16s %-10s %16s  %s%s\n", ansiBold, "ID", "NUMBER", "STATUS", "TOTAL", "CUSTOMER", ansiReset)
	for _, o := range list {
		fmt.Fprintf(w, "%-8s %-16s %s%-10s%s %16s  %s\n",
			o.ID, o.OrderNumber, statusColor(o.Status), o.Status, ansiReset,
			"Rp "+notify.FormatRupiah(float64(o.TotalAmount)), o.CustomerName)
	}
}

func printOrder(w io.Writer, o *orders.Order) {
	fmt.Fprintf(w, "%sOrder %s%s (#%s)\n", ansiBold, o.OrderNumber, ansiReset, o.ID)
	fmt.Fprintf(w, "Status:   %s%s%s\n", statusColor(o.Status), o.Status, ansiReset)
	if o.CustomerName != "" {
		fmt.Fprintf(w, "Customer: %s\n", o.CustomerName)
	}
	if o.PaymentMethod != "" {
		verified := "unverified"
		if o.PaymentVerified {
			verified = "verified"
		}
		fmt.Fprintf(w, "Payment:  %s (%s)\n", o.PaymentMethod, verified)
	}
	if o.Notes != "" {
		fmt.Fprintf(w, "Notes:    %s\n", o.Notes)
	}
	if len(o.Items) > 0 {
		fmt.Fprintf(w, "\n%s%-4s %-32s %14s %16s%s\n", ansiBold, "QTY", "ITEM", "PRICE", "SUBTOTAL", ansiReset)
		for _, it := range o.Items {
			subtotal := it.Subtotal
			if subtotal == 0 {
				subtotal = it.Price * catalog.Amount(it.Quantity)
			}
			fmt.Fprintf(w, "%-4d %-32s %14s %16s\n", it.Quantity, it.ProductName,
				"Rp "+notify.FormatRupiah(float64(it.Price)), "Rp "+notify.FormatRupiah(float64(subtotal)))
		}
	}
	fmt.Fprintf(w, "\nTotal:    Rp %s\n", notify.FormatRupiah(float64(o.TotalAmount)))
}

func statusColor(status string) string {
	switch status {
	case orders.StatusPending:
		return ansiYellow
	case orders.StatusCancelled:
		return ansiRed
	case orders.StatusReady, orders.StatusCompleted:
		return ansiGreen
	default:
		return ansiCyan
	}
}
