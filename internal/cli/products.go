package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/tekrabyte/pos-sub000/internal/catalog"
	"github.com/tekrabyte/pos-sub000/internal/fetch"
	"github.com/tekrabyte/pos-sub000/internal/notify"
)

func newProductsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Work with the product catalog",
	}
	cmd.AddCommand(newProductsSearchCmd(a))
	return cmd
}

func newProductsSearchCmd(a *app) *cobra.Command {
	var (
		debounce time.Duration
		output   string
	)
	cmd := &cobra.Command{
		Use:   "search [TERM...]",
		Short: "Filter products by name or SKU",
		Long: `Filter products by name or SKU, ignoring case.

With no TERM, search terms are read from stdin one per line and results are
printed once the input has been stable for --debounce.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			products, err := a.loadProducts(ctx)
			if err != nil {
				return err
			}

			if len(args) > 0 {
				return printProducts(a.stdout, output, catalog.SearchProducts(products, strings.Join(args, " ")))
			}

			var mu sync.Mutex
			var printErr error
			d := fetch.NewDebouncer("", debounce, fetch.DebounceOptions[string]{
				OnSettle: func(term string) {
					mu.Lock()
					defer mu.Unlock()
					fmt.Fprintf(a.stdout, "%s> %s%s\n", ansiCyan, term, ansiReset)
					if err := printProducts(a.stdout, output, catalog.SearchProducts(products, term)); err != nil && printErr == nil {
						printErr = err
					}
				},
			})
			defer d.Stop()

			scanner := bufio.NewScanner(a.stdin)
			for scanner.Scan() {
				d.Set(strings.TrimSpace(scanner.Text()))
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read search terms: %w", err)
			}

			if err := d.Wait(ctx); err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return printErr
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 300*time.Millisecond, "quiet period before a typed term is searched")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

// loadProducts reads the product list through the shared cache key.
func (a *app) loadProducts(ctx context.Context) ([]catalog.Product, error) {
	res, err := catalog.Lookup("products")
	if err != nil {
		return nil, err
	}
	client, err := a.apiClient()
	if err != nil {
		return nil, err
	}
	q := fetch.NewQuery(client, a.cache, res.Path, fetch.QueryOptions{
		CacheKey:      res.CacheKey,
		CacheDuration: a.cacheTTL(),
		Logger:        a.logger,
	})
	defer q.Close()

	data, err := q.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	var products []catalog.Product
	if len(data) > 0 {
		if err := json.Unmarshal(data, &products); err != nil {
			return nil, fmt.Errorf("decode products: %w", err)
		}
	}
	return products, nil
}

func printProducts(w io.Writer, format string, products []catalog.Product) error {
	if format != "table" {
		if products == nil {
			products = []catalog.Product{}
		}
		return writeValue(w, format, products)
	}
	if len(products) == 0 {
		fmt.Fprintf(w, "%sNo products found.%s\n", ansiGray, ansiReset)
		return nil
	}
	fmt.Fprintf(w, "%s%-8s %-12s %-32s %14s%s\n", ansiBold, "ID", "SKU", "NAME", "PRICE", ansiReset)
	for _, p := range products {
		fmt.Fprintf(w, "%-8s %-12s %-32s %14s\n", p.ID, p.SKU, p.Name, "Rp "+notify.FormatRupiah(float64(p.Price)))
	}
	return nil
}
