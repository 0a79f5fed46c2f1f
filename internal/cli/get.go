package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tekrabyte/pos-sub000/internal/catalog"
	"github.com/tekrabyte/pos-sub000/internal/fetch"
)

// newGetCmd returns the 'get' command reading one backend collection.
func newGetCmd(a *app) *cobra.Command {
	var (
		fresh  bool
		output string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:       "get RESOURCE",
		Short:     "Read a backend collection",
		Long:      "Read a backend collection through the response cache.\n\nResources: " + strings.Join(catalog.Names(), ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: catalog.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := catalog.Lookup(args[0])
			if err != nil {
				return fmt.Errorf("%w (known: %s)", err, strings.Join(catalog.Names(), ", "))
			}
			client, err := a.apiClient()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = a.cacheTTL()
			}

			q := fetch.NewQuery(client, a.cache, res.Path, fetch.QueryOptions{
				CacheKey:      res.CacheKey,
				CacheDuration: ttl,
				Logger:        a.logger,
			})
			defer q.Close()

			fetchFn := q.Fetch
			if fresh {
				fetchFn = q.Refetch
			}
			data, err := fetchFn(cmd.Context())
			if err != nil {
				return fmt.Errorf("get %s: %w", res.Name, err)
			}
			return writeOutput(a.stdout, output, data)
		},
	}
	cmd.Flags().BoolVar(&fresh, "fresh", false, "bypass the response cache")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format: json or yaml")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "cache freshness window (default cache.ttl_seconds)")
	return cmd
}
