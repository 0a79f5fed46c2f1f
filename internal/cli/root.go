package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tekrabyte/pos-sub000/internal/api"
	"github.com/tekrabyte/pos-sub000/internal/config"
	"github.com/tekrabyte/pos-sub000/internal/fetch"
	"github.com/tekrabyte/pos-sub000/internal/logger"
	"github.com/tekrabyte/pos-sub000/internal/session"
	"github.com/tekrabyte/pos-sub000/internal/tracing"
	"github.com/tekrabyte/pos-sub000/internal/version"
)

type app struct {
	configPath string
	baseURL    string
	logLevel   string

	cfgMgr config.Manager
	cfg    *config.Config
	logger *zap.Logger
	cache  *fetch.Cache

	shutdownTracing func(context.Context) error

	storeOnce sync.Once
	store     *session.SQLiteStore
	storeErr  error

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(os.Stdin, os.Stdout, os.Stderr)
}

func NewRootCommandWithIO(in io.Reader, out, errOut io.Writer) *cobra.Command {
	return newRootCommand(in, out, errOut)
}

func newRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{
		stdin:  in,
		stdout: out,
		stderr: errOut,
	}

	cmd := &cobra.Command{
		Use:           "posctl",
		Short:         "Point-of-sale backend client",
		Long:          "posctl reads POS catalog data through a shared response cache, manages orders and watches the live order channel.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Version,
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath(), "path to the config file")
	cmd.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "override backend.base_url")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	cmd.AddCommand(
		newGetCmd(a),
		newProductsCmd(a),
		newOrdersCmd(a),
		newSessionCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)

	cmd.SetVersionTemplate(fmt.Sprintf("posctl {{.Version}} (commit %s, built %s)\n", version.Commit, version.BuildDate))

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return a.init(cmd.Context())
	}
	cmd.PersistentPostRunE = func(*cobra.Command, []string) error {
		return a.close()
	}

	cmd.SetErrPrefix("posctl: ")
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)
	return cmd
}

// init loads configuration and builds the logger and cache.
func (a *app) init(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mgr, err := config.NewManager(a.configPath)
	if err != nil {
		return err
	}
	if err := mgr.Load(ctx); err != nil {
		return fmt.Errorf("invalid %s: %w", a.configPath, err)
	}
	if strings.TrimSpace(a.baseURL) != "" {
		mgr.Set("backend.base_url", strings.TrimSpace(a.baseURL))
	}
	if strings.TrimSpace(a.logLevel) != "" {
		mgr.Set("logging.level", strings.TrimSpace(a.logLevel))
	}
	if err := mgr.Validate(ctx); err != nil {
		return err
	}
	a.cfgMgr = mgr
	a.cfg = mgr.Get(ctx)

	log, err := logger.New(logger.Options{
		Level:      a.cfg.Logging.Level,
		Format:     a.cfg.Logging.Format,
		File:       a.cfg.Logging.File,
		MaxSizeMB:  a.cfg.Logging.MaxSizeMB,
		MaxBackups: a.cfg.Logging.MaxBackups,
		MaxAgeDays: a.cfg.Logging.MaxAgeDays,
		Compress:   a.cfg.Logging.Compress,
		Output:     a.stderr,
	})
	if err != nil {
		return err
	}
	a.logger = log

	shutdown, err := tracing.Init(ctx, tracing.Options{
		ServiceName:  "posctl",
		Endpoint:     a.cfg.Tracing.Endpoint,
		SamplingRate: a.cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return err
	}
	a.shutdownTracing = shutdown

	a.cache = fetch.NewCache(nil)
	return nil
}

func (a *app) close() error {
	if a.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.shutdownTracing(ctx); err != nil && a.logger != nil {
			a.logger.Warn("failed to flush traces", zap.Error(err))
		}
		cancel()
		a.shutdownTracing = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.store != nil {
		err := a.store.Close()
		a.store = nil
		return err
	}
	return nil
}

// sessionStore opens the session database on first use.
func (a *app) sessionStore() (*session.SQLiteStore, error) {
	a.storeOnce.Do(func() {
		a.store, a.storeErr = session.NewSQLiteStore(a.cfg.Session.Path)
	})
	return a.store, a.storeErr
}

func (a *app) apiClient() (*api.Client, error) {
	store, err := a.sessionStore()
	if err != nil {
		return nil, err
	}
	return api.NewClient(api.Options{
		BaseURL:   a.cfg.Backend.BaseURL,
		Timeout:   time.Duration(a.cfg.Backend.Timeout) * time.Second,
		RetryMax:  a.cfg.Backend.RetryMax,
		RateLimit: a.cfg.Backend.RateLimit,
		RateBurst: a.cfg.Backend.RateBurst,
		Session:   store,
		OnSessionExpired: func() {
			fmt.Fprintf(a.stderr, "%sSession expired.%s Run 'posctl session set-token' to sign in again.\n", ansiYellow, ansiReset)
		},
		Logger: a.logger,
	})
}

func (a *app) cacheTTL() time.Duration {
	return time.Duration(a.cfg.Cache.TTLSeconds) * time.Second
}
