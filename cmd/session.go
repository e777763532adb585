package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"tokensession/internal/authn"
	"tokensession/internal/config"
	"tokensession/internal/tokenstore"
	"tokensession/pkg/logging"
)

// sessionEnv is everything a subcommand needs to work with the configured
// session.
type sessionEnv struct {
	config      config.TokenSessionConfig
	coordinator *authn.Coordinator
	out         io.Writer
	quiet       bool
	closeStore  func() error
}

// Close stops the coordinator's timers and releases the store.
func (e *sessionEnv) Close() {
	e.coordinator.Close()
	if e.closeStore != nil {
		if err := e.closeStore(); err != nil {
			logging.Warn("CLI", "Failed to close token store: %v", err)
		}
	}
}

// printf prints only if the --quiet flag is not set.
// Use this for progress messages and non-essential output.
func (e *sessionEnv) printf(format string, args ...interface{}) {
	if !e.quiet {
		fmt.Fprintf(e.out, format, args...)
	}
}

// println prints a line only if the --quiet flag is not set.
func (e *sessionEnv) println(a ...interface{}) {
	if !e.quiet {
		fmt.Fprintln(e.out, a...)
	}
}

// loadConfig reads the configuration with the persistent flags applied on top.
func loadConfig(opts *globalOptions) (config.TokenSessionConfig, error) {
	return config.LoadConfig(opts.configPath, func(c *config.TokenSessionConfig) {
		if opts.endpoint != "" {
			c.Endpoint = opts.endpoint
		}
		if opts.storeType != "" && config.StoreType(opts.storeType) != c.Store.Type {
			c.Store.Type = config.StoreType(opts.storeType)
			c.Store.Path = ""
		}
		if opts.logLevel != "" {
			c.LogLevel = opts.logLevel
		}
	})
}

// openSession loads the configuration, initializes logging and builds a
// coordinator over the configured token store. The caller must Close it.
func openSession(cmd *cobra.Command, opts *globalOptions) (*sessionEnv, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logging.InitForCLI(level, cmd.ErrOrStderr())
	logger := logging.For("session")

	store, closeStore, err := openStore(cmd.Context(), cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	coordinator, err := authn.New(cfg.Endpoint,
		authn.WithStore(store),
		authn.WithLogger(logger),
		authn.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		authn.WithClientCredentials(cfg.ClientID, cfg.ClientSecret),
		authn.WithRefreshLead(cfg.RefreshLead),
		authn.WithHardExpiryMargin(cfg.HardExpiryMargin),
		authn.WithRetryDelay(cfg.RetryDelay),
		authn.WithOnDemandRefreshInterval(cfg.OnDemandRefreshInterval),
		authn.WithDefaultTokenLifetime(cfg.DefaultTokenLifetime),
	)
	if err != nil {
		if closeStore != nil {
			_ = closeStore()
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &sessionEnv{
		config:      cfg,
		coordinator: coordinator,
		out:         cmd.OutOrStdout(),
		quiet:       opts.quiet,
		closeStore:  closeStore,
	}, nil
}

// openStore creates the configured token store. The returned close function
// may be nil.
func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (tokenstore.Store, func() error, error) {
	switch cfg.Type {
	case config.StoreTypeFile:
		store, err := tokenstore.NewFileStore(tokenstore.FileStoreConfig{
			StorageDir: cfg.Path,
			Logger:     logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case config.StoreTypeSQLite:
		store, err := tokenstore.OpenSQLiteStore(ctx, cfg.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.StoreTypeMemory:
		return tokenstore.NewMemoryStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported token store type %q", cfg.Type)
	}
}

// resume restores the persisted session. A session that cannot be resumed
// is reported as an AuthRequiredError unless a refresh attempt failed.
func (e *sessionEnv) resume(ctx context.Context) error {
	if err := e.coordinator.UseLocalToken(ctx); err != nil {
		return err
	}
	if !e.coordinator.LoggedIn() {
		return &AuthRequiredError{Endpoint: e.coordinator.Endpoint()}
	}
	return nil
}
