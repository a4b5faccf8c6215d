package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/c360studio/sparqlgate/config"
	"github.com/c360studio/sparqlgate/gateway"
	"github.com/c360studio/sparqlgate/savedquery"
)

// App wires the configuration, gateway client and saved-query store for one
// command invocation.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	client   *gateway.Client
	queries  *savedquery.Store
	registry *prometheus.Registry

	natsKV        *savedquery.NATSKV
	metricsServer *http.Server
}

// loadConfig resolves configuration from files, environment and flags. It
// also returns the files that were merged.
func (o *globalOptions) loadConfig(logger *slog.Logger) (*config.Config, []string, error) {
	loader := config.NewLoader(logger)

	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = loader.LoadFile(o.configPath)
	} else {
		cfg, err = loader.Load()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	cfg.Merge(&config.Config{
		Server: config.ServerConfig{
			URL:        o.server,
			Repository: o.repository,
		},
		Log: config.LogConfig{
			Level: o.logLevel,
		},
		Credentials: config.Credentials{
			Username: o.username,
			Password: o.password,
		},
	})

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, loader.Sources(), nil
}

// newApp loads configuration and builds the App for cmd. The caller must
// Close it.
func (o *globalOptions) newApp(cmd *cobra.Command) (*App, error) {
	stderr := cmd.ErrOrStderr()
	cfg, _, err := o.loadConfig(newLogger(stderr, o.logLevel))
	if err != nil {
		return nil, err
	}

	logger := newLogger(stderr, cfg.Log.Level)
	slog.SetDefault(logger)

	app, err := NewApp(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, err
	}

	if o.metricsAddr != "" {
		app.serveMetrics(o.metricsAddr)
	}
	return app, nil
}

// NewApp creates the client and saved-query store described by cfg.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}

	kv, err := app.openQueryKV(ctx)
	if err != nil {
		return nil, err
	}
	app.queries = savedquery.NewStore(kv,
		savedquery.WithStorageKey(cfg.Queries.Key),
		savedquery.WithStoreLogger(logger))

	endpoint := gateway.DefaultEndpoint().
		WithServerURL(cfg.Server.URL).
		WithRepository(cfg.Server.Repository).
		WithCredentials(cfg.Credentials.Username, cfg.Credentials.Password)

	app.client = gateway.NewClient(endpoint,
		gateway.WithHTTPClient(&http.Client{Timeout: cfg.Server.Timeout}),
		gateway.WithLogger(logger),
		gateway.WithMetrics(gateway.NewMetrics(app.registry)),
		gateway.WithMaxResponseSize(cfg.Server.MaxResponseBytes),
		gateway.WithDefaultLimit(cfg.Server.QueryLimit),
		gateway.WithQueryStore(app.queries),
	)
	app.client.OnNotAuthorized(func() {
		logger.Warn("Store rejected the request; check --user and --password",
			"server", cfg.Server.URL,
			"repository", cfg.Server.Repository)
	})

	logger.Debug("Client ready",
		"server", cfg.Server.URL,
		"repository", cfg.Server.Repository,
		"queries_backend", cfg.Queries.Backend)
	return app, nil
}

// openQueryKV opens the configured saved-query backend.
func (a *App) openQueryKV(ctx context.Context) (savedquery.KV, error) {
	switch a.cfg.Queries.Backend {
	case config.BackendMemory:
		return savedquery.NewMemoryKV(), nil
	case config.BackendFile:
		return savedquery.NewFileKV(a.cfg.Queries.Path), nil
	case config.BackendNATS:
		connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		a.logger.Debug("Connecting to NATS", "url", a.cfg.Queries.NATSURL, "bucket", a.cfg.Queries.Bucket)
		kv, err := savedquery.ConnectNATSKV(connCtx, a.cfg.Queries.NATSURL, a.cfg.Queries.Bucket)
		if err != nil {
			return nil, fmt.Errorf("open saved-query bucket: %w", err)
		}
		a.natsKV = kv
		return kv, nil
	default:
		return nil, fmt.Errorf("unknown saved-query backend %q", a.cfg.Queries.Backend)
	}
}

// serveMetrics exposes the client metrics on addr until Close.
func (a *App) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	a.metricsServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed", "addr", addr, "error", err)
		}
	}()
	a.logger.Info("Serving metrics", "addr", addr)
}

// Close releases the NATS connection and the metrics listener.
func (a *App) Close() {
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.metricsServer.Shutdown(ctx)
	}
	if a.natsKV != nil {
		a.natsKV.Close()
	}
}
