package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"species-checker/internal/common/observability"
	"species-checker/internal/history"
	"species-checker/internal/runs"
	"species-checker/internal/web"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand(configPath *string) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web form, JSON API and metrics endpoint",
		Example: `  # Serve on the configured address (default :8080)
  species-checker serve

  # Point at another reconciliation service
  RECONCILE_ENDPOINT=http://localhost:8001/common/species/-/reconcile species-checker serve --address :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()
			if address != "" {
				a.cfg.Server.Address = address
			}
			return runServe(cmd.Context(), a)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "Listen address, overrides server.address")
	return cmd
}

func runServe(parent context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(contextOrBackground(parent), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.zapLog.Info("Starting species-checker server",
		zap.String("version", a.cfg.App.Version),
		zap.String("endpoint", a.cfg.Reconcile.Endpoint),
	)

	obs := observability.New(a.cfg.Tracing.ServiceName, a.cfg.Tracing.JaegerEndpoint)
	defer obs.Shutdown()

	var (
		store  runs.Store
		checks = map[string]web.ReadyCheck{}
		opts   = []runs.Option{runs.WithObservability(obs)}
		hist   *history.Store
	)

	ttl := time.Duration(a.cfg.Runs.TTL) * time.Millisecond
	if a.cfg.Database.Redis.Enabled() {
		redisClient, err := a.connectRedis(ctx)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		store = runs.NewRedisStore(redisClient, ttl)
		checks["redis"] = redisClient.Ping
	} else {
		a.zapLog.Info("Redis not configured, keeping runs in memory")
		store = runs.NewMemoryStore(ttl)
	}

	if a.cfg.Database.Postgres.Enabled() {
		pg, err := a.connectPostgres(ctx)
		if err != nil {
			return err
		}
		defer pg.Close()
		hist = history.NewStore(pg)
		if err := hist.EnsureSchema(ctx); err != nil {
			return err
		}
		opts = append(opts, runs.WithRecorder(hist))
		checks["postgres"] = pg.Ping
	}

	manager := runs.NewManager(store, a.newRunner(), a.cfg.Pipeline, a.log, opts...)
	defer manager.Close()

	server, err := web.NewServer(a.cfg.Server, a.cfg.Pipeline, manager, a.log)
	if err != nil {
		return err
	}
	for name, check := range checks {
		server.AddReadyCheck(name, check)
	}
	if hist != nil {
		server.SetHistory(hist)
	}

	return server.ListenAndServe(ctx)
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
