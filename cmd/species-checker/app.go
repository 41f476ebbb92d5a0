package main

import (
	"context"
	"fmt"
	"time"

	"species-checker/internal/common/config"
	"species-checker/internal/common/database"
	"species-checker/internal/common/logger"
	"species-checker/internal/reconcile"

	"go.uber.org/zap"
)

// app bundles what every subcommand needs.
type app struct {
	cfg    *config.Config
	zapLog *zap.Logger
	log    logger.Logger
}

func loadApp(configPath string) (*app, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	return &app{
		cfg:    cfg,
		zapLog: zapLog,
		log:    logger.NewZapAdapter(zapLog),
	}, nil
}

func (a *app) close() {
	_ = a.zapLog.Sync()
}

func (a *app) newRunner() *reconcile.Runner {
	client := reconcile.NewClient(a.cfg.Reconcile, a.log)
	return reconcile.NewRunner(client, a.cfg.Pipeline, a.log)
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s cancelled: %w", operationName, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func (a *app) connectRedis(ctx context.Context) (*database.RedisClient, error) {
	var client *database.RedisClient
	err := retryWithBackoff(ctx, func() error {
		var err error
		client, err = database.NewRedis(a.cfg.Database.Redis)
		if err != nil {
			return err
		}
		if err := client.Ping(ctx); err != nil {
			_ = client.Close()
			return err
		}
		return nil
	}, 10, 2*time.Second, a.zapLog, "Redis connection")
	if err != nil {
		return nil, err
	}
	a.zapLog.Info("Redis connected successfully")
	return client, nil
}

func (a *app) connectPostgres(ctx context.Context) (*database.PostgresClient, error) {
	var pg *database.PostgresClient
	err := retryWithBackoff(ctx, func() error {
		var err error
		pg, err = database.NewPostgres(a.cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			_ = pg.Close()
			return err
		}
		return nil
	}, 15, 2*time.Second, a.zapLog, "PostgreSQL connection")
	if err != nil {
		return nil, err
	}
	a.zapLog.Info("PostgreSQL connected successfully")
	return pg, nil
}
