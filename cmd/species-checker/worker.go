package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"species-checker/internal/common/camunda"
	"species-checker/internal/common/config"
	"species-checker/internal/common/observability"
	rsn "species-checker/internal/workers/taxonomy/reconcile-species-names"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWorkerCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the " + rsn.TaskType + " Zeebe job worker",
		Long: `Connects to the Zeebe gateway at camunda.broker_address and reconciles the
names carried by ` + rsn.TaskType + ` jobs. Health and metrics are served on
server.address.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()
			return runWorker(cmd.Context(), a)
		},
	}
}

func runWorker(parent context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(contextOrBackground(parent), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerCfg := config.GetWorkerConfig(a.cfg, rsn.TaskType)
	if !workerCfg.Enabled {
		return fmt.Errorf("worker %s is disabled by configuration", rsn.TaskType)
	}

	obs := observability.New(a.cfg.Tracing.ServiceName, a.cfg.Tracing.JaegerEndpoint)
	defer obs.Shutdown()

	client, err := camunda.NewClient(ctx, a.cfg.Camunda, a.log)
	if err != nil {
		return err
	}
	defer client.Close()
	a.zapLog.Info("Zeebe client connected successfully", zap.String("broker", a.cfg.Camunda.BrokerAddress))

	handler := rsn.NewHandler(&rsn.Config{
		Timeout:        config.GetDuration(workerCfg.Timeout),
		MaxNames:       a.cfg.Pipeline.MaxNames,
		PreviewSize:    a.cfg.Pipeline.PreviewSize,
		ScoreThreshold: a.cfg.Pipeline.ScoreThreshold,
	}, a.newRunner(), a.log)

	w := camunda.NewWorker(client.GetClient(), rsn.TaskType, workerCfg.MaxJobsActive,
		config.GetDuration(workerCfg.Timeout), handler, a.log)

	srv := &http.Server{
		Addr:              a.cfg.Server.Address,
		Handler:           workerMux(client),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		a.zapLog.Info("Health/Metrics server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.zapLog.Error("health server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	a.zapLog.Info("Shutdown signal received, stopping worker...")

	w.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(a.cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("health server shutdown: %w", err)
	}

	a.zapLog.Info("Worker stopped gracefully")
	return nil
}

func workerMux(client *camunda.Client) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		if err := client.HealthCheck(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}
