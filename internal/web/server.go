// Package web serves the species name form, run pages, CSV downloads and the JSON API.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"species-checker/internal/common/config"
	"species-checker/internal/common/logger"
	"species-checker/internal/history"
	"species-checker/internal/reconcile"
	"species-checker/internal/runs"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed templates/*.html
var templateFS embed.FS

// RunService starts and looks up reconciliation runs.
type RunService interface {
	Start(ctx context.Context, source, text string) (*runs.Run, error)
	Get(ctx context.Context, id string) (*runs.Run, error)
}

// HistoryLister lists recently finished runs.
type HistoryLister interface {
	Recent(ctx context.Context, limit int) ([]history.Record, error)
}

// ReadyCheck reports whether a dependency can serve requests.
type ReadyCheck func(ctx context.Context) error

type Server struct {
	cfg       config.ServerConfig
	pipeline  config.PipelineConfig
	runs      RunService
	checks    map[string]ReadyCheck
	history   HistoryLister
	templates *template.Template
	logger    logger.Logger
}

func NewServer(cfg config.ServerConfig, pipeline config.PipelineConfig, svc RunService, log logger.Logger) (*Server, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"percent": percent,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	if cfg.MaxInputBytes <= 0 {
		cfg.MaxInputBytes = 10 << 20
	}
	if pipeline.PreviewSize <= 0 {
		pipeline.PreviewSize = reconcile.DefaultPreviewSize
	}
	if pipeline.ScoreThreshold <= 0 {
		pipeline.ScoreThreshold = reconcile.DefaultScoreThreshold
	}

	return &Server{
		cfg:       cfg,
		pipeline:  pipeline,
		runs:      svc,
		checks:    make(map[string]ReadyCheck),
		templates: tmpl,
		logger:    log,
	}, nil
}

// AddReadyCheck registers a dependency probed by /ready.
func (s *Server) AddReadyCheck(name string, check ReadyCheck) {
	s.checks[name] = check
}

// SetHistory enables GET /api/history.
func (s *Server) SetHistory(h HistoryLister) {
	s.history = h
}

// Handler returns the routed handler wrapped in recovery and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /check", s.handleCheck)
	mux.HandleFunc("GET /runs/{id}", s.handleRunPage)
	mux.HandleFunc("GET /runs/{id}/arter.csv", s.handleDownload)

	mux.HandleFunc("POST /api/runs", s.handleAPICreateRun)
	mux.HandleFunc("GET /api/runs/{id}", s.handleAPIGetRun)
	mux.HandleFunc("GET /api/history", s.handleAPIHistory)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	return Chain(Recovery(s.logger), RequestLogger(s.logger))(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Address,
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(s.cfg.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(s.cfg.WriteTimeout) * time.Millisecond,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", map[string]interface{}{"address": s.cfg.Address})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutdown signal received, stopping HTTP server", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.ShutdownTimeout)*time.Millisecond)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func percent(done, total int) int {
	if total <= 0 {
		return 100
	}
	return done * 100 / total
}
