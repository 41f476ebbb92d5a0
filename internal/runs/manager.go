package runs

import (
	"context"
	"sync"
	"time"

	"species-checker/internal/common/config"
	apperrors "species-checker/internal/common/errors"
	"species-checker/internal/common/logger"
	"species-checker/internal/common/metrics"
	"species-checker/internal/common/observability"
	"species-checker/internal/reconcile"

	"github.com/google/uuid"
)

// Pipeline reconciles names into a table, reporting progress per batch.
type Pipeline interface {
	Run(ctx context.Context, names []string, progress reconcile.ProgressFunc) (*reconcile.Table, error)
}

// Recorder keeps an audit trail of finished runs.
type Recorder interface {
	RecordRun(ctx context.Context, run *Run, duration time.Duration) error
}

type Manager struct {
	store    Store
	pipeline Pipeline
	selector reconcile.Selector
	maxNames int
	recorder Recorder
	obs      *observability.Observability
	logger   logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Manager)

func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		m.recorder = r
	}
}

func WithObservability(obs *observability.Observability) Option {
	return func(m *Manager) {
		m.obs = obs
	}
}

func NewManager(store Store, pipeline Pipeline, cfg config.PipelineConfig, log logger.Logger, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		store:    store,
		pipeline: pipeline,
		selector: reconcile.NewSelector(cfg.PreviewSize, cfg.ScoreThreshold),
		maxNames: cfg.MaxNames,
		logger:   log,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ValidateInput parses text and enforces the empty and size limits.
func (m *Manager) ValidateInput(text string) ([]string, error) {
	names := reconcile.ParseNames(text)
	if len(names) == 0 {
		return nil, apperrors.NewEmptyInputError()
	}
	if m.maxNames > 0 && len(names) > m.maxNames {
		return nil, apperrors.NewInputTooLargeError(len(names), m.maxNames)
	}
	return names, nil
}

// Start validates text, stores a running Run and reconciles it in the
// background. The returned Run is a snapshot taken before any batch runs.
func (m *Manager) Start(ctx context.Context, source, text string) (*Run, error) {
	names, err := m.ValidateInput(text)
	if err != nil {
		return nil, err
	}

	run := &Run{
		ID:        uuid.NewString(),
		Source:    source,
		Status:    StatusRunning,
		Total:     len(names),
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.Create(ctx, run); err != nil {
		return nil, err
	}

	metrics.RunsStarted.WithLabelValues(source).Inc()
	metrics.RunsActive.Inc()
	m.logger.Info("Run started", map[string]interface{}{
		"runId":  run.ID,
		"source": source,
		"names":  len(names),
	})

	m.wg.Add(1)
	go func(run *Run) {
		defer m.wg.Done()
		defer metrics.RunsActive.Dec()
		m.execute(run, names)
	}(run.clone())

	return run, nil
}

func (m *Manager) Get(ctx context.Context, id string) (*Run, error) {
	return m.store.Get(ctx, id)
}

// Close cancels running pipelines and waits for them to record their failure.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

// Wait blocks until every started run has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) execute(run *Run, names []string) {
	ctx, span := m.obs.StartSpan(m.ctx, "runs.execute")
	defer span.End()

	log := m.logger.WithFields(map[string]interface{}{"runId": run.ID})
	start := time.Now()

	table, err := m.pipeline.Run(ctx, names, func(p reconcile.Progress) {
		run.Processed = p.Processed
		if err := m.store.Update(ctx, run); err != nil {
			log.Warn("Failed to store run progress", map[string]interface{}{"error": err})
		}
	})

	finished := time.Now().UTC()
	run.FinishedAt = &finished

	if err != nil {
		run.Status = StatusFailed
		run.ErrorCode = string(apperrors.CodeOf(err))
		run.ErrorMessage = err.Error()
		log.Error("Run failed", map[string]interface{}{
			"errorCode": run.ErrorCode,
			"error":     err,
		})
	} else {
		p := m.selector.Select(table)
		run.Status = StatusCompleted
		run.Processed = table.Len()
		run.Rows = table.Rows
		run.Presentation = &p
		if p.LowScore {
			metrics.LowScoreRuns.Inc()
		}
		log.Info("Run completed", map[string]interface{}{
			"rows":     p.RowCount,
			"mode":     p.Mode,
			"minScore": p.MinScore,
			"lowScore": p.LowScore,
		})
	}

	// Stores must still be writable when Close cancelled the pipeline.
	storeCtx := context.WithoutCancel(ctx)
	if err := m.store.Update(storeCtx, run); err != nil {
		log.Error("Failed to store finished run", map[string]interface{}{"error": err})
	}

	duration := time.Since(start)
	metrics.RunsFinished.WithLabelValues(string(run.Status), run.ErrorCode).Inc()
	m.obs.RecordRun(storeCtx, run.Source, string(run.Status), run.Total, duration)

	if m.recorder != nil {
		if err := m.recorder.RecordRun(storeCtx, run, duration); err != nil {
			log.Warn("Failed to record run history", map[string]interface{}{"error": err})
		}
	}
}
