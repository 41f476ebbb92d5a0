package reconcile

import (
	"context"
	"runtime"
	"time"

	"species-checker/internal/common/config"
	apperrors "species-checker/internal/common/errors"
	"species-checker/internal/common/logger"
	"species-checker/internal/common/metrics"

	"github.com/sourcegraph/conc/stream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const DefaultBatchSize = 100

// BatchReconciler reconciles one batch of names into rows in the same order.
type BatchReconciler interface {
	ReconcileBatch(ctx context.Context, names []string) ([]ResultRow, error)
}

// Runner reconciles all batches of an input on a bounded pool.
type Runner struct {
	reconciler BatchReconciler
	batchSize  int
	workers    int
	tracer     trace.Tracer
	logger     logger.Logger
}

func NewRunner(reconciler BatchReconciler, cfg config.PipelineConfig, log logger.Logger) *Runner {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Runner{
		reconciler: reconciler,
		batchSize:  batchSize,
		workers:    workers,
		tracer:     otel.Tracer("species-checker/reconcile"),
		logger:     log,
	}
}

// RunText parses text into names and runs them.
func (r *Runner) RunText(ctx context.Context, text string, progress ProgressFunc) (*Table, error) {
	return r.Run(ctx, ParseNames(text), progress)
}

// Run reconciles names batch by batch. Batch results are merged in submission
// order whatever order they finish in, and progress is reported after each
// merge. The first failing batch cancels the rest and its error is returned
// with no partial table.
func (r *Runner) Run(ctx context.Context, names []string, progress ProgressFunc) (*Table, error) {
	batches, err := Batch(names, r.batchSize)
	if err != nil {
		return nil, err
	}

	ctx, span := r.tracer.Start(ctx, "reconcile.run", trace.WithAttributes(
		attribute.Int("names", len(names)),
		attribute.Int("batches", len(batches)),
		attribute.Int("workers", r.workers),
	))
	defer span.End()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	start := time.Now()
	table := &Table{Rows: make([]ResultRow, 0, len(names))}
	failed := false

	s := stream.New().WithMaxGoroutines(r.workers)
	for i, batch := range batches {
		s.Go(func() stream.Callback {
			if ctx.Err() != nil {
				return func() { failed = true }
			}

			rows, err := r.reconciler.ReconcileBatch(ctx, batch)
			if err != nil {
				cancel(err)
				metrics.BatchesProcessed.WithLabelValues(string(apperrors.CodeOf(err))).Inc()
				return func() {
					if !failed {
						r.logger.Error("Batch reconciliation failed", map[string]interface{}{
							"batch":     i,
							"batchSize": len(batch),
							"error":     err,
						})
					}
					failed = true
				}
			}
			metrics.BatchesProcessed.WithLabelValues("ok").Inc()

			return func() {
				if failed {
					return
				}
				table.Rows = append(table.Rows, rows...)
				metrics.NamesReconciled.Add(float64(len(rows)))
				if progress != nil {
					progress(Progress{Processed: len(table.Rows), Total: len(names)})
				}
			}
		})
	}
	s.Wait()

	if failed || ctx.Err() != nil {
		cause := context.Cause(ctx)
		recordSpanError(span, cause)
		return nil, cause
	}

	r.logger.Info("Reconciliation finished", map[string]interface{}{
		"names":    len(names),
		"rows":     len(table.Rows),
		"batches":  len(batches),
		"duration": time.Since(start).String(),
	})
	return table, nil
}
