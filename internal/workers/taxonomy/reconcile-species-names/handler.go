package reconcilespeciesnames

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"species-checker/internal/common/errors"
	"species-checker/internal/common/logger"
	"species-checker/internal/common/metrics"
	"species-checker/internal/common/validation"
	"species-checker/internal/reconcile"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "reconcile-species-names"
)

// Pipeline reconciles a name list into a table.
type Pipeline interface {
	Run(ctx context.Context, names []string, progress reconcile.ProgressFunc) (*reconcile.Table, error)
}

type Handler struct {
	config     *Config
	pipeline   Pipeline
	selector   reconcile.Selector
	errHandler *errors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, pipeline Pipeline, log logger.Logger) *Handler {
	if config.Timeout <= 0 {
		config.Timeout = LoadConfig().Timeout
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		pipeline:   pipeline,
		selector:   reconcile.NewSelector(config.PreviewSize, config.ScoreThreshold),
		errHandler: errors.NewErrorHandler(log),
		logger:     log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.Key,
		"processInstanceKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job.Variables)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
		h.errHandler.HandleJobError(ctx, client, job, err)
		return
	}

	output, err := h.execute(ctx, input)

	// Job commands must still reach the broker when the pipeline timed out.
	sendCtx := context.WithoutCancel(ctx)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
		h.errHandler.HandleJobError(sendCtx, client, job, err)
		return
	}

	h.completeJob(sendCtx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) parseInput(variables string) (*Input, error) {
	result := validation.JobInput.ValidateBytes([]byte(variables))
	if !result.Valid {
		return nil, errors.NewInvalidInputError(result.Summary(3))
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	names := h.names(input)
	if len(names) == 0 {
		return nil, errors.NewEmptyInputError()
	}
	if h.config.MaxNames > 0 && len(names) > h.config.MaxNames {
		return nil, errors.NewInputTooLargeError(len(names), h.config.MaxNames)
	}

	table, err := h.pipeline.Run(ctx, names, func(p reconcile.Progress) {
		h.logger.Debug("batch reconciled", map[string]interface{}{
			"processed": p.Processed,
			"total":     p.Total,
		})
	})
	if err != nil {
		if _, ok := errors.AsStandardError(err); !ok && ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewReconcileTimeoutError("pipeline", err)
		}
		return nil, err
	}

	p := h.selector.Select(table)
	if p.LowScore {
		metrics.LowScoreRuns.Inc()
	}

	h.logger.Info("species names reconciled", map[string]interface{}{
		"rows":     p.RowCount,
		"minScore": p.MinScore,
		"lowScore": p.LowScore,
	})

	rows := table.Rows
	if rows == nil {
		rows = []reconcile.ResultRow{}
	}
	return &Output{
		Rows:     rows,
		RowCount: p.RowCount,
		MinScore: p.MinScore,
		LowScore: p.LowScore,
		Mode:     p.Mode,
	}, nil
}

// names trims an explicit list the same way pasted text is parsed.
func (h *Handler) names(input *Input) []string {
	if len(input.Names) == 0 {
		return reconcile.ParseNames(input.Text)
	}
	names := make([]string, 0, len(input.Names))
	for _, n := range input.Names {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		h.errHandler.HandleJobError(ctx, client, job, err)
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
