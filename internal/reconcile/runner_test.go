package reconcile

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"species-checker/internal/common/config"
	apperrors "species-checker/internal/common/errors"
	"species-checker/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedReconciler scores each name by its numeric value and can delay or fail batches.
type scriptedReconciler struct {
	delay    func(batch []string) time.Duration
	failOn   string
	calls    atomic.Int32
	canceled atomic.Int32
}

func (s *scriptedReconciler) ReconcileBatch(ctx context.Context, names []string) ([]ResultRow, error) {
	s.calls.Add(1)
	if s.delay != nil {
		select {
		case <-time.After(s.delay(names)):
		case <-ctx.Done():
			s.canceled.Add(1)
			return nil, ctx.Err()
		}
	}

	rows := make([]ResultRow, len(names))
	for i, name := range names {
		if name == s.failOn {
			return nil, apperrors.NewNoMatchError(name, i)
		}
		score, _ := strconv.ParseFloat(name, 64)
		rows[i] = ResultRow{Score: score, Attributes: map[string]string{"ValidScientificName": name}}
	}
	return rows, nil
}

func numberedNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = strconv.Itoa(i)
	}
	return names
}

func TestRunner_SubmissionOrder(t *testing.T) {
	// Earlier batches sleep longer so they finish last.
	reconciler := &scriptedReconciler{
		delay: func(batch []string) time.Duration {
			first, _ := strconv.Atoi(batch[0])
			return time.Duration(50-first) * time.Millisecond
		},
	}
	runner := NewRunner(reconciler, config.PipelineConfig{BatchSize: 10, Workers: 5}, logger.NewTestLogger(t))

	var updates []Progress
	table, err := runner.Run(context.Background(), numberedNames(45), func(p Progress) {
		updates = append(updates, p)
	})

	require.NoError(t, err)
	require.Equal(t, 45, table.Len())
	for i, row := range table.Rows {
		assert.Equal(t, float64(i), row.Score)
	}

	require.Len(t, updates, 5)
	assert.Equal(t, Progress{Processed: 10, Total: 45}, updates[0])
	assert.Equal(t, Progress{Processed: 45, Total: 45}, updates[4])
	for i := 1; i < len(updates); i++ {
		assert.Greater(t, updates[i].Processed, updates[i-1].Processed)
	}
	assert.Equal(t, int32(5), reconciler.calls.Load())
}

func TestRunner_FailureAbortsRun(t *testing.T) {
	reconciler := &scriptedReconciler{
		failOn: "3",
		delay: func(batch []string) time.Duration {
			if batch[0] == "2" {
				return 0
			}
			return 200 * time.Millisecond
		},
	}
	runner := NewRunner(reconciler, config.PipelineConfig{BatchSize: 2, Workers: 2}, logger.NewTestLogger(t))

	var updates []Progress
	table, err := runner.Run(context.Background(), numberedNames(10), func(p Progress) {
		updates = append(updates, p)
	})

	require.Error(t, err)
	assert.Nil(t, table)
	assert.Equal(t, apperrors.ErrCodeNoMatch, apperrors.CodeOf(err))
	assert.Less(t, reconciler.calls.Load(), int32(5))
	assert.Empty(t, updates)
}

func TestRunner_ParentCancel(t *testing.T) {
	reconciler := &scriptedReconciler{
		delay: func([]string) time.Duration { return time.Second },
	}
	runner := NewRunner(reconciler, config.PipelineConfig{BatchSize: 1, Workers: 2}, logger.NewNoOpLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := runner.Run(ctx, numberedNames(4), nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunner_EmptyInput(t *testing.T) {
	runner := NewRunner(&scriptedReconciler{}, config.PipelineConfig{}, logger.NewNoOpLogger())

	table, err := runner.RunText(context.Background(), "\n \n", nil)

	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
}

func TestRunner_Defaults(t *testing.T) {
	runner := NewRunner(&scriptedReconciler{}, config.PipelineConfig{}, logger.NewNoOpLogger())
	assert.Equal(t, DefaultBatchSize, runner.batchSize)
	assert.Positive(t, runner.workers)
}

func TestRunner_EndToEndWolfAndCat(t *testing.T) {
	server := httptest.NewServer(newWolfCatService())
	defer server.Close()

	client := newTestClient(t, server.URL)
	runner := NewRunner(client, config.PipelineConfig{BatchSize: 100, Workers: 2}, logger.NewTestLogger(t))

	table, err := runner.RunText(context.Background(), "Canis lupus\nFelis catus", nil)
	require.NoError(t, err)

	require.Equal(t, 2, table.Len())
	assert.Equal(t, ResultRow{Score: 98, Attributes: map[string]string{"Kingdom": "Animalia"}}, table.Rows[0])
	assert.Equal(t, ResultRow{Score: 85, Attributes: map[string]string{"Kingdom": "Animalia"}}, table.Rows[1])

	p := NewSelector(0, 0).Select(table)
	assert.Equal(t, ModeInline, p.Mode)
	assert.True(t, p.LowScore)
	assert.Equal(t, 85.0, p.MinScore)
}

func TestRunner_ManyBatchesAgainstService(t *testing.T) {
	svc := &fakeService{
		matches: map[string]fakeMatch{},
		rows:    map[string]map[string][]map[string]interface{}{},
	}
	var text string
	for i := 0; i < 250; i++ {
		name := fmt.Sprintf("Species %03d", i)
		id := fmt.Sprintf("id-%03d", i)
		svc.matches[name] = fakeMatch{id: id, score: float64(i % 101)}
		svc.rows[id] = map[string][]map[string]interface{}{"ValidScientificName": str(name)}
		text += name + "\n"
	}
	server := httptest.NewServer(svc)
	defer server.Close()

	runner := NewRunner(newTestClient(t, server.URL), config.PipelineConfig{BatchSize: 100, Workers: 3}, logger.NewNoOpLogger())
	table, err := runner.RunText(context.Background(), text, nil)

	require.NoError(t, err)
	require.Equal(t, 250, table.Len())
	for i, row := range table.Rows {
		assert.Equal(t, fmt.Sprintf("Species %03d", i), row.Attributes["ValidScientificName"])
	}
	assert.Equal(t, int32(3), svc.matchCalls.Load())
	assert.Equal(t, int32(3), svc.extendCalls.Load())
}
