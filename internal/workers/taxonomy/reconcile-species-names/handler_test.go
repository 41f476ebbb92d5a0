package reconcilespeciesnames

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"species-checker/internal/common/errors"
	"species-checker/internal/common/logger"
	"species-checker/internal/reconcile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePipeline struct {
	gotNames []string
	table    *reconcile.Table
	err      error
	wait     bool
}

func (f *fakePipeline) Run(ctx context.Context, names []string, progress reconcile.ProgressFunc) (*reconcile.Table, error) {
	f.gotNames = names
	if f.wait {
		<-ctx.Done()
		return nil, context.Cause(ctx)
	}
	if f.err != nil {
		return nil, f.err
	}
	progress(reconcile.Progress{Processed: len(names), Total: len(names)})
	return f.table, nil
}

func createTestConfig() *Config {
	return &Config{MaxNames: 3, PreviewSize: 1, ScoreThreshold: 90}
}

func wolfCatTable() *reconcile.Table {
	return &reconcile.Table{Rows: []reconcile.ResultRow{
		{Score: 98, Attributes: map[string]string{"Kingdom": "Animalia"}},
		{Score: 85, Attributes: map[string]string{"Kingdom": "Animalia"}},
	}}
}

func TestExecute_FromText(t *testing.T) {
	pipeline := &fakePipeline{table: wolfCatTable()}
	h := NewHandler(createTestConfig(), pipeline, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Text: "Canis lupus\n\n  Felis catus \n"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Canis lupus", "Felis catus"}, pipeline.gotNames)
	assert.Equal(t, 2, out.RowCount)
	assert.Equal(t, 85.0, out.MinScore)
	assert.True(t, out.LowScore)
	assert.Equal(t, reconcile.ModeDownload, out.Mode)
	assert.Len(t, out.Rows, 2)
}

func TestExecute_NamesTakePrecedence(t *testing.T) {
	pipeline := &fakePipeline{table: &reconcile.Table{}}
	h := NewHandler(createTestConfig(), pipeline, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{
		Text:  "Ignored",
		Names: []string{" Canis lupus ", "", "Felis catus"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Canis lupus", "Felis catus"}, pipeline.gotNames)
	assert.Equal(t, reconcile.ModeInline, out.Mode)
	assert.False(t, out.LowScore)
	assert.NotNil(t, out.Rows)
}

func TestExecute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    *Input
		pipeline *fakePipeline
		wantCode errors.ErrorCode
	}{
		{
			name:     "blank text",
			input:    &Input{Text: " \n\t"},
			pipeline: &fakePipeline{},
			wantCode: errors.ErrCodeEmptyInput,
		},
		{
			name:     "too many names",
			input:    &Input{Names: []string{"a", "b", "c", "d"}},
			pipeline: &fakePipeline{},
			wantCode: errors.ErrCodeInputTooLarge,
		},
		{
			name:     "pipeline failure",
			input:    &Input{Text: "Homo imaginarius"},
			pipeline: &fakePipeline{err: errors.NewNoMatchError("Homo imaginarius", 0)},
			wantCode: errors.ErrCodeNoMatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(createTestConfig(), tt.pipeline, logger.NewTestLogger(t))
			out, err := h.Execute(context.Background(), tt.input)
			assert.Nil(t, out)
			assert.Equal(t, tt.wantCode, errors.CodeOf(err))
		})
	}
}

func TestExecute_TimeoutIsRetryable(t *testing.T) {
	h := NewHandler(createTestConfig(), &fakePipeline{wait: true}, logger.NewTestLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := h.Execute(ctx, &Input{Text: "Canis lupus"})
	assert.Equal(t, errors.ErrCodeReconcileTimeout, errors.CodeOf(err))
	assert.True(t, errors.IsRetryable(err))
}

func TestParseInput(t *testing.T) {
	h := NewHandler(createTestConfig(), &fakePipeline{}, logger.NewTestLogger(t))

	input, err := h.parseInput(`{"names": ["Canis lupus"], "other": 1}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Canis lupus"}, input.Names)

	_, err = h.parseInput(`{"other": 1}`)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))

	_, err = h.parseInput(`{"text": 42}`)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))

	_, err = h.parseInput(`not json`)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
}

func TestOutput_JSONShape(t *testing.T) {
	h := NewHandler(createTestConfig(), &fakePipeline{table: wolfCatTable()}, logger.NewNoOpLogger())
	out, err := h.Execute(context.Background(), &Input{Text: "Canis lupus\nFelis catus"})
	require.NoError(t, err)

	data, err := json.Marshal(out)
	require.NoError(t, err)

	var vars map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &vars))
	assert.Equal(t, float64(2), vars["rowCount"])
	assert.Equal(t, true, vars["lowScore"])

	rows := vars["rows"].([]interface{})
	first := rows[0].(map[string]interface{})
	assert.Equal(t, float64(98), first["Score"])
	assert.Equal(t, "Animalia", first["Kingdom"])
}

func TestNewHandler_DefaultTimeout(t *testing.T) {
	h := NewHandler(&Config{}, &fakePipeline{}, logger.NewNoOpLogger())
	assert.Equal(t, LoadConfig().Timeout, h.config.Timeout)
}
