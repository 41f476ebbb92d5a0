package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan_RecordsAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	obs := NewWithTracerProvider("species-checker-test", tp)
	defer obs.Shutdown()

	_, span := obs.StartSpan(context.Background(), "reconcile.batch", attribute.Int("batch.size", 2))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "reconcile.batch", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.Int("batch.size", 2))
}

func TestNilObservability(t *testing.T) {
	var obs *Observability

	assert.NotPanics(t, func() {
		_, span := obs.StartSpan(context.Background(), "noop")
		span.End()
		obs.RecordRun(context.Background(), "web", "completed", 3, time.Second)
		obs.Shutdown()
	})
}

func TestRecordRun_NoopMeter(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	obs := NewWithTracerProvider("species-checker-test", tp)
	defer obs.Shutdown()

	assert.NotPanics(t, func() {
		obs.RecordRun(context.Background(), "cli", "failed", 10, 25*time.Millisecond)
	})
}
