package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer
	runCounter     otelmetric.Int64Counter
	runDuration    otelmetric.Float64Histogram
	namesCounter   otelmetric.Int64Counter
}

// New installs a Prometheus-backed meter provider and a tracer provider as the
// otel globals. Spans are exported to Jaeger when jaegerEndpoint is set and
// only sampled in-process otherwise.
func New(serviceName, jaegerEndpoint string) *Observability {
	res := resource.NewSchemaless(semconv.ServiceName(serviceName))

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if jaegerEndpoint != "" {
		exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(jaegerEndpoint)))
		if err != nil {
			log.Printf("Failed to create Jaeger exporter: %v", err)
		} else {
			tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
		}
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)

	o := &Observability{
		tracerProvider: tp,
		tracer:         tp.Tracer(serviceName),
	}

	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		o.initInstruments(noop.NewMeterProvider().Meter(serviceName))
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	otel.SetMeterProvider(provider)
	o.meterProvider = provider
	o.initInstruments(provider.Meter(serviceName))
	return o
}

// NewWithTracerProvider wires a caller-owned tracer provider and a no-op meter.
func NewWithTracerProvider(serviceName string, tp *sdktrace.TracerProvider) *Observability {
	o := &Observability{
		tracerProvider: tp,
		tracer:         tp.Tracer(serviceName),
	}
	o.initInstruments(noop.NewMeterProvider().Meter(serviceName))
	return o
}

func (o *Observability) initInstruments(meter otelmetric.Meter) {
	o.meter = meter

	o.runCounter, _ = meter.Int64Counter(
		"runs.processed",
		otelmetric.WithDescription("Number of reconciliation runs processed"),
	)

	o.runDuration, _ = meter.Float64Histogram(
		"runs.duration",
		otelmetric.WithDescription("Reconciliation run duration"),
		otelmetric.WithUnit("ms"),
	)

	o.namesCounter, _ = meter.Int64Counter(
		"runs.names",
		otelmetric.WithDescription("Species names submitted for reconciliation"),
	)
}

// Tracer returns the service tracer, or the global one on a nil receiver.
func (o *Observability) Tracer() trace.Tracer {
	if o == nil || o.tracer == nil {
		return otel.Tracer("species-checker")
	}
	return o.tracer
}

func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordRun(ctx context.Context, source, status string, names int, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("source", source),
		attribute.String("status", status),
	)
	if o.runCounter != nil {
		o.runCounter.Add(ctx, 1, attrs)
	}
	if o.namesCounter != nil {
		o.namesCounter.Add(ctx, int64(names), attrs)
	}
	if o.runDuration != nil {
		o.runDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
}
