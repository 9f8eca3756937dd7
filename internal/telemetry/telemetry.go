package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/straja-ai/mailsieve/internal/redact"
)

const instrumentationName = "mailsieve"

// Config controls telemetry setup.
type Config struct {
	Enabled  bool
	Endpoint string
	Protocol string // grpc | http
	Service  string
	Version  string
}

// Provider wires tracer/meter providers and exposes helpers.
type Provider struct {
	Enabled bool
	tracer  trace.Tracer
	meter   metric.Meter

	predictionsCounter    metric.Int64Counter
	providerDuration      metric.Float64Histogram
	providerErrors        metric.Int64Counter
	epochsCounter         metric.Int64Counter
	validationAccuracy    metric.Float64Histogram
	shutdownTraceProvider func(context.Context) error
	shutdownMeterProvider func(context.Context) error
}

// Histogram buckets tuned for the values mailsieve records: validation
// accuracy lives in [0,1] and provider latency spans local ONNX (sub-ms) to
// remote LLM calls (tens of seconds).
var (
	accuracyBuckets = []float64{0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 0.98, 0.99, 1}
	latencyBuckets  = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}
)

func views() []sdkmetric.View {
	return []sdkmetric.View{
		sdkmetric.NewView(
			sdkmetric.Instrument{Name: "mailsieve_validation_accuracy"},
			sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: accuracyBuckets}},
		),
		sdkmetric.NewView(
			sdkmetric.Instrument{Name: "mailsieve_provider_duration_ms"},
			sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: latencyBuckets}},
		),
	}
}

// NewProvider configures OTLP exporters and providers. When disabled it
// returns no-op providers so callers never branch on telemetry.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !cfg.Enabled {
		return newProvider(tracenoop.NewTracerProvider().Tracer(""), noop.NewMeterProvider().Meter("")), nil
	}
	if cfg.Service == "" {
		cfg.Service = instrumentationName
	}

	traceExp, metricExp, err := newExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.Service),
			attribute.String("service.version", cfg.Version),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	// CLI runs are short; Shutdown flushes whatever the periodic reader has
	// not exported yet.
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithView(views()...),
	)
	otel.SetMeterProvider(mp)

	redact.Logf("telemetry enabled protocol=%s endpoint=%s", strings.ToLower(cfg.Protocol), cfg.Endpoint)

	p := newProvider(tp.Tracer(instrumentationName), mp.Meter(instrumentationName))
	p.Enabled = true
	p.shutdownTraceProvider = tp.Shutdown
	p.shutdownMeterProvider = mp.Shutdown
	return p, nil
}

func newExporters(ctx context.Context, cfg Config) (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	switch strings.ToLower(cfg.Protocol) {
	case "", "grpc":
		te, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure())
		if err != nil {
			return nil, nil, err
		}
		me, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(cfg.Endpoint), otlpmetricgrpc.WithInsecure())
		if err != nil {
			_ = te.Shutdown(ctx)
			return nil, nil, err
		}
		return te, me, nil
	case "http":
		te, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure())
		if err != nil {
			return nil, nil, err
		}
		me, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(cfg.Endpoint), otlpmetrichttp.WithInsecure())
		if err != nil {
			_ = te.Shutdown(ctx)
			return nil, nil, err
		}
		return te, me, nil
	default:
		return nil, nil, fmt.Errorf("telemetry: unknown protocol %q", cfg.Protocol)
	}
}

func newProvider(tracer trace.Tracer, meter metric.Meter) *Provider {
	p := &Provider{tracer: tracer, meter: meter}
	// Instrument errors are ignored to keep telemetry best-effort.
	p.predictionsCounter, _ = meter.Int64Counter("mailsieve_predictions_total",
		metric.WithDescription("Final forward/discard decisions by command."))
	p.providerDuration, _ = meter.Float64Histogram("mailsieve_provider_duration_ms",
		metric.WithDescription("Latency of embedding and reasoning calls."), metric.WithUnit("ms"))
	p.providerErrors, _ = meter.Int64Counter("mailsieve_provider_errors_total",
		metric.WithDescription("Failed embedding and reasoning calls."))
	p.epochsCounter, _ = meter.Int64Counter("mailsieve_training_epochs_total",
		metric.WithDescription("Completed training epochs."))
	p.validationAccuracy, _ = meter.Float64Histogram("mailsieve_validation_accuracy",
		metric.WithDescription("Validation accuracy after each epoch."))
	return p
}

// Tracer returns the tracer.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil {
		return tracenoop.NewTracerProvider().Tracer("")
	}
	return p.tracer
}

// Meter returns the meter.
func (p *Provider) Meter() metric.Meter {
	if p == nil {
		return noop.NewMeterProvider().Meter("")
	}
	return p.meter
}

// Shutdown flushes providers.
func (p *Provider) Shutdown(ctx context.Context) {
	if p == nil {
		return
	}
	if p.shutdownTraceProvider != nil {
		_ = p.shutdownTraceProvider(ctx)
	}
	if p.shutdownMeterProvider != nil {
		_ = p.shutdownMeterProvider(ctx)
	}
}

// RecordPrediction counts one final decision.
func (p *Provider) RecordPrediction(ctx context.Context, command, decision string) {
	if p == nil {
		return
	}
	p.predictionsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mailsieve.command", command),
		attribute.String("mailsieve.decision", decision),
	))
}

// RecordProviderCall records latency, and an error count on failure, for
// an embedding or reasoning call.
func (p *Provider) RecordProviderCall(ctx context.Context, kind, name string, durMs float64, failed bool) {
	if p == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("mailsieve.provider_kind", kind),
		attribute.String("mailsieve.provider", name),
	)
	p.providerDuration.Record(ctx, durMs, attrs)
	if failed {
		p.providerErrors.Add(ctx, 1, attrs)
	}
}

// RecordEpoch counts a finished training epoch and its validation accuracy.
func (p *Provider) RecordEpoch(ctx context.Context, accuracy float64) {
	if p == nil {
		return
	}
	p.epochsCounter.Add(ctx, 1)
	p.validationAccuracy.Record(ctx, accuracy)
}
