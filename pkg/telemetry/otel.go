package telemetry

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/campuseats/storefront/pkg/config"
)

const instrumentationName = "github.com/campuseats/storefront"

// Telemetry bundles the tracer and the storefront's metric instruments.
type Telemetry struct {
	TraceProvider *sdktrace.TracerProvider
	Tracer        trace.Tracer
	Meter         metric.Meter

	cartMutations      metric.Int64Counter
	availabilityChecks metric.Int64Counter
	refreshDropped     metric.Int64Counter
	backendDuration    metric.Float64Histogram
	pollRuns           metric.Int64Counter
}

// New configures tracing from cfg. With telemetry disabled it returns a no-op
// instance; otherwise it installs a global tracer provider and the W3C trace
// context propagator.
func New(ctx context.Context, cfg config.TelemetryConfig) (*Telemetry, error) {
	if !cfg.Enabled || os.Getenv("OTEL_SDK_DISABLED") == "true" {
		return Noop(), nil
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(getServiceVersion()),
		semconv.DeploymentEnvironmentKey.String(getEnvironment()),
		attribute.String("storefront.component", "client"),
	)

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))
	if cfg.SamplingRate >= 1 {
		sampler = sdktrace.AlwaysSample()
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t := NewWithProviders(provider, otel.GetMeterProvider())
	t.TraceProvider = provider
	return t, nil
}

// NewWithProviders builds Telemetry on explicit providers. Tests pass an SDK
// tracer provider with a span recorder.
func NewWithProviders(tp trace.TracerProvider, mp metric.MeterProvider) *Telemetry {
	t := &Telemetry{
		Tracer: tp.Tracer(instrumentationName),
		Meter:  mp.Meter(instrumentationName),
	}
	if sdk, ok := tp.(*sdktrace.TracerProvider); ok {
		t.TraceProvider = sdk
	}
	t.initInstruments()
	return t
}

// Noop returns Telemetry that records nothing.
func Noop() *Telemetry {
	return NewWithProviders(tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
}

func newExporter(ctx context.Context, cfg config.TelemetryConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		return exporter, nil
	default:
		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		return exporter, nil
	}
}

// initInstruments creates the metric instruments. An instrument that fails to
// register falls back to a no-op one.
func (t *Telemetry) initInstruments() {
	noop := metricnoop.NewMeterProvider().Meter(instrumentationName)

	var err error
	if t.cartMutations, err = t.Meter.Int64Counter(
		"storefront_cart_mutations_total",
		metric.WithDescription("Cart mutations by operation and outcome"),
	); err != nil {
		t.cartMutations, _ = noop.Int64Counter("storefront_cart_mutations_total")
	}
	if t.availabilityChecks, err = t.Meter.Int64Counter(
		"storefront_availability_checks_total",
		metric.WithDescription("Availability resolutions by kind and result"),
	); err != nil {
		t.availabilityChecks, _ = noop.Int64Counter("storefront_availability_checks_total")
	}
	if t.refreshDropped, err = t.Meter.Int64Counter(
		"storefront_cart_refresh_dropped_total",
		metric.WithDescription("Refresh requests dropped because one was in flight"),
	); err != nil {
		t.refreshDropped, _ = noop.Int64Counter("storefront_cart_refresh_dropped_total")
	}
	if t.pollRuns, err = t.Meter.Int64Counter(
		"storefront_poll_runs_total",
		metric.WithDescription("Periodic task runs by task and outcome"),
	); err != nil {
		t.pollRuns, _ = noop.Int64Counter("storefront_poll_runs_total")
	}
	if t.backendDuration, err = t.Meter.Float64Histogram(
		"storefront_backend_request_duration_seconds",
		metric.WithDescription("Backend request duration"),
		metric.WithUnit("s"),
	); err != nil {
		t.backendDuration, _ = noop.Float64Histogram("storefront_backend_request_duration_seconds")
	}
}

// StartSpan starts a span named name.
func (t *Telemetry) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordCartMutation counts a cart mutation.
func (t *Telemetry) RecordCartMutation(ctx context.Context, op, mode string, err error) {
	t.cartMutations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("mode", mode),
		attribute.String("status", status(err)),
	))
}

// RecordAvailability counts an availability resolution.
func (t *Telemetry) RecordAvailability(ctx context.Context, kind string, pinned, available bool) {
	t.availabilityChecks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("pinned", pinned),
		attribute.Bool("available", available),
	))
}

// RecordRefreshDropped counts a refresh dropped by the in-flight guard.
func (t *Telemetry) RecordRefreshDropped(ctx context.Context) {
	t.refreshDropped.Add(ctx, 1)
}

// RecordPollRun counts one run of a periodic task.
func (t *Telemetry) RecordPollRun(ctx context.Context, task string, err error) {
	t.pollRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("task", task),
		attribute.String("status", status(err)),
	))
}

// RecordBackendCall records the duration of one backend request.
func (t *Telemetry) RecordBackendCall(ctx context.Context, op string, statusCode int, d time.Duration) {
	t.backendDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("operation", op),
		attribute.Int("http.status_code", statusCode),
	))
}

// Shutdown flushes and stops the trace provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.TraceProvider != nil {
		return t.TraceProvider.Shutdown(ctx)
	}
	return nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// getServiceVersion gets the service version from environment or default
func getServiceVersion() string {
	if version := os.Getenv("OTEL_SERVICE_VERSION"); version != "" {
		return version
	}
	return "dev"
}

// getEnvironment gets the deployment environment
func getEnvironment() string {
	if env := os.Getenv("DEPLOYMENT_ENVIRONMENT"); env != "" {
		return env
	}
	return "development"
}
