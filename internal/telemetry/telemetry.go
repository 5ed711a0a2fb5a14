// Package telemetry provides OpenTelemetry tracing and metrics for ingestion
// runs: one span per pipeline stage and per executed statement.
//
// Telemetry is off unless ISSUETAG_OTEL_ENABLED=true; when off, no-op
// providers are installed and ExecWrapper returns nil.
//
// # Configuration
//
//	ISSUETAG_OTEL_ENABLED=true                 enable telemetry (default: off)
//	ISSUETAG_OTEL_STDOUT=true                  also write metrics to stderr
//	OTEL_EXPORTER_OTLP_METRICS_ENDPOINT=...    OTLP/HTTP metrics endpoint (host:port)
//	OTEL_EXPORTER_OTLP_ENDPOINT=...            fallback for the metrics endpoint
//
// Spans are pretty-printed to stderr; stdout stays reserved for --json.
package telemetry

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationScope = "github.com/steveyegge/issuetag"

// settings is the exporter selection read from the environment.
type settings struct {
	enabled        bool
	metricsStderr  bool
	otlpMetricsURL string
}

func settingsFromEnv() settings {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	return settings{
		enabled:        os.Getenv("ISSUETAG_OTEL_ENABLED") == "true",
		metricsStderr:  os.Getenv("ISSUETAG_OTEL_STDOUT") == "true",
		otlpMetricsURL: endpoint,
	}
}

var providers struct {
	tracer *sdktrace.TracerProvider
	meter  *sdkmetric.MeterProvider
}

// Enabled reports whether telemetry is active (ISSUETAG_OTEL_ENABLED=true).
func Enabled() bool {
	return settingsFromEnv().enabled
}

// Init installs the global providers for one process run.
func Init(ctx context.Context, serviceName, version string) error {
	cfg := settingsFromEnv()
	if !cfg.enabled {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	spans, err := stderrSpanExporter()
	if err != nil {
		return fmt.Errorf("telemetry: span exporter: %w", err)
	}
	readers, err := metricReaders(ctx, cfg)
	if err != nil {
		return fmt.Errorf("telemetry: metric readers: %w", err)
	}

	providers.tracer = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(spans),
	)
	meterOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		meterOpts = append(meterOpts, sdkmetric.WithReader(r))
	}
	providers.meter = sdkmetric.NewMeterProvider(meterOpts...)

	otel.SetTracerProvider(providers.tracer)
	otel.SetMeterProvider(providers.meter)
	return nil
}

// Tracer returns a tracer for name, or for the module scope when name is empty.
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Tracer(name)
}

// Meter returns a meter for name, or for the module scope when name is empty.
func Meter(name string) metric.Meter {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Meter(name)
}

// Shutdown flushes pending spans and metrics. Errors are dropped; the run
// has already finished.
func Shutdown(ctx context.Context) {
	if providers.tracer != nil {
		_ = providers.tracer.Shutdown(ctx)
	}
	if providers.meter != nil {
		_ = providers.meter.Shutdown(ctx)
	}
	providers.tracer, providers.meter = nil, nil
}
