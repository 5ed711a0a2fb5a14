package telemetry

import (
	"context"
	"testing"
)

func TestSettingsFromEnv(t *testing.T) {
	t.Setenv("ISSUETAG_OTEL_ENABLED", "true")
	t.Setenv("ISSUETAG_OTEL_STDOUT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")

	cfg := settingsFromEnv()
	if !cfg.enabled || cfg.metricsStderr {
		t.Errorf("settings = %+v", cfg)
	}
	if cfg.otlpMetricsURL != "collector:4318" {
		t.Errorf("endpoint fallback = %q", cfg.otlpMetricsURL)
	}

	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "metrics:4318")
	if got := settingsFromEnv().otlpMetricsURL; got != "metrics:4318" {
		t.Errorf("metrics endpoint = %q, want the metrics-specific value", got)
	}
}

func TestMetricReaders(t *testing.T) {
	ctx := context.Background()

	readers, err := metricReaders(ctx, settings{enabled: true})
	if err != nil || len(readers) != 0 {
		t.Fatalf("no destinations: readers=%d err=%v", len(readers), err)
	}

	readers, err = metricReaders(ctx, settings{enabled: true, metricsStderr: true, otlpMetricsURL: "localhost:4318"})
	if err != nil {
		t.Fatal(err)
	}
	if len(readers) != 2 {
		t.Errorf("readers = %d, want 2", len(readers))
	}
	for _, r := range readers {
		_ = r.Shutdown(ctx)
	}
}

func TestInitDisabledThenShutdown(t *testing.T) {
	t.Setenv("ISSUETAG_OTEL_ENABLED", "")
	if err := Init(context.Background(), "issuetag", "test"); err != nil {
		t.Fatal(err)
	}
	if Enabled() {
		t.Error("Enabled() should be false")
	}
	Shutdown(context.Background())
}
