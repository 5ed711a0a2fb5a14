package telemetry

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/steveyegge/issuetag/internal/storage"
)

const storageScopeName = "github.com/steveyegge/issuetag/storage"

// instrumentedExecer wraps a storage.Execer with OTel tracing and metrics.
// Every statement gets a span and is counted in issuetag.storage.* metrics.
type instrumentedExecer struct {
	inner   storage.Execer
	backend string
	tracer  trace.Tracer
	ops     metric.Int64Counter
	dur     metric.Float64Histogram
	errs    metric.Int64Counter
}

// ExecWrapper returns a storage.ExecWrapper that instruments every
// statement executed through a unit of work on the named backend. It
// returns nil when telemetry is disabled, which leaves the Execer as-is.
func ExecWrapper(backend string) storage.ExecWrapper {
	if !Enabled() {
		return nil
	}
	m := Meter(storageScopeName)
	ops, _ := m.Int64Counter("issuetag.storage.statements",
		metric.WithDescription("Total statements executed"),
	)
	dur, _ := m.Float64Histogram("issuetag.storage.statement.duration",
		metric.WithDescription("Statement duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("issuetag.storage.errors",
		metric.WithDescription("Total failed statements"),
	)
	tracer := Tracer(storageScopeName)
	return func(ex storage.Execer) storage.Execer {
		return &instrumentedExecer{
			inner:   ex,
			backend: backend,
			tracer:  tracer,
			ops:     ops,
			dur:     dur,
			errs:    errs,
		}
	}
}

func (e *instrumentedExecer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", e.backend),
		attribute.String("db.operation", operation(query)),
	}
	ctx, span := e.tracer.Start(ctx, "storage.exec",
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	e.ops.Add(ctx, 1, metric.WithAttributes(attrs...))
	start := time.Now()

	res, err := e.inner.ExecContext(ctx, query, args...)

	e.dur.Record(ctx, millis(time.Since(start)), metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
	return res, err
}

// millis converts d to fractional milliseconds; most statements finish in
// well under one.
func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// operation is the leading verb of a statement, e.g. "CREATE" or "UPDATE".
func operation(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// StartStage starts a span for a pipeline stage. The returned func ends it,
// recording err when non-nil.
func StartStage(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	ctx, span := Tracer("").Start(ctx, "ingest."+name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
