package tracing

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const ledgerTracerName = "risk-service/ledger"

// QuerySpan names one ledger statement for tracing. The statement text is
// deliberately not recorded; attempt rows carry identifiers.
type QuerySpan struct {
	Operation string // INSERT, SELECT, UPDATE, DELETE
	Table     string
}

// TraceQuery wraps a ledger statement in a client span. sql.ErrNoRows is
// an expected outcome, not a span error.
func TraceQuery(ctx context.Context, qs QuerySpan, fn func(context.Context) error) error {
	tracer := otel.Tracer(ledgerTracerName)

	ctx, span := tracer.Start(ctx, qs.Operation+" "+qs.Table,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", qs.Operation),
			attribute.String("db.sql.table", qs.Table),
		),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	span.SetAttributes(attribute.Float64("db.duration_ms",
		float64(time.Since(start).Microseconds())/1000.0))

	switch {
	case err == nil, errors.Is(err, sql.ErrNoRows):
		span.SetStatus(codes.Ok, "")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
