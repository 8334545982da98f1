// Package tracing provides OpenTelemetry distributed tracing setup and utilities.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DBOperation is the kind of database statement a span covers.
type DBOperation string

const (
	// DBOperationQuery covers SELECT statements.
	DBOperationQuery DBOperation = "query"
	// DBOperationInsert covers INSERT statements.
	DBOperationInsert DBOperation = "insert"
	// DBOperationUpdate covers UPDATE statements.
	DBOperationUpdate DBOperation = "update"
	// DBOperationDelete covers DELETE statements.
	DBOperationDelete DBOperation = "delete"
	// DBOperationExec covers other statements run through Exec.
	DBOperationExec DBOperation = "exec"
)

// endFunc closes the span, recording err as the span status when non-nil.
func endFunc(span trace.Span) func(error) {
	return func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// StartDBSpan starts a client span around a database statement. Callers end
// the span with the statement's error:
//
//	ctx, endSpan := tracing.StartDBSpan(ctx, "connections", tracing.DBOperationQuery)
//	rows, err := db.QueryContext(ctx, query)
//	endSpan(err)
func StartDBSpan(ctx context.Context, table string, operation DBOperation) (context.Context, func(error)) {
	spanName := string(operation)
	if table != "" {
		spanName = spanName + " " + table
	}

	ctx, span := otel.Tracer("relnodes/db").Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", string(operation)),
		),
	)
	if table != "" {
		span.SetAttributes(attribute.String("db.sql.table", table))
	}
	return ctx, endFunc(span)
}

// StartSpan starts a span for an internal operation such as a pipeline batch.
func StartSpan(ctx context.Context, name string) (context.Context, func(error)) {
	ctx, span := otel.Tracer("relnodes").Start(ctx, name)
	return ctx, endFunc(span)
}

// AddEvent records an event on the span carried by ctx.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the span carried by ctx.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
