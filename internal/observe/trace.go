package observe

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// scopeName identifies the evaluator's instrumentation scope.
const scopeName = "github.com/ce-ky/AudioKeywordsEvaluator-demo"

// StartSpan opens a span on the globally registered tracer provider. The
// caller owns span.End().
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(scopeName).Start(ctx, name, opts...)
}

// CorrelationID is the trace ID of the active span, or empty when the
// context carries none. It doubles as the X-Correlation-ID header value so
// a user-reported request can be tied back to its trace and log lines.
func CorrelationID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}
