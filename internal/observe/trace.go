package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/AugmentOS-Community/convoscope"

// AttrUserID is the span attribute and log key carrying the user a request
// belongs to.
const AttrUserID = "user_id"

type userKey struct{}

// WithUser returns a copy of ctx tagged with userID. Spans started from it
// and loggers derived from it carry the user.
func WithUser(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, userKey{}, userID)
}

// UserID returns the user ctx was tagged with, or "".
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

// StartSpan starts a span on the global tracer provider. The user ID in ctx,
// if any, is recorded as an attribute. Callers must End the span.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if id := UserID(ctx); id != "" {
		opts = append(opts, trace.WithAttributes(attribute.String(AttrUserID, id)))
	}
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// CorrelationID returns the trace ID of the span in ctx, or "" without one.
func CorrelationID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with the trace, span and user of ctx
// attached where present.
func Logger(ctx context.Context) *slog.Logger {
	var attrs []any
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if id := UserID(ctx); id != "" {
		attrs = append(attrs, slog.String(AttrUserID, id))
	}
	if len(attrs) == 0 {
		return slog.Default()
	}
	return slog.Default().With(attrs...)
}
