package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// installTracer swaps the global tracer provider for one backed by an
// in-memory exporter.
func installTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

// captureLogs routes the default logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}

func TestWithUser(t *testing.T) {
	ctx := context.Background()
	if got := UserID(ctx); got != "" {
		t.Errorf("UserID(background) = %q", got)
	}
	if WithUser(ctx, "") != ctx {
		t.Error("WithUser with empty id should return ctx unchanged")
	}
	if got := UserID(WithUser(ctx, "alex")); got != "alex" {
		t.Errorf("UserID = %q, want alex", got)
	}
}

func TestStartSpan_RecordsUser(t *testing.T) {
	exp := installTracer(t)

	ctx, span := StartSpan(WithUser(context.Background(), "alex"), "session.process")
	if CorrelationID(ctx) == "" {
		t.Error("span context has no trace id")
	}
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "session.process" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	found := false
	for _, a := range spans[0].Attributes {
		if string(a.Key) == AttrUserID && a.Value.AsString() == "alex" {
			found = true
		}
	}
	if !found {
		t.Errorf("user attribute missing: %v", spans[0].Attributes)
	}
}

func TestCorrelationID(t *testing.T) {
	installTracer(t)

	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(background) = %q, want empty", got)
	}
	seen := make(map[string]bool)
	for range 50 {
		ctx, span := StartSpan(context.Background(), "ingest")
		id := CorrelationID(ctx)
		span.End()
		if len(id) != 32 {
			t.Fatalf("correlation id %q has length %d, want 32", id, len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate correlation id %s", id)
		}
		seen[id] = true
	}
}

func TestLogger(t *testing.T) {
	installTracer(t)

	tests := []struct {
		name    string
		ctx     func() (context.Context, func())
		want    []string
		notWant []string
	}{
		{
			name:    "bare context",
			ctx:     func() (context.Context, func()) { return context.Background(), func() {} },
			notWant: []string{"trace_id", "user_id"},
		},
		{
			name: "user only",
			ctx: func() (context.Context, func()) {
				return WithUser(context.Background(), "sam"), func() {}
			},
			want:    []string{"user_id=sam"},
			notWant: []string{"trace_id"},
		},
		{
			name: "span and user",
			ctx: func() (context.Context, func()) {
				ctx, span := StartSpan(WithUser(context.Background(), "alex"), "process")
				return ctx, func() { span.End() }
			},
			want: []string{"trace_id=", "span_id=", "user_id=alex"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLogs(t)
			ctx, done := tt.ctx()
			defer done()

			Logger(ctx).Info("processed transcript")
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("log %q missing %q", out, w)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("log %q should not contain %q", out, w)
				}
			}
		})
	}
}
