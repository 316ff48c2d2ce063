// Package observe provides application-wide observability primitives for
// Convoscope: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Convoscope metrics.
const meterName = "github.com/AugmentOS-Community/convoscope"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ProcessDuration tracks one consume-and-match cycle for a user.
	ProcessDuration metric.Float64Histogram

	// MatchDuration tracks the fuzzy matching stage alone.
	MatchDuration metric.Float64Histogram

	// --- Counters ---

	// SegmentsIngested counts transcript segments. Use with attribute:
	//   attribute.String("kind", "final"|"intermediate")
	SegmentsIngested metric.Int64Counter

	// Candidates counts word windows generated from consumed text.
	Candidates metric.Int64Counter

	// CandidatesRejected counts windows dropped before any title search.
	CandidatesRejected metric.Int64Counter

	// TitleSearches counts (window, title) fuzzy scans.
	TitleSearches metric.Int64Counter

	// EntitiesMatched counts catalog entities returned to clients.
	EntitiesMatched metric.Int64Counter

	// InsightsPublished counts insights handed to the sink. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	InsightsPublished metric.Int64Counter

	// UsersEvicted counts users dropped from memory. Use with attribute:
	//   attribute.String("reason", "idle"|"ttl"|"manual")
	UsersEvicted metric.Int64Counter

	// --- Gauges ---

	// ActiveUsers tracks the number of users with in-memory state.
	ActiveUsers metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", route pattern),
	//   attribute.Int("status", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// in-process matching work.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ProcessDuration, err = m.Float64Histogram("convoscope.process.duration",
		metric.WithDescription("Latency of a consume-and-match cycle."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MatchDuration, err = m.Float64Histogram("convoscope.match.duration",
		metric.WithDescription("Latency of fuzzy entity matching."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.SegmentsIngested, err = m.Int64Counter("convoscope.segments.ingested",
		metric.WithDescription("Total transcript segments ingested by kind."),
	); err != nil {
		return nil, err
	}
	if met.Candidates, err = m.Int64Counter("convoscope.match.candidates",
		metric.WithDescription("Total candidate word windows generated."),
	); err != nil {
		return nil, err
	}
	if met.CandidatesRejected, err = m.Int64Counter("convoscope.match.candidates_rejected",
		metric.WithDescription("Total candidate windows rejected before title search."),
	); err != nil {
		return nil, err
	}
	if met.TitleSearches, err = m.Int64Counter("convoscope.match.title_searches",
		metric.WithDescription("Total fuzzy scans of a candidate inside a catalog title."),
	); err != nil {
		return nil, err
	}
	if met.EntitiesMatched, err = m.Int64Counter("convoscope.match.entities",
		metric.WithDescription("Total catalog entities returned."),
	); err != nil {
		return nil, err
	}
	if met.InsightsPublished, err = m.Int64Counter("convoscope.insights.published",
		metric.WithDescription("Total insights published by status."),
	); err != nil {
		return nil, err
	}
	if met.UsersEvicted, err = m.Int64Counter("convoscope.users.evicted",
		metric.WithDescription("Total users evicted from memory by reason."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveUsers, err = m.Int64UpDownCounter("convoscope.active_users",
		metric.WithDescription("Number of users with in-memory transcript state."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("convoscope.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordIngest records one ingested segment of the given kind.
func (m *Metrics) RecordIngest(ctx context.Context, kind string) {
	m.SegmentsIngested.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordMatchWork records the candidate counters of one matching run.
func (m *Metrics) RecordMatchWork(ctx context.Context, candidates, rejected, searched, entities int) {
	m.Candidates.Add(ctx, int64(candidates))
	m.CandidatesRejected.Add(ctx, int64(rejected))
	m.TitleSearches.Add(ctx, int64(searched))
	m.EntitiesMatched.Add(ctx, int64(entities))
}

// RecordInsight records one published insight with its outcome.
func (m *Metrics) RecordInsight(ctx context.Context, status string) {
	m.InsightsPublished.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordEviction records one evicted user.
func (m *Metrics) RecordEviction(ctx context.Context, reason string) {
	m.UsersEvicted.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
