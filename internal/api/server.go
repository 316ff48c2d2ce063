// Package api is the HTTP surface of the service: transcript ingestion,
// insight consumption and per-user catalog management.
//
// Routes:
//
//	POST   /v1/users/{userID}/transcripts         ingest one segment
//	GET    /v1/users/{userID}/transcripts         finals of the last ?window= (default 30s)
//	POST   /v1/users/{userID}/insights            consume new text and match it
//	GET    /v1/users/{userID}/catalog             list entries (JSON or CSV)
//	PUT    /v1/users/{userID}/catalog             replace from a CSV upload
//	POST   /v1/users/{userID}/catalog             append from a CSV upload
//	GET    /v1/users/{userID}/catalog/{entryID}   fetch one entry
//	DELETE /v1/users/{userID}/catalog/{entryID}   remove one entry
//	DELETE /v1/users/{userID}                     forget the user entirely
//
// plus /healthz, /readyz and /metrics when configured.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/AugmentOS-Community/convoscope/internal/catalog"
	"github.com/AugmentOS-Community/convoscope/internal/health"
	"github.com/AugmentOS-Community/convoscope/internal/observe"
	"github.com/AugmentOS-Community/convoscope/internal/session"
	"github.com/AugmentOS-Community/convoscope/internal/transcript"
)

// maxUploadBytes bounds request bodies.
const maxUploadBytes = 10 << 20

// Sessions is the per-user transcript and insight API. *session.Registry
// satisfies it.
type Sessions interface {
	Ingest(ctx context.Context, userID, text string, ts time.Time, isFinal bool) (transcript.Segment, error)
	Process(ctx context.Context, userID string) (session.Insight, error)
	Recent(ctx context.Context, userID string, window time.Duration) ([]transcript.Segment, error)
	Evict(ctx context.Context, userID string) error
}

// Option is a functional option for configuring a [Server].
type Option func(*Server)

// WithMetrics enables request tracing, metrics and logging via
// [observe.Middleware].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithHealth mounts /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) {
		s.health = h
	}
}

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

// WithClock replaces time.Now for segments ingested without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// Server routes HTTP requests to the session registry and catalog store.
type Server struct {
	sessions Sessions
	catalogs catalog.Store

	metrics        *observe.Metrics
	health         *health.Handler
	metricsHandler http.Handler
	now            func() time.Time

	router chi.Router
}

// New returns a [Server] backed by sessions and catalogs.
func New(sessions Sessions, catalogs catalog.Store, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		catalogs: catalogs,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(observe.Middleware(s.metrics))
	}

	if s.health != nil {
		s.health.Register(r)
	}
	if s.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.metricsHandler)
	}

	r.Route("/v1/users/{userID}", func(r chi.Router) {
		r.Use(tagUser)
		r.Delete("/", s.handleDeleteUser)
		r.Post("/transcripts", s.handleIngest)
		r.Get("/transcripts", s.handleRecent)
		r.Post("/insights", s.handleInsights)

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/", s.handleGetCatalog)
			r.Put("/", s.handleReplaceCatalog)
			r.Post("/", s.handleAppendCatalog)
			r.Get("/{entryID}", s.handleGetEntry)
			r.Delete("/{entryID}", s.handleRemoveEntry)
		})
	})
	return r
}

// tagUser attaches the path's user ID to the request context for logging.
func tagUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := observe.WithUser(r.Context(), chi.URLParam(r, "userID"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
