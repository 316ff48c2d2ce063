// Package app wires all Convoscope subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP and runs housekeeping until the context is
// cancelled, and Shutdown tears everything down in reverse order.
//
// For testing, inject in-memory stores and sinks via functional options
// (WithTranscriptStore, WithCatalogStore, WithSink). When an option is not
// provided, New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/AugmentOS-Community/convoscope/internal/api"
	"github.com/AugmentOS-Community/convoscope/internal/catalog"
	"github.com/AugmentOS-Community/convoscope/internal/config"
	"github.com/AugmentOS-Community/convoscope/internal/events"
	"github.com/AugmentOS-Community/convoscope/internal/frequency"
	"github.com/AugmentOS-Community/convoscope/internal/health"
	"github.com/AugmentOS-Community/convoscope/internal/match"
	"github.com/AugmentOS-Community/convoscope/internal/observe"
	"github.com/AugmentOS-Community/convoscope/internal/session"
	"github.com/AugmentOS-Community/convoscope/internal/store/postgres"
	"github.com/AugmentOS-Community/convoscope/internal/transcript"
)

// App owns all subsystem lifetimes.
type App struct {
	cfg *config.Config

	// Subsystems, initialised in New and torn down in Shutdown.
	oracle      *frequency.Oracle
	transcripts transcript.Store
	catalogs    catalog.Store
	pg          *postgres.Store
	sink        session.Sink
	publisher   *events.Publisher
	health      *health.Handler
	metrics     *observe.Metrics
	registry    *session.Registry
	dirWatcher  *catalog.DirWatcher
	handler     http.Handler
	server      *http.Server

	logLevel       *slog.LevelVar
	metricsHandler http.Handler

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithTranscriptStore injects a transcript store instead of creating one
// from config.
func WithTranscriptStore(s transcript.Store) Option {
	return func(a *App) { a.transcripts = s }
}

// WithCatalogStore injects a catalog store instead of creating one from config.
func WithCatalogStore(s catalog.Store) Option {
	return func(a *App) { a.catalogs = s }
}

// WithSink injects the insight sink instead of creating a Kafka publisher.
func WithSink(s session.Sink) Option {
	return func(a *App) { a.sink = s }
}

// WithMetrics injects the instrument set instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel makes configuration reloads adjust lv.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// WithMetricsHandler replaces the Prometheus handler mounted on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together.
//
// New performs all initialisation synchronously: frequency tables, storage
// connection and migration, matcher construction, insight publisher, session
// registry, initial catalog import and HTTP routing.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Frequency oracle ──────────────────────────────────────────────
	oracle, err := cfg.Frequency.Load()
	if err != nil {
		return nil, fmt.Errorf("app: load frequency tables: %w", err)
	}
	a.oracle = oracle

	// ── 2. Storage ───────────────────────────────────────────────────────
	if err := a.initStorage(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init storage: %w", err)
	}

	// ── 3. Session registry ──────────────────────────────────────────────
	pipeline, err := match.NewPipeline(cfg.Matcher.MatchConfig(), oracle)
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: build matcher: %w", err)
	}
	if a.sink == nil {
		pub := events.New(cfg.Events.PublisherConfig())
		a.sink = pub
		a.publisher = pub
		a.closers = append(a.closers, pub.Close)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	a.registry, err = session.NewRegistry(session.Config{
		Transcripts:   a.transcripts,
		Catalog:       a.catalogs,
		Pipeline:      pipeline,
		Cursor:        transcript.NewCursor(transcript.WithBackslide(cfg.Cursor.BackslideWords)),
		Oracle:        oracle,
		Sink:          a.sink,
		Metrics:       a.metrics,
		IdleTimeout:   cfg.Session.IdleTimeout,
		TranscriptTTL: cfg.Session.TranscriptTTL,
		SweepInterval: cfg.Session.SweepInterval,
	})
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: %w", err)
	}

	// ── 4. Catalog files ─────────────────────────────────────────────────
	if cfg.Catalog.Dir != "" {
		w, err := catalog.NewDirWatcher(ctx, cfg.Catalog.Dir, a.catalogs, catalog.WithDebounce(cfg.Catalog.Debounce))
		if err != nil {
			a.closeAll()
			return nil, fmt.Errorf("app: watch catalog dir: %w", err)
		}
		a.dirWatcher = w
		a.closers = append(a.closers, func() error { w.Stop(); return nil })
	}

	// ── 5. HTTP ──────────────────────────────────────────────────────────
	checkers := []health.Checker{health.Flag("transcripts", a.registry.IsDegraded)}
	if a.pg != nil {
		checkers = append(checkers, health.Ping("postgres", a.pg.Ping))
	}
	if a.publisher != nil && a.publisher.Enabled() {
		checkers = append(checkers, health.Flag("kafka", a.publisher.Degraded))
	}
	a.health = health.New(checkers...)
	if a.metricsHandler == nil {
		a.metricsHandler = promhttp.Handler()
	}
	a.handler = api.New(a.registry, a.catalogs,
		api.WithMetrics(a.metrics),
		api.WithHealth(a.health),
		api.WithMetricsHandler(a.metricsHandler),
	)
	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("app initialised",
		"storage", a.storageKind(),
		"events", cfg.Events.Enabled,
		"catalog_dir", cfg.Catalog.Dir,
	)
	return a, nil
}

// initStorage connects to PostgreSQL when a DSN is configured and falls back
// to in-memory stores otherwise. Injected stores are kept.
func (a *App) initStorage(ctx context.Context) error {
	if a.transcripts != nil && a.catalogs != nil {
		return nil
	}
	if dsn := a.cfg.Storage.PostgresDSN; dsn != "" {
		pg, err := postgres.NewStore(ctx, dsn)
		if err != nil {
			return err
		}
		a.pg = pg
		a.closers = append(a.closers, func() error { pg.Close(); return nil })
		if a.transcripts == nil {
			a.transcripts = pg.Transcripts()
		}
		if a.catalogs == nil {
			a.catalogs = pg.Catalogs()
		}
		return nil
	}
	if a.transcripts == nil {
		a.transcripts = transcript.NewMemStore()
	}
	if a.catalogs == nil {
		a.catalogs = catalog.NewMemStore()
	}
	return nil
}

// Handler returns the HTTP handler serving the API, health and metrics routes.
func (a *App) Handler() http.Handler { return a.handler }

// Registry returns the session registry.
func (a *App) Registry() *session.Registry { return a.registry }

// ─── Reload ──────────────────────────────────────────────────────────────────

// ApplyConfig applies the hot-reloadable differences between old and new to
// the running application. Changes that need a restart are logged.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)

	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(d.NewLogLevel.Level())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.CursorChanged {
		a.registry.SetCursor(transcript.NewCursor(transcript.WithBackslide(new.Cursor.BackslideWords)))
		slog.Info("cursor settings reloaded", "backslide_words", new.Cursor.BackslideWords)
	}
	if d.MatcherChanged {
		p, err := match.NewPipeline(new.Matcher.MatchConfig(), a.oracle)
		if err != nil {
			slog.Warn("matcher reload rejected, keeping previous settings", "err", err)
		} else {
			a.registry.SetPipeline(p)
			slog.Info("matcher settings reloaded")
		}
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("configuration changes need a restart to take effect", "sections", d.RestartRequired)
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP and sweeps idle users until ctx is cancelled. It returns
// nil after a clean stop and the first serving error otherwise.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.registry.Run(gctx)
	})
	g.Go(func() error {
		slog.Info("http server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.health.Drain()
		timeout := a.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("app: http shutdown: %w", err)
		}
		return nil
	})

	slog.Info("app running")
	return g.Wait()
}

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// closeAll releases whatever New opened before failing.
func (a *App) closeAll() {
	_ = a.Shutdown(context.Background())
}

func (a *App) storageKind() string {
	if a.pg != nil {
		return "postgres"
	}
	return "memory"
}
