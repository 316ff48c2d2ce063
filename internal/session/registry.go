// Package session serialises transcript ingestion and consumption per user
// and turns newly consumed text into insights.
//
// A [Registry] creates a user's session on first contact. Every operation on
// one user runs under that user's lock, so a consume cycle (read state,
// advance cursor, persist cursor) is atomic with respect to ingestion for the
// same user. Different users never contend.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AugmentOS-Community/convoscope/internal/catalog"
	"github.com/AugmentOS-Community/convoscope/internal/frequency"
	"github.com/AugmentOS-Community/convoscope/internal/match"
	"github.com/AugmentOS-Community/convoscope/internal/observe"
	"github.com/AugmentOS-Community/convoscope/internal/transcript"
)

// ErrEmptyUserID is returned when an operation is called without a user ID.
var ErrEmptyUserID = errors.New("session: user ID must not be empty")

// Default housekeeping intervals.
const (
	DefaultIdleTimeout   = 30 * time.Minute
	DefaultTranscriptTTL = time.Hour
	DefaultSweepInterval = time.Minute
)

// Config holds the dependencies of a [Registry].
type Config struct {
	// Transcripts persists segments and cursors. Required.
	Transcripts transcript.Store

	// Catalog supplies each user's catalog. Required.
	Catalog catalog.Provider

	// Pipeline matches consumed text against the catalog. Required.
	Pipeline *match.Pipeline

	// Cursor advances the consumption cursor. Defaults to [transcript.NewCursor].
	Cursor *transcript.Cursor

	// Oracle finds rare words. Required.
	Oracle *frequency.Oracle

	// Sink receives non-empty insights. Defaults to [Discard].
	Sink Sink

	// Metrics records instrumentation. Defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// IdleTimeout evicts users without activity for this long.
	IdleTimeout time.Duration

	// TranscriptTTL purges final segments older than this.
	TranscriptTTL time.Duration

	// SweepInterval is how often [Registry.Run] sweeps.
	SweepInterval time.Duration
}

// Option is a functional option for configuring a [Registry].
type Option func(*Registry)

// WithClock replaces time.Now. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// userSession is the per-user lock and activity stamp.
type userSession struct {
	mu       sync.Mutex
	lastSeen atomic.Int64 // unix nanoseconds
	evicted  bool         // guarded by mu

	// transient sessions are created by the sweep to lock a user that is not
	// resident; they are not counted in the active-user gauge.
	transient bool
}

// idleSince reports whether the session has not been used after cutoff.
func (us *userSession) idleSince(cutoff time.Time) bool {
	return us.lastSeen.Load() < cutoff.UnixNano()
}

// Registry owns the per-user sessions.
//
// All exported methods are safe for concurrent use.
type Registry struct {
	transcripts transcript.Store
	catalog     catalog.Provider
	oracle      *frequency.Oracle
	sink        Sink
	metrics     *observe.Metrics

	pipeline atomic.Pointer[match.Pipeline]
	cursor   atomic.Pointer[transcript.Cursor]

	idleTimeout   time.Duration
	transcriptTTL time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	mu    sync.Mutex
	users map[string]*userSession

	degraded atomic.Bool
}

// NewRegistry returns a [Registry] for cfg.
func NewRegistry(cfg Config, opts ...Option) (*Registry, error) {
	var errs []error
	if cfg.Transcripts == nil {
		errs = append(errs, errors.New("transcript store is required"))
	}
	if cfg.Catalog == nil {
		errs = append(errs, errors.New("catalog provider is required"))
	}
	if cfg.Pipeline == nil {
		errs = append(errs, errors.New("match pipeline is required"))
	}
	if cfg.Oracle == nil {
		errs = append(errs, errors.New("frequency oracle is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("session: new registry: %w", err)
	}

	r := &Registry{
		transcripts:   cfg.Transcripts,
		catalog:       cfg.Catalog,
		oracle:        cfg.Oracle,
		sink:          cfg.Sink,
		metrics:       cfg.Metrics,
		idleTimeout:   cfg.IdleTimeout,
		transcriptTTL: cfg.TranscriptTTL,
		sweepInterval: cfg.SweepInterval,
		now:           time.Now,
		users:         make(map[string]*userSession),
	}
	if r.sink == nil {
		r.sink = Discard
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	if r.idleTimeout <= 0 {
		r.idleTimeout = DefaultIdleTimeout
	}
	if r.transcriptTTL <= 0 {
		r.transcriptTTL = DefaultTranscriptTTL
	}
	if r.sweepInterval <= 0 {
		r.sweepInterval = DefaultSweepInterval
	}
	cur := cfg.Cursor
	if cur == nil {
		cur = transcript.NewCursor()
	}
	r.cursor.Store(cur)
	r.pipeline.Store(cfg.Pipeline)
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// SetPipeline swaps the matcher used by subsequent [Registry.Process] calls.
func (r *Registry) SetPipeline(p *match.Pipeline) {
	if p != nil {
		r.pipeline.Store(p)
	}
}

// SetCursor swaps the cursor used by subsequent [Registry.Process] calls.
func (r *Registry) SetCursor(c *transcript.Cursor) {
	if c != nil {
		r.cursor.Store(c)
	}
}

// Pipeline returns the matcher currently in use.
func (r *Registry) Pipeline() *match.Pipeline { return r.pipeline.Load() }

// Ingest records one transcript segment for userID. Final segments are
// appended to the history; intermediate ones replace the pending interim
// text. Blank text is ignored and yields a zero [transcript.Segment].
func (r *Registry) Ingest(ctx context.Context, userID, text string, ts time.Time, isFinal bool) (transcript.Segment, error) {
	if userID == "" {
		return transcript.Segment{}, ErrEmptyUserID
	}
	ctx, span := observe.StartSpan(observe.WithUser(ctx, userID), "session.ingest",
		trace.WithAttributes(attribute.Bool("is_final", isFinal)))
	defer span.End()

	us := r.acquire(userID)
	defer us.mu.Unlock()

	var (
		seg  transcript.Segment
		err  error
		kind = "intermediate"
	)
	if isFinal {
		kind = "final"
		seg, err = r.transcripts.AppendFinal(ctx, userID, text, ts)
	} else {
		seg, err = r.transcripts.ReplaceIntermediate(ctx, userID, text, ts)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return transcript.Segment{}, fmt.Errorf("session: ingest %s for %q: %w", kind, userID, err)
	}
	if seg.ID != "" {
		r.metrics.RecordIngest(ctx, kind)
	}
	return seg, nil
}

// Process consumes the text of userID that has not been handed out yet and
// matches it against the user's catalog. Non-empty insights are published to
// the sink.
//
// A second call with nothing ingested in between returns an insight with
// empty Text. Store failures are logged and degrade to an empty insight.
func (r *Registry) Process(ctx context.Context, userID string) (Insight, error) {
	if userID == "" {
		return Insight{}, ErrEmptyUserID
	}
	start := time.Now()
	ctx, span := observe.StartSpan(observe.WithUser(ctx, userID), "session.process")
	defer span.End()
	log := observe.Logger(ctx)

	us := r.acquire(userID)
	defer us.mu.Unlock()

	in := Insight{UserID: userID, At: r.now()}

	state, err := r.transcripts.State(ctx, userID)
	if err != nil {
		r.degraded.Store(true)
		log.Warn("session: read transcript state failed, returning empty insight", "err", err)
		return in, nil
	}
	text, next := r.cursor.Load().Consume(state)
	if err := r.transcripts.SaveCursor(ctx, userID, next.Marker, next.Offset); err != nil {
		r.degraded.Store(true)
		log.Warn("session: save cursor failed, returning empty insight", "err", err)
		return in, nil
	}
	r.degraded.Store(false)
	in.Text = text
	if strings.TrimSpace(text) == "" {
		return in, nil
	}

	entries, err := r.catalog.Catalog(ctx, userID)
	if err != nil {
		log.Warn("session: load catalog failed, matching without it", "err", err)
		entries = nil
	}

	matchStart := time.Now()
	res := r.pipeline.Load().Run(ctx, text, entries)
	r.metrics.MatchDuration.Record(ctx, time.Since(matchStart).Seconds())
	r.metrics.RecordMatchWork(ctx, res.Stats.Candidates, res.Stats.Rejected, res.Stats.Searched, len(res.Entities))

	in.Matches = res.Matches
	in.Entities = res.Entities
	in.RareWords = r.oracle.RareWords(text)
	in.Acronyms = frequency.Acronyms(strings.Fields(text))

	if !in.Empty() {
		status := "ok"
		if err := r.sink.Publish(ctx, in); err != nil {
			status = "error"
			log.Warn("session: publish insight failed", "err", err)
		}
		r.metrics.RecordInsight(ctx, status)
	}

	span.SetAttributes(
		attribute.Int("chars", len(text)),
		attribute.Int("entities", len(in.Entities)),
	)
	r.metrics.ProcessDuration.Record(ctx, time.Since(start).Seconds())
	log.Debug("session: processed transcript",
		"chars", len(text),
		"entities", len(in.Entities),
		"rare_words", len(in.RareWords),
	)
	return in, nil
}

// Evict forgets userID: its in-memory session and its stored transcript.
// Evicting an unknown user is not an error.
func (r *Registry) Evict(ctx context.Context, userID string) error {
	return r.evict(ctx, userID, "manual", time.Time{}, true)
}

// Recent returns the final segments userID spoke within the last window,
// oldest first, without moving the consumption cursor.
func (r *Registry) Recent(ctx context.Context, userID string, window time.Duration) ([]transcript.Segment, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	if window <= 0 {
		return nil, fmt.Errorf("session: recent window must be positive, got %s", window)
	}
	segs, err := r.transcripts.Recent(ctx, userID, r.now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("session: recent transcripts for %q: %w", userID, err)
	}
	return segs, nil
}

// Users returns the number of users with an in-memory session.
func (r *Registry) Users() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, us := range r.users {
		if !us.transient {
			n++
		}
	}
	return n
}

// IsDegraded reports whether the last transcript store access failed.
func (r *Registry) IsDegraded() bool { return r.degraded.Load() }

// Run sweeps idle users and expired transcript segments every sweep interval
// until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep purges final segments older than the transcript TTL for every
// stored user, resident or not, and then unloads users idle for longer than
// the idle timeout. Unloading only drops the in-memory session; stored
// transcripts stay until they expire or the user is evicted explicitly.
func (r *Registry) Sweep(ctx context.Context) {
	now := r.now()
	idleCutoff := now.Add(-r.idleTimeout)

	r.mu.Lock()
	resident := make([]string, 0, len(r.users))
	for id, us := range r.users {
		if !us.transient {
			resident = append(resident, id)
		}
	}
	r.mu.Unlock()

	stored, err := r.transcripts.Users(ctx)
	if err != nil {
		slog.Warn("session: list stored users failed, purging resident users only", "err", err)
	}
	ids := append(slices.Clone(resident), stored...)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	expiry := now.Add(-r.transcriptTTL)
	for _, id := range ids {
		n, err := r.purge(ctx, id, expiry)
		if err != nil {
			slog.Warn("session: transcript purge failed", "user_id", id, "err", err)
			continue
		}
		if n > 0 {
			slog.Debug("session: purged expired segments", "user_id", id, "count", n)
		}
	}

	for _, id := range resident {
		if err := r.evict(ctx, id, "idle", idleCutoff, false); err != nil {
			slog.Warn("session: idle unload failed", "user_id", id, "err", err)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// acquire returns the locked session of userID, creating it on first contact.
func (r *Registry) acquire(userID string) *userSession {
	for {
		r.mu.Lock()
		us, ok := r.users[userID]
		if !ok {
			us = &userSession{}
			r.users[userID] = us
			r.metrics.ActiveUsers.Add(context.Background(), 1)
		}
		us.lastSeen.Store(r.now().UnixNano())
		r.mu.Unlock()

		us.mu.Lock()
		if !us.evicted {
			return us
		}
		// Lost a race with eviction; the next lookup creates a fresh session.
		us.mu.Unlock()
	}
}

// evict drops the in-memory session of userID and, when forget is set, its
// stored transcript. A non-zero idleCutoff skips users seen after it.
func (r *Registry) evict(ctx context.Context, userID, reason string, idleCutoff time.Time, forget bool) error {
	r.mu.Lock()
	us, ok := r.users[userID]
	r.mu.Unlock()
	if !ok {
		if !forget {
			return nil
		}
		return r.transcripts.Delete(ctx, userID)
	}

	us.mu.Lock()
	defer us.mu.Unlock()
	if us.evicted || us.transient || (!idleCutoff.IsZero() && !us.idleSince(idleCutoff)) {
		return nil
	}
	if forget {
		if err := r.transcripts.Delete(ctx, userID); err != nil {
			return fmt.Errorf("session: evict %q: %w", userID, err)
		}
	}
	us.evicted = true

	r.mu.Lock()
	if r.users[userID] == us {
		delete(r.users, userID)
	}
	r.mu.Unlock()

	r.metrics.ActiveUsers.Add(ctx, -1)
	r.metrics.RecordEviction(ctx, reason)
	slog.Info("session: user evicted", "user_id", userID, "reason", reason, "transcript_deleted", forget)
	return nil
}

// purge expires old finals of userID under the user's lock. A user without
// a resident session is locked through a transient one for the duration.
func (r *Registry) purge(ctx context.Context, userID string, before time.Time) (int, error) {
	r.mu.Lock()
	us, ok := r.users[userID]
	if !ok {
		us = &userSession{transient: true}
		r.users[userID] = us
	}
	r.mu.Unlock()

	us.mu.Lock()
	defer us.mu.Unlock()
	if us.evicted {
		return 0, nil
	}
	if us.transient {
		defer func() {
			us.evicted = true
			r.mu.Lock()
			if r.users[userID] == us {
				delete(r.users, userID)
			}
			r.mu.Unlock()
		}()
	}
	return r.transcripts.Purge(ctx, userID, before)
}
