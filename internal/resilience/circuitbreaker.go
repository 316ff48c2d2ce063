// Package resilience guards calls to external dependencies with a
// three-state circuit breaker (closed → open → half-open), so a broker or
// database that is down is skipped quickly instead of stalling every
// transcript that would have touched it.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Execute] when the breaker is open
// and the reset timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// elapses.
	StateOpen

	// StateHalfOpen lets a limited number of trial calls through. All trials
	// succeeding closes the breaker; any failure re-opens it.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds tuning knobs for a [Breaker].
type Config struct {
	// Name labels the guarded dependency in log messages, e.g. "kafka".
	Name string

	// MaxFailures is the number of consecutive failures in the closed state
	// before the breaker opens. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before probing.
	// Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of successful trials needed to close the
	// breaker again. Default: 3.
	HalfOpenMax int
}

// Option is a functional option for configuring a [Breaker].
type Option func(*Breaker)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// Breaker is safe for concurrent use.
type Breaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int
	now          func() time.Time

	mu              sync.Mutex
	state           State
	consecutiveFail int
	openedAt        time.Time
	trials          int
	trialSuccesses  int
}

// New returns a closed [Breaker]. Zero-value config fields take their
// defaults.
func New(cfg Config, opts ...Option) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	b := &Breaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		now:          time.Now,
		state:        StateClosed,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Name returns the configured label.
func (b *Breaker) Name() string { return b.name }

// Execute runs fn if the breaker allows it and records the outcome.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.trials = 0
		b.trialSuccesses = 0
		slog.Info("resilience: breaker half-open", "name", b.name)
	case StateHalfOpen:
		if b.trials >= b.halfOpenMax {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	probing := b.state == StateHalfOpen
	if probing {
		b.trials++
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.recordFailure(probing)
	} else {
		b.recordSuccess(probing)
	}
	return err
}

// State returns the current [State]. An open breaker whose reset timeout has
// elapsed reports [StateHalfOpen]; the transition itself happens on the next
// [Breaker.Execute].
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.resetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Open reports whether calls are currently being rejected.
func (b *Breaker) Open() bool { return b.State() == StateOpen }

// Reset forces the breaker back to [StateClosed].
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.consecutiveFail = 0
	b.trials = 0
	b.trialSuccesses = 0
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// recordFailure must be called with b.mu held.
func (b *Breaker) recordFailure(probing bool) {
	if probing {
		b.trip()
		slog.Warn("resilience: breaker re-opened after failed trial", "name", b.name)
		return
	}
	b.consecutiveFail++
	if b.state == StateClosed && b.consecutiveFail >= b.maxFailures {
		b.trip()
		slog.Warn("resilience: breaker opened",
			"name", b.name,
			"consecutive_failures", b.consecutiveFail,
		)
	}
}

// recordSuccess must be called with b.mu held.
func (b *Breaker) recordSuccess(probing bool) {
	if !probing {
		b.consecutiveFail = 0
		return
	}
	if b.state != StateHalfOpen {
		return
	}
	b.trialSuccesses++
	if b.trialSuccesses >= b.halfOpenMax {
		b.state = StateClosed
		b.consecutiveFail = 0
		b.trials = 0
		b.trialSuccesses = 0
		slog.Info("resilience: breaker closed", "name", b.name)
	}
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.consecutiveFail = b.maxFailures
}
