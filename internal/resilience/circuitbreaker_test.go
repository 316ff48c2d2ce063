package resilience_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AugmentOS-Community/convoscope/internal/resilience"
)

var errBroker = errors.New("broker unreachable")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func fail() error    { return errBroker }
func succeed() error { return nil }

func newBreaker(cfg resilience.Config) (*resilience.Breaker, *fakeClock) {
	clk := newFakeClock()
	return resilience.New(cfg, resilience.WithClock(clk.Now)), clk
}

func TestBreaker_ClosedForwardsCalls(t *testing.T) {
	t.Parallel()
	b, _ := newBreaker(resilience.Config{Name: "kafka"})
	called := false
	if err := b.Execute(func() error { called = true; return nil }); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !called {
		t.Fatal("fn was not called")
	}
	if b.State() != resilience.StateClosed {
		t.Errorf("state = %v, want closed", b.State())
	}
	if b.Name() != "kafka" {
		t.Errorf("Name = %q", b.Name())
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()
	b, _ := newBreaker(resilience.Config{MaxFailures: 3, ResetTimeout: time.Minute})

	for i := range 3 {
		if err := b.Execute(fail); !errors.Is(err, errBroker) {
			t.Fatalf("call %d: err = %v, want errBroker", i, err)
		}
	}
	if !b.Open() {
		t.Fatalf("state = %v, want open", b.State())
	}

	called := false
	err := b.Execute(func() error { called = true; return nil })
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("fn called while open")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()
	b, _ := newBreaker(resilience.Config{MaxFailures: 3})

	_ = b.Execute(fail)
	_ = b.Execute(fail)
	_ = b.Execute(succeed)
	_ = b.Execute(fail)
	_ = b.Execute(fail)

	if b.State() != resilience.StateClosed {
		t.Fatalf("state = %v, want closed", b.State())
	}
}

func TestBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	t.Parallel()
	b, clk := newBreaker(resilience.Config{MaxFailures: 1, ResetTimeout: 30 * time.Second})

	_ = b.Execute(fail)
	clk.Advance(29 * time.Second)
	if b.State() != resilience.StateOpen {
		t.Fatalf("state = %v, want open before timeout", b.State())
	}
	clk.Advance(time.Second)
	if b.State() != resilience.StateHalfOpen {
		t.Fatalf("state = %v, want half-open", b.State())
	}
}

func TestBreaker_TrialCallsCloseBreaker(t *testing.T) {
	t.Parallel()
	b, clk := newBreaker(resilience.Config{MaxFailures: 2, ResetTimeout: time.Second, HalfOpenMax: 2})

	_ = b.Execute(fail)
	_ = b.Execute(fail)
	clk.Advance(time.Second)

	for i := range 2 {
		if err := b.Execute(succeed); err != nil {
			t.Fatalf("trial %d: %v", i, err)
		}
	}
	if b.State() != resilience.StateClosed {
		t.Fatalf("state = %v, want closed", b.State())
	}
}

func TestBreaker_FailedTrialReopens(t *testing.T) {
	t.Parallel()
	b, clk := newBreaker(resilience.Config{MaxFailures: 2, ResetTimeout: time.Second, HalfOpenMax: 3})

	_ = b.Execute(fail)
	_ = b.Execute(fail)
	clk.Advance(time.Second)

	if err := b.Execute(fail); !errors.Is(err, errBroker) {
		t.Fatalf("err = %v, want errBroker", err)
	}
	if b.State() != resilience.StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}
	if err := b.Execute(succeed); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestBreaker_Reset(t *testing.T) {
	t.Parallel()
	b, _ := newBreaker(resilience.Config{MaxFailures: 1, ResetTimeout: time.Hour})

	_ = b.Execute(fail)
	if !b.Open() {
		t.Fatal("expected open")
	}
	b.Reset()
	if b.State() != resilience.StateClosed {
		t.Fatalf("state = %v, want closed", b.State())
	}
	if err := b.Execute(succeed); err != nil {
		t.Fatalf("Execute after reset: %v", err)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()
	tests := []struct {
		state resilience.State
		want  string
	}{
		{resilience.StateClosed, "closed"},
		{resilience.StateOpen, "open"},
		{resilience.StateHalfOpen, "half-open"},
		{resilience.State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
