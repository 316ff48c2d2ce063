// Package health serves the liveness and readiness endpoints.
//
// /healthz answers 200 while the process can serve HTTP. /readyz runs every
// registered [Checker] concurrently and answers 200 only when all of them
// pass and the handler is not draining. Both reply with a JSON body:
//
//	{"status":"fail","checks":{"postgres":"ok","kafka":"fail: degraded"}}
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// ErrDegraded is reported by [Flag] checkers while the flag is raised.
var ErrDegraded = errors.New("degraded")

// ErrDraining is reported on /readyz once [Handler.Drain] was called.
var ErrDraining = errors.New("draining")

// Checker checks one dependency. Check returns nil when it is usable.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Ping wraps a connection pool's Ping method.
func Ping(name string, ping func(ctx context.Context) error) Checker {
	return Checker{Name: name, Check: ping}
}

// Flag fails with [ErrDegraded] while degraded reports true. It suits
// components that keep serving in a reduced mode after a dependency failed,
// such as the session registry or the breaker-guarded publisher.
func Flag(name string, degraded func() bool) Checker {
	return Checker{Name: name, Check: func(context.Context) error {
		if degraded() {
			return ErrDegraded
		}
		return nil
	}}
}

type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler is safe for concurrent use. The checker list is fixed at
// construction.
type Handler struct {
	checkers []Checker
	draining atomic.Bool
}

// New returns a [Handler] evaluating checkers on every /readyz request.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Register mounts /healthz and /readyz on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
}

// Drain makes /readyz fail from now on so load balancers stop routing new
// transcripts here while in-flight requests finish.
func (h *Handler) Drain() { h.draining.Store(true) }

// Healthz always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz answers 200 when every checker passes, 503 otherwise.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := h.run(r.Context())
	if h.draining.Load() {
		checks["shutdown"] = "fail: " + ErrDraining.Error()
	}

	rep := report{Status: "ok", Checks: checks}
	code := http.StatusOK
	for _, v := range checks {
		if v != "ok" {
			rep.Status = "fail"
			code = http.StatusServiceUnavailable
			break
		}
	}
	writeJSON(w, code, rep)
}

// run evaluates all checkers concurrently, each under its own timeout.
func (h *Handler) run(ctx context.Context) map[string]string {
	var (
		mu  sync.Mutex
		out = make(map[string]string, len(h.checkers)+1)
		g   errgroup.Group
	)
	for _, c := range h.checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			res := "ok"
			if err := c.Check(cctx); err != nil {
				res = "fail: " + err.Error()
			}
			mu.Lock()
			out[c.Name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
