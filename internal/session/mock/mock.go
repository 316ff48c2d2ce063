// Package mock provides test doubles for the session package interfaces.
//
// Sink records every published insight and returns PublishErr when set. It
// is safe for concurrent use.
package mock

import (
	"context"
	"sync"

	"github.com/AugmentOS-Community/convoscope/internal/session"
)

// Compile-time interface check.
var _ session.Sink = (*Sink)(nil)

// Sink is a configurable test double for [session.Sink].
type Sink struct {
	mu       sync.Mutex
	insights []session.Insight

	// PublishErr is returned by [Sink.Publish] when non-nil. The insight is
	// recorded either way.
	PublishErr error
}

// Publish implements [session.Sink].
func (s *Sink) Publish(_ context.Context, in session.Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insights = append(s.insights, in)
	return s.PublishErr
}

// Insights returns a copy of all published insights, in order.
func (s *Sink) Insights() []session.Insight {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]session.Insight, len(s.insights))
	copy(out, s.insights)
	return out
}
