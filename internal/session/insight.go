package session

import (
	"context"
	"time"

	"github.com/AugmentOS-Community/convoscope/internal/match"
)

// Insight is what one [Registry.Process] call found in a user's newly
// consumed transcript text.
type Insight struct {
	// UserID identifies the user the text belongs to.
	UserID string `json:"user_id"`

	// Text is the consumed text, including backslide context.
	Text string `json:"text"`

	// Matches are the accepted catalog matches, best first.
	Matches []match.Match `json:"matches"`

	// Entities describe the entries of Matches, aligned by index.
	Entities []match.Entity `json:"entities"`

	// RareWords are the uncommon words of Text, for definition lookups.
	RareWords []string `json:"rare_words"`

	// Acronyms are the acronyms of Text.
	Acronyms []string `json:"acronyms"`

	// At is when the insight was produced.
	At time.Time `json:"at"`
}

// Empty reports whether the insight carries nothing worth publishing.
func (i Insight) Empty() bool {
	return len(i.Entities) == 0 && len(i.RareWords) == 0 && len(i.Acronyms) == 0
}

// Sink receives non-empty insights.
//
// Implementations must be safe for concurrent use.
type Sink interface {
	Publish(ctx context.Context, in Insight) error
}

// SinkFunc adapts a function to [Sink].
type SinkFunc func(ctx context.Context, in Insight) error

// Publish implements [Sink].
func (f SinkFunc) Publish(ctx context.Context, in Insight) error { return f(ctx, in) }

// Discard is a [Sink] that drops every insight.
var Discard Sink = SinkFunc(func(context.Context, Insight) error { return nil })
