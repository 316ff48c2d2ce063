package transcript

import (
	"strings"
)

const defaultBackslideWords = 4

// CursorOption is a functional option for configuring a [Cursor].
type CursorOption func(*Cursor)

// WithBackslide sets how many already-consumed words are re-included in front
// of newly consumed text. Zero disables backslide; negative values are
// ignored. Default: 4.
func WithBackslide(words int) CursorOption {
	return func(c *Cursor) {
		if words >= 0 {
			c.backslide = words
		}
	}
}

// Cursor computes the unconsumed text of a [UserState].
//
// Cursor holds no per-user data and is safe for concurrent use. Callers must
// still ensure that at most one Consume per user is in flight, because the
// read of the state and the write of the advanced state are not ordered by
// Cursor itself.
type Cursor struct {
	backslide int
}

// NewCursor returns a [Cursor] configured with the supplied options.
func NewCursor(opts ...CursorOption) *Cursor {
	c := &Cursor{backslide: defaultBackslideWords}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Backslide returns the configured number of backslide words.
func (c *Cursor) Backslide() int { return c.backslide }

// Consume returns the text of state that has not been handed out before,
// together with the advanced state. The input state is not modified.
//
// Calling Consume again on the returned state, with no segments ingested in
// between, returns the empty string.
//
// A marker that references a segment no longer present (purged by expiry) is
// treated as [SentinelNone].
func (c *Cursor) Consume(state UserState) (string, UserState) {
	next := state.Clone()
	next.Marker = SentinelNone

	idx := state.finalIndex(state.Marker)
	if idx < 0 {
		if state.Marker != SentinelNone {
			// Stale marker: the offset referred to a segment that is gone.
			state.Offset = 0
			next.Offset = 0
		}
		return c.consumeIntermediate(state, next)
	}
	return c.consumeFinals(state, idx, next)
}

// consumeFinals handles the case where the marker points at a final segment.
func (c *Cursor) consumeFinals(state UserState, idx int, next UserState) (string, UserState) {
	seg := state.Finals[idx]
	start := SnapToWordBoundary(seg.Text, state.Offset)

	var fresh []string
	if head := strings.TrimSpace(seg.Text[start:]); head != "" {
		fresh = append(fresh, head)
	}
	for _, later := range state.Finals[idx+1:] {
		if t := strings.TrimSpace(later.Text); t != "" {
			fresh = append(fresh, t)
		}
	}

	next.Offset = 0
	if t := strings.TrimSpace(state.Intermediate.Text); t != "" {
		fresh = append(fresh, t)
		next.Offset = len(state.Intermediate.Text)
	}

	if len(fresh) == 0 {
		return "", next
	}

	var prev string
	if idx > 0 {
		prev = state.Finals[idx-1].Text
	}
	ctx := c.backslideWords(prev + " " + seg.Text[:start])
	return joinNonEmpty(ctx, strings.Join(fresh, " ")), next
}

// consumeIntermediate handles the case where only the intermediate segment
// may hold unconsumed text.
func (c *Cursor) consumeIntermediate(state UserState, next UserState) (string, UserState) {
	text := state.Intermediate.Text
	start := SnapToWordBoundary(text, state.Offset)
	if len(text)-1 <= start {
		// Nothing new. An offset past the end (the interim result shrank) is
		// kept so the revision is not re-emitted until it grows past what
		// was already handed out.
		return "", next
	}

	fresh := strings.TrimSpace(text[start:])
	if fresh == "" {
		return "", next
	}

	var lastFinal string
	if n := len(state.Finals); n > 0 {
		lastFinal = state.Finals[n-1].Text
	}
	ctx := c.backslideWords(lastFinal + " " + text[:start])

	next.Offset = len(text)
	return joinNonEmpty(ctx, fresh), next
}

// backslideWords returns at most c.backslide trailing words of text.
func (c *Cursor) backslideWords(text string) string {
	if c.backslide == 0 {
		return ""
	}
	words := strings.Fields(text)
	if len(words) > c.backslide {
		words = words[len(words)-c.backslide:]
	}
	return strings.Join(words, " ")
}

// SnapToWordBoundary moves index back to the nearest word boundary of text so
// that slicing text[index:] never starts inside a word.
//
// The index is first clamped to [0, len(text)]. An index at the end of the
// text or on a space is already a boundary and is returned unchanged.
// Otherwise the position of the closest space before index is returned, or 0
// when there is none. The result is never greater than the clamped index.
func SnapToWordBoundary(text string, index int) int {
	if index <= 0 {
		return 0
	}
	if index >= len(text) {
		return len(text)
	}
	if text[index] == ' ' {
		return index
	}
	if i := strings.LastIndexByte(text[:index], ' '); i >= 0 {
		return i
	}
	return 0
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}
