package transcript_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/AugmentOS-Community/convoscope/internal/transcript"
)

func final(id, text string) transcript.Segment {
	return transcript.Segment{ID: id, Text: text, IsFinal: true, Timestamp: time.Unix(1000, 0)}
}

func interim(text string) transcript.Segment {
	return transcript.Segment{ID: "interim", Text: text, Timestamp: time.Unix(1000, 0)}
}

func TestSnapToWordBoundary(t *testing.T) {
	t.Parallel()

	const text = "hello world, my name is alex!"
	tests := []struct {
		name  string
		text  string
		index int
		want  int
	}{
		{"on space", text, 5, 5},
		{"inside second word", text, 11, 5},
		{"on later space", text, 12, 12},
		{"start", text, 0, 0},
		{"inside first word", text, 3, 0},
		{"end", text, len(text), len(text)},
		{"past end is clamped", text, 500, len(text)},
		{"negative is clamped", text, -3, 0},
		{"empty text", "", 4, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := transcript.SnapToWordBoundary(tc.text, tc.index)
			if got != tc.want {
				t.Errorf("SnapToWordBoundary(%q, %d) = %d, want %d", tc.text, tc.index, got, tc.want)
			}
			clamped := min(max(tc.index, 0), len(tc.text))
			if got > clamped {
				t.Errorf("snap moved forward: %d > %d", got, clamped)
			}
		})
	}
}

func TestCursor_FreshFinalReturnsWholeSentence(t *testing.T) {
	t.Parallel()

	c := transcript.NewCursor()
	state := transcript.UserState{
		UserID: "u1",
		Finals: []transcript.Segment{final("a", "I just had a fedora tip at the cafe")},
		Marker: "a",
	}

	got, next := c.Consume(state)
	if got != "I just had a fedora tip at the cafe" {
		t.Errorf("first Consume = %q, want the full sentence", got)
	}
	if next.Marker != transcript.SentinelNone {
		t.Errorf("Marker = %q, want SentinelNone", next.Marker)
	}
	if next.Offset != 0 {
		t.Errorf("Offset = %d, want 0 (no intermediate consumed)", next.Offset)
	}

	again, after := c.Consume(next)
	if again != "" {
		t.Errorf("second Consume = %q, want empty", again)
	}
	if after.Marker != next.Marker || after.Offset != next.Offset {
		t.Errorf("second Consume changed state: %+v -> %+v", next, after)
	}
}

func TestCursor_BackslideAcrossFinalAndIntermediate(t *testing.T) {
	t.Parallel()

	c := transcript.NewCursor()
	state := transcript.UserState{
		Finals: []transcript.Segment{final("a", "the quick brown fox")},
		Marker: "a",
	}
	first, state := c.Consume(state)
	if first != "the quick brown fox" {
		t.Fatalf("first Consume = %q", first)
	}

	state.Intermediate = interim("jumps over the lazy dog")
	got, _ := c.Consume(state)

	if !strings.HasSuffix(got, "jumps over the lazy dog") {
		t.Errorf("Consume = %q, want new text at the end", got)
	}
	if !strings.Contains(got, "quick brown fox jumps") {
		t.Errorf("Consume = %q, want trailing words of the previous final in front", got)
	}
	if got == "jumps over the lazy dog" {
		t.Error("Consume returned the new text alone, without backslide")
	}
}

func TestCursor_BackslideIsBounded(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		backslide int
		want      string
	}{
		{"default four words", -1, "three four five six seven"},
		{"two words", 2, "five six seven"},
		{"disabled", 0, "seven"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var opts []transcript.CursorOption
			if tc.backslide >= 0 {
				opts = append(opts, transcript.WithBackslide(tc.backslide))
			}
			c := transcript.NewCursor(opts...)
			state := transcript.UserState{
				Finals:       []transcript.Segment{final("a", "one two three four five six")},
				Intermediate: interim("seven"),
			}
			got, _ := c.Consume(state)
			if got != tc.want {
				t.Errorf("Consume = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCursor_IntermediateIsIdempotent(t *testing.T) {
	t.Parallel()

	c := transcript.NewCursor()
	state := transcript.UserState{Intermediate: interim("hello there general")}

	got, next := c.Consume(state)
	if got != "hello there general" {
		t.Fatalf("first Consume = %q", got)
	}
	if next.Offset != len("hello there general") {
		t.Errorf("Offset = %d, want %d", next.Offset, len("hello there general"))
	}

	again, after := c.Consume(next)
	if again != "" {
		t.Errorf("second Consume = %q, want empty", again)
	}
	if after.Offset != next.Offset {
		t.Errorf("Offset changed on empty consume: %d -> %d", next.Offset, after.Offset)
	}
}

func TestCursor_RevisedIntermediateResnapsToWordStart(t *testing.T) {
	t.Parallel()

	c := transcript.NewCursor()
	state := transcript.UserState{Intermediate: interim("hello wor")}
	_, state = c.Consume(state)

	state.Intermediate = interim("hello world foo")
	got, _ := c.Consume(state)
	if got != "hello world foo" {
		t.Errorf("Consume = %q, want %q", got, "hello world foo")
	}
}

func TestCursor_ShrunkIntermediateYieldsNothing(t *testing.T) {
	t.Parallel()

	c := transcript.NewCursor()
	state := transcript.UserState{
		Intermediate: interim("hello"),
		Offset:       len("hello world foo"),
	}
	got, next := c.Consume(state)
	if got != "" {
		t.Errorf("Consume = %q, want empty", got)
	}
	if next.Offset != state.Offset {
		t.Errorf("Offset = %d, want anchor %d kept", next.Offset, state.Offset)
	}
}

func TestCursor_MarkerMidSegment(t *testing.T) {
	t.Parallel()

	c := transcript.NewCursor()
	state := transcript.UserState{
		Finals: []transcript.Segment{
			final("p", "a b c d e"),
			final("s", "f g h i"),
		},
		Marker: "s",
		Offset: 4, // inside "h"
	}
	got, _ := c.Consume(state)
	if got != "d e f g h i" {
		t.Errorf("Consume = %q, want %q", got, "d e f g h i")
	}
}

func TestCursor_LaterFinalsAndIntermediateAppended(t *testing.T) {
	t.Parallel()

	c := transcript.NewCursor()
	state := transcript.UserState{
		Finals: []transcript.Segment{
			final("a", "alpha beta"),
			final("b", "gamma delta"),
			final("c", "epsilon"),
		},
		Intermediate: interim("zeta"),
		Marker:       "a",
	}
	got, next := c.Consume(state)
	if got != "alpha beta gamma delta epsilon zeta" {
		t.Errorf("Consume = %q", got)
	}
	if next.Offset != len("zeta") {
		t.Errorf("Offset = %d, want %d", next.Offset, len("zeta"))
	}

	again, _ := c.Consume(next)
	if again != "" {
		t.Errorf("second Consume = %q, want empty", again)
	}
}

func TestCursor_FullyConsumedFinalDoesNotRepeatContext(t *testing.T) {
	t.Parallel()

	c := transcript.NewCursor()
	state := transcript.UserState{
		Finals: []transcript.Segment{final("a", "hello world")},
		Marker: "a",
		Offset: len("hello world"),
	}
	got, next := c.Consume(state)
	if got != "" {
		t.Errorf("Consume = %q, want empty", got)
	}
	if next.Marker != transcript.SentinelNone {
		t.Errorf("Marker = %q, want SentinelNone", next.Marker)
	}
}

func TestCursor_StaleMarkerFailsOpen(t *testing.T) {
	t.Parallel()

	c := transcript.NewCursor()
	state := transcript.UserState{
		Intermediate: interim("new words here"),
		Marker:       "purged-segment",
		Offset:       7,
	}
	got, next := c.Consume(state)
	if got != "new words here" {
		t.Errorf("Consume = %q, want %q", got, "new words here")
	}
	if next.Marker != transcript.SentinelNone {
		t.Errorf("Marker = %q, want SentinelNone", next.Marker)
	}
}

func TestCursor_EmptyStateYieldsEmpty(t *testing.T) {
	t.Parallel()

	got, next := transcript.NewCursor().Consume(transcript.UserState{})
	if got != "" {
		t.Errorf("Consume = %q, want empty", got)
	}
	if next.Offset != 0 || next.Marker != transcript.SentinelNone {
		t.Errorf("unexpected state %+v", next)
	}
}

func TestCursor_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	state := transcript.UserState{
		Finals:       []transcript.Segment{final("a", "first part"), final("b", "second part")},
		Intermediate: interim("third"),
		Marker:       "a",
		Offset:       3,
	}
	_, next := transcript.NewCursor().Consume(state)
	next.Finals[0].Text = "changed"

	if state.Finals[0].Text != "first part" {
		t.Errorf("input segment mutated: %q", state.Finals[0].Text)
	}
	if state.Marker != "a" || state.Offset != 3 {
		t.Errorf("input cursor mutated: marker=%q offset=%d", state.Marker, state.Offset)
	}
}

func TestCursor_NeverStartsMidWord(t *testing.T) {
	t.Parallel()

	const text = "speech segmentation is arbitrary and words straddle boundaries"
	words := make(map[string]bool)
	for _, w := range strings.Fields(text) {
		words[w] = true
	}

	c := transcript.NewCursor(transcript.WithBackslide(0))
	for i := 0; i <= len(text)+2; i++ {
		got, _ := c.Consume(transcript.UserState{Intermediate: interim(text), Offset: i})
		if got == "" {
			continue
		}
		first := strings.Fields(got)[0]
		if !words[first] {
			t.Errorf("offset %d: Consume = %q starts with fragment %q", i, got, first)
		}
	}
}

func TestCursor_WithMemStoreIngestion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := transcript.NewMemStore()
	c := transcript.NewCursor()

	consume := func() string {
		t.Helper()
		state, err := store.State(ctx, "u1")
		if err != nil {
			t.Fatalf("State: %v", err)
		}
		text, next := c.Consume(state)
		if err := store.SaveCursor(ctx, "u1", next.Marker, next.Offset); err != nil {
			t.Fatalf("SaveCursor: %v", err)
		}
		return text
	}

	if _, err := store.ReplaceIntermediate(ctx, "u1", "hello wor", time.Now()); err != nil {
		t.Fatalf("ReplaceIntermediate: %v", err)
	}
	if got := consume(); got != "hello wor" {
		t.Fatalf("consume 1 = %q", got)
	}

	if _, err := store.AppendFinal(ctx, "u1", "hello world foo bar", time.Now()); err != nil {
		t.Fatalf("AppendFinal: %v", err)
	}
	if got := consume(); got != "hello world foo bar" {
		t.Errorf("consume 2 = %q, want re-snapped final", got)
	}
	if got := consume(); got != "" {
		t.Errorf("consume 3 = %q, want empty", got)
	}

	if _, err := store.ReplaceIntermediate(ctx, "u1", "and more", time.Now()); err != nil {
		t.Fatalf("ReplaceIntermediate: %v", err)
	}
	if got := consume(); got != "hello world foo bar and more" {
		t.Errorf("consume 4 = %q, want backslide from the last final", got)
	}
}
