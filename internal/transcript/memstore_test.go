package transcript_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/AugmentOS-Community/convoscope/internal/transcript"
)

func TestMemStore_ZeroValueUsable(t *testing.T) {
	t.Parallel()

	var s transcript.MemStore
	if _, err := s.AppendFinal(context.Background(), "u1", "hello", time.Now()); err != nil {
		t.Fatalf("AppendFinal on zero value: %v", err)
	}
	st, err := s.State(context.Background(), "u1")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if len(st.Finals) != 1 {
		t.Errorf("len(Finals) = %d, want 1", len(st.Finals))
	}
}

func TestMemStore_StateCreatesUserOnFirstContact(t *testing.T) {
	t.Parallel()

	s := transcript.NewMemStore()
	st, err := s.State(context.Background(), "new-user")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if st.UserID != "new-user" {
		t.Errorf("UserID = %q, want %q", st.UserID, "new-user")
	}
	if st.Marker != transcript.SentinelNone || st.Offset != 0 || len(st.Finals) != 0 {
		t.Errorf("unexpected initial state %+v", st)
	}
	if got, err := s.Users(context.Background()); err != nil || len(got) != 1 || got[0] != "new-user" {
		t.Errorf("Users() = %v, %v", got, err)
	}
}

func TestMemStore_AppendFinalSetsMarkerAndClearsIntermediate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := transcript.NewMemStore()

	if _, err := s.ReplaceIntermediate(ctx, "u1", "partial", time.Now()); err != nil {
		t.Fatalf("ReplaceIntermediate: %v", err)
	}
	if err := s.SaveCursor(ctx, "u1", transcript.SentinelNone, 5); err != nil {
		t.Fatalf("SaveCursor: %v", err)
	}

	first, err := s.AppendFinal(ctx, "u1", "partial speech", time.Now())
	if err != nil {
		t.Fatalf("AppendFinal: %v", err)
	}
	if first.ID == "" || !first.IsFinal {
		t.Errorf("unexpected segment %+v", first)
	}

	second, err := s.AppendFinal(ctx, "u1", "more speech", time.Now())
	if err != nil {
		t.Fatalf("AppendFinal: %v", err)
	}

	st, _ := s.State(ctx, "u1")
	if st.Intermediate.Text != "" {
		t.Errorf("Intermediate = %q, want cleared", st.Intermediate.Text)
	}
	if st.Marker != first.ID {
		t.Errorf("Marker = %q, want first final %q (second is %q)", st.Marker, first.ID, second.ID)
	}
	if st.Offset != 5 {
		t.Errorf("Offset = %d, want unchanged 5", st.Offset)
	}
	if len(st.Finals) != 2 {
		t.Errorf("len(Finals) = %d, want 2", len(st.Finals))
	}
}

func TestMemStore_EmptyTextIgnored(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := transcript.NewMemStore()

	if _, err := s.AppendFinal(ctx, "u1", "   ", time.Now()); err != nil {
		t.Fatalf("AppendFinal: %v", err)
	}
	if _, err := s.ReplaceIntermediate(ctx, "u1", "", time.Now()); err != nil {
		t.Fatalf("ReplaceIntermediate: %v", err)
	}
	st, _ := s.State(ctx, "u1")
	if len(st.Finals) != 0 || st.Marker != transcript.SentinelNone {
		t.Errorf("empty text changed state: %+v", st)
	}
}

func TestMemStore_StateIsSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := transcript.NewMemStore()
	_, _ = s.AppendFinal(ctx, "u1", "original", time.Now())

	st, _ := s.State(ctx, "u1")
	st.Finals[0].Text = "mutated"

	again, _ := s.State(ctx, "u1")
	if again.Finals[0].Text != "original" {
		t.Errorf("stored segment mutated through snapshot: %q", again.Finals[0].Text)
	}
}

func TestMemStore_PurgeAndRecent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := transcript.NewMemStore()
	now := time.Now()

	_, _ = s.AppendFinal(ctx, "u1", "two hours ago", now.Add(-2*time.Hour))
	_, _ = s.AppendFinal(ctx, "u1", "ten seconds ago", now.Add(-10*time.Second))
	_, _ = s.AppendFinal(ctx, "u1", "just now", now)

	recent, err := s.Recent(ctx, "u1", now.Add(-30*time.Second))
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].Text != "ten seconds ago" || recent[1].Text != "just now" {
		t.Errorf("Recent = %+v", recent)
	}

	n, err := s.Purge(ctx, "u1", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 1 {
		t.Errorf("Purge removed %d, want 1", n)
	}
	st, _ := s.State(ctx, "u1")
	if len(st.Finals) != 2 {
		t.Errorf("len(Finals) = %d after purge, want 2", len(st.Finals))
	}

	if n, _ := s.Purge(ctx, "unknown", now); n != 0 {
		t.Errorf("Purge(unknown) = %d, want 0", n)
	}
	if got, _ := s.Recent(ctx, "unknown", now.Add(-time.Minute)); len(got) != 0 {
		t.Errorf("Recent(unknown) = %v, want empty", got)
	}
}

func TestMemStore_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := transcript.NewMemStore()
	_, _ = s.AppendFinal(ctx, "u1", "hello", time.Now())

	if err := s.Delete(ctx, "u1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	st, _ := s.State(ctx, "u1")
	if len(st.Finals) != 0 {
		t.Errorf("Finals survived Delete: %+v", st.Finals)
	}
}

func TestMemStore_ConcurrentUsers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := transcript.NewMemStore()

	var wg sync.WaitGroup
	for u := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", u)
			for i := range 50 {
				_, _ = s.ReplaceIntermediate(ctx, user, fmt.Sprintf("interim %d", i), time.Now())
				_, _ = s.AppendFinal(ctx, user, fmt.Sprintf("final %d", i), time.Now())
			}
		}()
	}
	wg.Wait()

	for u := range 8 {
		st, _ := s.State(ctx, fmt.Sprintf("user-%d", u))
		if len(st.Finals) != 50 {
			t.Errorf("user-%d: len(Finals) = %d, want 50", u, len(st.Finals))
		}
	}
}
