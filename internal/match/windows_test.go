package match_test

import (
	"maps"
	"slices"
	"testing"

	"github.com/AugmentOS-Community/convoscope/internal/match"
)

func TestWindows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		words   []string
		maxSize int
		want    []string
	}{
		{
			name:    "two and three word runs",
			words:   []string{"a", "b", "c"},
			maxSize: 3,
			want:    []string{"a b", "a b c", "b c"},
		},
		{
			name:    "pairs only",
			words:   []string{"a", "b", "c"},
			maxSize: 2,
			want:    []string{"a b", "b c"},
		},
		{
			name:    "repeats are deduplicated",
			words:   []string{"a", "b", "a", "b"},
			maxSize: 2,
			want:    []string{"a b", "b a"},
		},
		{
			name:    "window larger than text",
			words:   []string{"a", "b"},
			maxSize: 5,
			want:    []string{"a b"},
		},
		{
			name:    "max size below two",
			words:   []string{"a", "b", "c"},
			maxSize: 1,
			want:    []string{},
		},
		{
			name:    "single word",
			words:   []string{"a"},
			maxSize: 3,
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := slices.Sorted(maps.Keys(match.Windows(tt.words, tt.maxSize)))
			if got == nil {
				got = []string{}
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Windows(%q, %d) = %q, want %q", tt.words, tt.maxSize, got, tt.want)
			}
		})
	}
}
