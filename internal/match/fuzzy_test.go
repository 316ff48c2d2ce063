package match_test

import (
	"slices"
	"testing"

	"github.com/AugmentOS-Community/convoscope/internal/match"
)

func TestFindNearMatches(t *testing.T) {
	t.Parallel()

	defaults := match.DefaultConfig().Bounds

	tests := []struct {
		name    string
		pattern string
		text    string
		bounds  match.Bounds
		want    []match.Span
	}{
		{
			name:    "exact prefix",
			pattern: "fedora tip",
			text:    "fedora tips and tricks",
			bounds:  defaults,
			want:    []match.Span{{Start: 0, End: 10, Dist: 0}},
		},
		{
			name:    "one substitution",
			pattern: "fedora",
			text:    "a fedxra hat",
			bounds:  defaults,
			want:    []match.Span{{Start: 2, End: 8, Dist: 1}},
		},
		{
			name:    "deletion allowed",
			pattern: "abcdef",
			text:    "xxabdefxx",
			bounds:  match.Bounds{MaxDeletions: 1, MaxDistance: 1},
			want:    []match.Span{{Start: 2, End: 7, Dist: 1}},
		},
		{
			name:    "deletion not allowed",
			pattern: "abcdef",
			text:    "xxabdefxx",
			bounds:  match.Bounds{MaxInsertions: 1, MaxSubstitutions: 2, MaxDistance: 3},
			want:    nil,
		},
		{
			name:    "insertion allowed",
			pattern: "abcd",
			text:    "zzabxcdzz",
			bounds:  match.Bounds{MaxInsertions: 1, MaxDistance: 1},
			want:    []match.Span{{Start: 2, End: 7, Dist: 1}},
		},
		{
			name:    "total distance cap",
			pattern: "abcd",
			text:    "zzabxcdzz",
			bounds:  match.Bounds{MaxInsertions: 1, MaxDistance: 0},
			want:    nil,
		},
		{
			name:    "overlapping hits consolidated",
			pattern: "abc",
			text:    "abc abc",
			bounds:  match.Bounds{MaxDeletions: 1, MaxInsertions: 1, MaxSubstitutions: 1, MaxDistance: 1},
			want:    []match.Span{{Start: 0, End: 3, Dist: 0}, {Start: 4, End: 7, Dist: 0}},
		},
		{
			name:    "no match",
			pattern: "quantum",
			text:    "fedora tips",
			bounds:  defaults,
			want:    nil,
		},
		{
			name:    "empty pattern",
			pattern: "",
			text:    "anything",
			bounds:  defaults,
			want:    nil,
		},
		{
			name:    "offsets are in runes",
			pattern: "café bar",
			text:    "öl café bar",
			bounds:  defaults,
			want:    []match.Span{{Start: 3, End: 11, Dist: 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := match.FindNearMatches(tt.pattern, tt.text, tt.bounds)
			if !slices.Equal(got, tt.want) {
				t.Errorf("FindNearMatches(%q, %q) = %+v, want %+v", tt.pattern, tt.text, got, tt.want)
			}
		})
	}
}
