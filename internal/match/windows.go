package match

import (
	"slices"
	"strings"
)

// Windows returns every distinct run of 2 to maxSize consecutive words,
// joined by single spaces. A maxSize below 2 yields an empty set.
func Windows(words []string, maxSize int) map[string]struct{} {
	out := make(map[string]struct{})
	for size := 2; size <= maxSize; size++ {
		for i := 0; i+size <= len(words); i++ {
			out[strings.Join(words[i:i+size], " ")] = struct{}{}
		}
	}
	return out
}

// sortedWindows is [Windows] in a stable order.
func sortedWindows(words []string, maxSize int) []string {
	set := Windows(words, maxSize)
	out := make([]string, 0, len(set))
	for w := range set {
		out = append(out, w)
	}
	slices.Sort(out)
	return out
}
