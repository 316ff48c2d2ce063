package match

import "math"

// Span is an approximate occurrence of a pattern inside a text. Start and End
// are rune offsets into the text, End exclusive. Dist is the number of edits.
type Span struct {
	Start int
	End   int
	Dist  int
}

// FindNearMatches returns the approximate occurrences of pattern in text
// that stay within b. Overlapping occurrences are collapsed to the best one
// (fewest edits, then length closest to the pattern, then leftmost), and the
// result is in text order. Matching is exact on runes; callers normalise case.
func FindNearMatches(pattern, text string, b Bounds) []Span {
	return findNearMatches([]rune(pattern), []rune(text), b)
}

// cell is the cheapest known alignment of a pattern prefix ending at the
// current text position for a fixed number of deletions and insertions.
type cell struct {
	subs  int
	start int
}

var noCell = cell{subs: math.MaxInt}

func (c cell) ok() bool { return c.subs != math.MaxInt }

// better prefers fewer substitutions, then the later start.
func (c cell) better(o cell) bool {
	if c.subs != o.subs {
		return c.subs < o.subs
	}
	return c.start > o.start
}

// findNearMatches runs a free-start edit-distance scan over text. The state
// for every pattern prefix is split by the number of deletions and
// insertions spent so far, and each state keeps the minimum substitutions
// needed, which keeps the per-kind caps exact.
func findNearMatches(p, t []rune, b Bounds) []Span {
	n := len(p)
	if n == 0 || b.MaxDeletions < 0 || b.MaxInsertions < 0 || b.MaxSubstitutions < 0 || b.MaxDistance < 0 {
		return nil
	}
	maxDel := min(b.MaxDeletions, b.MaxDistance, n)
	maxIns := min(b.MaxInsertions, b.MaxDistance)

	// grid[i][d][k], flattened.
	size := (n + 1) * (maxDel + 1) * (maxIns + 1)
	idx := func(i, d, k int) int { return (i*(maxDel+1)+d)*(maxIns+1) + k }
	prev := make([]cell, size)
	cur := make([]cell, size)

	feasible := func(c cell, d, k int) bool {
		return c.ok() && c.subs <= b.MaxSubstitutions && d+k+c.subs <= b.MaxDistance
	}
	// column fills the deletion-only transitions of a column whose i=0 row
	// is already set.
	column := func(col []cell, fromPrev func(i, d, k int) cell) {
		for i := 1; i <= n; i++ {
			for d := 0; d <= maxDel; d++ {
				for k := 0; k <= maxIns; k++ {
					best := noCell
					if fromPrev != nil {
						best = fromPrev(i, d, k)
					}
					// Pattern rune i-1 missing from the text.
					if d > 0 {
						if c := col[idx(i-1, d-1, k)]; c.ok() && c.better(best) {
							best = c
						}
					}
					if !feasible(best, d, k) {
						best = noCell
					}
					col[idx(i, d, k)] = best
				}
			}
		}
	}

	var raw []Span
	emit := func(col []cell, j int) {
		bestDist, bestStart := -1, 0
		for d := 0; d <= maxDel; d++ {
			for k := 0; k <= maxIns; k++ {
				c := col[idx(n, d, k)]
				if !c.ok() {
					continue
				}
				dist := d + k + c.subs
				if bestDist < 0 || dist < bestDist || (dist == bestDist && c.start > bestStart) {
					bestDist, bestStart = dist, c.start
				}
			}
		}
		if bestDist >= 0 && j > bestStart {
			raw = append(raw, Span{Start: bestStart, End: j, Dist: bestDist})
		}
	}

	resetRow0 := func(col []cell, j int) {
		for d := 0; d <= maxDel; d++ {
			for k := 0; k <= maxIns; k++ {
				col[idx(0, d, k)] = noCell
			}
		}
		col[idx(0, 0, 0)] = cell{subs: 0, start: j}
	}

	// Column 0: only deletions can advance through the pattern.
	resetRow0(prev, 0)
	column(prev, nil)
	emit(prev, 0)

	for j := 1; j <= len(t); j++ {
		tr := t[j-1]
		resetRow0(cur, j)
		column(cur, func(i, d, k int) cell {
			best := noCell
			// Pattern rune i-1 aligned with text rune j-1.
			if c := prev[idx(i-1, d, k)]; c.ok() {
				if p[i-1] != tr {
					c.subs++
				}
				best = c
			}
			// Text rune j-1 is an extra character.
			if k > 0 {
				if c := prev[idx(i, d, k-1)]; c.ok() && c.better(best) {
					best = c
				}
			}
			return best
		})
		emit(cur, j)
		prev, cur = cur, prev
	}

	return consolidate(raw, n)
}

// consolidate collapses overlapping spans to the best of each group.
// raw is ordered by End.
func consolidate(raw []Span, patternLen int) []Span {
	if len(raw) == 0 {
		return nil
	}
	var out []Span
	best := raw[0]
	groupEnd := raw[0].End
	for _, s := range raw[1:] {
		if s.Start < groupEnd {
			if preferSpan(s, best, patternLen) {
				best = s
			}
			groupEnd = max(groupEnd, s.End)
			continue
		}
		out = append(out, best)
		best, groupEnd = s, s.End
	}
	out = append(out, best)
	return out
}

func preferSpan(a, b Span, patternLen int) bool {
	if a.Dist != b.Dist {
		return a.Dist < b.Dist
	}
	da := abs((a.End - a.Start) - patternLen)
	db := abs((b.End - b.Start) - patternLen)
	if da != db {
		return da < db
	}
	return a.Start < b.Start
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
