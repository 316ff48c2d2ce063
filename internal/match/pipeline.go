// Package match finds catalog entries mentioned in conversational text.
//
// Text is cut into short word windows ([Windows]); every window that survives
// a set of cheap rejects is searched inside each normalised catalog title with
// a bounded edit-distance scan ([FindNearMatches]); each raw hit then has to
// pass a stack of filters that suppress the many spurious matches fuzzy
// search produces on everyday speech:
//
//  1. length delta between the touched whole words and the candidate
//  2. rarity gate for matches that needed more than one edit
//  3. single-word suppression unless the word looks like an identifier
//  4. start-of-word anchor
//
// [Pipeline] is read-only after construction and safe for concurrent use.
package match

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
	"golang.org/x/sync/errgroup"

	"github.com/AugmentOS-Community/convoscope/internal/catalog"
)

// RarityOracle scores how unusual a phrase is, in [0, 1].
// *frequency.Oracle satisfies it.
type RarityOracle interface {
	PhraseRarity(phrase string) float64
}

// Title is a catalog title to match against.
type Title struct {
	ID   string
	Text string
}

// Match is one accepted occurrence of a candidate inside a catalog title.
type Match struct {
	EntryID      string  `json:"entry_id"`
	Title        string  `json:"title"`
	Candidate    string  `json:"candidate"`
	MatchedSpan  string  `json:"matched_span"`
	EditDistance int     `json:"edit_distance"`
	RarityScore  float64 `json:"rarity_score"`
}

// Entity is the response object assembled for a matched catalog entry.
type Entity struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Summary  string `json:"summary"`
	URL      string `json:"url,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Stats counts the work done by one [Pipeline.Run].
type Stats struct {
	// Candidates is the number of distinct word windows generated.
	Candidates int `json:"candidates"`

	// Rejected is the number of windows dropped before any title was searched.
	Rejected int `json:"rejected"`

	// Searched is the number of (window, title) pairs scanned.
	Searched int `json:"searched"`
}

// Result is the outcome of [Pipeline.Run]. Matches and Entities are aligned:
// Entities[i] describes the entry of Matches[i].
type Result struct {
	Matches  []Match  `json:"matches"`
	Entities []Entity `json:"entities"`
	Stats    Stats    `json:"-"`
}

// Option is a functional option for configuring a [Pipeline].
type Option func(*Pipeline)

// WithStopWords replaces the default stop-word set.
func WithStopWords(s StopWords) Option {
	return func(p *Pipeline) {
		p.stop = s
	}
}

// Pipeline runs the candidate filters and the fuzzy title search.
type Pipeline struct {
	cfg    Config
	oracle RarityOracle
	stop   StopWords
}

// NewPipeline returns a [Pipeline] for cfg. It fails when cfg is invalid or
// oracle is nil.
func NewPipeline(cfg Config, oracle RarityOracle, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if oracle == nil {
		return nil, errors.New("match: rarity oracle must not be nil")
	}
	p := &Pipeline{
		cfg:    cfg,
		oracle: oracle,
		stop:   DefaultStopWords(),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() Config { return p.cfg }

// Match returns the IDs of the titles that candidate matches, each ID once,
// in title order.
func (p *Pipeline) Match(candidate string, titles []Title) []string {
	prepared := prepareTitles(titles)
	var ids []string
	for _, m := range p.evaluate(candidate, prepared, nil) {
		if !slices.Contains(ids, m.EntryID) {
			ids = append(ids, m.EntryID)
		}
	}
	return ids
}

// Evaluate returns every accepted match of candidate against titles. A
// candidate rejected by the cheap checks yields nil without searching.
func (p *Pipeline) Evaluate(candidate string, titles []Title) []Match {
	return p.evaluate(candidate, prepareTitles(titles), nil)
}

// Run matches text against entries.
//
// Every distinct window of text is evaluated in parallel, bounded by
// Config.Workers. The accepted matches are reduced to the best one per title,
// ordered by quality (edit distance, then similarity of the matched words to
// the title, then matched length, then title) and cut to Config.MaxResults.
//
// When ctx is cancelled no further windows are started and the matches found
// so far are returned.
func (p *Pipeline) Run(ctx context.Context, text string, entries []catalog.Entry) Result {
	windows := sortedWindows(strings.Fields(text), p.cfg.MaxWindowSize)
	res := Result{Stats: Stats{Candidates: len(windows)}}

	titles := make([]Title, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Title) == "" {
			continue
		}
		titles = append(titles, Title{ID: entryKey(e), Text: e.Title})
	}
	if len(windows) == 0 || len(titles) == 0 {
		return res
	}
	prepared := prepareTitles(titles)

	var (
		mu    sync.Mutex
		found []Match
		g     errgroup.Group
	)
	g.SetLimit(p.cfg.Workers)
	for _, w := range windows {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			var st Stats
			ms := p.evaluate(w, prepared, &st)
			mu.Lock()
			found = append(found, ms...)
			res.Stats.Rejected += st.Rejected
			res.Stats.Searched += st.Searched
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	res.Matches = p.shape(found)
	res.Entities = entitiesFor(res.Matches, entries)
	return res
}

// evaluate applies the cheap rejects and then searches every title.
func (p *Pipeline) evaluate(candidate string, titles []title, st *Stats) []Match {
	if st == nil {
		st = &Stats{}
	}
	if p.rejectCandidate(candidate) {
		st.Rejected++
		return nil
	}

	pattern := toLowerRunes([]rune(candidate))
	var out []Match
	for _, t := range titles {
		st.Searched++
		out = append(out, p.matchTitle(candidate, pattern, t)...)
	}
	return out
}

// rejectCandidate reports whether candidate is too short, too filler-heavy or
// too ordinary to be worth searching.
func (p *Pipeline) rejectCandidate(candidate string) bool {
	if utf8.RuneCountInString(candidate) < p.cfg.MinCandidateLength {
		return true
	}
	if p.stop.Ratio(strings.Fields(candidate)) > p.cfg.MaxStopWordRatio {
		return true
	}
	return p.oracle.PhraseRarity(candidate) < p.cfg.CommonPhraseThreshold
}

// matchTitle searches pattern inside t and filters every raw hit.
func (p *Pipeline) matchTitle(candidate string, pattern []rune, t title) []Match {
	var out []Match
	for _, s := range findNearMatches(pattern, t.lower, p.cfg.Bounds) {
		ws, we := wholeWords(t.lower, s.Start, s.End)
		whole := string(t.lower[ws:we])

		if abs((we-ws)-len(pattern)) >= p.cfg.MaxLengthDelta {
			continue
		}
		rarity := p.oracle.PhraseRarity(whole)
		if s.Dist > p.cfg.ImperfectDistance && rarity < p.cfg.ImperfectRarityThreshold {
			continue
		}
		if !strings.ContainsRune(whole, ' ') && countUpper(t.cased[ws:we]) < p.cfg.MinCapitalsSingleWord {
			continue
		}
		if s.Start != 0 && t.lower[s.Start-1] != ' ' {
			continue
		}
		out = append(out, Match{
			EntryID:      t.id,
			Title:        t.text,
			Candidate:    candidate,
			MatchedSpan:  whole,
			EditDistance: s.Dist,
			RarityScore:  rarity,
		})
	}
	return out
}

// shape keeps the best match per title, ordered by quality, capped at
// MaxResults.
func (p *Pipeline) shape(found []Match) []Match {
	if len(found) == 0 {
		return nil
	}
	type ranked struct {
		m  Match
		jw float64
	}
	rs := make([]ranked, len(found))
	for i, m := range found {
		rs[i] = ranked{m: m, jw: matchr.JaroWinkler(m.MatchedSpan, NormalizeTitle(m.Title), false)}
	}
	slices.SortStableFunc(rs, func(a, b ranked) int {
		switch {
		case a.m.EditDistance != b.m.EditDistance:
			return a.m.EditDistance - b.m.EditDistance
		case a.jw != b.jw:
			if a.jw > b.jw {
				return -1
			}
			return 1
		}
		la, lb := utf8.RuneCountInString(a.m.MatchedSpan), utf8.RuneCountInString(b.m.MatchedSpan)
		if la != lb {
			return lb - la
		}
		if c := strings.Compare(a.m.Title, b.m.Title); c != 0 {
			return c
		}
		if c := strings.Compare(a.m.EntryID, b.m.EntryID); c != 0 {
			return c
		}
		return strings.Compare(a.m.Candidate, b.m.Candidate)
	})

	seen := make(map[string]struct{})
	out := make([]Match, 0, min(len(rs), p.cfg.MaxResults))
	for _, r := range rs {
		if _, dup := seen[r.m.Title]; dup {
			continue
		}
		seen[r.m.Title] = struct{}{}
		out = append(out, r.m)
		if len(out) == p.cfg.MaxResults {
			break
		}
	}
	return out
}

// ── helpers ──────────────────────────────────────────────────────────────────

func prepareTitles(titles []Title) []title {
	out := make([]title, 0, len(titles))
	for _, t := range titles {
		pt := prepareTitle(t.ID, t.Text)
		if len(pt.lower) == 0 {
			continue
		}
		out = append(out, pt)
	}
	return out
}

func entryKey(e catalog.Entry) string {
	if e.ID != "" {
		return e.ID
	}
	return e.Title
}

func entitiesFor(matches []Match, entries []catalog.Entry) []Entity {
	if len(matches) == 0 {
		return nil
	}
	byKey := make(map[string]catalog.Entry, len(entries))
	for _, e := range entries {
		if _, ok := byKey[entryKey(e)]; !ok {
			byKey[entryKey(e)] = e
		}
	}
	out := make([]Entity, 0, len(matches))
	for _, m := range matches {
		e := byKey[m.EntryID]
		out = append(out, Entity{
			ID:       m.EntryID,
			Name:     m.Title,
			Summary:  e.Description,
			URL:      e.URL,
			ImageURL: e.ImageURL,
		})
	}
	return out
}

// wholeWords widens [start, end) to the separators around it.
func wholeWords(rs []rune, start, end int) (int, int) {
	for start > 0 && !isSeparator(rs[start-1]) {
		start--
	}
	for end < len(rs) && !isSeparator(rs[end]) {
		end++
	}
	return start, end
}

func isSeparator(r rune) bool {
	switch r {
	case ' ', '\n', '\r', ',', ':', ';':
		return true
	}
	return false
}

func countUpper(rs []rune) int {
	n := 0
	for _, r := range rs {
		if unicode.IsUpper(r) {
			n++
		}
	}
	return n
}
