package frequency

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"unicode"
)

// Default rare-word thresholds, as a fraction of each table's length. A word
// ranked past 9.22% of the general table, or past 90.1% of the curated table,
// is rare. They are fractions, so they carry over from the reduced embedded
// tables to the full ones loaded from configuration.
const (
	DefaultGeneralThreshold = 0.0922
	DefaultCuratedThreshold = 0.901
)

var (
	//go:embed data/general.txt
	generalTable []byte

	//go:embed data/curated.txt
	curatedTable []byte
)

// Option is a functional option for configuring an [Oracle].
type Option func(*Oracle)

// WithThresholds overrides the rare-word thresholds used by [Oracle.IsRare].
// Values outside (0, 1] are ignored.
func WithThresholds(general, curated float64) Option {
	return func(o *Oracle) {
		if general > 0 && general <= 1 {
			o.generalThreshold = general
		}
		if curated > 0 && curated <= 1 {
			o.curatedThreshold = curated
		}
	}
}

// Oracle scores word rarity against a general and a curated [Corpus].
type Oracle struct {
	general *Corpus
	curated *Corpus

	generalThreshold float64
	curatedThreshold float64
}

// New returns an [Oracle] backed by the given corpora. A nil curated corpus
// is allowed and behaves like an empty table.
func New(general, curated *Corpus, opts ...Option) *Oracle {
	o := &Oracle{
		general:          general,
		curated:          curated,
		generalThreshold: DefaultGeneralThreshold,
		curatedThreshold: DefaultCuratedThreshold,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// LoadDefault returns an [Oracle] backed by the tables compiled into the
// binary.
func LoadDefault(opts ...Option) (*Oracle, error) {
	return Load("", "", opts...)
}

// Load returns an [Oracle] backed by the frequency tables at generalPath and
// curatedPath. An empty path selects the corresponding compiled-in table.
func Load(generalPath, curatedPath string, opts ...Option) (*Oracle, error) {
	general, err := loadTable(generalPath, generalTable)
	if err != nil {
		return nil, fmt.Errorf("frequency: general table: %w", err)
	}
	curated, err := loadTable(curatedPath, curatedTable)
	if err != nil {
		return nil, fmt.Errorf("frequency: curated table: %w", err)
	}
	return New(general, curated, opts...), nil
}

func loadTable(path string, fallback []byte) (*Corpus, error) {
	if path == "" {
		return ParseCorpus(bytes.NewReader(fallback))
	}
	return LoadCorpusFile(path)
}

// Rarity returns a score in [0, 1] for word; higher is rarer.
//
// The word is lower-cased and stripped of surrounding punctuation. A word
// missing from the general table scores 1. Otherwise its relative position g
// in the general table is combined with its relative position s in the
// curated table (1 when absent there) as (2g + s) / 3, so a word that is also
// unusual in everyday vocabulary is pushed towards rare.
//
// A token with no letters or digits scores 0.
func (o *Oracle) Rarity(word string) float64 {
	w := normalizeWord(word)
	if w == "" {
		return 0
	}
	gRank, ok := o.general.Rank(w)
	if !ok {
		return 1
	}
	g := relative(gRank, o.general.Len())

	s := 1.0
	if sRank, ok := o.curated.Rank(w); ok {
		s = relative(sRank, o.curated.Len())
	}
	return clamp01((2*g + s) / 3)
}

// PhraseRarity returns the arithmetic mean of [Oracle.Rarity] over the
// whitespace-separated words of phrase. Tokens without letters or digits are
// skipped. An empty phrase scores 0.
func (o *Oracle) PhraseRarity(phrase string) float64 {
	var sum float64
	var n int
	for _, f := range strings.Fields(phrase) {
		if normalizeWord(f) == "" {
			continue
		}
		sum += o.Rarity(f)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// IsRare reports whether word is uncommon enough to be worth explaining: it
// is missing from the general table, ranked past the general threshold, or
// ranked past the curated threshold of a curated table that contains it.
func (o *Oracle) IsRare(word string) bool {
	w := normalizeWord(word)
	if w == "" {
		return false
	}
	gRank, ok := o.general.Rank(w)
	if !ok {
		return true
	}
	if float64(gRank) > o.generalThreshold*float64(o.general.Len()) {
		return true
	}
	if sRank, ok := o.curated.Rank(w); ok {
		return float64(sRank) > o.curatedThreshold*float64(o.curated.Len())
	}
	return false
}

// RareWords returns the distinct rare words of text, lower-cased, in order
// of first appearance. Digits are removed, words containing an apostrophe are
// ignored, and acronyms (see [Acronyms]) are excluded.
func (o *Oracle) RareWords(text string) []string {
	words := Tokens(text)
	acronyms := make(map[string]struct{})
	for _, a := range Acronyms(words) {
		acronyms[a] = struct{}{}
	}

	seen := make(map[string]struct{})
	var out []string
	for _, w := range words {
		if _, ok := acronyms[w]; ok {
			continue
		}
		lw := normalizeWord(w)
		if lw == "" {
			continue
		}
		if _, ok := seen[lw]; ok {
			continue
		}
		seen[lw] = struct{}{}
		if o.IsRare(lw) {
			out = append(out, lw)
		}
	}
	return out
}

// Tokens splits text into candidate words for [Oracle.RareWords] and
// [Acronyms]: full stops become spaces, digits are dropped, and words that
// contain an apostrophe are discarded.
func Tokens(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '.':
			return ' '
		case unicode.IsDigit(r):
			return -1
		}
		return r
	}, text)

	var out []string
	for _, f := range strings.Fields(cleaned) {
		if strings.ContainsRune(f, '\'') {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Acronyms returns the distinct words that look like acronyms: two to four
// characters, all upper case, no apostrophe. Order of first appearance is
// kept.
func Acronyms(words []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range words {
		if !isAcronym(w) {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func isAcronym(w string) bool {
	n := len([]rune(w))
	if n < 2 || n > 4 || strings.ContainsRune(w, '\'') {
		return false
	}
	hasUpper := false
	for _, r := range w {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasUpper = true
		}
	}
	return hasUpper
}

// normalizeWord lower-cases w and trims leading and trailing runes that are
// neither letters nor digits.
func normalizeWord(w string) string {
	w = strings.TrimFunc(w, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.ToLower(w)
}

func relative(rank, size int) float64 {
	if size <= 0 {
		return 1
	}
	return float64(rank) / float64(size)
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
