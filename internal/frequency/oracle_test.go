package frequency_test

import (
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/AugmentOS-Community/convoscope/internal/frequency"
)

func TestParseCorpus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		word    string
		rank    int
		found   bool
		size    int
		wantErr bool
	}{
		{
			name:  "bare words",
			input: "the\nof\nand\n",
			word:  "and", rank: 2, found: true, size: 3,
		},
		{
			name:  "csv with header and counts",
			input: "word,count\nthe,23135851162\nof,13151942776\n",
			word:  "of", rank: 1, found: true, size: 2,
		},
		{
			name:  "comments and blank lines",
			input: "# header comment\n\nthe\n  \n# another\nof\n",
			word:  "of", rank: 1, found: true, size: 2,
		},
		{
			name:  "duplicates keep first rank",
			input: "the\nof\nThe\nand\n",
			word:  "the", rank: 0, found: true, size: 4,
		},
		{
			name:  "case insensitive lookup",
			input: "Paris\nLondon\n",
			word:  "LONDON", rank: 1, found: true, size: 2,
		},
		{
			name:  "missing word",
			input: "the\n",
			word:  "spectroscopy", found: false, size: 1,
		},
		{
			name:    "empty table",
			input:   "# nothing here\n",
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c, err := frequency.ParseCorpus(strings.NewReader(tc.input))
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCorpus: %v", err)
			}
			rank, ok := c.Rank(tc.word)
			if ok != tc.found {
				t.Fatalf("Rank(%q) found = %v, want %v", tc.word, ok, tc.found)
			}
			if ok && rank != tc.rank {
				t.Errorf("Rank(%q) = %d, want %d", tc.word, rank, tc.rank)
			}
			if c.Len() != tc.size {
				t.Errorf("Len() = %d, want %d", c.Len(), tc.size)
			}
		})
	}
}

func TestLoadCorpusFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "words.txt")
	if err := os.WriteFile(path, []byte("alpha\nbeta\ngamma\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := frequency.LoadCorpusFile(path)
	if err != nil {
		t.Fatalf("LoadCorpusFile: %v", err)
	}
	if r, ok := c.Rank("gamma"); !ok || r != 2 {
		t.Errorf("Rank(gamma) = %d, %v", r, ok)
	}

	if _, err := frequency.LoadCorpusFile(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadDefault_RarityMonotonicity(t *testing.T) {
	t.Parallel()

	o, err := frequency.LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	common := o.Rarity("the")
	rare := o.Rarity("spectroscopy")
	if common >= rare {
		t.Errorf("Rarity(the) = %v, Rarity(spectroscopy) = %v; want common < rare", common, rare)
	}
	if rare != 1 {
		t.Errorf("Rarity(spectroscopy) = %v, want 1 (absent)", rare)
	}
	if o.Rarity("the") > 0.01 {
		t.Errorf("Rarity(the) = %v, want close to 0", common)
	}
}

func newTestOracle(t *testing.T, opts ...frequency.Option) *frequency.Oracle {
	t.Helper()
	// Ten words in the general table, five of them also curated.
	general := frequency.NewCorpus(strings.Fields("the of and to a in tip house garden cactus"))
	curated := frequency.NewCorpus(strings.Fields("the of and house tip"))
	return frequency.New(general, curated, opts...)
}

func TestOracle_Rarity(t *testing.T) {
	t.Parallel()

	o := newTestOracle(t)
	tests := []struct {
		word string
		want float64
	}{
		{"the", 0},                          // g=0, s=0
		{"house", (2*0.7 + 0.6) / 3},        // g=7/10, s=3/5
		{"garden", (2*0.8 + 1) / 3},         // not curated
		{"xylophone", 1},                    // absent from general
		{"  Garden!! ", (2*0.8 + 1) / 3},    // normalised
		{"\"THE\",", 0},                     // punctuation trimmed
		{"...", 0},                          // no letters
		{"", 0},
	}
	for _, tc := range tests {
		got := o.Rarity(tc.word)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Rarity(%q) = %v, want %v", tc.word, got, tc.want)
		}
		if got < 0 || got > 1 {
			t.Errorf("Rarity(%q) = %v outside [0,1]", tc.word, got)
		}
	}
}

func TestOracle_PhraseRarity(t *testing.T) {
	t.Parallel()

	o := newTestOracle(t)
	if got := o.PhraseRarity(""); got != 0 {
		t.Errorf("PhraseRarity(\"\") = %v, want 0", got)
	}
	want := (o.Rarity("the") + o.Rarity("xylophone")) / 2
	if got := o.PhraseRarity("the xylophone"); math.Abs(got-want) > 1e-9 {
		t.Errorf("PhraseRarity = %v, want %v", got, want)
	}
	if got := o.PhraseRarity("the - xylophone"); math.Abs(got-want) > 1e-9 {
		t.Errorf("PhraseRarity with punctuation token = %v, want %v", got, want)
	}
}

func TestOracle_IsRare(t *testing.T) {
	t.Parallel()

	// General threshold 0.5 of 10 rows: ranks above 5 are rare.
	// Curated threshold 0.5 of 5 rows: ranks above 2.5 are rare.
	o := newTestOracle(t, frequency.WithThresholds(0.5, 0.5))
	tests := []struct {
		word string
		want bool
	}{
		{"the", false},
		{"a", false},       // rank 4, not curated
		{"tip", true},      // rank 6 in general
		{"and", false},     // rank 2 in both
		{"house", true},    // general rank 7
		{"xylophone", true},
		{"", false},
	}
	for _, tc := range tests {
		if got := o.IsRare(tc.word); got != tc.want {
			t.Errorf("IsRare(%q) = %v, want %v", tc.word, got, tc.want)
		}
	}
}

func TestOracle_IsRareCuratedEscalates(t *testing.T) {
	t.Parallel()

	general := frequency.NewCorpus(strings.Fields("the of and to a"))
	curated := frequency.NewCorpus(strings.Fields("the of to a and"))
	o := frequency.New(general, curated, frequency.WithThresholds(0.9, 0.5))

	// "and" is common in the general table but ranked late in the curated one.
	if !o.IsRare("and") {
		t.Error("IsRare(and) = false, want true from curated rank")
	}
	if o.IsRare("of") {
		t.Error("IsRare(of) = true, want false")
	}
}

func TestWithThresholds_IgnoresOutOfRange(t *testing.T) {
	t.Parallel()

	a := newTestOracle(t)
	b := newTestOracle(t, frequency.WithThresholds(-1, 7))
	for _, w := range []string{"the", "of", "and", "to", "a", "in", "tip", "house", "garden", "cactus"} {
		if a.IsRare(w) != b.IsRare(w) {
			t.Errorf("IsRare(%q) differs after invalid thresholds", w)
		}
	}
}

func TestTokens(t *testing.T) {
	t.Parallel()

	got := frequency.Tokens("We met at 10.30 in the CSE lab. It's 2024 now")
	want := []string{"We", "met", "at", "in", "the", "CSE", "lab", "now"}
	if !slices.Equal(got, want) {
		t.Errorf("Tokens = %q, want %q", got, want)
	}
}

func TestAcronyms(t *testing.T) {
	t.Parallel()

	words := []string{"CSE", "LLM", "NSA", "I", "USA", "NASDAQ", "OK", "Mit", "CSE", "DON'T", "A1"}
	got := frequency.Acronyms(words)
	want := []string{"CSE", "LLM", "NSA", "USA", "OK", "A1"}
	if !slices.Equal(got, want) {
		t.Errorf("Acronyms = %q, want %q", got, want)
	}
}

func TestOracle_RareWords(t *testing.T) {
	t.Parallel()

	o, err := frequency.LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	got := o.RareWords("The NSA uses spectroscopy and the Spectroscopy of tungsten. It's 42 people")
	if !slices.Contains(got, "spectroscopy") || !slices.Contains(got, "tungsten") {
		t.Errorf("RareWords = %q, want spectroscopy and tungsten", got)
	}
	for _, w := range got {
		switch w {
		case "the", "and", "of", "people":
			t.Errorf("RareWords returned common word %q", w)
		case "nsa":
			t.Error("RareWords returned acronym NSA")
		}
	}
	if n := strings.Count(strings.Join(got, " "), "spectroscopy"); n != 1 {
		t.Errorf("spectroscopy returned %d times, want once", n)
	}
}

func TestOracle_ConcurrentLookups(t *testing.T) {
	t.Parallel()

	o, err := frequency.LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				_ = o.PhraseRarity("the fedora tip from the hardware store")
				_ = o.IsRare("spectroscopy")
			}
		}()
	}
	wg.Wait()
}
