package match

import (
	"errors"
	"fmt"
	"runtime"
)

// Bounds limits the edits allowed by [FindNearMatches]. Each edit kind has
// its own cap and MaxDistance caps their sum.
type Bounds struct {
	// MaxDeletions is the number of pattern characters that may be missing
	// from the matched text.
	MaxDeletions int

	// MaxInsertions is the number of extra characters the matched text may
	// contain.
	MaxInsertions int

	// MaxSubstitutions is the number of characters that may differ.
	MaxSubstitutions int

	// MaxDistance caps the total number of edits.
	MaxDistance int
}

// Config holds every tunable of the matching pipeline. The zero value is not
// useful; start from [DefaultConfig].
type Config struct {
	// MaxWindowSize is the largest number of consecutive words joined into a
	// candidate. Windows start at two words.
	MaxWindowSize int

	// MinCandidateLength rejects candidates shorter than this many characters.
	MinCandidateLength int

	// MaxStopWordRatio rejects candidates whose share of stop words exceeds it.
	MaxStopWordRatio float64

	// CommonPhraseThreshold rejects candidates whose phrase rarity is below it.
	CommonPhraseThreshold float64

	// Bounds limits the fuzzy search of a candidate inside a title.
	Bounds Bounds

	// MaxLengthDelta rejects a match when the whole words it touches differ
	// in length from the candidate by this many characters or more.
	MaxLengthDelta int

	// ImperfectDistance is the edit distance above which a match must also
	// pass ImperfectRarityThreshold.
	ImperfectDistance int

	// ImperfectRarityThreshold is the phrase rarity an imperfect match needs.
	ImperfectRarityThreshold float64

	// MinCapitalsSingleWord is how many capitals a single-word match needs to
	// count as a compact multi-word identifier.
	MinCapitalsSingleWord int

	// MaxResults caps the number of entities returned by [Pipeline.Run].
	MaxResults int

	// Workers bounds how many candidates are matched in parallel.
	Workers int
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		MaxWindowSize:         3,
		MinCandidateLength:    8,
		MaxStopWordRatio:      0.4,
		CommonPhraseThreshold: 0.04,
		Bounds: Bounds{
			MaxDeletions:     1,
			MaxInsertions:    1,
			MaxSubstitutions: 2,
			MaxDistance:      3,
		},
		MaxLengthDelta:           2,
		ImperfectDistance:        1,
		ImperfectRarityThreshold: 0.06,
		MinCapitalsSingleWord:    2,
		MaxResults:               4,
		Workers:                  runtime.GOMAXPROCS(0),
	}
}

// Validate reports every invalid field of c.
func (c Config) Validate() error {
	var errs []error
	if c.MaxWindowSize < 2 {
		errs = append(errs, fmt.Errorf("match: max window size must be at least 2, got %d", c.MaxWindowSize))
	}
	if c.MinCandidateLength < 0 {
		errs = append(errs, fmt.Errorf("match: min candidate length must not be negative, got %d", c.MinCandidateLength))
	}
	if c.MaxStopWordRatio < 0 || c.MaxStopWordRatio > 1 {
		errs = append(errs, fmt.Errorf("match: max stop word ratio must be within [0, 1], got %v", c.MaxStopWordRatio))
	}
	if c.CommonPhraseThreshold < 0 || c.CommonPhraseThreshold > 1 {
		errs = append(errs, fmt.Errorf("match: common phrase threshold must be within [0, 1], got %v", c.CommonPhraseThreshold))
	}
	if c.ImperfectRarityThreshold < 0 || c.ImperfectRarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("match: imperfect rarity threshold must be within [0, 1], got %v", c.ImperfectRarityThreshold))
	}
	if err := c.Bounds.validate(); err != nil {
		errs = append(errs, err)
	}
	if c.MaxLengthDelta < 1 {
		errs = append(errs, fmt.Errorf("match: max length delta must be at least 1, got %d", c.MaxLengthDelta))
	}
	if c.ImperfectDistance < 0 {
		errs = append(errs, fmt.Errorf("match: imperfect distance must not be negative, got %d", c.ImperfectDistance))
	}
	if c.MinCapitalsSingleWord < 0 {
		errs = append(errs, fmt.Errorf("match: min capitals must not be negative, got %d", c.MinCapitalsSingleWord))
	}
	if c.MaxResults < 1 {
		errs = append(errs, fmt.Errorf("match: max results must be at least 1, got %d", c.MaxResults))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("match: workers must be at least 1, got %d", c.Workers))
	}
	return errors.Join(errs...)
}

func (b Bounds) validate() error {
	var errs []error
	for _, f := range []struct {
		name string
		v    int
	}{
		{"max deletions", b.MaxDeletions},
		{"max insertions", b.MaxInsertions},
		{"max substitutions", b.MaxSubstitutions},
		{"max distance", b.MaxDistance},
	} {
		if f.v < 0 {
			errs = append(errs, fmt.Errorf("match: %s must not be negative, got %d", f.name, f.v))
		}
	}
	return errors.Join(errs...)
}
