// Package frequency scores how unusual a word is against two ranked
// reference corpora: a large general table and a smaller curated one.
//
// Lookups never fail. A word that a corpus does not contain is itself the
// signal: proper nouns, jargon and product names are exactly the tokens that
// are missing from frequency tables, so absence is scored as maximally rare.
//
// The embedded tables are a reduced default of about ten thousand general
// words and four thousand curated ones. Production deployments load full
// tables of tens of thousands of rows through frequency.general_path and
// frequency.curated_path; the threshold fractions apply to either size.
//
// An [Oracle] is read-only after construction and safe for concurrent use.
package frequency

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Corpus maps words to their rank in a frequency table. Rank 0 is the most
// frequent word.
type Corpus struct {
	ranks map[string]int
	size  int
}

// NewCorpus builds a [Corpus] from words ordered most frequent first. Words
// are lower-cased. A word that appears more than once keeps its first rank.
func NewCorpus(words []string) *Corpus {
	c := &Corpus{ranks: make(map[string]int, len(words))}
	for _, w := range words {
		c.add(w)
	}
	return c
}

// ParseCorpus reads a frequency table from r.
//
// Each non-blank line that does not start with '#' is one row, most frequent
// first; the row position is the rank. A row is either a bare word or a
// "word,count" CSV pair whose second column is ignored. An optional header
// row whose first column is "word" is skipped.
func ParseCorpus(r io.Reader) (*Corpus, error) {
	c := &Corpus{ranks: make(map[string]int)}
	sc := bufio.NewScanner(r)
	first := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		word, _, _ := strings.Cut(line, ",")
		word = strings.TrimSpace(word)
		if first {
			first = false
			if strings.EqualFold(word, "word") {
				continue
			}
		}
		c.add(word)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("frequency: parse corpus: %w", err)
	}
	if c.size == 0 {
		return nil, fmt.Errorf("frequency: parse corpus: no words")
	}
	return c, nil
}

// LoadCorpusFile reads a frequency table from the file at path.
// See [ParseCorpus] for the format.
func LoadCorpusFile(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("frequency: open corpus %q: %w", path, err)
	}
	defer f.Close()

	c, err := ParseCorpus(f)
	if err != nil {
		return nil, fmt.Errorf("frequency: load %q: %w", path, err)
	}
	return c, nil
}

// Rank returns the rank of word and whether the corpus contains it.
// The lookup is case-insensitive.
func (c *Corpus) Rank(word string) (int, bool) {
	if c == nil {
		return 0, false
	}
	r, ok := c.ranks[strings.ToLower(word)]
	return r, ok
}

// Len returns the number of rows in the table, duplicates included, which is
// the denominator used to turn a rank into a relative position.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return c.size
}

func (c *Corpus) add(word string) {
	w := strings.ToLower(strings.TrimSpace(word))
	if w == "" {
		return
	}
	if _, dup := c.ranks[w]; !dup {
		c.ranks[w] = c.size
	}
	c.size++
}
