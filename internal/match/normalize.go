package match

import (
	"strings"
	"unicode"
)

// NormalizeTitle prepares a catalog title for fuzzy search: camelCase and
// PascalCase runs are split into separate words, punctuation (colons
// included) becomes a word break, and the result is lower-cased and joined
// by single spaces.
//
//	NormalizeTitle("FedoraTips: Tricks") == "fedora tips tricks"
//	NormalizeTitle("XMLParser") == "xml parser"
func NormalizeTitle(title string) string {
	return string(toLowerRunes([]rune(strings.Join(titleWords(title), " "))))
}

// title is a catalog title prepared for repeated matching.
type title struct {
	id    string
	text  string
	lower []rune // normalized, searched
	cased []rune // same layout as lower, original case
}

func prepareTitle(id, text string) title {
	cased := []rune(strings.Join(titleWords(text), " "))
	return title{
		id:    id,
		text:  text,
		lower: toLowerRunes(cased),
		cased: cased,
	}
}

// titleWords splits s into words at non-word runes and at case transitions.
func titleWords(s string) []string {
	rs := []rune(s)
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	for i, r := range rs {
		if !isWordRune(r, cur) {
			flush()
			continue
		}
		if len(cur) > 0 && caseBoundary(rs, i) {
			flush()
		}
		cur = append(cur, r)
	}
	flush()
	return words
}

// isWordRune reports whether r continues the word cur. Apostrophes only
// count inside a word.
func isWordRune(r rune, cur []rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	if r == '\'' || r == '’' {
		return len(cur) > 0 && unicode.IsLetter(cur[len(cur)-1])
	}
	return false
}

// caseBoundary reports whether a new word starts at rs[i]: a lower-case rune
// followed by an upper-case one, or the last capital of an acronym that is
// followed by a lower-case rune.
func caseBoundary(rs []rune, i int) bool {
	prev, r := rs[i-1], rs[i]
	if unicode.IsLower(prev) && unicode.IsUpper(r) {
		return true
	}
	return unicode.IsUpper(prev) && unicode.IsUpper(r) &&
		i+1 < len(rs) && unicode.IsLower(rs[i+1])
}

// toLowerRunes lower-cases rune by rune so positions are preserved.
func toLowerRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = unicode.ToLower(r)
	}
	return out
}
