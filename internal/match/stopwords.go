package match

import (
	"strings"
	"unicode"
)

// StopWords is an immutable set of filler words. Lookups ignore case and
// surrounding punctuation.
type StopWords struct {
	set map[string]struct{}
}

// NewStopWords returns a [StopWords] set holding words.
func NewStopWords(words ...string) StopWords {
	s := StopWords{set: make(map[string]struct{}, len(words))}
	for _, w := range words {
		if k := stopKey(w); k != "" {
			s.set[k] = struct{}{}
		}
	}
	return s
}

// DefaultStopWords returns the English stop-word list extended with filler
// words that are frequent in casual conversation.
func DefaultStopWords() StopWords {
	words := make([]string, 0, len(englishStopWords)+len(conversationalFillers))
	words = append(words, englishStopWords...)
	words = append(words, conversationalFillers...)
	return NewStopWords(words...)
}

// Contains reports whether word is a stop word.
func (s StopWords) Contains(word string) bool {
	_, ok := s.set[stopKey(word)]
	return ok
}

// Len returns the number of distinct words in the set.
func (s StopWords) Len() int { return len(s.set) }

// Ratio returns the share of words that are stop words. An empty slice has
// ratio 0.
func (s StopWords) Ratio(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	n := 0
	for _, w := range words {
		if s.Contains(w) {
			n++
		}
	}
	return float64(n) / float64(len(words))
}

func stopKey(w string) string {
	w = strings.TrimFunc(w, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	return strings.ToLower(w)
}

var englishStopWords = []string{
	"i", "me", "my", "myself", "we", "our", "ours", "ourselves", "you",
	"you're", "you've", "you'll", "you'd", "your", "yours", "yourself",
	"yourselves", "he", "him", "his", "himself", "she", "she's", "her", "hers",
	"herself", "it", "it's", "its", "itself", "they", "them", "their",
	"theirs", "themselves", "what", "which", "who", "whom", "this", "that",
	"that'll", "these", "those", "am", "is", "are", "was", "were", "be",
	"been", "being", "have", "has", "had", "having", "do", "does", "did",
	"doing", "a", "an", "the", "and", "but", "if", "or", "because", "as",
	"until", "while", "of", "at", "by", "for", "with", "about", "against",
	"between", "into", "through", "during", "before", "after", "above",
	"below", "to", "from", "up", "down", "in", "out", "on", "off", "over",
	"under", "again", "further", "then", "once", "here", "there", "when",
	"where", "why", "how", "all", "any", "both", "each", "few", "more",
	"most", "other", "some", "such", "no", "nor", "not", "only", "own",
	"same", "so", "than", "too", "very", "s", "t", "can", "will", "just",
	"don", "don't", "should", "should've", "now", "d", "ll", "m", "o", "re",
	"ve", "y", "ain", "aren", "aren't", "couldn", "couldn't", "didn",
	"didn't", "doesn", "doesn't", "hadn", "hadn't", "hasn", "hasn't", "haven",
	"haven't", "isn", "isn't", "ma", "mightn", "mightn't", "mustn", "mustn't",
	"needn", "needn't", "shan", "shan't", "shouldn", "shouldn't", "wasn",
	"wasn't", "weren", "weren't", "won", "won't", "wouldn", "wouldn't",
}

var conversationalFillers = []string{
	"mit", "media", "yeah", "we're", "thing", "going", "hey", "ok", "like",
	"right", "one", "i'm", "pretty", "think", "get",
}
