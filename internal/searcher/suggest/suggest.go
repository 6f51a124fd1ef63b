// Package suggest proposes indexed terms close to the words of a query
// that found nothing.
package suggest

import (
	"github.com/hbollon/go-edlib"
)

// DefaultMinSimilarity is the lowest Levenshtein similarity accepted.
const DefaultMinSimilarity float32 = 0.6

type Suggester struct {
	minSimilarity float32
}

func New(minSimilarity float32) *Suggester {
	if minSimilarity <= 0 || minSimilarity > 1 {
		minSimilarity = DefaultMinSimilarity
	}
	return &Suggester{minSimilarity: minSimilarity}
}

// Suggest returns, for each word, the closest term of vocabulary. Words
// already in the vocabulary or with no close term are skipped, and each
// suggestion appears once.
func (s *Suggester) Suggest(words, vocabulary []string) []string {
	if len(vocabulary) == 0 {
		return nil
	}
	known := make(map[string]struct{}, len(vocabulary))
	for _, term := range vocabulary {
		known[term] = struct{}{}
	}
	seen := make(map[string]struct{})
	var out []string
	for _, word := range words {
		if _, ok := known[word]; ok {
			continue
		}
		// Only the hamming algorithm or an unknown algorithm can error.
		match, _ := edlib.FuzzySearchThreshold(word, vocabulary, s.minSimilarity, edlib.Levenshtein)
		if match == "" {
			continue
		}
		if _, dup := seen[match]; dup {
			continue
		}
		seen[match] = struct{}{}
		out = append(out, match)
	}
	return out
}
