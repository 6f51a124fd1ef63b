// Package parser turns a raw query string into the stemmed terms the index
// is keyed by.
package parser

import (
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/tokenizer"
)

type Query struct {
	Raw string
	// Terms are the distinct stemmed terms in first-seen order.
	Terms []string
	// Words are the distinct unstemmed words, used for suggestions.
	Words []string
}

// Parse tokenizes raw with the same rules as the build side, so a query
// word always lands in the bucket its indexed form was written to.
func Parse(raw string, stemmer *tokenizer.Stemmer) *Query {
	q := &Query{Raw: raw}
	seenTerm := make(map[string]struct{})
	seenWord := make(map[string]struct{})
	for _, word := range tokenizer.Tokenize(raw) {
		if _, ok := seenWord[word]; !ok {
			seenWord[word] = struct{}{}
			q.Words = append(q.Words, word)
		}
		term := stemmer.Stem(word)
		if _, ok := seenTerm[term]; ok {
			continue
		}
		seenTerm[term] = struct{}{}
		q.Terms = append(q.Terms, term)
	}
	return q
}

// Empty reports whether the query has nothing to look up.
func (q *Query) Empty() bool {
	return len(q.Terms) == 0
}
