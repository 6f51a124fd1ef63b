package analyzer

import (
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/tokenizer"
)

// Stats are the run-wide aggregates used for the end-of-build report.
type Stats struct {
	mu         sync.Mutex
	wordFreq   map[string]int
	pages      map[string]struct{}
	indexed    int
	duplicates int
	failed     int
	tokens     int
}

func NewStats() *Stats {
	return &Stats{
		wordFreq: make(map[string]int),
		pages:    make(map[string]struct{}),
	}
}

func (s *Stats) addPage(url string) {
	s.mu.Lock()
	s.pages[url] = struct{}{}
	s.mu.Unlock()
}

func (s *Stats) addIndexed(tokens int, freq map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexed++
	s.tokens += tokens
	tokenizer.UnionFrequencies(s.wordFreq, freq)
}

func (s *Stats) addDuplicate() {
	s.mu.Lock()
	s.duplicates++
	s.mu.Unlock()
}

// AddFailure counts a document that could not be processed.
func (s *Stats) AddFailure() {
	s.mu.Lock()
	s.failed++
	s.mu.Unlock()
}

// TermCount is a term with its corpus-wide frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Documents    int         `json:"documents"`
	UniquePages  int         `json:"uniquePages"`
	UniqueTokens int         `json:"uniqueTokens"`
	TotalTokens  int         `json:"totalTokens"`
	Duplicates   int         `json:"duplicates"`
	Failed       int         `json:"failed"`
	TopTerms     []TermCount `json:"topTerms"`
}

// Snapshot copies the counters and the topN most frequent terms, ties
// broken alphabetically.
func (s *Stats) Snapshot(topN int) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	top := make([]TermCount, 0, len(s.wordFreq))
	for term, n := range s.wordFreq {
		top = append(top, TermCount{Term: term, Count: n})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Term < top[j].Term
	})
	if topN >= 0 && len(top) > topN {
		top = top[:topN]
	}
	return Snapshot{
		Documents:    s.indexed,
		UniquePages:  len(s.pages),
		UniqueTokens: len(s.wordFreq),
		TotalTokens:  s.tokens,
		Duplicates:   s.duplicates,
		Failed:       s.failed,
		TopTerms:     top,
	}
}

// Terms returns every distinct term seen, sorted. The searcher uses it as
// the suggestion vocabulary.
func (s *Stats) Terms() []string {
	s.mu.Lock()
	terms := make([]string, 0, len(s.wordFreq))
	for term := range s.wordFreq {
		terms = append(terms, term)
	}
	s.mu.Unlock()
	sort.Strings(terms)
	return terms
}
