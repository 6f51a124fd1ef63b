// Package ranker scores documents with TF-IDF, an importance boost and a
// coverage adjustment for multi-term queries.
package ranker

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/index"
)

// DefaultImportantBoost multiplies the score of a term found in a heading,
// title or emphasis.
const DefaultImportantBoost = 2.5

type ScoredDoc struct {
	DocID int     `json:"doc_id"`
	Score float64 `json:"score"`
}

// IDF is log10(totalDocs/docFreq), or 0 when the term is absent.
func IDF(totalDocs, docFreq int) float64 {
	if docFreq <= 0 || totalDocs <= 0 {
		return 0
	}
	return math.Log10(float64(totalDocs) / float64(docFreq))
}

// TFScore is (1 + log10(tf)) * idf, or 0 for tf 0.
func TFScore(tf int, idf float64) float64 {
	if tf <= 0 {
		return 0
	}
	return (1 + math.Log10(float64(tf))) * idf
}

// Scorer accumulates per-document scores over the terms of one query.
type Scorer struct {
	boost   float64
	scores  map[int]float64
	matched map[int]int
}

func NewScorer(importantBoost float64) *Scorer {
	return &Scorer{
		boost:   importantBoost,
		scores:  make(map[int]float64),
		matched: make(map[int]int),
	}
}

// AddTerm scores every posting of one query term.
func (s *Scorer) AddTerm(idf float64, postings index.PostingList) {
	for docID, p := range postings {
		score := TFScore(p.Frequency, idf)
		if p.Important() {
			score *= s.boost
		}
		s.scores[docID] += score
		s.matched[docID]++
	}
}

// Adjust applies the coverage factor once all terms were added. A document
// matching every one of totalTerms is rewarded by 1 + 0.3*(matched-1); one
// matching only some is scaled by 0.1 + 0.4*matched/totalTerms.
func (s *Scorer) Adjust(totalTerms int) {
	if totalTerms <= 1 {
		return
	}
	for docID, m := range s.matched {
		if m >= totalTerms {
			s.scores[docID] *= 1 + 0.3*float64(m-1)
		} else {
			s.scores[docID] *= 0.1 + 0.4*float64(m)/float64(totalTerms)
		}
	}
}

// Matched is how many query terms docID matched.
func (s *Scorer) Matched(docID int) int {
	return s.matched[docID]
}

// Results returns every document with a positive score, unordered.
func (s *Scorer) Results() []ScoredDoc {
	out := make([]ScoredDoc, 0, len(s.scores))
	for docID, score := range s.scores {
		if score > 0 {
			out = append(out, ScoredDoc{DocID: docID, Score: score})
		}
	}
	return out
}
