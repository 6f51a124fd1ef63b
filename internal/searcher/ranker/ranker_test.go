package ranker

import (
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/index"
)

const eps = 1e-9

func approx(a, b float64) bool { return math.Abs(a-b) < eps }

func TestIDF(t *testing.T) {
	if got := IDF(3, 2); !approx(got, math.Log10(1.5)) {
		t.Errorf("IDF(3,2) = %v", got)
	}
	if got := IDF(3, 0); got != 0 {
		t.Errorf("IDF for absent term = %v, want 0", got)
	}
}

func TestTFScore(t *testing.T) {
	if got := TFScore(10, 2); !approx(got, 4) {
		t.Errorf("TFScore(10,2) = %v, want 4", got)
	}
	if got := TFScore(0, 2); got != 0 {
		t.Errorf("TFScore(0,2) = %v, want 0", got)
	}
}

func TestImportantBoost(t *testing.T) {
	s := NewScorer(DefaultImportantBoost)
	s.AddTerm(1, index.PostingList{
		1: {Frequency: 1},
		2: {Frequency: 1, Fields: []string{index.FieldImportant}},
	})
	scores := map[int]float64{}
	for _, d := range s.Results() {
		scores[d.DocID] = d.Score
	}
	if !approx(scores[1], 1) || !approx(scores[2], 2.5) {
		t.Errorf("scores = %v", scores)
	}
}

func TestAdjust(t *testing.T) {
	s := NewScorer(DefaultImportantBoost)
	s.AddTerm(1, index.PostingList{1: {Frequency: 1}, 2: {Frequency: 1}})
	s.AddTerm(1, index.PostingList{1: {Frequency: 1}})
	s.Adjust(2)

	scores := map[int]float64{}
	for _, d := range s.Results() {
		scores[d.DocID] = d.Score
	}
	// doc 1 matched both terms: 2 * 1.3
	if !approx(scores[1], 2.6) {
		t.Errorf("full coverage score = %v, want 2.6", scores[1])
	}
	// doc 2 matched one of two: 1 * (0.1 + 0.4*0.5)
	if !approx(scores[2], 0.3) {
		t.Errorf("partial coverage score = %v, want 0.3", scores[2])
	}
	if s.Matched(1) != 2 || s.Matched(2) != 1 {
		t.Errorf("matched = %d, %d", s.Matched(1), s.Matched(2))
	}
}

func TestSingleTermNotAdjusted(t *testing.T) {
	s := NewScorer(1)
	s.AddTerm(2, index.PostingList{5: {Frequency: 1}})
	s.Adjust(1)
	if r := s.Results(); len(r) != 1 || !approx(r[0].Score, 2) {
		t.Errorf("results = %+v", r)
	}
}

func TestZeroScoresDropped(t *testing.T) {
	s := NewScorer(1)
	s.AddTerm(0, index.PostingList{1: {Frequency: 3}})
	if r := s.Results(); len(r) != 0 {
		t.Errorf("results = %+v, want none", r)
	}
}

func BenchmarkScorerMultiTerm(b *testing.B) {
	lists := make([]index.PostingList, 3)
	for i := range lists {
		lists[i] = index.PostingList{}
		for doc := 1; doc <= 2000; doc++ {
			if doc%(i+2) == 0 {
				lists[i][doc] = index.Posting{Frequency: doc%7 + 1}
			}
		}
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s := NewScorer(DefaultImportantBoost)
		for _, l := range lists {
			s.AddTerm(0.5, l)
		}
		s.Adjust(len(lists))
		s.Results()
	}
}
