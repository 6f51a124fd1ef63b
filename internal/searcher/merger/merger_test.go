package merger

import (
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/searcher/ranker"
)

func ids(docs []ranker.ScoredDoc) []int {
	out := make([]int, len(docs))
	for i, d := range docs {
		out[i] = d.DocID
	}
	return out
}

func TestTopK(t *testing.T) {
	docs := []ranker.ScoredDoc{
		{DocID: 1, Score: 0.5},
		{DocID: 2, Score: 3},
		{DocID: 3, Score: 1},
		{DocID: 4, Score: 2},
		{DocID: 5, Score: 0.1},
		{DocID: 6, Score: 4},
	}
	if got := ids(TopK(docs, 3)); !reflect.DeepEqual(got, []int{6, 2, 4}) {
		t.Errorf("TopK = %v", got)
	}
	if got := TopK(docs, 10); len(got) != 6 {
		t.Errorf("len = %d, want all 6", len(got))
	}
	if got := TopK(docs, 0); len(got) != 0 {
		t.Errorf("k=0 returned %v", got)
	}
}

func TestTopKTiesByDocID(t *testing.T) {
	docs := []ranker.ScoredDoc{
		{DocID: 9, Score: 1},
		{DocID: 3, Score: 1},
		{DocID: 7, Score: 1},
		{DocID: 1, Score: 1},
	}
	if got := ids(TopK(docs, 2)); !reflect.DeepEqual(got, []int{1, 3}) {
		t.Errorf("TopK = %v, want [1 3]", got)
	}
}
