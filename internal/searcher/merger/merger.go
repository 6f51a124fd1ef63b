// Package merger selects the best scored documents.
package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/searcher/ranker"
)

// TopK returns the k highest scoring documents, best first. Equal scores
// are ordered by ascending docID.
func TopK(docs []ranker.ScoredDoc, k int) []ranker.ScoredDoc {
	if k <= 0 {
		return []ranker.ScoredDoc{}
	}
	h := make(scoredDocHeap, 0, k+1)
	for _, doc := range docs {
		heap.Push(&h, doc)
		if h.Len() > k {
			heap.Pop(&h)
		}
	}
	result := make([]ranker.ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&h).(ranker.ScoredDoc)
	}
	return result
}

// scoredDocHeap is a min-heap: the root is the weakest result kept.
type scoredDocHeap []ranker.ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].DocID > h[j].DocID
}

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x any) {
	*h = append(*h, x.(ranker.ScoredDoc))
}

func (h *scoredDocHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
