// Package dedup detects near-duplicate documents by comparing the Jaccard
// similarity of hashed 3-gram sets against a bounded window of recently
// accepted documents.
package dedup

import (
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/tokenizer"
)

// ShingleSize is the number of consecutive terms in one n-gram.
const ShingleSize = 3

// Signature is the set of hashed 3-grams of one document.
type Signature map[uint64]struct{}

// Filter keeps the signatures of the last Capacity accepted documents.
type Filter struct {
	stemmer   *tokenizer.Stemmer
	capacity  int
	threshold float64
	logger    *slog.Logger

	mu     sync.Mutex
	window []Signature
	head   int
	size   int
}

// New creates a Filter. A document scoring at or above threshold against
// any retained signature is a duplicate.
func New(stemmer *tokenizer.Stemmer, capacity int, threshold float64) *Filter {
	if capacity <= 0 {
		capacity = 50
	}
	return &Filter{
		stemmer:   stemmer,
		capacity:  capacity,
		threshold: threshold,
		logger:    slog.Default().With("component", "dedup"),
		window:    make([]Signature, capacity),
	}
}

// IsDuplicate tokenizes and stems text, then calls IsDuplicateTerms.
func (f *Filter) IsDuplicate(text string) bool {
	return f.IsDuplicateTerms(f.stemmer.Terms(text))
}

// IsDuplicateTerms reports whether the document made of terms is a near
// duplicate of a retained one. If it is not, its signature is retained,
// evicting the oldest once the window is full. The check and the insert
// happen under one lock.
func (f *Filter) IsDuplicateTerms(terms []string) bool {
	sig := NewSignature(terms)
	if len(sig) == 0 {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < f.size; i++ {
		if score := Jaccard(sig, f.window[i]); score >= f.threshold {
			f.logger.Debug("near duplicate", "score", score, "shingles", len(sig))
			return true
		}
	}
	f.window[f.head] = sig
	f.head = (f.head + 1) % f.capacity
	if f.size < f.capacity {
		f.size++
	}
	return false
}

// Len is the number of retained signatures.
func (f *Filter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

// NewSignature hashes every run of ShingleSize consecutive terms.
// Documents shorter than ShingleSize terms have an empty signature.
func NewSignature(terms []string) Signature {
	if len(terms) < ShingleSize {
		return Signature{}
	}
	sig := make(Signature, len(terms)-ShingleSize+1)
	d := xxhash.New()
	for i := 0; i+ShingleSize <= len(terms); i++ {
		d.Reset()
		for j := 0; j < ShingleSize; j++ {
			d.WriteString(terms[i+j])
			d.Write([]byte{0})
		}
		sig[d.Sum64()] = struct{}{}
	}
	return sig
}

// Jaccard is |a∩b| / (|a|+|b|-|a∩b|), or 0 when both sets are empty.
func Jaccard(a, b Signature) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	inter := 0
	for h := range a {
		if _, ok := b[h]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
