package dedup

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/tokenizer"
)

func newStemmer(t *testing.T) *tokenizer.Stemmer {
	t.Helper()
	s, err := tokenizer.NewStemmer("english")
	if err != nil {
		t.Fatalf("NewStemmer: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// letters spells n in base 26 so every generated word is purely alphabetic.
func letters(n int) string {
	b := []byte{'a', 'a', 'a'}
	for i := 2; i >= 0; i-- {
		b[i] = byte('a' + n%26)
		n /= 26
	}
	return "zq" + string(b)
}

func distinctDoc(seed int) string {
	words := make([]string, 20)
	for i := range words {
		words[i] = letters(seed*20 + i)
	}
	return strings.Join(words, " ")
}

const article = "The quick brown foxes jumped over the lazy sleeping dogs near the riverbank while curious children watched"

func TestJaccard(t *testing.T) {
	a := NewSignature([]string{"one", "two", "three", "four"})
	b := NewSignature([]string{"one", "two", "three", "five"})
	if got := Jaccard(a, a); got != 1 {
		t.Errorf("Jaccard(a, a) = %v", got)
	}
	// a = {123, 234}, b = {123, 235}
	if got := Jaccard(a, b); got < 0.333 || got > 0.334 {
		t.Errorf("Jaccard(a, b) = %v, want 1/3", got)
	}
	if got := Jaccard(Signature{}, Signature{}); got != 0 {
		t.Errorf("empty Jaccard = %v", got)
	}
	if len(NewSignature([]string{"too", "short"})) != 0 {
		t.Error("two terms should give an empty signature")
	}
}

func TestBackToBackIsDuplicate(t *testing.T) {
	f := New(newStemmer(t), 50, 0.9)
	if f.IsDuplicate(article) {
		t.Fatal("first sighting reported as duplicate")
	}
	if !f.IsDuplicate(article) {
		t.Fatal("identical content not detected")
	}
	if f.Len() != 1 {
		t.Errorf("duplicate was retained: Len = %d", f.Len())
	}
}

func TestWindowEviction(t *testing.T) {
	f := New(newStemmer(t), 50, 0.9)
	f.IsDuplicate(article)
	for i := 0; i < 50; i++ {
		if f.IsDuplicate(distinctDoc(i)) {
			t.Fatalf("distinct document %d reported as duplicate", i)
		}
	}
	if f.Len() != 50 {
		t.Fatalf("Len = %d, want 50", f.Len())
	}
	if f.IsDuplicate(article) {
		t.Fatal("content evicted from the window was still detected")
	}
}

func TestShortDocumentsNeverDuplicate(t *testing.T) {
	f := New(newStemmer(t), 5, 0.9)
	if f.IsDuplicate("hello world") || f.IsDuplicate("hello world") {
		t.Error("documents without a 3-gram cannot be duplicates")
	}
	if f.Len() != 0 {
		t.Errorf("empty signatures retained: %d", f.Len())
	}
}

func TestConcurrentIdenticalDocuments(t *testing.T) {
	f := New(newStemmer(t), 50, 0.9)
	var fresh atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !f.IsDuplicate(article) {
				fresh.Add(1)
			}
		}()
	}
	wg.Wait()
	if fresh.Load() != 1 {
		t.Errorf("%d goroutines saw the document as new, want 1", fresh.Load())
	}
}
