// Package doctable assigns document ids. Each canonical URL gets exactly one
// id; ids start at 1, grow by one and are never reused.
package doctable

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/corpus"
)

// FirstID is the id given to the first document.
const FirstID = 1

// Table is a bijective URL to docID mapping, safe for concurrent use.
type Table struct {
	mu    sync.RWMutex
	byURL map[string]int
	byID  map[int]string
	next  int
}

func New() *Table {
	return &Table{
		byURL: make(map[string]int),
		byID:  make(map[int]string),
		next:  FirstID,
	}
}

// AddEntry returns the id of url, minting one if the canonical form of url
// has not been seen. created reports whether a new id was minted.
func (t *Table) AddEntry(url string) (id int, created bool) {
	key := corpus.Canonical(url)
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.byURL[key]; ok {
		return id, false
	}
	id = t.next
	t.next++
	t.byURL[key] = id
	t.byID[id] = key
	return id, true
}

// ID looks up the id of url without minting one.
func (t *Table) ID(url string) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byURL[corpus.Canonical(url)]
	return id, ok
}

// URL returns the canonical URL of id.
func (t *Table) URL(id int) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	u, ok := t.byID[id]
	return u, ok
}

// Len is the number of ids assigned.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

// Snapshot returns a copy of the id to URL mapping.
func (t *Table) Snapshot() map[int]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[int]string, len(t.byID))
	for id, u := range t.byID {
		out[id] = u
	}
	return out
}

// IDs returns all assigned ids in ascending order.
func (t *Table) IDs() []int {
	t.mu.RLock()
	ids := make([]int, 0, len(t.byID))
	for id := range t.byID {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	sort.Ints(ids)
	return ids
}

// Save writes the table as a JSON object of id to URL. The file is replaced
// atomically.
func (t *Table) Save(path string) error {
	data, err := json.Marshal(t.Snapshot())
	if err != nil {
		return fmt.Errorf("marshaling url table: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating url table directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing url table: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming url table: %w", err)
	}
	return nil
}

// Load reads a table written by Save. The next id continues after the
// largest stored id.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading url table: %w", err)
	}
	var byID map[int]string
	if err := json.Unmarshal(data, &byID); err != nil {
		return nil, fmt.Errorf("parsing url table %s: %w", path, err)
	}
	t := New()
	for id, u := range byID {
		if prev, dup := t.byURL[u]; dup {
			return nil, fmt.Errorf("url table %s: %q has ids %d and %d", path, u, prev, id)
		}
		t.byID[id] = u
		t.byURL[u] = id
		if id >= t.next {
			t.next = id + 1
		}
	}
	return t, nil
}

// LoadOrNew loads path if it exists and returns an empty table otherwise.
func LoadOrNew(path string) (*Table, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return New(), nil
	}
	return Load(path)
}
