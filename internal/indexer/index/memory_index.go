package index

import "sync"

// MemoryIndex is an in-memory inverted index partitioned by shard bucket.
// It is the current batch of the sharded builder and the whole index of the
// in-memory builder. All methods are safe for concurrent use.
type MemoryIndex struct {
	mu       sync.RWMutex
	shards   map[string]Shard
	docs     map[int]struct{}
	postings int
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		shards: make(map[string]Shard),
		docs:   make(map[int]struct{}),
	}
}

// AddPosting merges one posting into the index.
func (m *MemoryIndex) AddPosting(term string, docID int, p Posting) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addLocked(term, docID, p)
}

// AddDocument merges every posting of one document under a single lock and
// returns the index's posting count afterwards.
func (m *MemoryIndex) AddDocument(docID int, postings map[string]Posting) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for term, p := range postings {
		m.addLocked(term, docID, p)
	}
	return m.postings
}

func (m *MemoryIndex) addLocked(term string, docID int, p Posting) {
	key := KeyFor(term)
	s, ok := m.shards[key]
	if !ok {
		s = make(Shard)
		m.shards[key] = s
	}
	if list, ok := s[term]; !ok || !hasDoc(list, docID) {
		m.postings++
	}
	s.Add(term, docID, p)
	m.docs[docID] = struct{}{}
}

func hasDoc(list PostingList, docID int) bool {
	_, ok := list[docID]
	return ok
}

// Search returns a copy of the posting list of term.
func (m *MemoryIndex) Search(term string) PostingList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list, ok := m.shards[KeyFor(term)][term]
	if !ok {
		return nil
	}
	out := make(PostingList, len(list))
	for docID, p := range list {
		out[docID] = p
	}
	return out
}

// Shard returns the live shard for key. Callers must not use it while
// writers are active.
func (m *MemoryIndex) Shard(key string) Shard {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shards[key]
}

// Keys returns the buckets holding at least one term.
func (m *MemoryIndex) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.shards))
	for key, s := range m.shards {
		if len(s) > 0 {
			keys = append(keys, key)
		}
	}
	return keys
}

// Swap hands the current contents to the caller and leaves the index empty.
func (m *MemoryIndex) Swap() map[string]Shard {
	m.mu.Lock()
	defer m.mu.Unlock()
	taken := m.shards
	m.shards = make(map[string]Shard)
	m.docs = make(map[int]struct{})
	m.postings = 0
	return taken
}

// Size is the number of (term, docID) postings held.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.postings
}

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *MemoryIndex) Reset() {
	m.Swap()
}
