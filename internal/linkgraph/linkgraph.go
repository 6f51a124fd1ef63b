// Package linkgraph records the outgoing links of every processed page for
// the PageRank computation.
package linkgraph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Recorder maps a source URL to the set of URLs it links to. Targets are
// kept whether or not they are ever crawled.
type Recorder struct {
	mu    sync.Mutex
	links map[string]map[string]struct{}
}

func NewRecorder() *Recorder {
	return &Recorder{links: make(map[string]map[string]struct{})}
}

// UpdateLinks unions outgoing into the link set of source. A source with no
// links is still recorded as a page.
func (r *Recorder) UpdateLinks(source string, outgoing []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.links[source]
	if !ok {
		set = make(map[string]struct{}, len(outgoing))
		r.links[source] = set
	}
	for _, target := range outgoing {
		set[target] = struct{}{}
	}
}

// Snapshot returns source to sorted targets.
func (r *Recorder) Snapshot() map[string][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]string, len(r.links))
	for source, set := range r.links {
		targets := make([]string, 0, len(set))
		for target := range set {
			targets = append(targets, target)
		}
		sort.Strings(targets)
		out[source] = targets
	}
	return out
}

// Len is the number of recorded sources.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.links)
}

// EdgeCount is the number of distinct (source, target) pairs.
func (r *Recorder) EdgeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, set := range r.links {
		n += len(set)
	}
	return n
}

// Save writes the graph as JSON, replacing path atomically.
func (r *Recorder) Save(path string) error {
	data, err := json.Marshal(r.Snapshot())
	if err != nil {
		return fmt.Errorf("marshaling link graph: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating link graph directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing link graph: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load reads a graph written by Save.
func Load(path string) (*Recorder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading link graph: %w", err)
	}
	var graph map[string][]string
	if err := json.Unmarshal(data, &graph); err != nil {
		return nil, fmt.Errorf("parsing link graph %s: %w", path, err)
	}
	r := NewRecorder()
	for source, targets := range graph {
		r.UpdateLinks(source, targets)
	}
	return r, nil
}
