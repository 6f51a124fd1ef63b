// Package pagerank runs a fixed number of synchronous power iterations over
// a link graph. Pages without outgoing links pass no rank on; their mass is
// not redistributed.
package pagerank

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

const (
	DefaultDamping    = 0.85
	DefaultIterations = 5
)

// Ranks maps a URL to its rank.
type Ranks map[string]float64

// Compute ranks every page of graph, which maps a source URL to its
// outgoing URLs. The page set is every source plus every target. All ranks
// start at 1 and each iteration sets rank[p] = (1-d) + d * sum(rank[s] /
// outDegree(s)) over the sources s linking to p.
func Compute(graph map[string][]string, damping float64, iterations int) Ranks {
	ids := make(map[string]int)
	var pages []string
	node := func(url string) int {
		if id, ok := ids[url]; ok {
			return id
		}
		id := len(pages)
		ids[url] = id
		pages = append(pages, url)
		return id
	}

	sources := make([]string, 0, len(graph))
	for source := range graph {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	// inbound[p] lists the sources linking to p; duplicates in a source's
	// list count once.
	var inbound [][]int
	outDegree := make(map[int]int)
	for _, source := range sources {
		s := node(source)
		seen := make(map[int]struct{}, len(graph[source]))
		for _, target := range graph[source] {
			p := node(target)
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			for len(inbound) <= p {
				inbound = append(inbound, nil)
			}
			inbound[p] = append(inbound[p], s)
		}
		outDegree[s] = len(seen)
	}
	for len(inbound) < len(pages) {
		inbound = append(inbound, nil)
	}

	rank := make([]float64, len(pages))
	for i := range rank {
		rank[i] = 1.0
	}
	next := make([]float64, len(pages))
	for iter := 0; iter < iterations; iter++ {
		for p := range pages {
			sum := 0.0
			for _, s := range inbound[p] {
				sum += rank[s] / float64(outDegree[s])
			}
			next[p] = (1 - damping) + damping*sum
		}
		rank, next = next, rank
	}

	out := make(Ranks, len(pages))
	for i, url := range pages {
		out[url] = rank[i]
	}
	slog.Default().With("component", "pagerank").Info("pagerank computed",
		"pages", len(pages),
		"iterations", iterations,
		"damping", damping,
	)
	return out
}

// Entry is one ranked page.
type Entry struct {
	URL  string  `json:"url"`
	Rank float64 `json:"rank"`
}

// Top returns the n highest ranked pages, ties by URL.
func (r Ranks) Top(n int) []Entry {
	entries := make([]Entry, 0, len(r))
	for url, rank := range r {
		entries = append(entries, Entry{URL: url, Rank: rank})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Rank != entries[j].Rank {
			return entries[i].Rank > entries[j].Rank
		}
		return entries[i].URL < entries[j].URL
	})
	if n >= 0 && n < len(entries) {
		entries = entries[:n]
	}
	return entries
}

// Save writes ranks as a JSON object, replacing path atomically.
func (r Ranks) Save(path string) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling ranks: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating rank directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing ranks: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load reads ranks written by Save.
func Load(path string) (Ranks, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ranks: %w", err)
	}
	var r Ranks
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing ranks %s: %w", path, err)
	}
	return r, nil
}
