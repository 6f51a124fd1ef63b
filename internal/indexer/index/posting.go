// Package index holds the inverted-index data model shared by the builders,
// the shard file format and the query engine.
package index

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/shard"
)

// FieldImportant marks a term seen inside a heading, title or emphasis tag.
const FieldImportant = "important"

// SchemaVersion is the version of the Posting encoding stored in shard files.
const SchemaVersion = 1

// Posting is the record for one (term, document) pair.
type Posting struct {
	Frequency int      `json:"f"`
	Fields    []string `json:"fl,omitempty"`
	Positions []int    `json:"p,omitempty"`
}

// Important reports whether the term appeared in an important field.
func (p Posting) Important() bool {
	for _, f := range p.Fields {
		if f == FieldImportant {
			return true
		}
	}
	return false
}

// Merge folds other into p: frequencies add, fields and positions are
// unioned and kept sorted.
func (p *Posting) Merge(other Posting) {
	p.Frequency += other.Frequency
	p.Fields = unionStrings(p.Fields, other.Fields)
	p.Positions = unionInts(p.Positions, other.Positions)
}

// PostingList maps docID to the posting of one term.
type PostingList map[int]Posting

// Shard maps term to its posting list. All terms of a shard share a bucket.
type Shard map[string]PostingList

// TermEntry pairs a term with its postings, used for ordered writes.
type TermEntry struct {
	Term     string
	Postings PostingList
}

// Add merges p into the (term, docID) slot.
func (s Shard) Add(term string, docID int, p Posting) {
	list, ok := s[term]
	if !ok {
		list = make(PostingList)
		s[term] = list
	}
	if existing, ok := list[docID]; ok {
		existing.Merge(p)
		list[docID] = existing
		return
	}
	list[docID] = Posting{
		Frequency: p.Frequency,
		Fields:    unionStrings(nil, p.Fields),
		Positions: unionInts(nil, p.Positions),
	}
}

// MergeFrom folds every posting of other into s.
func (s Shard) MergeFrom(other Shard) {
	for term, list := range other {
		for docID, p := range list {
			s.Add(term, docID, p)
		}
	}
}

// Terms returns the shard's terms in sorted order.
func (s Shard) Terms() []string {
	terms := make([]string, 0, len(s))
	for term := range s {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// Entries returns the shard's terms with their postings in sorted term order.
func (s Shard) Entries() []TermEntry {
	terms := s.Terms()
	entries := make([]TermEntry, len(terms))
	for i, term := range terms {
		entries[i] = TermEntry{Term: term, Postings: s[term]}
	}
	return entries
}

// PostingCount is the number of (term, docID) pairs in the shard.
func (s Shard) PostingCount() int {
	n := 0
	for _, list := range s {
		n += len(list)
	}
	return n
}

// KeyFor is the shard bucket of term.
func KeyFor(term string) string {
	return shard.KeyFor(term)
}

func unionStrings(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	set := make(map[string]struct{}, len(a)+len(b))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		set[s] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func unionInts(a, b []int) []int {
	if len(b) == 0 {
		return a
	}
	set := make(map[int]struct{}, len(a)+len(b))
	for _, n := range a {
		set[n] = struct{}{}
	}
	for _, n := range b {
		set[n] = struct{}{}
	}
	out := make([]int, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
