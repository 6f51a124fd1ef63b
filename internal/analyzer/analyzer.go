// Package analyzer runs the per-document step of the build: extraction,
// near-duplicate check, docID assignment, posting construction and link
// recording. Every collaborator guards its own state, so one Analyzer is
// shared by all workers.
package analyzer

import (
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/dedup"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/extract"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/doctable"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/linkgraph"
	apperrors "github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/errors"
)

// Deps are the shared collaborators. Dedup may be nil to disable the
// near-duplicate filter.
type Deps struct {
	Table     *doctable.Table
	Builder   indexer.Builder
	Links     *linkgraph.Recorder
	Dedup     *dedup.Filter
	Stemmer   *tokenizer.Stemmer
	Extractor *extract.Extractor
	Stats     *Stats
}

type Analyzer struct {
	Deps
	storePositions bool
	logger         *slog.Logger
}

// Result describes what happened to one document.
type Result struct {
	// DocID is 0 for duplicates.
	DocID     int
	Duplicate bool
	// Links are the canonical absolute URLs the page links to.
	Links  []string
	Tokens int
}

func New(deps Deps, storePositions bool) *Analyzer {
	if deps.Stats == nil {
		deps.Stats = NewStats()
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.New()
	}
	return &Analyzer{
		Deps:           deps,
		storePositions: storePositions,
		logger:         slog.Default().With("component", "analyzer"),
	}
}

// Analyze processes the page at url. Links are recorded even for a
// near-duplicate, which receives no docID and contributes no postings.
func (a *Analyzer) Analyze(url, content string) (Result, error) {
	page, err := a.Extractor.Extract(content)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w: %v", url, apperrors.ErrMalformedDocument, err)
	}
	canonical := corpus.Canonical(url)
	a.Stats.addPage(canonical)

	links := resolveLinks(canonical, page.Links)
	a.Links.UpdateLinks(canonical, links)

	tokens := a.Stemmer.Tokens(page.Text)
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}

	if a.Dedup != nil && a.Dedup.IsDuplicateTerms(terms) {
		a.Stats.addDuplicate()
		a.logger.Debug("near-duplicate skipped", "url", canonical)
		return Result{Duplicate: true, Links: links, Tokens: len(tokens)}, nil
	}

	docID, _ := a.Table.AddEntry(canonical)
	postings, freq := a.buildPostings(tokens, page.Important)
	if err := a.Builder.AddDocument(docID, postings); err != nil {
		return Result{}, fmt.Errorf("indexing doc %d: %w", docID, err)
	}
	a.Stats.addIndexed(len(tokens), freq)
	return Result{DocID: docID, Links: links, Tokens: len(tokens)}, nil
}

func (a *Analyzer) buildPostings(tokens []tokenizer.Token, important []string) (map[string]index.Posting, map[string]int) {
	importantTerms := make(map[string]struct{})
	for _, text := range important {
		for _, term := range a.Stemmer.Terms(text) {
			importantTerms[term] = struct{}{}
		}
	}

	freq := make(map[string]int, len(tokens)/2)
	postings := make(map[string]index.Posting, len(tokens)/2)
	for _, tok := range tokens {
		freq[tok.Term]++
		p := postings[tok.Term]
		p.Frequency++
		if a.storePositions {
			p.Positions = append(p.Positions, tok.Position)
		}
		postings[tok.Term] = p
	}
	for term, p := range postings {
		if _, ok := importantTerms[term]; ok {
			p.Fields = []string{index.FieldImportant}
			postings[term] = p
		}
	}
	return postings, freq
}

// resolveLinks resolves hrefs against base and drops duplicates, keeping
// first-seen order.
func resolveLinks(base string, hrefs []string) []string {
	seen := make(map[string]struct{}, len(hrefs))
	out := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		abs, ok := corpus.Resolve(base, href)
		if !ok {
			continue
		}
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}
	return out
}
