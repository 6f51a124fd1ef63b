package analyzer

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/dedup"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/doctable"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/linkgraph"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/config"
)

const page = `<html><head><title>Dog Care</title></head><body>
<h1>Dogs</h1>
<p>dog dog runs</p>
<a href="/b#x">b</a>
<a href="https://other.example/?utm_source=x">o</a>
<a href="/b">again</a>
<a href="mailto:someone@example.com">mail</a>
<script>var hidden = "dogfood";</script>
</body></html>`

type fixture struct {
	analyzer *Analyzer
	builder  *indexer.MemoryBuilder
	table    *doctable.Table
	links    *linkgraph.Recorder
}

func newFixture(t *testing.T, withDedup bool, storePositions bool) fixture {
	t.Helper()
	stemmer, err := tokenizer.NewStemmer("english")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { stemmer.Close() })
	b, err := indexer.NewMemoryBuilder(config.IndexerConfig{DataDir: filepath.Join(t.TempDir(), "index")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	deps := Deps{
		Table:   doctable.New(),
		Builder: b,
		Links:   linkgraph.NewRecorder(),
		Stemmer: stemmer,
	}
	if withDedup {
		deps.Dedup = dedup.New(stemmer, 50, 0.9)
	}
	return fixture{
		analyzer: New(deps, storePositions),
		builder:  b,
		table:    deps.Table,
		links:    deps.Links,
	}
}

func TestAnalyzeBuildsPostings(t *testing.T) {
	f := newFixture(t, true, true)
	res, err := f.analyzer.Analyze("https://site.example/a#top", page)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Duplicate || res.DocID != 1 {
		t.Fatalf("result = %+v", res)
	}

	dog := f.builder.Search("dog")[1]
	if dog.Frequency != 4 {
		t.Errorf("dog frequency = %d, want 4 (title, heading, twice in body)", dog.Frequency)
	}
	if !dog.Important() {
		t.Error("dog should be important")
	}
	if len(dog.Positions) != 4 {
		t.Errorf("dog positions = %v", dog.Positions)
	}
	if run := f.builder.Search("run")[1]; run.Important() || run.Frequency != 1 {
		t.Errorf("run posting = %+v", run)
	}
	if f.builder.Search("dogfood") != nil {
		t.Error("script text was indexed")
	}

	wantLinks := []string{"https://site.example/b", "https://other.example/"}
	if !reflect.DeepEqual(res.Links, wantLinks) {
		t.Errorf("links = %v, want %v", res.Links, wantLinks)
	}
	if got := f.links.Snapshot()["https://site.example/a"]; len(got) != 2 {
		t.Errorf("recorded links = %v", got)
	}

	snap := f.analyzer.Stats.Snapshot(3)
	if snap.Documents != 1 || snap.UniquePages != 1 {
		t.Errorf("stats = %+v", snap)
	}
	if snap.TopTerms[0] != (TermCount{Term: "dog", Count: 4}) {
		t.Errorf("top term = %+v", snap.TopTerms[0])
	}
}

func TestDuplicateGetsNoDocIDButKeepsLinks(t *testing.T) {
	f := newFixture(t, true, false)
	if _, err := f.analyzer.Analyze("https://site.example/a", page); err != nil {
		t.Fatal(err)
	}
	res, err := f.analyzer.Analyze("https://mirror.example/a", page)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Duplicate || res.DocID != 0 {
		t.Fatalf("result = %+v, want duplicate without id", res)
	}
	if f.table.Len() != 1 {
		t.Errorf("table has %d entries, want 1", f.table.Len())
	}
	if len(f.builder.Search("dog")) != 1 {
		t.Errorf("duplicate contributed postings: %v", f.builder.Search("dog"))
	}
	if _, ok := f.links.Snapshot()["https://mirror.example/a"]; !ok {
		t.Error("duplicate page links not recorded")
	}
	snap := f.analyzer.Stats.Snapshot(0)
	if snap.Duplicates != 1 || snap.UniquePages != 2 || len(snap.TopTerms) != 0 {
		t.Errorf("stats = %+v", snap)
	}
}

func TestSameURLReusesDocID(t *testing.T) {
	f := newFixture(t, false, false)
	first, _ := f.analyzer.Analyze("https://site.example/a?utm_medium=mail", page)
	second, _ := f.analyzer.Analyze("https://site.example/a#frag", page)
	if first.DocID != second.DocID {
		t.Errorf("ids %d and %d for the same page", first.DocID, second.DocID)
	}
	if got := f.builder.Search("dog")[first.DocID].Frequency; got != 8 {
		t.Errorf("re-processed frequency = %d, want 8", got)
	}
}

var errFlush = errors.New("disk full")

type failingBuilder struct{ indexer.Builder }

func (failingBuilder) AddDocument(int, map[string]index.Posting) error { return errFlush }

func TestBuilderErrorPropagates(t *testing.T) {
	f := newFixture(t, false, false)
	f.analyzer.Builder = failingBuilder{}
	if _, err := f.analyzer.Analyze("https://site.example/a", page); !errors.Is(err, errFlush) {
		t.Fatalf("Analyze error = %v, want %v", err, errFlush)
	}
}
