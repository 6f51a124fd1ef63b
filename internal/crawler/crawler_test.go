package crawler

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/analyzer"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/dedup"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/doctable"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/linkgraph"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/pagerank"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/config"
)

const (
	pageA = `<html><head><title>Dogs</title></head><body><p>dogs running quickly through green fields</p><a href="/b">b</a></body></html>`
	pageB = `<html><body><h1>Cats</h1><p>cats sleeping lazily under warm blankets</p><a href="http://site.example/a#top">a</a></body></html>`
)

func writeRecord(t *testing.T, dir, name, url, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	data, _ := json.Marshal(map[string]string{"url": url, "content": content})
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Corpus.Dir = filepath.Join(root, "corpus")
	cfg.Crawler.Workers = 1
	cfg.Crawler.StateFile = filepath.Join(root, "frontier.db")
	cfg.Indexer.DataDir = filepath.Join(root, "index")
	cfg.Indexer.TempDir = filepath.Join(root, "index", "partial")
	cfg.Indexer.BatchMaxPostings = 4
	cfg.Indexer.URLTableFile = filepath.Join(root, "urls.json")
	cfg.Indexer.ReportFile = filepath.Join(root, "report.txt")
	cfg.PageRank.GraphFile = filepath.Join(root, "graph.json")
	cfg.PageRank.OutputFile = filepath.Join(root, "ranks.json")
	if err := os.MkdirAll(cfg.Corpus.Dir, 0755); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestRunBuildsIndex(t *testing.T) {
	cfg := testConfig(t)
	writeRecord(t, cfg.Corpus.Dir, "a.json", "http://site.example/a", pageA)
	writeRecord(t, cfg.Corpus.Dir, "b.json", "http://site.example/b", pageB)
	writeRecord(t, cfg.Corpus.Dir, "c.json", "http://mirror.example/a", pageA)
	os.WriteFile(filepath.Join(cfg.Corpus.Dir, "d.json"), []byte("{broken"), 0644)

	var phaseRan bool
	summary, err := New(cfg, nil).Run(context.Background(), true, Phase{
		Name: "check",
		Run: func(ctx context.Context, s *Summary) error {
			phaseRan = s.Table.Len() == 2
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !phaseRan {
		t.Error("phase did not see the finished table")
	}

	if summary.Pool.Indexed != 2 || summary.Pool.Duplicates != 1 || summary.Pool.Failed != 1 {
		t.Errorf("pool stats = %+v", summary.Pool)
	}
	if summary.Report.Documents != 2 || summary.Report.Duplicates != 1 || summary.Report.Failed != 1 {
		t.Errorf("report = %+v", summary.Report.Snapshot)
	}
	var phases []string
	for _, tm := range summary.Timings {
		phases = append(phases, tm.Path)
	}
	if got := strings.Join(phases, ","); got != "build/crawl,build/merge,build/url_table,build/pagerank,build/check" {
		t.Errorf("phase timings = %s", got)
	}

	table, err := doctable.Load(cfg.Indexer.URLTableFile)
	if err != nil {
		t.Fatalf("loading url table: %v", err)
	}
	if id, ok := table.ID("http://site.example/a"); !ok || id != 1 {
		t.Errorf("a id = %d, %v", id, ok)
	}
	if _, ok := table.ID("http://mirror.example/a"); ok {
		t.Error("near-duplicate received a docID")
	}

	dogs, err := segment.Load(filepath.Join(cfg.Indexer.DataDir, shard.FileName("d")))
	if err != nil {
		t.Fatalf("loading shard d: %v", err)
	}
	post, ok := dogs["dog"][1]
	if !ok {
		t.Fatalf("dog postings = %+v", dogs["dog"])
	}
	if !post.Important() || post.Frequency != 2 {
		t.Errorf("dog posting = %+v, want important with frequency 2", post)
	}
	if _, err := os.Stat(cfg.Indexer.TempDir); !os.IsNotExist(err) {
		t.Error("temp area not cleaned up")
	}

	ranks, err := pagerank.Load(cfg.PageRank.OutputFile)
	if err != nil {
		t.Fatalf("loading ranks: %v", err)
	}
	if _, ok := ranks["http://site.example/b"]; !ok {
		t.Errorf("ranks = %v", ranks)
	}

	report, err := os.ReadFile(cfg.Indexer.ReportFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(report), "Indexed documents: 2") {
		t.Errorf("report:\n%s", report)
	}
}

func TestRunResumesCompletedBuildWithoutRework(t *testing.T) {
	cfg := testConfig(t)
	writeRecord(t, cfg.Corpus.Dir, "a.json", "http://site.example/a", pageA)
	writeRecord(t, cfg.Corpus.Dir, "b.json", "http://site.example/b", pageB)

	if _, err := New(cfg, nil).Run(context.Background(), true); err != nil {
		t.Fatalf("first run: %v", err)
	}
	summary, err := New(cfg, nil).Run(context.Background(), false)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Pool.Processed != 0 {
		t.Errorf("processed = %d, want 0 after a completed run", summary.Pool.Processed)
	}
	if summary.Table.Len() != 2 {
		t.Errorf("table len = %d, want 2", summary.Table.Len())
	}
	if len(summary.Shards) == 0 {
		t.Error("final shards not reported on resume")
	}
}

type fakeQueue struct {
	mu        sync.Mutex
	queue     []string
	seen      map[string]bool
	completed []string
	urls      map[string]string
}

func newFakeQueue(urls map[string]string, seed ...string) *fakeQueue {
	q := &fakeQueue{seen: make(map[string]bool), urls: urls}
	for _, id := range seed {
		q.Add(id)
	}
	return q
}

func (q *fakeQueue) GetNext() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.queue) == 0 {
		return "", false
	}
	id := q.queue[0]
	q.queue = q.queue[1:]
	return id, true
}

func (q *fakeQueue) Add(id string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.seen[id] {
		return false, nil
	}
	q.seen[id] = true
	q.queue = append(q.queue, id)
	return true, nil
}

func (q *fakeQueue) MarkComplete(id string) error {
	q.mu.Lock()
	q.completed = append(q.completed, id)
	q.mu.Unlock()
	return nil
}

func (q *fakeQueue) Lookup(url string) (string, bool) {
	path, ok := q.urls[url]
	return path, ok
}

func newTestAnalyzer(t *testing.T) *analyzer.Analyzer {
	t.Helper()
	stemmer, err := tokenizer.NewStemmer("english")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { stemmer.Close() })
	cfg := testConfig(t)
	cfg.Indexer.Mode = "memory"
	b, err := indexer.NewMemoryBuilder(cfg.Indexer, nil)
	if err != nil {
		t.Fatal(err)
	}
	return analyzer.New(analyzer.Deps{
		Table:   doctable.New(),
		Builder: b,
		Links:   linkgraph.NewRecorder(),
		Dedup:   dedup.New(stemmer, 50, 0.9),
		Stemmer: stemmer,
	}, false)
}

func TestPoolFollowsDiscoveredLinks(t *testing.T) {
	dir := t.TempDir()
	a := writeRecord(t, dir, "a.json", "http://site.example/a", pageA)
	b := writeRecord(t, dir, "b.json", "http://site.example/b", pageB)
	q := newFakeQueue(map[string]string{
		"http://site.example/a": a,
		"http://site.example/b": b,
	}, a)

	stats, err := NewPool(PoolConfig{Workers: 1}, q, newTestAnalyzer(t), nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Processed != 2 || stats.Discovered != 1 {
		t.Errorf("stats = %+v, want 2 processed and 1 discovered", stats)
	}
	if len(q.completed) != 2 {
		t.Errorf("completed = %v", q.completed)
	}
}

func TestPoolCompletesFailedDocuments(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("not json"), 0644)
	empty := writeRecord(t, dir, "empty.json", "http://site.example/e", "   ")
	q := newFakeQueue(nil, bad, empty)

	a := newTestAnalyzer(t)
	stats, err := NewPool(PoolConfig{Workers: 3}, q, a, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Failed != 2 || len(q.completed) != 2 {
		t.Errorf("stats = %+v, completed = %v", stats, q.completed)
	}
	if got := a.Stats.Snapshot(0).Failed; got != 2 {
		t.Errorf("analyzer failures = %d, want 2", got)
	}
}

func TestPoolStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	a := writeRecord(t, dir, "a.json", "http://site.example/a", pageA)
	q := newFakeQueue(nil, a)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewPool(PoolConfig{Workers: 2}, q, newTestAnalyzer(t), nil).Run(ctx); err == nil {
		t.Fatal("expected context error")
	}
	if len(q.completed) != 0 {
		t.Errorf("completed = %v, want none", q.completed)
	}
}

func TestPoolPoliteness(t *testing.T) {
	dir := t.TempDir()
	var seed []string
	for _, name := range []string{"x.json", "y.json", "z.json"} {
		path := filepath.Join(dir, name)
		os.WriteFile(path, []byte("not json"), 0644)
		seed = append(seed, path)
	}
	q := newFakeQueue(nil, seed...)

	start := time.Now()
	stats, err := NewPool(PoolConfig{Workers: 1, Politeness: 30 * time.Millisecond}, q, newTestAnalyzer(t), nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Processed != 3 {
		t.Fatalf("processed = %d, want 3", stats.Processed)
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("three documents took %v, want at least two politeness delays", elapsed)
	}
}
