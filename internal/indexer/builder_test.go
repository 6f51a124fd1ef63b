package indexer

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/errors"
)

func testConfig(t *testing.T, mode string) config.IndexerConfig {
	t.Helper()
	dir := t.TempDir()
	return config.IndexerConfig{
		Mode:             mode,
		DataDir:          filepath.Join(dir, "index"),
		TempDir:          filepath.Join(dir, "index", "partial"),
		BatchMaxPostings: 1000,
		CleanupTemp:      true,
	}
}

func loadFinal(t *testing.T, cfg config.IndexerConfig, key string) index.Shard {
	t.Helper()
	s, err := segment.Load(filepath.Join(cfg.DataDir, shard.FileName(key)))
	if err != nil {
		t.Fatalf("loading shard %s: %v", key, err)
	}
	return s
}

func TestShardedBuilderMergesPartials(t *testing.T) {
	cfg := testConfig(t, "sharded")
	b, err := NewShardedBuilder(cfg, nil)
	if err != nil {
		t.Fatalf("NewShardedBuilder: %v", err)
	}

	if err := b.AddDocument(1, map[string]index.Posting{
		"dog":   {Frequency: 2},
		"apple": {Frequency: 1, Fields: []string{index.FieldImportant}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := b.FlushBatch(); err != nil {
		t.Fatalf("FlushBatch: %v", err)
	}
	// same (term, doc) in a second batch, as after re-processing
	if err := b.AddDocument(1, map[string]index.Posting{
		"dog": {Frequency: 1, Fields: []string{index.FieldImportant}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddPosting("dog", 2, index.Posting{Frequency: 5}); err != nil {
		t.Fatal(err)
	}
	if err := b.FlushBatch(); err != nil {
		t.Fatalf("FlushBatch: %v", err)
	}
	if got := b.PartialCount(); got != 3 {
		t.Fatalf("PartialCount = %d, want 3", got)
	}

	if err := b.MergeAll(true); err != nil {
		t.Fatalf("MergeAll: %v", err)
	}

	d := loadFinal(t, cfg, "d")
	if got := d["dog"][1]; got.Frequency != 3 || !got.Important() {
		t.Errorf("dog/1 = %+v, want frequency 3 and important", got)
	}
	if got := d["dog"][2]; got.Frequency != 5 {
		t.Errorf("dog/2 = %+v", got)
	}
	a := loadFinal(t, cfg, "a")
	if !a["apple"][1].Important() {
		t.Errorf("apple/1 lost its important field")
	}

	stats := b.Stats()
	if stats["d"].Terms != 1 || stats["d"].Partials != 2 || stats["d"].Postings != 2 {
		t.Errorf("stats[d] = %+v", stats["d"])
	}
	if _, ok := stats["z"]; ok {
		t.Error("empty bucket should have no stats")
	}
	if TotalSize(stats) <= 0 {
		t.Error("TotalSize should be positive")
	}
	if _, err := os.Stat(cfg.TempDir); !os.IsNotExist(err) {
		t.Errorf("temp area not removed: %v", err)
	}
}

func TestShardedBuilderFlushesAtThreshold(t *testing.T) {
	cfg := testConfig(t, "sharded")
	cfg.BatchMaxPostings = 2
	b, err := NewShardedBuilder(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	flushes := 0
	b.OnFlush(func() error { flushes++; return nil })

	if err := b.AddDocument(1, map[string]index.Posting{"cat": {Frequency: 1}}); err != nil {
		t.Fatal(err)
	}
	if flushes != 0 {
		t.Fatalf("flushed below threshold")
	}
	if err := b.AddDocument(2, map[string]index.Posting{"cow": {Frequency: 1}}); err != nil {
		t.Fatal(err)
	}
	if flushes != 1 {
		t.Fatalf("flushes = %d, want 1", flushes)
	}
	if b.batch.Size() != 0 {
		t.Errorf("batch not reset after flush")
	}
}

func TestShardedBuilderHooksRunBeforePartialsWritten(t *testing.T) {
	cfg := testConfig(t, "sharded")
	b, err := NewShardedBuilder(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	partials := func() []string {
		matches, _ := filepath.Glob(filepath.Join(shard.PartialDir(cfg.TempDir, "c"), "*"))
		return matches
	}
	saveErr := errors.New("disk full")
	b.OnFlush(func() error {
		if got := partials(); len(got) != 0 {
			t.Errorf("partials on disk before hook: %v", got)
		}
		return saveErr
	})

	if err := b.AddDocument(1, map[string]index.Posting{"cat": {Frequency: 1}}); err != nil {
		t.Fatal(err)
	}
	if err := b.FlushBatch(); !errors.Is(err, saveErr) {
		t.Fatalf("FlushBatch error = %v, want hook error", err)
	}
	if got := partials(); len(got) != 0 {
		t.Errorf("failed hook still wrote partials: %v", got)
	}
}

func TestShardedBuilderResumesPartials(t *testing.T) {
	cfg := testConfig(t, "sharded")
	cfg.CleanupTemp = false

	first, err := NewShardedBuilder(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	first.AddDocument(1, map[string]index.Posting{"bird": {Frequency: 1}})
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := NewShardedBuilder(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if second.PartialCount() != 1 {
		t.Fatalf("recovered %d partials, want 1", second.PartialCount())
	}
	if second.batchCount != 1 {
		t.Errorf("batchCount = %d, want 1", second.batchCount)
	}
	second.AddDocument(2, map[string]index.Posting{"bird": {Frequency: 4}})
	if err := second.MergeAll(false); err != nil {
		t.Fatal(err)
	}
	s := loadFinal(t, cfg, "b")
	if len(s["bird"]) != 2 {
		t.Errorf("bird postings = %+v, want docs 1 and 2", s["bird"])
	}
}

func TestShardedBuilderCorruptPartialAbortsMerge(t *testing.T) {
	cfg := testConfig(t, "sharded")
	b, err := NewShardedBuilder(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	b.AddDocument(1, map[string]index.Posting{"egg": {Frequency: 1}})
	if err := b.FlushBatch(); err != nil {
		t.Fatal(err)
	}
	path := b.partials["e"][0]
	if err := os.WriteFile(path, []byte("not a shard file at all, just some bytes long enough to pass the size check......."), 0644); err != nil {
		t.Fatal(err)
	}

	err = b.MergeAll(true)
	if !errors.Is(err, apperrors.ErrCorruptShard) {
		t.Fatalf("MergeAll error = %v, want ErrCorruptShard", err)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Errorf("partials should be kept after a failed merge: %v", statErr)
	}
}

func TestShardedBuilderConcurrentAdds(t *testing.T) {
	cfg := testConfig(t, "sharded")
	cfg.BatchMaxPostings = 50
	b, err := NewShardedBuilder(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	terms := []string{"alpha", "beta", "gamma", "delta", "omega", "zulu"}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				docID := w*100 + i + 1
				postings := make(map[string]index.Posting, len(terms))
				for _, term := range terms {
					postings[term] = index.Posting{Frequency: 1}
				}
				if err := b.AddDocument(docID, postings); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	if err := b.MergeAll(true); err != nil {
		t.Fatal(err)
	}
	for _, term := range terms {
		s := loadFinal(t, cfg, shard.KeyFor(term))
		if got := len(s[term]); got != 200 {
			t.Errorf("%s has %d postings, want 200", term, got)
		}
	}
}

func TestMemoryBuilder(t *testing.T) {
	cfg := testConfig(t, "memory")
	b, err := New(cfg, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := b.(*MemoryBuilder); !ok {
		t.Fatalf("New returned %T, want *MemoryBuilder", b)
	}
	b.AddDocument(1, map[string]index.Posting{"query": {Frequency: 2}, "9lives": {Frequency: 1}})
	b.AddPosting("query", 2, index.Posting{Frequency: 1})
	if err := b.FlushBatch(); err != nil {
		t.Fatal(err)
	}
	if err := b.MergeAll(true); err != nil {
		t.Fatal(err)
	}
	q := loadFinal(t, cfg, "q")
	if len(q["query"]) != 2 {
		t.Errorf("query postings = %+v", q["query"])
	}
	catchAll := loadFinal(t, cfg, shard.CatchAll)
	if _, ok := catchAll["9lives"]; !ok {
		t.Error("non-alphabetic term should land in the catch-all shard")
	}
	if len(b.Stats()) != 2 {
		t.Errorf("Stats = %+v, want 2 shards", b.Stats())
	}
}

func TestNewWithRestartClearsPreviousBuild(t *testing.T) {
	cfg := testConfig(t, "sharded")
	b, err := New(cfg, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	b.AddDocument(1, map[string]index.Posting{"fox": {Frequency: 1}})
	if err := b.MergeAll(false); err != nil {
		t.Fatal(err)
	}

	fresh, err := New(cfg, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(cfg.DataDir, shard.FileName("f"))); !os.IsNotExist(err) {
		t.Error("final shard survived a restart")
	}
	if n := fresh.(*ShardedBuilder).PartialCount(); n != 0 {
		t.Errorf("PartialCount after restart = %d", n)
	}
}
