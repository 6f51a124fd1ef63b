// Package indexer builds the on-disk inverted index. Postings arrive per
// document from the analyzer, are grouped into 27 term buckets and end up as
// one merged shard file per bucket.
package indexer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/metrics"
)

// Builder accumulates postings and produces the final shard files.
// Implementations are safe for concurrent AddPosting and AddDocument calls.
type Builder interface {
	AddPosting(term string, docID int, p index.Posting) error
	// AddDocument adds every posting of one document.
	AddDocument(docID int, postings map[string]index.Posting) error
	FlushBatch() error
	// MergeAll writes one final file per non-empty bucket. It is the
	// terminal step of a build.
	MergeAll(cleanupTemp bool) error
	Stats() map[string]ShardStats
	Close() error
}

// ShardStats describes one final shard file.
type ShardStats struct {
	Terms     int   `json:"terms"`
	Postings  int   `json:"postings"`
	SizeBytes int64 `json:"sizeBytes"`
	Partials  int   `json:"partials"`
}

// New returns the builder selected by cfg.Mode. With restart set, any
// previous partial and final shard files are removed first.
func New(cfg config.IndexerConfig, m *metrics.Metrics, restart bool) (Builder, error) {
	if restart {
		if err := Clear(cfg); err != nil {
			return nil, err
		}
	}
	switch cfg.Mode {
	case "memory":
		return NewMemoryBuilder(cfg, m)
	case "sharded", "":
		return NewShardedBuilder(cfg, m)
	default:
		return nil, fmt.Errorf("unknown indexer mode %q", cfg.Mode)
	}
}

// Clear removes the temp area and every final shard file.
func Clear(cfg config.IndexerConfig) error {
	if cfg.TempDir != "" {
		if err := os.RemoveAll(cfg.TempDir); err != nil {
			return fmt.Errorf("clearing temp area: %w", err)
		}
	}
	for _, key := range shard.Keys() {
		path := filepath.Join(cfg.DataDir, shard.FileName(key))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing shard %s: %w", key, err)
		}
	}
	return nil
}

// TotalSize sums the on-disk size of all shards in stats.
func TotalSize(stats map[string]ShardStats) int64 {
	var total int64
	for _, s := range stats {
		total += s.SizeBytes
	}
	return total
}

// writeFinal writes merged as the final file of key and returns its stats.
func writeFinal(w *segment.Writer, key string, merged index.Shard, partials int) (ShardStats, error) {
	info, err := w.Write(shard.FileName(key), key, merged.Entries())
	if err != nil {
		return ShardStats{}, fmt.Errorf("writing shard %s: %w", key, err)
	}
	return ShardStats{
		Terms:     info.Terms,
		Postings:  merged.PostingCount(),
		SizeBytes: info.SizeBytes,
		Partials:  partials,
	}, nil
}

// existingStats reads stats of a final shard left by an earlier run.
func existingStats(dataDir, key string) (ShardStats, bool) {
	path := filepath.Join(dataDir, shard.FileName(key))
	st, err := os.Stat(path)
	if err != nil {
		return ShardStats{}, false
	}
	r, err := segment.OpenReader(path)
	if err != nil {
		return ShardStats{}, false
	}
	defer r.Close()
	postings := 0
	for _, df := range r.DocFreqs() {
		postings += df
	}
	return ShardStats{Terms: r.TermCount(), Postings: postings, SizeBytes: st.Size()}, true
}
