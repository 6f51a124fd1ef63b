package indexer

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/metrics"
)

// MemoryBuilder holds the whole index in memory and writes the final shard
// files once, in MergeAll. It suits corpora that fit in RAM.
type MemoryBuilder struct {
	idx     *index.MemoryIndex
	cfg     config.IndexerConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.RWMutex
	stats map[string]ShardStats
}

func NewMemoryBuilder(cfg config.IndexerConfig, m *metrics.Metrics) (*MemoryBuilder, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index data directory: %w", err)
	}
	return &MemoryBuilder{
		idx:     index.NewMemoryIndex(),
		cfg:     cfg,
		logger:  slog.Default().With("component", "index-builder", "mode", "memory"),
		metrics: m,
		stats:   make(map[string]ShardStats),
	}, nil
}

func (b *MemoryBuilder) AddPosting(term string, docID int, p index.Posting) error {
	b.idx.AddPosting(term, docID, p)
	return nil
}

func (b *MemoryBuilder) AddDocument(docID int, postings map[string]index.Posting) error {
	b.idx.AddDocument(docID, postings)
	return nil
}

// FlushBatch is a no-op: there is a single batch for the whole build.
func (b *MemoryBuilder) FlushBatch() error {
	return nil
}

// MergeAll writes one final file per non-empty bucket. cleanupTemp is
// ignored as no temporary files exist.
func (b *MemoryBuilder) MergeAll(cleanupTemp bool) error {
	w := segment.NewWriter(b.cfg.DataDir)
	stats := make(map[string]ShardStats)
	for _, key := range shard.Keys() {
		s := b.idx.Shard(key)
		if len(s) == 0 {
			continue
		}
		start := time.Now()
		st, err := writeFinal(w, key, s, 0)
		if err != nil {
			return err
		}
		stats[key] = st
		b.metrics.ShardMerged(key, st.Terms, time.Since(start))
	}
	b.mu.Lock()
	b.stats = stats
	b.mu.Unlock()
	b.logger.Info("in-memory index written", "shards", len(stats), "docs", b.idx.DocCount())
	return nil
}

func (b *MemoryBuilder) Stats() map[string]ShardStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]ShardStats, len(b.stats))
	for k, v := range b.stats {
		out[k] = v
	}
	return out
}

// Search returns the postings of term held in memory.
func (b *MemoryBuilder) Search(term string) index.PostingList {
	return b.idx.Search(term)
}

func (b *MemoryBuilder) Close() error {
	return nil
}
