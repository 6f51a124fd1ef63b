package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/metrics"
)

const partialPrefix = "batch_"

// ShardedBuilder keeps the current batch in memory and spills it to one
// partial file per bucket whenever it grows past BatchMaxPostings. MergeAll
// folds the partials of each bucket into its final shard file.
type ShardedBuilder struct {
	batch   *index.MemoryIndex
	cfg     config.IndexerConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	// flushMu serialises partial writes and guards the fields below.
	flushMu    sync.Mutex
	partials   map[string][]string
	batchCount int
	onFlush    []func() error

	statsMu sync.RWMutex
	stats   map[string]ShardStats
}

// NewShardedBuilder creates the data and temp directories and re-registers
// partial files left by an interrupted run.
func NewShardedBuilder(cfg config.IndexerConfig, m *metrics.Metrics) (*ShardedBuilder, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index data directory: %w", err)
	}
	if err := os.MkdirAll(cfg.TempDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index temp directory: %w", err)
	}
	b := &ShardedBuilder{
		batch:    index.NewMemoryIndex(),
		cfg:      cfg,
		logger:   slog.Default().With("component", "index-builder"),
		metrics:  m,
		partials: make(map[string][]string),
		stats:    make(map[string]ShardStats),
	}
	if err := b.loadExistingPartials(); err != nil {
		return nil, fmt.Errorf("loading existing partials: %w", err)
	}
	return b, nil
}

// OnFlush registers fn to run for every non-empty batch after it is taken
// from memory and before its partial files are written, while the flush
// lock is held. It persists state that must not lag behind the partial
// files, such as the URL table. An error aborts the flush.
func (b *ShardedBuilder) OnFlush(fn func() error) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()
	b.onFlush = append(b.onFlush, fn)
}

func (b *ShardedBuilder) AddPosting(term string, docID int, p index.Posting) error {
	b.batch.AddPosting(term, docID, p)
	return b.maybeFlush(b.batch.Size())
}

func (b *ShardedBuilder) AddDocument(docID int, postings map[string]index.Posting) error {
	if len(postings) == 0 {
		return nil
	}
	return b.maybeFlush(b.batch.AddDocument(docID, postings))
}

func (b *ShardedBuilder) maybeFlush(size int) error {
	if b.cfg.BatchMaxPostings <= 0 || size < b.cfg.BatchMaxPostings {
		return nil
	}
	b.logger.Info("batch reached max size, flushing to disk",
		"postings", size,
		"threshold", b.cfg.BatchMaxPostings,
	)
	if err := b.FlushBatch(); err != nil {
		return fmt.Errorf("flushing batch: %w", err)
	}
	return nil
}

// FlushBatch writes every non-empty bucket of the current batch to a new
// partial file and starts an empty batch. Writers are not blocked while the
// files are written.
func (b *ShardedBuilder) FlushBatch() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	shards := b.batch.Swap()
	if len(shards) == 0 {
		return nil
	}
	// State referenced by the swapped batch is persisted before any partial
	// naming it reaches disk.
	for _, fn := range b.onFlush {
		if err := fn(); err != nil {
			return fmt.Errorf("before flush hook: %w", err)
		}
	}
	keys := make([]string, 0, len(shards))
	for key := range shards {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	start := time.Now()
	written := 0
	name := fmt.Sprintf("%s%08d_%s%s", partialPrefix, b.batchCount, uuid.NewString(), shard.FileExt)
	for _, key := range keys {
		s := shards[key]
		if len(s) == 0 {
			continue
		}
		w := segment.NewWriter(shard.PartialDir(b.cfg.TempDir, key))
		info, err := w.Write(name, key, s.Entries())
		if err != nil {
			b.metrics.BatchFlushed(err)
			return fmt.Errorf("writing partial for shard %s: %w", key, err)
		}
		b.partials[key] = append(b.partials[key], info.Path)
		written++
	}
	b.batchCount++
	b.metrics.BatchFlushed(nil)

	b.logger.Info("batch flushed",
		"batch", b.batchCount-1,
		"partials", written,
		"duration", time.Since(start),
	)
	return nil
}

// MergeAll flushes the current batch, then for every bucket loads its
// partial files in write order and writes the folded result as the final
// shard. A corrupt partial aborts the merge.
func (b *ShardedBuilder) MergeAll(cleanupTemp bool) error {
	if err := b.FlushBatch(); err != nil {
		return err
	}
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	w := segment.NewWriter(b.cfg.DataDir)
	stats := make(map[string]ShardStats)
	for _, key := range shard.Keys() {
		paths := b.partials[key]
		if len(paths) == 0 {
			if st, ok := existingStats(b.cfg.DataDir, key); ok {
				stats[key] = st
			}
			continue
		}
		start := time.Now()
		merged := index.Shard{}
		for _, path := range paths {
			partial, err := segment.Load(path)
			if err != nil {
				return fmt.Errorf("merging shard %s: %w", key, err)
			}
			merged.MergeFrom(partial)
		}
		st, err := writeFinal(w, key, merged, len(paths))
		if err != nil {
			return err
		}
		stats[key] = st
		b.metrics.ShardMerged(key, st.Terms, time.Since(start))
		b.logger.Info("shard merged",
			"shard", key,
			"partials", len(paths),
			"terms", st.Terms,
			"size_bytes", st.SizeBytes,
		)
	}

	b.statsMu.Lock()
	b.stats = stats
	b.statsMu.Unlock()

	if cleanupTemp {
		if err := os.RemoveAll(b.cfg.TempDir); err != nil {
			return fmt.Errorf("removing temp area: %w", err)
		}
		b.partials = make(map[string][]string)
		b.logger.Info("temporary partial files removed", "dir", b.cfg.TempDir)
	}
	return nil
}

// Stats returns per-bucket stats of the last merge.
func (b *ShardedBuilder) Stats() map[string]ShardStats {
	b.statsMu.RLock()
	defer b.statsMu.RUnlock()
	out := make(map[string]ShardStats, len(b.stats))
	for k, v := range b.stats {
		out[k] = v
	}
	return out
}

// PartialCount is the number of partial files currently registered.
func (b *ShardedBuilder) PartialCount() int {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()
	n := 0
	for _, paths := range b.partials {
		n += len(paths)
	}
	return n
}

// StartFlushLoop flushes the batch every FlushInterval until ctx is done.
func (b *ShardedBuilder) StartFlushLoop(ctx context.Context) {
	if b.cfg.FlushInterval <= 0 {
		return
	}
	ticker := time.NewTicker(b.cfg.FlushInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if b.batch.DocCount() > 0 {
					if err := b.FlushBatch(); err != nil {
						b.logger.Error("periodic flush failed", "error", err)
					}
				}
			}
		}
	}()
}

// Close flushes whatever is left in the batch so an interrupted build can
// resume from the partial files.
func (b *ShardedBuilder) Close() error {
	if err := b.FlushBatch(); err != nil {
		b.logger.Error("final flush on close failed", "error", err)
		return err
	}
	return nil
}

func (b *ShardedBuilder) loadExistingPartials() error {
	loaded := 0
	for _, key := range shard.Keys() {
		dir := shard.PartialDir(b.cfg.TempDir, key)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("reading partial directory %s: %w", dir, err)
		}
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasPrefix(name, partialPrefix) || !strings.HasSuffix(name, shard.FileExt) {
				continue
			}
			names = append(names, name)
		}
		// zero-padded batch numbers sort in write order
		sort.Strings(names)
		for _, name := range names {
			b.partials[key] = append(b.partials[key], filepath.Join(dir, name))
			if n, ok := batchNumber(name); ok && n >= b.batchCount {
				b.batchCount = n + 1
			}
			loaded++
		}
	}
	if loaded > 0 {
		b.logger.Info("partial recovery complete",
			"partials_loaded", loaded,
			"next_batch", b.batchCount,
		)
	}
	return nil
}

func batchNumber(name string) (int, bool) {
	rest := strings.TrimPrefix(name, partialPrefix)
	digits, _, ok := strings.Cut(rest, "_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}
