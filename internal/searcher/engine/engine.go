// Package engine answers free-text queries over the merged shard files.
//
// The URL table, the IDF of every indexed term and the optional PageRank
// scores are loaded once into an immutable snapshot; Reload swaps in a new
// one. Shards themselves are loaded lazily through a small LRU so only a
// handful of buckets are resident at a time.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/doctable"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/pagerank"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/metrics"
)

// URLNotFound stands in for the URL of a docID missing from the table.
const URLNotFound = "URL not found"

// Config locates the build output and tunes ranking.
type Config struct {
	DataDir        string
	URLTableFile   string
	RankFile       string
	MaxResults     int
	ShardCacheSize int
	ImportantBoost float64
	PageRankWeight float64
}

// Result is one ranked document.
type Result struct {
	DocID int     `json:"doc_id"`
	URL   string  `json:"url"`
	Score float64 `json:"score"`
}

type snapshot struct {
	generation uint64
	table      *doctable.Table
	totalDocs  int
	idf        map[string]float64
	ranks      pagerank.Ranks
	vocabulary []string
	shards     *lru.Cache[string, index.Shard]
	loadedAt   time.Time
}

type Engine struct {
	cfg     Config
	stemmer *tokenizer.Stemmer
	metrics *metrics.Metrics
	logger  *slog.Logger

	state      atomic.Pointer[snapshot]
	generation atomic.Uint64
	loads      singleflight.Group
	evictions  atomic.Int64
	shardLoads atomic.Int64
}

// New loads the index described by cfg.
func New(cfg Config, stemmer *tokenizer.Stemmer, m *metrics.Metrics) (*Engine, error) {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.ShardCacheSize <= 0 {
		cfg.ShardCacheSize = 5
	}
	if cfg.ImportantBoost <= 0 {
		cfg.ImportantBoost = ranker.DefaultImportantBoost
	}
	e := &Engine{
		cfg:     cfg,
		stemmer: stemmer,
		metrics: m,
		logger:  slog.Default().With("component", "query-engine"),
	}
	if err := e.Reload(); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload rereads the URL table, rebuilds the IDF cache from the shard
// dictionaries and starts a fresh shard cache. Queries already running keep
// the previous snapshot.
func (e *Engine) Reload() error {
	start := time.Now()
	table, err := doctable.Load(e.cfg.URLTableFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("url table %s: %w", e.cfg.URLTableFile, apperrors.ErrIndexNotReady)
		}
		return err
	}
	// ids start at 1, so the table size is the next id to be assigned.
	totalDocs := table.Len() + doctable.FirstID

	docFreqs := make(map[string]int)
	for _, key := range shard.Keys() {
		path := filepath.Join(e.cfg.DataDir, shard.FileName(key))
		r, err := segment.OpenReader(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("scanning shard %s: %w", key, err)
		}
		for term, df := range r.DocFreqs() {
			docFreqs[term] = df
		}
		r.Close()
	}
	idf := make(map[string]float64, len(docFreqs))
	vocabulary := make([]string, 0, len(docFreqs))
	for term, df := range docFreqs {
		idf[term] = ranker.IDF(totalDocs, df)
		vocabulary = append(vocabulary, term)
	}
	sort.Strings(vocabulary)

	var ranks pagerank.Ranks
	if e.cfg.RankFile != "" {
		ranks, err = pagerank.Load(e.cfg.RankFile)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return err
			}
			ranks = nil
		}
	}

	cache, err := lru.NewWithEvict(e.cfg.ShardCacheSize, func(key string, _ index.Shard) {
		e.evictions.Add(1)
		e.metrics.ShardEvicted()
		e.logger.Debug("shard evicted", "shard", key)
	})
	if err != nil {
		return fmt.Errorf("creating shard cache: %w", err)
	}

	snap := &snapshot{
		generation: e.generation.Add(1),
		table:      table,
		totalDocs:  totalDocs,
		idf:        idf,
		ranks:      ranks,
		vocabulary: vocabulary,
		shards:     cache,
		loadedAt:   time.Now(),
	}
	e.state.Store(snap)
	e.logger.Info("index loaded",
		"documents", table.Len(),
		"terms", len(idf),
		"ranked_pages", len(ranks),
		"duration", time.Since(start),
	)
	return nil
}

// Query parses raw and returns up to MaxResults ranked documents. A query
// without usable terms yields an empty result, not an error.
func (e *Engine) Query(ctx context.Context, raw string) ([]Result, error) {
	return e.Search(ctx, parser.Parse(raw, e.stemmer))
}

// Parse exposes the query parser bound to the engine's stemmer.
func (e *Engine) Parse(raw string) *parser.Query {
	return parser.Parse(raw, e.stemmer)
}

// Search ranks the documents matching q.
func (e *Engine) Search(ctx context.Context, q *parser.Query) ([]Result, error) {
	snap := e.state.Load()
	if snap == nil {
		return nil, apperrors.ErrIndexNotReady
	}
	if q.Empty() {
		return []Result{}, nil
	}

	scorer := ranker.NewScorer(e.cfg.ImportantBoost)
	for _, term := range q.Terms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		idf := snap.idf[term]
		if idf == 0 {
			continue
		}
		sh, err := e.shard(snap, shard.KeyFor(term))
		if err != nil {
			return nil, err
		}
		scorer.AddTerm(idf, sh[term])
	}
	scorer.Adjust(len(q.Terms))

	docs := scorer.Results()
	if e.cfg.PageRankWeight > 0 && len(snap.ranks) > 0 {
		for i := range docs {
			if url, ok := snap.table.URL(docs[i].DocID); ok {
				docs[i].Score += e.cfg.PageRankWeight * snap.ranks[url]
			}
		}
	}

	top := merger.TopK(docs, e.cfg.MaxResults)
	results := make([]Result, len(top))
	for i, d := range top {
		url, ok := snap.table.URL(d.DocID)
		if !ok {
			url = URLNotFound
		}
		results[i] = Result{DocID: d.DocID, URL: url, Score: d.Score}
	}
	return results, nil
}

// shard returns the bucket key from the LRU, loading it on a miss. Concurrent
// misses for the same bucket share one disk read. A bucket with no file is
// empty.
func (e *Engine) shard(snap *snapshot, key string) (index.Shard, error) {
	if sh, ok := snap.shards.Get(key); ok {
		e.metrics.ShardCacheLookup(true)
		return sh, nil
	}
	e.metrics.ShardCacheLookup(false)

	flightKey := strconv.FormatUint(snap.generation, 10) + "/" + key
	v, err, _ := e.loads.Do(flightKey, func() (any, error) {
		if sh, ok := snap.shards.Get(key); ok {
			return sh, nil
		}
		path := filepath.Join(e.cfg.DataDir, shard.FileName(key))
		sh, err := segment.Load(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("loading shard %s: %w", key, err)
			}
			sh = index.Shard{}
		}
		e.shardLoads.Add(1)
		snap.shards.Add(key, sh)
		return sh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(index.Shard), nil
}

// IDF returns the cached idf of a stemmed term, 0 if it is not indexed.
func (e *Engine) IDF(term string) float64 {
	if snap := e.state.Load(); snap != nil {
		return snap.idf[term]
	}
	return 0
}

// TotalDocs is the document count used in idf.
func (e *Engine) TotalDocs() int {
	if snap := e.state.Load(); snap != nil {
		return snap.totalDocs
	}
	return 0
}

// Vocabulary returns every indexed term, sorted. Callers must not modify it.
func (e *Engine) Vocabulary() []string {
	if snap := e.state.Load(); snap != nil {
		return snap.vocabulary
	}
	return nil
}

// Ready reports whether an index is loaded.
func (e *Engine) Ready() bool {
	return e.state.Load() != nil
}

// CacheStats describes the shard cache of the current snapshot.
type CacheStats struct {
	Resident   []string  `json:"resident"`
	Capacity   int       `json:"capacity"`
	Loads      int64     `json:"loads"`
	Evictions  int64     `json:"evictions"`
	Documents  int       `json:"documents"`
	Terms      int       `json:"terms"`
	LoadedAt   time.Time `json:"loaded_at"`
	Generation uint64    `json:"generation"`
}

// Summary is a one-line description used by the readiness check.
func (s CacheStats) Summary() string {
	return fmt.Sprintf("%d documents, %d/%d shards resident", s.Documents, len(s.Resident), s.Capacity)
}

func (e *Engine) CacheStats() CacheStats {
	stats := CacheStats{
		Capacity:  e.cfg.ShardCacheSize,
		Loads:     e.shardLoads.Load(),
		Evictions: e.evictions.Load(),
	}
	if snap := e.state.Load(); snap != nil {
		stats.Resident = snap.shards.Keys()
		stats.Documents = snap.table.Len()
		stats.Terms = len(snap.idf)
		stats.LoadedAt = snap.loadedAt
		stats.Generation = snap.generation
	}
	return stats
}
