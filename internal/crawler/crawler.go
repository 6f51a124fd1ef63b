package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/analyzer"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/crawler/frontier"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/dedup"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/extract"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/doctable"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/linkgraph"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/pagerank"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/tracing"
)

// Summary is the outcome of a completed build.
type Summary struct {
	Pool    PoolStats
	Table   *doctable.Table
	Shards  map[string]indexer.ShardStats
	Ranks   pagerank.Ranks
	Report  analytics.Report
	Elapsed time.Duration
	// Timings holds the duration of every finished build phase.
	Timings []tracing.Timing
}

// Phase is an extra step run after the index is complete, in its own span.
type Phase struct {
	Name string
	Run  func(ctx context.Context, s *Summary) error
}

type Crawler struct {
	cfg     *config.Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(cfg *config.Config, m *metrics.Metrics) *Crawler {
	return &Crawler{
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "crawler"),
	}
}

// Run executes one build. Without restart it resumes from the frontier
// store, the partial files, the URL table and the link graph left by an
// interrupted run. Phases run in order after the report is written; the
// first failing phase aborts the build.
func (c *Crawler) Run(ctx context.Context, restart bool, phases ...Phase) (*Summary, error) {
	start := time.Now()
	ctx, root := tracing.StartSpan(ctx, "build", "")
	defer func() {
		root.End()
		if c.cfg.Tracing.Enabled {
			root.Log(c.logger)
		}
	}()

	stemmer, err := tokenizer.NewStemmer(c.cfg.Indexer.StemLanguage)
	if err != nil {
		return nil, err
	}
	defer stemmer.Close()

	builder, err := indexer.New(c.cfg.Indexer, c.metrics, restart)
	if err != nil {
		return nil, err
	}
	table, links, err := c.loadState(restart)
	if err != nil {
		return nil, err
	}

	front, err := frontier.New(ctx, c.cfg.Corpus.Dir, c.cfg.Crawler.StateFile, restart, c.metrics)
	if err != nil {
		return nil, err
	}
	defer front.Close()

	if sb, ok := builder.(*indexer.ShardedBuilder); ok {
		// Partials must never reference docIDs the saved table lacks.
		sb.OnFlush(func() error {
			if err := table.Save(c.cfg.Indexer.URLTableFile); err != nil {
				return err
			}
			return links.Save(c.cfg.PageRank.GraphFile)
		})
		flushCtx, stopFlush := context.WithCancel(ctx)
		defer stopFlush()
		sb.StartFlushLoop(flushCtx)
	}

	var filter *dedup.Filter
	if c.cfg.Dedup.Enabled {
		filter = dedup.New(stemmer, c.cfg.Dedup.Capacity, c.cfg.Dedup.Threshold)
	}
	stats := analyzer.NewStats()
	a := analyzer.New(analyzer.Deps{
		Table:     table,
		Builder:   builder,
		Links:     links,
		Dedup:     filter,
		Stemmer:   stemmer,
		Extractor: extract.New(),
		Stats:     stats,
	}, c.cfg.Indexer.StorePositions)

	summary := &Summary{Table: table}

	crawlCtx, span := tracing.StartChildSpan(ctx, "crawl")
	pool := NewPool(PoolConfig{
		Workers:       c.cfg.Crawler.Workers,
		Politeness:    c.cfg.Crawler.Politeness,
		ProgressEvery: c.cfg.Crawler.ProgressEvery,
	}, front, a, c.metrics)
	summary.Pool, err = pool.Run(crawlCtx)
	span.SetAttr("processed", summary.Pool.Processed)
	span.EndWithError(err)
	if err != nil {
		if closeErr := builder.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		return nil, fmt.Errorf("crawl: %w", err)
	}

	_, span = tracing.StartChildSpan(ctx, "merge")
	err = builder.MergeAll(c.cfg.Indexer.CleanupTemp)
	span.EndWithError(err)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	summary.Shards = builder.Stats()

	_, span = tracing.StartChildSpan(ctx, "url_table")
	err = table.Save(c.cfg.Indexer.URLTableFile)
	if err == nil {
		err = links.Save(c.cfg.PageRank.GraphFile)
	}
	span.SetAttr("documents", table.Len())
	span.EndWithError(err)
	if err != nil {
		return nil, fmt.Errorf("saving url table: %w", err)
	}

	_, span = tracing.StartChildSpan(ctx, "pagerank")
	summary.Ranks = pagerank.Compute(links.Snapshot(), c.cfg.PageRank.Damping, c.cfg.PageRank.Iterations)
	err = summary.Ranks.Save(c.cfg.PageRank.OutputFile)
	span.SetAttr("nodes", len(summary.Ranks))
	span.EndWithError(err)
	if err != nil {
		return nil, fmt.Errorf("saving pagerank: %w", err)
	}

	summary.Elapsed = time.Since(start)
	summary.Report = analytics.NewReport(stats.Snapshot(analytics.ReportTopTerms), summary.Shards, summary.Ranks, summary.Elapsed)
	if path := c.cfg.Indexer.ReportFile; path != "" {
		if err := summary.Report.WriteFile(path); err != nil {
			return nil, err
		}
	}

	for _, phase := range phases {
		phaseCtx, span := tracing.StartChildSpan(ctx, phase.Name)
		err := phase.Run(phaseCtx, summary)
		span.EndWithError(err)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", phase.Name, err)
		}
	}

	summary.Timings = root.Timings()[1:]
	c.logger.Info("build complete",
		"documents", table.Len(),
		"duplicates", summary.Pool.Duplicates,
		"failed", summary.Pool.Failed,
		"index_kb", summary.Report.IndexSizeKB,
		"elapsed", summary.Elapsed,
	)
	return summary, nil
}

// loadState restores the URL table and link graph of an interrupted run, or
// starts both empty.
func (c *Crawler) loadState(restart bool) (*doctable.Table, *linkgraph.Recorder, error) {
	tablePath := c.cfg.Indexer.URLTableFile
	graphPath := c.cfg.PageRank.GraphFile
	if restart {
		for _, path := range []string{tablePath, graphPath, c.cfg.PageRank.OutputFile} {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return nil, nil, fmt.Errorf("removing %s: %w", path, err)
			}
		}
		return doctable.New(), linkgraph.NewRecorder(), nil
	}

	table, err := doctable.LoadOrNew(tablePath)
	if err != nil {
		return nil, nil, err
	}
	links := linkgraph.NewRecorder()
	if _, err := os.Stat(graphPath); err == nil {
		if links, err = linkgraph.Load(graphPath); err != nil {
			return nil, nil, err
		}
	}
	if table.Len() > 0 {
		c.logger.Info("resuming build", "documents", table.Len(), "link_sources", links.Len())
	}
	return table, links, nil
}
