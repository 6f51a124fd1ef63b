// Package crawler runs the build phase: a pool of workers drains the
// frontier through the analyzer, then the orchestrator merges the index,
// saves the URL table and computes PageRank.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/analyzer"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/crawler/frontier"
	apperrors "github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/metrics"
)

// Queue is the part of the frontier the workers use.
type Queue interface {
	GetNext() (string, bool)
	Add(id string) (bool, error)
	MarkComplete(id string) error
	Lookup(url string) (string, bool)
}

var _ Queue = (*frontier.Frontier)(nil)

// PoolConfig sizes the pool.
type PoolConfig struct {
	Workers       int
	Politeness    time.Duration
	ProgressEvery int
}

// PoolStats counts worker outcomes.
type PoolStats struct {
	Processed  int64
	Indexed    int64
	Duplicates int64
	Failed     int64
	Discovered int64
}

type Pool struct {
	cfg      PoolConfig
	queue    Queue
	analyzer *analyzer.Analyzer
	metrics  *metrics.Metrics
	logger   *slog.Logger

	processed  atomic.Int64
	indexed    atomic.Int64
	duplicates atomic.Int64
	failed     atomic.Int64
	discovered atomic.Int64
}

func NewPool(cfg PoolConfig, queue Queue, a *analyzer.Analyzer, m *metrics.Metrics) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Pool{
		cfg:      cfg,
		queue:    queue,
		analyzer: a,
		metrics:  m,
		logger:   slog.Default().With("component", "worker-pool"),
	}
}

// Run starts the workers and waits for all of them. A worker exits the first
// time the frontier has nothing for it. Document-level failures are logged
// and the document is marked complete; builder and frontier store errors
// stop the pool.
func (p *Pool) Run(ctx context.Context) (PoolStats, error) {
	p.logger.Info("starting workers", "workers", p.cfg.Workers)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		worker := i
		g.Go(func() error {
			return p.work(ctx, worker)
		})
	}
	err := g.Wait()
	stats := p.Stats()
	p.logger.Info("workers finished",
		"processed", stats.Processed,
		"indexed", stats.Indexed,
		"duplicates", stats.Duplicates,
		"failed", stats.Failed,
	)
	return stats, err
}

func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Processed:  p.processed.Load(),
		Indexed:    p.indexed.Load(),
		Duplicates: p.duplicates.Load(),
		Failed:     p.failed.Load(),
		Discovered: p.discovered.Load(),
	}
}

func (p *Pool) work(ctx context.Context, worker int) error {
	logger := p.logger.With("worker", worker)
	// Each worker spaces its own documents at least Politeness apart.
	var limiter *rate.Limiter
	if p.cfg.Politeness > 0 {
		limiter = rate.NewLimiter(rate.Every(p.cfg.Politeness), 1)
	}
	for {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		id, ok := p.queue.GetNext()
		if !ok {
			logger.Debug("frontier empty, worker exiting")
			return nil
		}
		if err := p.process(id, logger); err != nil {
			return err
		}
		if err := p.queue.MarkComplete(id); err != nil {
			return fmt.Errorf("marking %s complete: %w", id, err)
		}

		n := p.processed.Add(1)
		if p.cfg.ProgressEvery > 0 && n%int64(p.cfg.ProgressEvery) == 0 {
			p.logger.Info("progress", "processed", n, "indexed", p.indexed.Load())
		}
	}
}

// process analyzes one corpus file and enqueues the corpus files its links
// point at. Only errors that must stop the build are returned.
func (p *Pool) process(id string, logger *slog.Logger) error {
	doc, err := corpus.Read(id)
	if err != nil {
		p.fail(id, err, logger)
		return nil
	}
	res, err := p.analyzer.Analyze(doc.URL, doc.Content)
	if err != nil {
		if errors.Is(err, apperrors.ErrMalformedDocument) {
			p.fail(id, err, logger)
			return nil
		}
		return err
	}
	if res.Duplicate {
		p.duplicates.Add(1)
		p.metrics.DocProcessed("duplicate")
	} else {
		p.indexed.Add(1)
		p.metrics.DocProcessed("indexed")
	}

	for _, link := range res.Links {
		path, ok := p.queue.Lookup(link)
		if !ok {
			continue
		}
		added, err := p.queue.Add(path)
		if err != nil {
			return fmt.Errorf("enqueueing %s: %w", path, err)
		}
		if added {
			p.discovered.Add(1)
		}
	}
	return nil
}

func (p *Pool) fail(id string, err error, logger *slog.Logger) {
	p.failed.Add(1)
	p.analyzer.Stats.AddFailure()
	p.metrics.DocProcessed("failed")
	logger.Warn("document skipped", "file", id, "error", err)
}
