package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/crawler"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/events"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/postgres"
)

const publishTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	restart := flag.Bool("restart", false, "discard saved crawl state and rebuild from scratch")
	corpusDir := flag.String("corpus", "", "corpus directory (overrides corpus.dir)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *corpusDir != "" {
		cfg.Corpus.Dir = *corpusDir
	}

	logger.Setup("indexer", cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting index build",
		"corpus", cfg.Corpus.Dir,
		"mode", cfg.Indexer.Mode,
		"workers", cfg.Crawler.Workers,
		"restart", *restart,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdown, err := metrics.StartServer(cfg.Metrics.Port)
		if err != nil {
			slog.Error("failed to start metrics server", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(shutdownCtx)
		}()
	}

	var phases []crawler.Phase
	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		phases = append(phases, catalogPhase(catalog.NewStore(db)))
	}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, false)
		defer producer.Close()
		phases = append(phases, publishPhase(producer, cfg.Indexer.DataDir))
	}

	summary, err := crawler.New(cfg, m).Run(ctx, *restart, phases...)
	if err != nil {
		// An interrupted build leaves its state on disk; rerunning without
		// -restart picks it up.
		slog.Error("index build failed", "error", err)
		os.Exit(1)
	}

	slog.Info("index build finished",
		"documents", summary.Table.Len(),
		"processed", summary.Pool.Processed,
		"duplicates", summary.Pool.Duplicates,
		"failed", summary.Pool.Failed,
		"report", cfg.Indexer.ReportFile,
		"elapsed", summary.Elapsed,
	)
	for _, t := range summary.Timings {
		slog.Info("phase timing", "phase", t.Path, "elapsed", t.Duration.Round(time.Millisecond))
	}
}

// catalogPhase exports the URL table with PageRank scores and records the
// build report.
func catalogPhase(store *catalog.Store) crawler.Phase {
	return crawler.Phase{
		Name: "catalog",
		Run: func(ctx context.Context, s *crawler.Summary) error {
			if err := store.EnsureSchema(ctx); err != nil {
				return err
			}
			if err := store.Export(ctx, catalog.Entries(s.Table, s.Ranks)); err != nil {
				return err
			}
			return store.SaveBuild(ctx, s.Report)
		},
	}
}

// publishPhase announces the finished build so query services reload.
func publishPhase(pub kafka.Publisher, dataDir string) crawler.Phase {
	return crawler.Phase{
		Name: "publish",
		Run: func(ctx context.Context, s *crawler.Summary) error {
			ev := events.NewIndexBuilt(s.Report.Documents, len(s.Shards), s.Report.IndexSizeKB, dataDir)
			return events.Publish(ctx, pub, ev, publishTimeout)
		},
	}
}
