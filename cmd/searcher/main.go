package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/events"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/searcher/engine"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/searcher/suggest"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/redis"
)

const (
	analyticsBatchSize     = 100
	analyticsFlushInterval = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup("searcher", cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "data_dir", cfg.Indexer.DataDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	stemmer, err := tokenizer.NewStemmer(cfg.Indexer.StemLanguage)
	if err != nil {
		slog.Error("failed to create stemmer", "error", err)
		os.Exit(1)
	}
	defer stemmer.Close()

	eng, err := engine.New(engine.Config{
		DataDir:        cfg.Indexer.DataDir,
		URLTableFile:   cfg.Indexer.URLTableFile,
		RankFile:       cfg.PageRank.OutputFile,
		MaxResults:     cfg.Search.MaxResults,
		ShardCacheSize: cfg.Search.ShardCacheSize,
		ImportantBoost: cfg.Search.ImportantBoost,
		PageRankWeight: cfg.Search.PageRankWeight,
	}, stemmer, m)
	if err != nil {
		slog.Error("failed to load index", "error", err)
		os.Exit(1)
	}
	slog.Info("index loaded",
		"documents", eng.TotalDocs(),
		"terms", len(eng.Vocabulary()),
	)

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("search cache enabled",
				"addr", cfg.Redis.Addr,
				"ttl", cfg.Redis.CacheTTL,
			)
		}
	}

	aggregator := analytics.NewAggregator()
	var collector *analytics.Collector
	if cfg.Kafka.Enabled {
		analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, true)
		defer analyticsProducer.Close()
		collector = analytics.NewCollector(aggregator, analyticsProducer, analyticsBatchSize, analyticsFlushInterval)

		analyticsConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(aggregator))
		go func() {
			if err := analyticsConsumer.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()
		slog.Info("analytics pipeline started", "topic", cfg.Kafka.Topics.AnalyticsEvents)
	} else {
		collector = analytics.NewCollector(aggregator, nil, 0, 0)
	}
	collector.Start(ctx)
	defer collector.Close()

	var suggester *suggest.Suggester
	if cfg.Search.Suggestions {
		suggester = suggest.New(cfg.Search.MinSuggestSimilarity)
	}

	h := handler.New(handler.Deps{
		Engine:     eng,
		Cache:      queryCache,
		Collector:  collector,
		Suggester:  suggester,
		Metrics:    m,
		MaxResults: cfg.Search.MaxResults,
	})

	if cfg.Kafka.Enabled {
		reload := func(ctx context.Context, ev events.IndexBuilt) error {
			slog.Info("index built event received", "build_id", ev.BuildID, "documents", ev.Documents)
			return h.ReloadIndex(ctx)
		}
		listener := events.NewListener(kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, events.Handler(reload)))
		go func() {
			if err := listener.Start(ctx); err != nil {
				slog.Error("index event listener error", "error", err)
			}
		}()
	}

	checker := health.NewChecker()
	checker.Register("query_engine", func(ctx context.Context) health.ComponentHealth {
		if !eng.Ready() {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no index loaded"}
		}
		stats := eng.CacheStats()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: stats.Summary(),
		}
	})
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient.Ping, false))
	}

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	var limiter *middleware.ClientLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewClientLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst, 10*time.Minute)
		limiter.StartSweeper(ctx, 5*time.Minute)
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RateLimit(limiter)(chain)
	chain = middleware.CORS(cfg.Server.CORSOrigins)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
