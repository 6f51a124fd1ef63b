// Command analytics aggregates search events from every query service
// replica and serves the build catalog.
//
// It reads analytics events and index built events from Kafka under its own
// consumer group, so it sees every event regardless of how many query
// services share the default group. With PostgreSQL enabled it also answers
// document and build lookups from the catalog the indexer exports.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml] [-port 8081]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/events"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", 8081, "HTTP port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup("analytics", cfg.Logging.Level, cfg.Logging.Format)
	if !cfg.Kafka.Enabled {
		slog.Error("analytics service needs kafka.enabled")
		os.Exit(1)
	}
	slog.Info("starting analytics service", "port", *port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kafkaCfg := cfg.Kafka
	kafkaCfg.ConsumerGroup = cfg.Kafka.ConsumerGroup + "-analytics"

	aggregator := analytics.NewAggregator()
	eventsConsumer := kafka.NewConsumer(kafkaCfg, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(aggregator))
	go func() {
		if err := eventsConsumer.Start(ctx); err != nil {
			slog.Error("analytics consumer error", "error", err)
		}
	}()
	slog.Info("analytics aggregator started", "topic", cfg.Kafka.Topics.AnalyticsEvents, "group", kafkaCfg.ConsumerGroup)

	var builds atomic.Int64
	var lastBuild atomic.Pointer[events.IndexBuilt]
	onBuild := func(ctx context.Context, ev events.IndexBuilt) error {
		builds.Add(1)
		lastBuild.Store(&ev)
		slog.Info("index build announced",
			"build_id", ev.BuildID,
			"documents", ev.Documents,
			"index_kb", ev.IndexSizeKB,
		)
		return nil
	}
	listener := events.NewListener(kafka.NewConsumer(kafkaCfg, cfg.Kafka.Topics.IndexComplete, events.Handler(onBuild)))
	go func() {
		if err := listener.Start(ctx); err != nil {
			slog.Error("index event listener error", "error", err)
		}
	}()

	checker := health.NewChecker()
	checker.Register("index_builds", func(ctx context.Context) health.ComponentHealth {
		ev := lastBuild.Load()
		if ev == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "no build announced yet"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d builds seen, latest %s with %d documents", builds.Load(), ev.BuildID, ev.Documents),
		}
	})
	checker.Register("search_events", func(ctx context.Context) health.ComponentHealth {
		s := eventsConsumer.Stats()
		status := health.StatusUp
		if s.Dropped > 0 && s.Dropped*10 > s.Handled {
			status = health.StatusDegraded
		}
		return health.ComponentHealth{
			Status:  status,
			Message: fmt.Sprintf("%d events handled, %d dropped", s.Handled, s.Dropped),
		}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator).Stats)

	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store := catalog.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare catalog schema", "error", err)
			os.Exit(1)
		}
		catalog.NewHandler(store).Register(mux)
		checker.Register("postgres", health.PingCheck(db.Ping, true))
	}

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.CORS(cfg.Server.CORSOrigins)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
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

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
