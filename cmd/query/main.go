package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/searcher/engine"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/searcher/suggest"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	// Keep the prompt readable; only warnings and errors reach stderr.
	logger.Setup("query", "warn", cfg.Logging.Format)

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
	}, stemmer, nil)
	if err != nil {
		slog.Error("failed to load index", "error", err)
		os.Exit(1)
	}

	var suggester *suggest.Suggester
	if cfg.Search.Suggestions {
		suggester = suggest.New(cfg.Search.MinSuggestSimilarity)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("%d documents indexed. Empty line or Ctrl-D to quit.\n", eng.TotalDocs())
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("Enter query: ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || ctx.Err() != nil {
			break
		}

		start := time.Now()
		q := eng.Parse(line)
		results, err := eng.Search(ctx, q)
		elapsed := time.Since(start)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		if len(results) == 0 {
			fmt.Println("No results.")
			if suggester != nil {
				if s := suggester.Suggest(q.Words, eng.Vocabulary()); len(s) > 0 {
					fmt.Printf("Did you mean: %s?\n", strings.Join(s, ", "))
				}
			}
		}
		for i, r := range results {
			fmt.Printf("%d. %s (%.4f)\n", i+1, r.URL, r.Score)
		}
		fmt.Printf("Search took %.2f ms\n\n", float64(elapsed.Microseconds())/1000)
	}
}
