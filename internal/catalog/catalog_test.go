package catalog

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/analyzer"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/doctable"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/pagerank"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/postgres"
)

func TestEntries(t *testing.T) {
	table := doctable.New()
	table.AddEntry("http://site.example/b")
	table.AddEntry("http://site.example/a")
	ranks := pagerank.Ranks{"http://site.example/a": 0.7}

	got := Entries(table, ranks)
	if len(got) != 2 {
		t.Fatalf("entries = %+v", got)
	}
	if got[0].DocID != 1 || got[0].URL != "http://site.example/b" || got[0].PageRank != 0 {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].PageRank != 0.7 {
		t.Errorf("second = %+v", got[1])
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("SP_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skipf("SP_TEST_POSTGRES_DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := postgres.NewFromDB(ctx, db, config.PostgresConfig{})
	if err != nil {
		t.Skipf("postgres not reachable: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	s := NewStore(client)
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	if err := client.Exec(ctx, "TRUNCATE documents", "TRUNCATE index_builds"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return s
}

func TestExportAndLookup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Export(ctx, []Entry{{DocID: 1, URL: "http://a/", PageRank: 0.4}}); err != nil {
		t.Fatalf("export: %v", err)
	}
	if err := s.Export(ctx, []Entry{{DocID: 1, URL: "http://a/", PageRank: 0.9}}); err != nil {
		t.Fatalf("re-export: %v", err)
	}
	e, err := s.Lookup(ctx, 1)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if e.PageRank != 0.9 {
		t.Errorf("rank = %v, want upserted 0.9", e.PageRank)
	}
	if _, err := s.Lookup(ctx, 99); !errors.Is(err, apperrors.ErrDocumentNotFound) {
		t.Errorf("missing doc err = %v", err)
	}
}

func TestSaveBuild(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if r, err := s.LatestBuild(ctx); err != nil || r != nil {
		t.Fatalf("empty table: %v, %v", r, err)
	}
	report := analytics.NewReport(analyzer.Snapshot{Documents: 7}, nil, nil, time.Second)
	if err := s.SaveBuild(ctx, report); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.LatestBuild(ctx)
	if err != nil || got == nil {
		t.Fatalf("latest: %v, %v", got, err)
	}
	if got.Documents != 7 {
		t.Errorf("documents = %d, want 7", got.Documents)
	}
}
