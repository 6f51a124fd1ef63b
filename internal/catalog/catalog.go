// Package catalog exports the document table of a finished build to
// PostgreSQL: one row per docID with its URL and PageRank, plus one row per
// build holding the report.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer/doctable"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/pagerank"
	apperrors "github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/postgres"
)

// Schema creates the catalog tables.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
	    doc_id     INTEGER PRIMARY KEY,
	    url        TEXT NOT NULL UNIQUE,
	    page_rank  DOUBLE PRECISION NOT NULL DEFAULT 0,
	    indexed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS index_builds (
	    id          BIGSERIAL PRIMARY KEY,
	    report      JSONB NOT NULL,
	    captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Entry is one catalog row.
type Entry struct {
	DocID    int     `json:"doc_id"`
	URL      string  `json:"url"`
	PageRank float64 `json:"page_rank"`
}

type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "catalog"),
	}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := s.db.Exec(ctx, Schema...); err != nil {
		return fmt.Errorf("creating catalog schema: %w", err)
	}
	return nil
}

// Entries pairs every docID in table with its URL's rank, in docID order.
// Documents missing from ranks get 0.
func Entries(table *doctable.Table, ranks pagerank.Ranks) []Entry {
	snap := table.Snapshot()
	out := make([]Entry, 0, len(snap))
	for id, url := range snap {
		out = append(out, Entry{DocID: id, URL: url, PageRank: ranks[url]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocID < out[j].DocID })
	return out
}

// Export upserts every entry in a single transaction.
func (s *Store) Export(ctx context.Context, entries []Entry) error {
	now := time.Now().UTC()
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO documents (doc_id, url, page_rank, indexed_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (doc_id) DO UPDATE
			SET url = EXCLUDED.url, page_rank = EXCLUDED.page_rank, indexed_at = EXCLUDED.indexed_at`)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()
		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx, e.DocID, e.URL, e.PageRank, now); err != nil {
				return fmt.Errorf("upserting doc %d: %w", e.DocID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("catalog exported", "documents", len(entries))
	return nil
}

// Lookup returns the catalog row for docID.
func (s *Store) Lookup(ctx context.Context, docID int) (Entry, error) {
	e := Entry{DocID: docID}
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT url, page_rank FROM documents WHERE doc_id = $1`, docID,
	).Scan(&e.URL, &e.PageRank)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("doc %d: %w", docID, apperrors.ErrDocumentNotFound)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("looking up doc %d: %w", docID, err)
	}
	return e, nil
}

// SaveBuild records the report of one build.
func (s *Store) SaveBuild(ctx context.Context, report analytics.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO index_builds (report, captured_at) VALUES ($1, $2)`,
		data, report.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("saving build report: %w", err)
	}
	return nil
}

// LatestBuild loads the most recent build report. It returns nil, nil when
// no build was recorded yet.
func (s *Store) LatestBuild(ctx context.Context) (*analytics.Report, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT report FROM index_builds ORDER BY captured_at DESC, id DESC LIMIT 1`,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest build: %w", err)
	}
	var r analytics.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshaling build report: %w", err)
	}
	return &r, nil
}
