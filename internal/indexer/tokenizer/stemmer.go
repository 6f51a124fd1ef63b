package tokenizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/kljensen/snowball"
)

// exceptions are domain words the Snowball algorithm would mangle. They win
// over the algorithm and are memoized like any other stem.
var exceptions = map[string]string{
	"repository":  "repository",
	"machine":     "machine",
	"database":    "database",
	"series":      "series",
	"instances":   "instance",
	"attribute":   "attribute",
	"categorical": "category",
	"integer":     "integer",
	"missing":     "missing",
	"university":  "university",
}

// Stemmer reduces tokens to their Snowball stem, consulting the exception
// table first. Results are memoized; Stem is safe for concurrent use.
type Stemmer struct {
	language string
	memo     *bigcache.BigCache
	logger   *slog.Logger
}

// NewStemmer builds a stemmer for a Snowball language ("english", "spanish",
// ...). An unsupported language is an error.
func NewStemmer(language string) (*Stemmer, error) {
	if _, err := snowball.Stem("testing", language, true); err != nil {
		return nil, fmt.Errorf("snowball language %q: %w", language, err)
	}
	cfg := bigcache.DefaultConfig(24 * time.Hour)
	cfg.Shards = 64
	cfg.MaxEntriesInWindow = 100000
	cfg.CleanWindow = 0
	cfg.HardMaxCacheSize = 64
	cfg.MaxEntrySize = 64
	cfg.Verbose = false
	memo, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("creating stem memo: %w", err)
	}
	return &Stemmer{
		language: language,
		memo:     memo,
		logger:   slog.Default().With("component", "stemmer"),
	}, nil
}

// Stem returns the canonical term for token.
func (s *Stemmer) Stem(token string) string {
	if cached, err := s.memo.Get(token); err == nil {
		return string(cached)
	} else if !errors.Is(err, bigcache.ErrEntryNotFound) {
		s.logger.Debug("stem memo read failed", "token", token, "error", err)
	}

	stemmed, ok := exceptions[token]
	if !ok {
		var err error
		stemmed, err = snowball.Stem(token, s.language, true)
		if err != nil || stemmed == "" {
			stemmed = token
		}
	}
	if err := s.memo.Set(token, []byte(stemmed)); err != nil {
		s.logger.Debug("stem memo write failed", "token", token, "error", err)
	}
	return stemmed
}

// MemoSize is the number of memoized stems.
func (s *Stemmer) MemoSize() int {
	return s.memo.Len()
}

func (s *Stemmer) Close() error {
	return s.memo.Close()
}
