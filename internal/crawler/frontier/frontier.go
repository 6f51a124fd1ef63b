// Package frontier is the crash-resumable work queue of the build. Entries
// are corpus file paths persisted in a bbolt store keyed by the SHA-256 of
// the cleaned path; the runnable queue is an in-memory channel sized so that
// sends never block.
package frontier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/metrics"
)

var bucketName = []byte("frontier")

// Entry is the persisted state of one identifier.
type Entry struct {
	ID        string `json:"id"`
	Completed bool   `json:"completed"`
}

type Frontier struct {
	db         *bolt.DB
	queue      chan string
	urlToLocal map[string]string
	logger     *slog.Logger
	metrics    *metrics.Metrics

	// mu serialises store mutations and guards seen.
	mu   sync.Mutex
	seen *bloom.BloomFilter
}

// New scans corpusDir to build the URL to file map, then opens stateFile.
// With restart set, or when the store holds no entries, every corpus file is
// enqueued. Otherwise every stored entry not marked complete is re-queued.
func New(ctx context.Context, corpusDir, stateFile string, restart bool, m *metrics.Metrics) (*Frontier, error) {
	logger := slog.Default().With("component", "frontier")

	files, err := corpus.Walk(corpusDir)
	if err != nil {
		return nil, err
	}
	urlToLocal, err := buildURLMap(ctx, files, logger)
	if err != nil {
		return nil, err
	}

	if restart {
		if err := os.Remove(stateFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("removing frontier state: %w", err)
		}
		logger.Info("previous frontier state discarded", "file", stateFile)
	}
	if err := os.MkdirAll(filepath.Dir(stateFile), 0755); err != nil {
		return nil, fmt.Errorf("creating frontier directory: %w", err)
	}
	db, err := bolt.Open(stateFile, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening frontier store %s: %w", stateFile, err)
	}

	stored := 0
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		stored = b.Stats().KeyN
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialising frontier store: %w", err)
	}

	capacity := len(files) + stored
	f := &Frontier{
		db:         db,
		queue:      make(chan string, capacity),
		urlToLocal: urlToLocal,
		logger:     logger,
		metrics:    m,
		seen:       bloom.NewWithEstimates(uint(max(capacity, 1024)), 0.001),
	}

	if stored == 0 {
		for _, path := range files {
			if _, err := f.Add(path); err != nil {
				db.Close()
				return nil, err
			}
		}
		logger.Info("frontier seeded", "documents", len(files))
		return f, nil
	}
	if err := f.load(); err != nil {
		db.Close()
		return nil, err
	}
	return f, nil
}

// buildURLMap reads every corpus record concurrently and maps its canonical
// URL to its path. Unreadable records are left out.
func buildURLMap(ctx context.Context, files []string, logger *slog.Logger) (map[string]string, error) {
	var mu sync.Mutex
	out := make(map[string]string, len(files))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, path := range files {
		g.Go(func() error {
			doc, err := corpus.Read(path)
			if doc == nil {
				logger.Warn("skipping unreadable record in url map", "path", path, "error", err)
				return nil
			}
			mu.Lock()
			out[corpus.Canonical(doc.URL)] = path
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *Frontier) load() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	total, requeued, skipped := 0, 0, 0
	err := f.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(k, v []byte) error {
			total++
			f.seen.Add(k)
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				f.logger.Error("undecodable frontier entry", "key", string(k), "error", err)
				skipped++
				return nil
			}
			if e.Completed {
				return nil
			}
			if !corpus.IsRecord(e.ID) {
				f.logger.Warn("skipping stale frontier entry", "id", e.ID)
				skipped++
				return nil
			}
			f.queue <- e.ID
			requeued++
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("loading frontier store: %w", err)
	}
	f.metrics.SetQueueDepth(len(f.queue))
	f.logger.Info("frontier recovered",
		"entries", total,
		"requeued", requeued,
		"skipped", skipped,
	)
	return nil
}

// Key is the store key of id.
func Key(id string) []byte {
	sum := sha256.Sum256([]byte(filepath.Clean(id)))
	dst := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(dst, sum[:])
	return dst
}

// Add records id and makes it runnable. It returns false without touching
// the store when id was already recorded.
func (f *Frontier) Add(id string) (bool, error) {
	id = filepath.Clean(id)
	key := Key(id)

	f.mu.Lock()
	defer f.mu.Unlock()
	added := false
	err := f.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if f.seen.Test(key) && b.Get(key) != nil {
			return nil
		}
		v, err := json.Marshal(Entry{ID: id})
		if err != nil {
			return err
		}
		added = true
		return b.Put(key, v)
	})
	if err != nil {
		return false, fmt.Errorf("adding %s to frontier: %w", id, err)
	}
	if !added {
		return false, nil
	}
	f.seen.Add(key)
	select {
	case f.queue <- id:
	default:
		// the queue is sized for every corpus file and stored entry
		return true, fmt.Errorf("frontier queue full adding %s: %w", id, apperrors.ErrInternal)
	}
	f.metrics.SetQueueDepth(len(f.queue))
	return true, nil
}

// MarkComplete persists id as done. Completing an id that was never added
// is logged and still recorded.
func (f *Frontier) MarkComplete(id string) error {
	id = filepath.Clean(id)
	key := Key(id)

	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b.Get(key) == nil {
			f.logger.Error("completing identifier that was never added", "id", id)
		}
		v, err := json.Marshal(Entry{ID: id, Completed: true})
		if err != nil {
			return err
		}
		return b.Put(key, v)
	})
	if err != nil {
		return fmt.Errorf("completing %s: %w", id, err)
	}
	f.seen.Add(key)
	return nil
}

// GetNext returns a runnable id without blocking. ok is false when the
// queue is empty.
func (f *Frontier) GetNext() (id string, ok bool) {
	select {
	case id = <-f.queue:
		f.metrics.SetQueueDepth(len(f.queue))
		return id, true
	default:
		return "", false
	}
}

// Lookup resolves a canonical URL to its corpus file.
func (f *Frontier) Lookup(url string) (string, bool) {
	path, ok := f.urlToLocal[corpus.Canonical(url)]
	return path, ok
}

// URLToLocalMap returns a copy of the canonical URL to file map.
func (f *Frontier) URLToLocalMap() map[string]string {
	out := make(map[string]string, len(f.urlToLocal))
	for u, p := range f.urlToLocal {
		out[u] = p
	}
	return out
}

// Pending is the number of runnable ids.
func (f *Frontier) Pending() int {
	return len(f.queue)
}

// Entry returns the stored state of id.
func (f *Frontier) Entry(id string) (Entry, error) {
	var e Entry
	err := f.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get(Key(id))
		if v == nil {
			return apperrors.ErrDocumentNotFound
		}
		return json.Unmarshal(v, &e)
	})
	if err != nil {
		return Entry{}, fmt.Errorf("frontier entry %s: %w", id, err)
	}
	return e, nil
}

// Counts returns the number of stored and completed entries.
func (f *Frontier) Counts() (total, completed int, err error) {
	err = f.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(_, v []byte) error {
			total++
			var e Entry
			if json.Unmarshal(v, &e) == nil && e.Completed {
				completed++
			}
			return nil
		})
	})
	return total, completed, err
}

func (f *Frontier) Close() error {
	if err := f.db.Close(); err != nil && !errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return err
	}
	return nil
}
