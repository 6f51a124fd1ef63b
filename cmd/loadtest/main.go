package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/searcher/handler"
)

var defaultQueries = []string{
	"machine learning",
	"computer science",
	"software engineering",
	"information retrieval",
	"graduate courses",
	"research faculty",
	"student advising",
	"artificial intelligence",
	"data structures",
	"master of software",
}

type result struct {
	latency  time.Duration
	status   int
	cacheHit bool
	zero     bool
	err      error
}

type tally struct {
	mu        sync.Mutex
	latencies []time.Duration
	statuses  map[int]int
	errors    atomic.Int64
	cacheHits atomic.Int64
	zero      atomic.Int64
}

func (t *tally) add(r result) {
	if r.err != nil {
		t.errors.Add(1)
		return
	}
	if r.cacheHit {
		t.cacheHits.Add(1)
	}
	if r.zero {
		t.zero.Add(1)
	}
	t.mu.Lock()
	t.latencies = append(t.latencies, r.latency)
	t.statuses[r.status]++
	t.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent clients")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	queryFile := flag.String("queries", "", "file with one query per line (default: built-in list)")
	flag.Parse()

	queries := defaultQueries
	if *queryFile != "" {
		loaded, err := readQueries(*queryFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading queries: %v\n", err)
			os.Exit(1)
		}
		queries = loaded
	}

	fmt.Printf("target %s, %d clients, %s, %d queries\n", *baseURL, *concurrency, *duration, len(queries))

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        *concurrency * 2,
			MaxIdleConnsPerHost: *concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	t := &tally{statuses: make(map[int]int)}
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < *concurrency; w++ {
		next := w
		g.Go(func() error {
			for ctx.Err() == nil {
				r := search(ctx, client, *baseURL, queries[next%len(queries)])
				next++
				if ctx.Err() != nil {
					return nil
				}
				t.add(r)
			}
			return nil
		})
	}
	g.Wait()

	if !report(t, *duration) {
		os.Exit(1)
	}
}

func search(ctx context.Context, client *http.Client, base, query string) result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/v1/search?q="+url.QueryEscape(query), nil)
	if err != nil {
		return result{err: err}
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return result{err: err}
	}
	defer resp.Body.Close()
	r := result{status: resp.StatusCode}
	if resp.StatusCode == http.StatusOK {
		var body handler.SearchResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return result{err: fmt.Errorf("decoding response: %w", err)}
		}
		r.cacheHit = body.CacheHit
		r.zero = len(body.Results) == 0
	}
	r.latency = time.Since(start)
	return r
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			out = append(out, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s has no queries", path)
	}
	return out, nil
}

// report prints the summary and reports whether any request completed.
func report(t *tally, duration time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	done := len(t.latencies)
	total := done + int(t.errors.Load())
	fmt.Printf("requests:   %d (%.1f/s)\n", total, float64(total)/duration.Seconds())
	fmt.Printf("errors:     %d\n", t.errors.Load())
	if done == 0 {
		fmt.Println("no requests completed; is the search service running?")
		return false
	}
	fmt.Printf("cache hits: %d (%.1f%%)\n", t.cacheHits.Load(), 100*float64(t.cacheHits.Load())/float64(done))
	fmt.Printf("zero hits:  %d\n", t.zero.Load())

	slices.Sort(t.latencies)
	for _, p := range []int{50, 90, 95, 99} {
		fmt.Printf("p%d:        %s\n", p, t.latencies[(done-1)*p/100])
	}
	fmt.Printf("max:        %s\n", t.latencies[done-1])

	codes := make([]int, 0, len(t.statuses))
	for code := range t.statuses {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Printf("status %d: %d\n", code, t.statuses[code])
	}
	return true
}
