package analytics

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/analyzer"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/pagerank"
)

// ReportTopTerms is how many terms the build report lists.
const ReportTopTerms = 50

// ShardLine is one row of the per-shard table.
type ShardLine struct {
	Key string
	indexer.ShardStats
}

// Report summarises one build run.
type Report struct {
	GeneratedAt time.Time
	Elapsed     time.Duration
	analyzer.Snapshot
	IndexSizeKB int64
	Shards      []ShardLine
	TopPages    []pagerank.Entry
}

// NewReport assembles a report from the analyzer counters, the final shard
// statistics and the computed ranks. ranks may be nil.
func NewReport(snap analyzer.Snapshot, shards map[string]indexer.ShardStats, ranks pagerank.Ranks, elapsed time.Duration) Report {
	lines := make([]ShardLine, 0, len(shards))
	for key, s := range shards {
		lines = append(lines, ShardLine{Key: key, ShardStats: s})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Key < lines[j].Key })

	return Report{
		GeneratedAt: time.Now().UTC(),
		Elapsed:     elapsed,
		Snapshot:    snap,
		IndexSizeKB: (indexer.TotalSize(shards) + 1023) / 1024,
		Shards:      lines,
		TopPages:    ranks.Top(10),
	}
}

// WriteFile renders the report as plain text at path.
func (r Report) WriteFile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	w := bufio.NewWriter(f)
	r.render(w)
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	return f.Close()
}

func (r Report) render(w *bufio.Writer) {
	fmt.Fprintf(w, "Index build report (%s)\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Elapsed: %s\n\n", r.Elapsed.Round(time.Millisecond))

	fmt.Fprintf(w, "Indexed documents: %d\n", r.Documents)
	fmt.Fprintf(w, "Unique pages: %d\n", r.UniquePages)
	fmt.Fprintf(w, "Unique tokens: %d\n", r.UniqueTokens)
	fmt.Fprintf(w, "Total tokens: %d\n", r.TotalTokens)
	fmt.Fprintf(w, "Duplicates skipped: %d\n", r.Duplicates)
	fmt.Fprintf(w, "Failed documents: %d\n", r.Failed)
	fmt.Fprintf(w, "Index size: %d KB\n\n", r.IndexSizeKB)

	fmt.Fprintln(w, "Shards:")
	for _, s := range r.Shards {
		fmt.Fprintf(w, "  %-2s terms=%-8d postings=%-9d size=%dKB\n",
			s.Key, s.Terms, s.Postings, (s.SizeBytes+1023)/1024)
	}

	fmt.Fprintf(w, "\nTop %d terms:\n", len(r.TopTerms))
	for i, tc := range r.TopTerms {
		fmt.Fprintf(w, "%3d. %s (%d)\n", i+1, tc.Term, tc.Count)
	}

	if len(r.TopPages) > 0 {
		fmt.Fprintln(w, "\nTop pages by PageRank:")
		for i, e := range r.TopPages {
			fmt.Fprintf(w, "%3d. %.6f %s\n", i+1, e.Rank, e.URL)
		}
	}
}
