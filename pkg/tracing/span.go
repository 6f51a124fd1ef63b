// Package tracing records a tree of timed spans carried through a context.
// The indexer opens one span per build phase and logs the tree when the
// build ends.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type spanKey struct{}

// Span is one timed step of a traced operation.
type Span struct {
	Name    string
	TraceID string
	Start   time.Time

	mu       sync.Mutex
	duration time.Duration
	ended    bool
	err      error
	attrs    []slog.Attr
	children []*Span
}

// Timing is the flattened view of one span. Path joins the names from the
// root with "/".
type Timing struct {
	Path     string        `json:"path"`
	Duration time.Duration `json:"duration"`
	Failed   bool          `json:"failed,omitempty"`
}

// StartSpan begins a root span. An empty traceID is replaced by a random one.
func StartSpan(ctx context.Context, name string, traceID string) (context.Context, *Span) {
	if traceID == "" {
		traceID = uuid.NewString()
	}
	s := &Span{Name: name, TraceID: traceID, Start: time.Now()}
	return context.WithValue(ctx, spanKey{}, s), s
}

// StartChildSpan begins a span under the one in ctx. Without a parent the
// span is detached and has no trace id.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{Name: name, Start: time.Now()}
	if parent := SpanFromContext(ctx); parent != nil {
		s.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, s)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, spanKey{}, s), s
}

// SpanFromContext returns the innermost span in ctx, or nil.
func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

// End fixes the span's duration. Only the first call counts.
func (s *Span) End() {
	s.EndWithError(nil)
}

// EndWithError ends the span and records err as its outcome.
func (s *Span) EndWithError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.duration = time.Since(s.Start)
	s.err = err
}

// SetAttr attaches a value to the span. A repeated key overwrites.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.attrs {
		if s.attrs[i].Key == key {
			s.attrs[i].Value = slog.AnyValue(value)
			return
		}
	}
	s.attrs = append(s.attrs, slog.Any(key, value))
}

// Attr returns the value stored under key.
func (s *Span) Attr(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attrs {
		if a.Key == key {
			return a.Value.Any(), true
		}
	}
	return nil, false
}

// Err is the error the span ended with.
func (s *Span) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Duration is the span's length, or the time elapsed so far if it is still
// open.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		return time.Since(s.Start)
	}
	return s.duration
}

// Children returns the direct child spans in start order.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// Timings flattens the tree depth first, s included.
func (s *Span) Timings() []Timing {
	var out []Timing
	s.walk("", func(path string, sp *Span) {
		out = append(out, Timing{Path: path, Duration: sp.Duration(), Failed: sp.Err() != nil})
	})
	return out
}

func (s *Span) walk(prefix string, fn func(path string, sp *Span)) {
	path := s.Name
	if prefix != "" {
		path = prefix + "/" + s.Name
	}
	fn(path, s)
	for _, c := range s.Children() {
		c.walk(path, fn)
	}
}

// Log writes one record per span to logger, or to slog.Default when nil.
// Failed spans are logged at warn level.
func (s *Span) Log(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	s.walk("", func(path string, sp *Span) {
		sp.mu.Lock()
		attrs := make([]slog.Attr, 0, len(sp.attrs)+4)
		attrs = append(attrs,
			slog.String("trace_id", sp.TraceID),
			slog.String("span", path),
			slog.Int64("duration_ms", sp.duration.Milliseconds()),
		)
		attrs = append(attrs, sp.attrs...)
		level := slog.LevelInfo
		if sp.err != nil {
			attrs = append(attrs, slog.String("error", sp.err.Error()))
			level = slog.LevelWarn
		}
		sp.mu.Unlock()
		logger.LogAttrs(context.Background(), level, "span", attrs...)
	})
}
