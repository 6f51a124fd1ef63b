// Package handler serves the query engine over HTTP: a JSON search API, an
// HTML search form, index reload and cache administration.
package handler

import (
	"context"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/searcher/engine"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/searcher/suggest"
	apperrors "github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/middleware"
)

// Searcher is the query engine as seen by the handlers.
type Searcher interface {
	Parse(raw string) *parser.Query
	Search(ctx context.Context, q *parser.Query) ([]engine.Result, error)
	Vocabulary() []string
	Reload() error
	CacheStats() engine.CacheStats
}

var _ Searcher = (*engine.Engine)(nil)

// Deps are the handler collaborators. Only Engine is required.
type Deps struct {
	Engine     Searcher
	Cache      *cache.QueryCache
	Collector  *analytics.Collector
	Suggester  *suggest.Suggester
	Metrics    *metrics.Metrics
	MaxResults int
}

type Handler struct {
	Deps
	logger *slog.Logger
}

// SearchResponse is the JSON body of /api/v1/search.
type SearchResponse struct {
	Query       string          `json:"query"`
	Terms       []string        `json:"terms"`
	Results     []engine.Result `json:"results"`
	Suggestions []string        `json:"suggestions,omitempty"`
	CacheHit    bool            `json:"cache_hit"`
	LatencyMs   float64         `json:"latency_ms"`
}

func New(deps Deps) *Handler {
	if deps.MaxResults <= 0 {
		deps.MaxResults = 5
	}
	return &Handler{
		Deps:   deps,
		logger: slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Form)
	mux.HandleFunc("POST /{$}", h.FormResults)
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/index/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Search serves GET /api/v1/search?q=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	resp, err := h.run(r.Context(), query)
	if err != nil {
		h.fail(w, err, "search failed")
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Form serves the empty search page.
func (h *Handler) Form(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, pageData{})
}

// FormResults answers a query posted from the search page.
func (h *Handler) FormResults(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, http.StatusBadRequest, pageData{Error: "could not read the form"})
		return
	}
	query := r.PostFormValue("user_query")
	if query == "" {
		h.render(w, http.StatusOK, pageData{})
		return
	}
	resp, err := h.run(r.Context(), query)
	if err != nil {
		h.render(w, apperrors.HTTPStatusCode(err), pageData{Query: query, Error: "search failed"})
		return
	}
	h.render(w, http.StatusOK, pageData{Query: query, Response: resp})
}

// run answers one query, going through the result cache when configured,
// and reports it to metrics and analytics.
func (h *Handler) run(ctx context.Context, raw string) (*SearchResponse, error) {
	start := time.Now()
	log := logger.FromContext(ctx)
	q := h.Engine.Parse(raw)

	compute := func() (*cache.Entry, error) {
		results, err := h.Engine.Search(ctx, q)
		if err != nil {
			return nil, err
		}
		entry := &cache.Entry{Terms: q.Terms, Results: results}
		if len(results) == 0 && h.Suggester != nil {
			entry.Suggestions = h.Suggester.Suggest(q.Words, h.Engine.Vocabulary())
		}
		return entry, nil
	}

	var (
		entry    *cache.Entry
		cacheHit bool
		err      error
	)
	if h.Cache != nil && !q.Empty() {
		entry, cacheHit, err = h.Cache.GetOrCompute(ctx, q.Terms, h.MaxResults, compute)
	} else {
		entry, err = compute()
	}
	elapsed := time.Since(start)
	if err != nil {
		h.Metrics.QueryServed(0, false, elapsed, err)
		log.Error("search failed", "query", raw, "error", err)
		return nil, err
	}
	h.Metrics.QueryServed(len(entry.Results), cacheHit, elapsed, nil)

	log.Info("search completed",
		"query", raw,
		"terms", q.Terms,
		"returned", len(entry.Results),
		"cache_hit", cacheHit,
		"latency", elapsed,
	)
	if h.Collector != nil {
		h.Collector.Track(analytics.NewSearchEvent(raw, q.Terms, len(entry.Results), elapsed, cacheHit, middleware.GetRequestID(ctx)))
	}

	results := entry.Results
	if results == nil {
		results = []engine.Result{}
	}
	return &SearchResponse{
		Query:       raw,
		Terms:       q.Terms,
		Results:     results,
		Suggestions: entry.Suggestions,
		CacheHit:    cacheHit,
		LatencyMs:   float64(elapsed.Microseconds()) / 1000,
	}, nil
}

// Reload serves POST /api/v1/index/reload.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.ReloadIndex(r.Context()); err != nil {
		h.fail(w, err, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, h.Engine.CacheStats())
}

// ReloadIndex swaps in the current build and drops cached results. It is
// also the reaction to an index built event.
func (h *Handler) ReloadIndex(ctx context.Context) error {
	if err := h.Engine.Reload(); err != nil {
		h.logger.Error("index reload failed", "error", err)
		return err
	}
	if h.Cache != nil {
		if err := h.Cache.Invalidate(ctx); err != nil {
			h.logger.Warn("result cache not invalidated after reload", "error", err)
		}
	}
	return nil
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"shards": h.Engine.CacheStats()}
	if h.Cache != nil {
		hits, misses := h.Cache.Stats()
		body["results"] = map[string]any{
			"hits":    hits,
			"misses":  misses,
			"breaker": h.Cache.BreakerState(),
		}
	}
	h.writeJSON(w, http.StatusOK, body)
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.Cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.Cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// fail answers with the status and code err maps to.
func (h *Handler) fail(w http.ResponseWriter, err error, message string) {
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{
		"error": message,
		"code":  apperrors.Code(err),
	})
}

type pageData struct {
	Query    string
	Error    string
	Response *SearchResponse
}

func (h *Handler) render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, data); err != nil {
		h.logger.Error("failed to render page", "error", err)
	}
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Corpus Search</title></head>
<body>
<h1>Corpus Search</h1>
<form method="POST" action="/">
  <input type="text" name="user_query" value="{{.Query}}" autofocus>
  <button type="submit">Search</button>
</form>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{with .Response}}
  {{if .Results}}
  <ol>
    {{range .Results}}<li><a href="{{.URL}}">{{.URL}}</a> <small>{{printf "%.4f" .Score}}</small></li>
    {{end}}
  </ol>
  {{else}}
  <p>No results for <b>{{.Query}}</b>.</p>
  {{if .Suggestions}}<p>Did you mean: {{range $i, $s := .Suggestions}}{{if $i}}, {{end}}<i>{{$s}}</i>{{end}}?</p>{{end}}
  {{end}}
  <p><small>{{len .Results}} results in {{printf "%.2f" .LatencyMs}} ms</small></p>
{{end}}
</body>
</html>
`))
