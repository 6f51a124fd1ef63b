package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/analyzer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/errors"
)

type fakeReader struct {
	entries map[int]Entry
	latest  *analytics.Report
}

func (f *fakeReader) Lookup(ctx context.Context, docID int) (Entry, error) {
	e, ok := f.entries[docID]
	if !ok {
		return Entry{}, fmt.Errorf("doc %d: %w", docID, apperrors.ErrDocumentNotFound)
	}
	return e, nil
}

func (f *fakeReader) LatestBuild(ctx context.Context) (*analytics.Report, error) {
	return f.latest, nil
}

func serve(t *testing.T, r Reader, path string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(r).Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestDocumentHandler(t *testing.T) {
	r := &fakeReader{entries: map[int]Entry{
		1: {DocID: 1, URL: "http://site.example/a", PageRank: 0.4},
	}}

	rec := serve(t, r, "/api/v1/documents/1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var e Entry
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatal(err)
	}
	if e.URL != "http://site.example/a" || e.PageRank != 0.4 {
		t.Errorf("entry = %+v", e)
	}

	rec = serve(t, r, "/api/v1/documents/9")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), `"code":"not_found"`) {
		t.Errorf("unknown doc: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec := serve(t, r, "/api/v1/documents/abc"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d, want 400", rec.Code)
	}
}

func TestLatestBuildHandler(t *testing.T) {
	r := &fakeReader{}
	if rec := serve(t, r, "/api/v1/builds/latest"); rec.Code != http.StatusNotFound {
		t.Errorf("no builds: status = %d, want 404", rec.Code)
	}

	r.latest = &analytics.Report{Snapshot: analyzer.Snapshot{Documents: 3}, IndexSizeKB: 12}
	rec := serve(t, r, "/api/v1/builds/latest")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got analytics.Report
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Documents != 3 || got.IndexSizeKB != 12 {
		t.Errorf("report = %+v", got)
	}
}
