package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/analytics"
	apperrors "github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/errors"
)

// Reader is the read side of the catalog.
type Reader interface {
	Lookup(ctx context.Context, docID int) (Entry, error)
	LatestBuild(ctx context.Context) (*analytics.Report, error)
}

var _ Reader = (*Store)(nil)

type Handler struct {
	reader Reader
	logger *slog.Logger
}

func NewHandler(reader Reader) *Handler {
	return &Handler{
		reader: reader,
		logger: slog.Default().With("component", "catalog-handler"),
	}
}

// Register mounts the catalog routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Document)
	mux.HandleFunc("GET /api/v1/builds/latest", h.LatestBuild)
}

// Document serves GET /api/v1/documents/{id}.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 1 {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id must be a positive integer"})
		return
	}
	entry, err := h.reader.Lookup(r.Context(), id)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("document lookup failed", "doc_id", id, "error", err)
		}
		h.writeJSON(w, status, map[string]string{"error": err.Error(), "code": apperrors.Code(err)})
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

// LatestBuild serves GET /api/v1/builds/latest.
func (h *Handler) LatestBuild(w http.ResponseWriter, r *http.Request) {
	report, err := h.reader.LatestBuild(r.Context())
	if err != nil {
		h.logger.Error("latest build lookup failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "build history unavailable"})
		return
	}
	if report == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no build recorded"})
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
