package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/provenance"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/logger"
)

const stage = "search"

type SearchService interface {
	Search(ctx context.Context, rawQuery string) (*searcher.Response, error)
}

type LineResolver interface {
	ResolveLines(ctx context.Context, docID string, keywords []string) (provenance.Lines, error)
}

type Handler struct {
	service  SearchService
	resolver LineResolver
	logger   *slog.Logger
}

func New(service SearchService, resolver LineResolver) *Handler {
	return &Handler{
		service:  service,
		resolver: resolver,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Search serves GET ?q= and the form POST with field "key".
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var query string
	switch r.Method {
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid form body")
			return
		}
		query = r.PostForm.Get("key")
	default:
		query = r.URL.Query().Get("q")
	}
	h.renderResults(w, r, query)
}

func (h *Handler) renderResults(w http.ResponseWriter, r *http.Request, query string) {
	ctx := r.Context()
	resp, err := h.service.Search(ctx, query)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		logger.FromContext(ctx).Error("search failed",
			"query", query,
			"error", err,
			"status_code", statusCode,
		)
		h.writeError(w, statusCode, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Lines serves the matching lines of one document:
// GET /api/v1/documents/{id}/lines?q=.
func (h *Handler) Lines(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("id")
	keywords := strings.Fields(r.URL.Query().Get("q"))
	if len(keywords) == 0 {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	lines, err := h.resolver.ResolveLines(r.Context(), docID, keywords)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"doc_id":       docID,
		"line_numbers": lines.Numbers,
		"line_texts":   lines.Texts,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message, "stage": stage})
}
