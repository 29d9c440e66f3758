package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/logger"
)

const (
	stage = "upload"
	// multipartOverhead covers boundaries and part headers around the file.
	multipartOverhead = 1 << 20
)

type DocumentUploader interface {
	Upload(ctx context.Context, name string, data []byte) (*ingestion.UploadResponse, error)
}

type Handler struct {
	uploader  DocumentUploader
	formField string
	maxBytes  int64
	logger    *slog.Logger
}

func New(uploader DocumentUploader, formField string, maxBytes int64) *Handler {
	if formField == "" {
		formField = "file"
	}
	return &Handler{
		uploader:  uploader,
		formField: formField,
		maxBytes:  maxBytes,
		logger:    slog.Default().With("component", "upload-handler"),
	}
}

// Upload accepts one multipart file, stores it and rebuilds the index.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	}
	file, header, err := r.FormFile(h.formField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		h.writeError(w, http.StatusBadRequest, "multipart field '"+h.formField+"' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "reading upload failed")
		return
	}

	resp, err := h.uploader.Upload(ctx, header.Filename, data)
	if err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"stage":  stage,
				"fields": validationErr.Fields,
			})
			return
		}
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("upload failed",
			"filename", header.Filename,
			"error", err,
			"status_code", statusCode,
		)
		h.writeError(w, statusCode, err.Error())
		return
	}
	log.Info("document uploaded",
		"doc_id", resp.DocID,
		"generation", resp.Generation,
	)
	h.writeJSON(w, http.StatusCreated, resp)
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
