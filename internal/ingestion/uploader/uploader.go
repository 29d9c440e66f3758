// Package uploader stores uploaded documents and rebuilds the index so the
// new content is searchable when the upload returns.
package uploader

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/metrics"
)

// IndexBuilder rebuilds the index from a document directory.
type IndexBuilder interface {
	Build(ctx context.Context, sourceDir string) (*indexer.BuildStats, error)
}

type Uploader struct {
	documentDir string
	maxBytes    int64
	builder     IndexBuilder
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// New returns an Uploader writing into documentDir. m may be nil.
func New(documentDir string, maxBytes int64, builder IndexBuilder, m *metrics.Metrics) *Uploader {
	return &Uploader{
		documentDir: documentDir,
		maxBytes:    maxBytes,
		builder:     builder,
		metrics:     m,
		logger:      slog.Default().With("component", "uploader"),
	}
}

// StoreUploadedFile validates name and data and writes them into the document
// directory under the sanitized name, replacing any earlier upload of the
// same name. The write goes through a temp file and rename, so a concurrent
// build sees either the old or the new content.
func (u *Uploader) StoreUploadedFile(name string, data []byte) (string, error) {
	docID, err := validator.ValidateUpload(name, int64(len(data)), u.maxBytes)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(u.documentDir, 0o755); err != nil {
		return "", apperrors.Wrap(apperrors.ErrIO, err, "creating document directory %s", u.documentDir)
	}
	tmp, err := os.CreateTemp(u.documentDir, ".upload-*")
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrIO, err, "staging upload %s", docID)
	}
	tmpName := tmp.Name()
	_, werr := tmp.Write(data)
	serr := tmp.Sync()
	cerr := tmp.Close()
	if err := errors.Join(werr, serr, cerr); err != nil {
		os.Remove(tmpName)
		return "", apperrors.Wrap(apperrors.ErrIO, err, "writing upload %s", docID)
	}
	path := filepath.Join(u.documentDir, docID)
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", apperrors.Wrap(apperrors.ErrIO, err, "storing upload %s", docID)
	}
	return path, nil
}

// Upload stores the document and rebuilds the index. The rebuild is detached
// from ctx cancellation so a client disconnect does not abort it; the
// builder's own timeout still applies.
func (u *Uploader) Upload(ctx context.Context, name string, data []byte) (*ingestion.UploadResponse, error) {
	log := logger.FromContext(ctx)
	path, err := u.StoreUploadedFile(name, data)
	if err != nil {
		u.count(err)
		return nil, err
	}
	docID := filepath.Base(path)
	log.Info("document stored", "doc_id", docID, "bytes", len(data))

	stats, err := u.builder.Build(context.WithoutCancel(ctx), u.documentDir)
	if err != nil {
		u.count(err)
		log.Error("rebuild after upload failed", "doc_id", docID, "error", err)
		return nil, err
	}
	u.count(nil)
	return &ingestion.UploadResponse{
		DocID:      docID,
		Status:     "indexed",
		Generation: stats.Generation,
		Documents:  stats.Documents,
		Units:      stats.Units,
	}, nil
}

func (u *Uploader) count(err error) {
	if u.metrics == nil {
		return
	}
	status := apperrors.Kind(err)
	switch status {
	case "ok", "invalid", "timeout":
	default:
		status = "error"
	}
	u.metrics.UploadsTotal.WithLabelValues(status).Inc()
}
