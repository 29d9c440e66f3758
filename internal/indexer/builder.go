// Package indexer rebuilds the line index from a directory of documents.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/textfile"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/metrics"
)

// BuildStats summarises one committed rebuild.
type BuildStats struct {
	Generation uint64        `json:"generation"`
	Documents  int           `json:"documents"`
	Units      int           `json:"units"`
	Skipped    int           `json:"skipped"`
	Duration   time.Duration `json:"duration"`
}

// Notifier is told about every committed generation.
type Notifier interface {
	NotifyIndexComplete(ctx context.Context, stats BuildStats) error
}

type Builder struct {
	store    *store.Store
	cfg      config.IndexerConfig
	metrics  *metrics.Metrics
	notifier Notifier
	logger   *slog.Logger
}

type Option func(*Builder)

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

func WithNotifier(n Notifier) Option {
	return func(b *Builder) { b.notifier = n }
}

func NewBuilder(st *store.Store, cfg config.IndexerConfig, opts ...Option) *Builder {
	b := &Builder{
		store:  st,
		cfg:    cfg,
		logger: slog.Default().With("component", "index-builder"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build indexes every regular file directly under sourceDir and commits the
// result as a new generation that fully replaces the previous one. On any
// failure the previous generation keeps serving.
func (b *Builder) Build(ctx context.Context, sourceDir string) (*BuildStats, error) {
	start := time.Now()
	buildCtx, cancel := ctx, context.CancelFunc(func() {})
	if b.cfg.BuildTimeout > 0 {
		buildCtx, cancel = context.WithTimeout(ctx, b.cfg.BuildTimeout)
	}
	defer cancel()

	stats := BuildStats{}
	commit, err := b.store.Rebuild(buildCtx, func(ctx context.Context, idx *index.MemoryIndex) error {
		return b.fill(ctx, sourceDir, idx, &stats)
	})
	stats.Duration = time.Since(start)
	if err != nil {
		err = b.classify(ctx, err, sourceDir)
		b.observe(buildStatus(err), stats, nil)
		b.logger.Error("index build failed",
			"source_dir", sourceDir,
			"duration", stats.Duration,
			"error", err,
		)
		return nil, err
	}

	stats.Generation = commit.Generation
	stats.Units = commit.Stats.Units
	b.observe("ok", stats, commit)
	b.logger.Info("index build complete",
		"source_dir", sourceDir,
		"generation", stats.Generation,
		"documents", stats.Documents,
		"units", stats.Units,
		"skipped", stats.Skipped,
		"duration", stats.Duration,
	)

	if b.notifier != nil {
		if err := b.notifier.NotifyIndexComplete(ctx, stats); err != nil {
			b.logger.Warn("index-complete notification failed",
				"generation", stats.Generation,
				"error", err,
			)
		}
	}
	return &stats, nil
}

func (b *Builder) fill(ctx context.Context, dir string, idx *index.MemoryIndex, stats *BuildStats) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrIO, err, "listing document directory %s", dir)
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := entry.Name()
		// Uploads are staged under dot-prefixed temp names.
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			stats.Skipped++
			continue
		}
		text, err := textfile.Read(path)
		if err != nil {
			if errors.Is(err, apperrors.ErrFileNotFound) {
				// Removed after listing; the rebuild reflects the directory as it is now.
				stats.Skipped++
				continue
			}
			return err
		}
		for off, line := range textfile.SplitLines(text) {
			if strings.TrimSpace(line) == "" {
				continue
			}
			if _, err := idx.AddLine(name, off, line, b.cfg.StoreRawContent); err != nil {
				return fmt.Errorf("indexing %s line %d: %w", name, off, err)
			}
		}
		stats.Documents++
		b.logger.Debug("document indexed", "doc_id", name)
	}
	return nil
}

// classify maps the build deadline to ErrBuildTimeout. A deadline or
// cancellation coming from the caller's own context is returned unchanged.
func (b *Builder) classify(parent context.Context, err error, dir string) error {
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return apperrors.Wrap(apperrors.ErrBuildTimeout, err, "building %s exceeded %s", dir, b.cfg.BuildTimeout)
	}
	return err
}

func buildStatus(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrBuildTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

func (b *Builder) observe(status string, stats BuildStats, commit *store.Commit) {
	if b.metrics == nil {
		return
	}
	b.metrics.IndexBuildsTotal.WithLabelValues(status).Inc()
	b.metrics.IndexBuildDuration.Observe(stats.Duration.Seconds())
	if commit == nil {
		return
	}
	b.metrics.IndexedLineUnits.Set(float64(commit.Stats.Units))
	b.metrics.IndexedDocuments.Set(float64(commit.Stats.Documents))
	b.metrics.IndexGeneration.Set(float64(commit.Generation))
}
