// Package provenance maps a matching document back to the concrete source
// lines that contain the query keywords.
package provenance

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/textfile"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
)

// Lines are the matching lines of one document in file order. Numbers are
// 1-based; Texts are verbatim without the line terminator.
type Lines struct {
	Numbers []int    `json:"line_numbers"`
	Texts   []string `json:"line_texts"`
}

// Outcome is the resolution of one document. Err is set when the document
// could not be read; Lines is then empty.
type Outcome struct {
	Lines Lines
	Err   error
}

type Resolver struct {
	documentDir string
	workers     int
	reads       singleflight.Group
	logger      *slog.Logger
}

// New returns a Resolver over documentDir running at most workers reads at a
// time in ResolveAll.
func New(documentDir string, workers int) *Resolver {
	if workers <= 0 {
		workers = 1
	}
	return &Resolver{
		documentDir: documentDir,
		workers:     workers,
		logger:      slog.Default().With("component", "provenance"),
	}
}

// ResolveLines scans docID and records every line whose lower-cased text
// contains any non-empty keyword, lower-cased, as a substring. Each line is
// recorded once however many keywords it contains.
func (r *Resolver) ResolveLines(ctx context.Context, docID string, keywords []string) (Lines, error) {
	path, err := r.pathFor(docID)
	if err != nil {
		return Lines{}, err
	}
	lines, err := r.readLines(ctx, path)
	if err != nil {
		return Lines{}, err
	}
	return match(lines, keywords), nil
}

// ResolveAll resolves every distinct doc id concurrently. A failure for one
// document is reported in its Outcome and does not affect the others; the
// returned error is only ever the context's.
func (r *Resolver) ResolveAll(ctx context.Context, docIDs []string, keywords []string) (map[string]Outcome, error) {
	unique := make([]string, 0, len(docIDs))
	seen := make(map[string]struct{}, len(docIDs))
	for _, id := range docIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	outcomes := make([]Outcome, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, id := range unique {
		g.Go(func() error {
			lines, err := r.ResolveLines(gctx, id, keywords)
			if err != nil && ctx.Err() == nil {
				r.logger.Warn("resolving lines failed", "doc_id", id, "error", err)
			}
			outcomes[i] = Outcome{Lines: lines, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make(map[string]Outcome, len(unique))
	for i, id := range unique {
		result[id] = outcomes[i]
	}
	return result, nil
}

// pathFor rejects ids that would leave the document directory.
func (r *Resolver) pathFor(docID string) (string, error) {
	if docID == "" || !filepath.IsLocal(docID) || strings.ContainsAny(docID, `/\`) {
		return "", apperrors.Wrap(apperrors.ErrFileNotFound, nil, "document %q is outside the document directory", docID)
	}
	return filepath.Join(r.documentDir, docID), nil
}

// readLines coalesces concurrent reads of the same file.
func (r *Resolver) readLines(ctx context.Context, path string) ([]string, error) {
	ch := r.reads.DoChan(path, func() (any, error) {
		return textfile.ReadLines(path)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]string), nil
	}
}

func match(lines []string, keywords []string) Lines {
	needles := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(kw); kw != "" {
			needles = append(needles, kw)
		}
	}
	out := Lines{Numbers: []int{}, Texts: []string{}}
	if len(needles) == 0 {
		return out
	}
	for i, line := range lines {
		lower := strings.ToLower(line)
		for _, n := range needles {
			if strings.Contains(lower, n) {
				out.Numbers = append(out.Numbers, i+1)
				out.Texts = append(out.Texts, line)
				break
			}
		}
	}
	return out
}
