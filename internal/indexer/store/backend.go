package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/segment"
)

// Reader serves one committed generation. Implementations must be safe for
// concurrent use.
type Reader interface {
	Search(term string) (index.PostingList, error)
	Unit(id uint32) (index.LineUnit, error)
	Stats() index.Stats
	Close() error
}

// Backend persists a built MemoryIndex into a directory and reopens it.
// Write must only create files under dir.
type Backend interface {
	Name() string
	Write(ctx context.Context, dir string, idx *index.MemoryIndex) error
	Open(dir string) (Reader, error)
}

// NewBackend returns the backend registered under name.
func NewBackend(name string) (Backend, error) {
	switch name {
	case "", "segment":
		return segmentBackend{}, nil
	case "bleve":
		return bleveBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", name)
	}
}

type segmentBackend struct{}

func (segmentBackend) Name() string { return "segment" }

func (segmentBackend) Write(ctx context.Context, dir string, idx *index.MemoryIndex) error {
	_, err := segment.NewWriter(dir).Write(ctx, idx)
	return err
}

func (segmentBackend) Open(dir string) (Reader, error) {
	return segment.OpenReader(filepath.Join(dir, segment.FileName))
}
