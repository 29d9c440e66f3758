// Package store owns the on-disk index generations under one root directory.
//
// Every rebuild writes a complete generation into a temporary directory,
// renames it to gen-NNNNNN and then replaces the CURRENT pointer file, so a
// generation becomes visible whole or not at all. Readers acquire a
// refcounted Snapshot of the current generation; a superseded generation is
// closed and deleted once its last reader releases it. Writers are
// serialised in-process by a mutex and across processes by a file lock.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
)

const (
	currentFileName = "CURRENT"
	lockFileName    = ".lock"
	genPrefix       = "gen-"
	tmpPrefix       = ".tmp-"
)

// Commit describes a generation made visible by Rebuild.
type Commit struct {
	Generation uint64
	Stats      index.Stats
}

// FillFunc populates a fresh MemoryIndex for a rebuild.
type FillFunc func(ctx context.Context, idx *index.MemoryIndex) error

type Store struct {
	root    string
	backend Backend
	lock    *fileLock
	logger  *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	current *Snapshot
	closed  bool
}

// Snapshot is one generation pinned for reading. Callers must Release it
// exactly once.
type Snapshot struct {
	Reader
	generation uint64
	dir        string
	store      *Store
	refs       int
	retired    bool
}

func (sn *Snapshot) Generation() uint64 { return sn.generation }

func (sn *Snapshot) Release() {
	sn.store.release(sn)
}

// Open prepares root and loads the current generation if one exists. A root
// that was never built is not an error; Acquire reports ErrIndexNotFound.
func Open(root string, backend Backend) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrIO, err, "creating index root %s", root)
	}
	s := &Store{
		root:    root,
		backend: backend,
		lock:    newFileLock(root),
		logger:  slog.Default().With("component", "index-store", "root", root, "backend", backend.Name()),
	}
	if _, err := s.Reload(); err != nil && !errors.Is(err, apperrors.ErrIndexNotFound) {
		return nil, err
	}
	s.collectGarbage()
	return s, nil
}

func (s *Store) Root() string { return s.root }

// Generation returns the generation served to new readers, 0 if none.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return 0
	}
	return s.current.generation
}

// Acquire pins the current generation. When nothing has been loaded yet it
// re-reads CURRENT once, so a build by another process is picked up.
func (s *Store) Acquire() (*Snapshot, error) {
	if sn := s.pin(); sn != nil {
		return sn, nil
	}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	if sn := s.pin(); sn != nil {
		return sn, nil
	}
	return nil, apperrors.Wrap(apperrors.ErrIndexNotFound, nil, "no committed index under %s", s.root)
}

func (s *Store) pin() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.closed {
		return nil
	}
	s.current.refs++
	return s.current
}

// Reload switches to the generation named by CURRENT when it is newer than
// the one being served. It reports whether a switch happened.
func (s *Store) Reload() (bool, error) {
	gen, err := s.readCurrent()
	if err != nil {
		return false, err
	}
	if s.Generation() >= gen {
		return false, nil
	}
	dir := s.genDir(gen)
	r, err := s.backend.Open(dir)
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrIO, err, "opening generation %d", gen)
	}
	return s.install(gen, dir, r), nil
}

// Rebuild runs fill against an empty MemoryIndex and commits the result as
// a new generation. The previous generation stays visible until the commit
// completes; on any error, including ctx cancellation, it stays current.
func (s *Store) Rebuild(ctx context.Context, fill FillFunc) (*Commit, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.lock.Lock(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Error("failed to release index lock", "error", err)
		}
	}()

	idx := index.NewMemoryIndex()
	if err := fill(ctx, idx); err != nil {
		return nil, err
	}

	gen, err := s.nextGeneration()
	if err != nil {
		return nil, err
	}
	tmp := filepath.Join(s.root, fmt.Sprintf("%sgen-%06d", tmpPrefix, gen))
	final := s.genDir(gen)
	if err := os.RemoveAll(tmp); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrIO, err, "clearing %s", tmp)
	}
	if err := s.backend.Write(ctx, tmp, idx); err != nil {
		os.RemoveAll(tmp)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.Wrap(apperrors.ErrIO, err, "writing generation %d", gen)
	}
	if err := ctx.Err(); err != nil {
		os.RemoveAll(tmp)
		return nil, err
	}
	if err := os.Rename(tmp, final); err != nil {
		os.RemoveAll(tmp)
		return nil, apperrors.Wrap(apperrors.ErrIO, err, "publishing generation %d", gen)
	}
	r, err := s.backend.Open(final)
	if err != nil {
		os.RemoveAll(final)
		return nil, apperrors.Wrap(apperrors.ErrIO, err, "reopening generation %d", gen)
	}
	// Last point at which cancellation still leaves the old generation.
	if err := ctx.Err(); err != nil {
		r.Close()
		os.RemoveAll(final)
		return nil, err
	}
	if err := s.writeCurrent(gen); err != nil {
		r.Close()
		os.RemoveAll(final)
		return nil, err
	}
	s.install(gen, final, r)

	commit := &Commit{Generation: gen, Stats: r.Stats()}
	s.logger.Info("generation committed",
		"generation", gen,
		"units", commit.Stats.Units,
		"documents", commit.Stats.Documents,
		"terms", commit.Stats.Terms,
	)
	return commit, nil
}

// Close stops serving. Snapshots still held stay readable until released.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cur := s.current
	s.current = nil
	if cur != nil {
		cur.retired = true
	}
	s.mu.Unlock()
	if cur != nil {
		s.release(cur)
	}
	return nil
}

func (s *Store) install(gen uint64, dir string, r Reader) bool {
	s.mu.Lock()
	if s.closed || (s.current != nil && s.current.generation >= gen) {
		s.mu.Unlock()
		r.Close()
		return false
	}
	old := s.current
	s.current = &Snapshot{Reader: r, generation: gen, dir: dir, store: s, refs: 1}
	var drop *Snapshot
	if old != nil {
		old.retired = true
		old.refs--
		if old.refs == 0 {
			drop = old
		}
	}
	s.mu.Unlock()
	if drop != nil {
		s.dispose(drop)
	}
	return true
}

func (s *Store) release(sn *Snapshot) {
	s.mu.Lock()
	sn.refs--
	if sn.refs < 0 {
		s.mu.Unlock()
		panic("store: snapshot released more times than acquired")
	}
	drop := sn.refs == 0 && sn.retired
	s.mu.Unlock()
	if drop {
		s.dispose(sn)
	}
}

func (s *Store) dispose(sn *Snapshot) {
	if err := sn.Reader.Close(); err != nil {
		s.logger.Warn("closing retired generation", "generation", sn.generation, "error", err)
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	if err := os.RemoveAll(sn.dir); err != nil {
		s.logger.Warn("removing retired generation", "generation", sn.generation, "error", err)
		return
	}
	s.logger.Debug("retired generation removed", "generation", sn.generation)
}

func (s *Store) genDir(gen uint64) string {
	return filepath.Join(s.root, fmt.Sprintf("%s%06d", genPrefix, gen))
}

func (s *Store) readCurrent() (uint64, error) {
	data, err := os.ReadFile(filepath.Join(s.root, currentFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, apperrors.Wrap(apperrors.ErrIndexNotFound, nil, "no committed index under %s", s.root)
		}
		return 0, apperrors.Wrap(apperrors.ErrIO, err, "reading %s", currentFileName)
	}
	gen, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil || gen == 0 {
		return 0, apperrors.Wrap(apperrors.ErrIO, err, "malformed %s %q", currentFileName, data)
	}
	return gen, nil
}

// writeCurrent replaces the pointer file via a synced temp file and rename.
func (s *Store) writeCurrent(gen uint64) error {
	path := filepath.Join(s.root, currentFileName)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrIO, err, "creating %s", tmp)
	}
	_, werr := fmt.Fprintf(f, "%d\n", gen)
	serr := f.Sync()
	cerr := f.Close()
	if err := errors.Join(werr, serr, cerr); err != nil {
		os.Remove(tmp)
		return apperrors.Wrap(apperrors.ErrIO, err, "writing %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return apperrors.Wrap(apperrors.ErrIO, err, "replacing %s", currentFileName)
	}
	if d, err := os.Open(s.root); err == nil {
		d.Sync()
		d.Close()
	}
	return nil
}

// nextGeneration is one past the highest generation on disk, so numbers are
// never reused even when a directory was left behind.
func (s *Store) nextGeneration() (uint64, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrIO, err, "listing %s", s.root)
	}
	var maxGen uint64
	for _, e := range entries {
		if gen, ok := parseGen(e.Name()); ok && gen > maxGen {
			maxGen = gen
		}
	}
	if cur, err := s.readCurrent(); err == nil && cur > maxGen {
		maxGen = cur
	}
	return maxGen + 1, nil
}

// collectGarbage removes temp directories and generations other than the
// current one left by crashed or superseded writers. It only runs when no
// writer holds the lock.
func (s *Store) collectGarbage() {
	ok, err := s.lock.TryLock()
	if err != nil || !ok {
		return
	}
	defer s.lock.Unlock()

	cur := s.Generation()
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		stale := strings.HasPrefix(name, tmpPrefix)
		if gen, ok := parseGen(name); ok && gen != cur {
			stale = true
		}
		if !stale {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.root, name)); err != nil {
			s.logger.Warn("removing stale index directory", "name", name, "error", err)
			continue
		}
		s.logger.Info("removed stale index directory", "name", name)
	}
}

func parseGen(name string) (uint64, bool) {
	name = strings.TrimPrefix(name, tmpPrefix)
	if !strings.HasPrefix(name, genPrefix) {
		return 0, false
	}
	gen, err := strconv.ParseUint(strings.TrimPrefix(name, genPrefix), 10, 64)
	return gen, err == nil
}
