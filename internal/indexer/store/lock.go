package store

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 25 * time.Millisecond

// fileLock is the cross-process writer lock for one index root.
type fileLock struct {
	flock *flock.Flock
}

func newFileLock(root string) *fileLock {
	return &fileLock{flock: flock.New(filepath.Join(root, lockFileName))}
}

// Lock blocks until the lock is held or ctx is done.
func (l *fileLock) Lock(ctx context.Context) error {
	ok, err := l.flock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquiring index lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("acquiring index lock: %w", context.Cause(ctx))
	}
	return nil
}

func (l *fileLock) TryLock() (bool, error) {
	ok, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquiring index lock: %w", err)
	}
	return ok, nil
}

func (l *fileLock) Unlock() error {
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("releasing index lock: %w", err)
	}
	return nil
}
