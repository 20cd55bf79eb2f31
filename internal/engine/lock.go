package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

const (
	// LockSuffix is appended to an index path to name its build lock
	LockSuffix = ".lock"

	// DefaultLockTimeout bounds the wait for a concurrent build to finish
	DefaultLockTimeout = 30 * time.Second
)

// ErrIndexLocked reports that another process is building the same index.
var ErrIndexLocked = errors.New("index is locked by another build")

// buildLock is an exclusive flock(2) on the lock file of one index. The
// kernel releases it when the holder exits, so a crashed build never leaves
// the index locked.
type buildLock struct {
	file *os.File
}

// lockIndex acquires the build lock of the index at path, polling with
// backoff until timeout expires or ctx is done.
func lockIndex(ctx context.Context, path string, timeout time.Duration) (*buildLock, error) {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	f, err := os.OpenFile(path+LockSuffix, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	deadline := time.Now().Add(timeout)
	wait := 10 * time.Millisecond
	for {
		err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return &buildLock{file: f}, nil
		}
		if !errors.Is(err, syscall.EWOULDBLOCK) {
			_ = f.Close()
			return nil, fmt.Errorf("flock failed: %w", err)
		}
		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("%s: %w", path, ErrIndexLocked)
		}

		select {
		case <-ctx.Done():
			_ = f.Close()
			return nil, ctx.Err()
		case <-time.After(wait):
			wait = min(wait*2, 500*time.Millisecond)
		}
	}
}

// release unlocks and closes the lock file. It is a no-op on nil.
func (l *buildLock) release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("flock unlock failed: %w", err)
	}
	return closeErr
}
