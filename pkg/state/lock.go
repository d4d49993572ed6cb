package state

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// FileLock is an advisory exclusive lock on a file. The process lock is
// held for the orchestrator's entire lifetime; table locks are scoped
// narrowly around a single mutation, independent of the process lock.
type FileLock struct {
	path string
	file *os.File
}

// AcquireLock takes a non-blocking exclusive lock, failing fast if
// another process holds it.
func AcquireLock(path string) (*FileLock, error) {
	return acquire(path, unix.LOCK_EX|unix.LOCK_NB)
}

// AcquireLockBlocking waits for the lock. Used for short-lived per-table
// locks where contention is brief.
func AcquireLockBlocking(path string) (*FileLock, error) {
	return acquire(path, unix.LOCK_EX)
}

func acquire(path string, how int) (*FileLock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}
	if err := unix.Flock(int(file.Fd()), how); err != nil {
		file.Close()
		if err == unix.EWOULDBLOCK {
			return nil, fmt.Errorf("lock %s is held by another process", path)
		}
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}
	return &FileLock{path: path, file: file}, nil
}

// Release drops the lock. Safe to call once.
func (l *FileLock) Release() error {
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		l.file.Close()
		return fmt.Errorf("unlock %s: %w", l.path, err)
	}
	return l.file.Close()
}

// withTableLock runs fn while holding the exclusive lock guarding a
// single table file.
func withTableLock(tablePath string, fn func() error) error {
	lock, err := AcquireLockBlocking(tablePath + ".lock")
	if err != nil {
		return err
	}
	defer lock.Release()
	return fn()
}
