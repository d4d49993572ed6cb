package state

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

const (
	registryFile = "drives.tsv"
	historyFile  = "runs.tsv"
	statusFile   = "status.json"
	lockFile     = "driveburn.lock"
)

// Store bundles the persistent state of one orchestrator instance: the
// drive registry, the run history, and the live-status document, guarded
// by a process-lifetime advisory lock so at most one orchestrator ever
// mutates them.
type Store struct {
	Dir      string
	Registry *Registry
	History  *History
	Status   *StatusFile

	procLock *FileLock
}

// Open prepares the data directory and takes the process lock, failing
// fast if another orchestrator instance is running.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}

	procLock, err := AcquireLock(filepath.Join(dir, lockFile))
	if err != nil {
		return nil, fmt.Errorf("another orchestrator instance may be running: %w", err)
	}

	log.WithField("dir", dir).Debug("State store opened")
	return &Store{
		Dir:      dir,
		Registry: NewRegistry(filepath.Join(dir, registryFile)),
		History:  NewHistory(filepath.Join(dir, historyFile)),
		Status:   NewStatusFile(filepath.Join(dir, statusFile)),
		procLock: procLock,
	}, nil
}

// Close releases the process lock.
func (s *Store) Close() error {
	return s.procLock.Release()
}
