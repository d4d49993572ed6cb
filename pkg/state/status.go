package state

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"
)

// StatusFile owns the live-status document. Every write goes to a
// temporary file followed by a rename, so an external reader never
// observes a half-written document.
type StatusFile struct {
	path string
}

func NewStatusFile(path string) *StatusFile {
	return &StatusFile{path: path}
}

// Write replaces the live-status document atomically.
func (s *StatusFile) Write(status *CurrentRunStatus) error {
	status.LastUpdate = time.Now()
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	return atomicWriteFile(s.path, append(data, '\n'))
}

// Read loads the document; used by tests, never by the orchestrator.
func (s *StatusFile) Read() (*CurrentRunStatus, error) {
	data, err := ioutil.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	status := &CurrentRunStatus{}
	if err := json.Unmarshal(data, status); err != nil {
		return nil, fmt.Errorf("parse status document: %w", err)
	}
	return status, nil
}

// atomicWriteFile writes to a temporary file in the target directory and
// renames it into place.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := ioutil.TempFile(dir, filepath.Base(path)+".tmp.")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
