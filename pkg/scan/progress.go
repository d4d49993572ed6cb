package scan

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
)

// writeProgress rewrites the per-drive progress file atomically so the
// supervisor never reads a torn record.
func (w *Worker) writeProgress(p Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}

	dir := filepath.Dir(w.progressPath())
	tmp, err := ioutil.TempFile(dir, "progress.tmp.")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, w.progressPath())
}

// ReadProgress loads a progress record from a worker's progress file.
func ReadProgress(path string) (*Progress, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p := &Progress{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse progress file %s: %w", path, err)
	}
	return p, nil
}

// String renders the compact "pass i/N, pattern, status" form.
func (p Progress) String() string {
	return fmt.Sprintf("pass %d/%d, %s, %s", p.Pass, p.TotalPasses, p.Pattern, p.Status)
}
