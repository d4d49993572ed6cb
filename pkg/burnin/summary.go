package burnin

import (
	"fmt"
	"io/ioutil"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	log "github.com/sirupsen/logrus"
)

// WriteSummary renders the human-readable summary of this run's history
// rows into the log directory and publishes its path in the live-status
// document. Returns the summary path.
func (o *Orchestrator) WriteSummary() (string, error) {
	records, err := o.store.History.Records()
	if err != nil {
		return "", fmt.Errorf("read run history: %w", err)
	}

	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("driveburn run %s", o.runID))
	t.AppendHeader(table.Row{"Drive", "Phase", "Outcome", "Health", "Realloc", "Pending", "OfflineUnc", "MaxTemp"})
	for _, rec := range records {
		if rec.RunID != o.runID {
			continue
		}
		t.AppendRow(table.Row{
			rec.DriveKey, rec.Phase, rec.Outcome, rec.HealthVerdict,
			rec.ReallocatedSectors, rec.PendingSectors, rec.OfflineUncorrectable,
			fmt.Sprintf("%dC", rec.MaxTemperatureC),
		})
	}

	path := filepath.Join(o.logDir, "summary.txt")
	if err := ioutil.WriteFile(path, []byte(t.Render()+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}

	o.mu.Lock()
	o.status.SummaryPath = path
	o.mu.Unlock()
	if err := o.writeStatus(); err != nil {
		log.WithError(err).Warn("Failed to publish summary path")
	}
	return path, nil
}
