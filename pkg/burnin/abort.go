package burnin

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/driveburn/driveburn/pkg/state"
)

// Abort is the single path through which every abnormal termination
// flows: thermal breach, operator signal, hotplug removal and
// unrecoverable internal errors all end up here. It is idempotent; a
// re-entry while already aborting just terminates the process. It marks
// the live status aborted, stops every tracked worker, appends an
// ABORTED record for every drive still selected in the active phase, and
// exits with the given non-zero code.
func (o *Orchestrator) Abort(reason string, exitCode int) {
	o.abortOnce.Do(func() {
		log.WithFields(log.Fields{"runID": o.runID, "reason": reason}).Error("Aborting run")

		o.mu.Lock()
		cancel := o.phaseCancel
		workers := o.workers
		phase := o.status.Phase
		running := o.status.Status == state.StatusRunning
		selected := o.selected
		o.status.Status = state.StatusAborted
		o.status.AbortReason = reason
		o.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if workers != nil {
			workers.StopAll()
		}

		if err := o.writeStatus(); err != nil {
			log.WithError(err).Error("Failed to persist aborted status")
		}

		if running {
			now := time.Now()
			for _, d := range selected {
				rec := state.RunRecord{
					RunID:           o.runID,
					Timestamp:       now,
					Phase:           phase,
					Outcome:         state.OutcomeAborted,
					DriveKey:        d.Key,
					WWN:             d.WWN,
					Model:           d.Model,
					SizeBytes:       d.SizeBytes,
					HealthVerdict:   "UNKNOWN",
					MaxTemperatureC: o.maxTemp(d.Key),
					LogDirectory:    o.logDir,
				}
				if err := o.store.History.Append(rec); err != nil {
					log.WithError(err).WithField("drive", d.Key).Error("Failed to append ABORTED record")
				}
			}
		}

		fmt.Fprintf(os.Stderr, "aborted: %s\nlogs: %s\n", reason, o.logDir)
		o.exit(exitCode)
	})
	// already aborting: just make sure the process dies
	o.exit(exitCode)
}

// AbortOnSignal routes an operator interrupt through the unified abort
// path with the conventional 128+signum exit code.
func (o *Orchestrator) AbortOnSignal(sig os.Signal, signum int) {
	o.Abort(fmt.Sprintf("received signal %v", sig), 128+signum)
}

func (o *Orchestrator) maxTemp(key string) int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.maxTemps[key]
}

// SetWorkers registers the active worker set so the abort path can stop
// it; pass nil when the phase ends.
func (o *Orchestrator) SetWorkers(ws workerSet) {
	o.mu.Lock()
	o.workers = ws
	o.mu.Unlock()
}
