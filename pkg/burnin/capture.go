package burnin

import (
	"fmt"
	"io/ioutil"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/driveburn/driveburn/pkg/identity"
	"github.com/driveburn/driveburn/pkg/smart"
	"github.com/driveburn/driveburn/pkg/state"
)

// evidence accumulates everything a verdict is computed from. A probe
// capture that was unavailable is recorded as such; it is never silently
// treated as healthy.
type evidence struct {
	preAvailable  bool
	postAvailable bool

	health         *smart.HealthStatus
	attrs          *smart.Attributes
	selfTestFailed bool
	badBlockCount  int
	workerErr      error
}

// captureDump archives the full smartctl -x output for one drive and
// reports whether the capture succeeded.
func (o *Orchestrator) captureDump(d *identity.DriveIdentity, phase state.Phase, stage string) bool {
	raw, err := o.probe.ExtendedDump(d.DevPath)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"drive": d.Key, "stage": stage}).Warn("Diagnostic dump unavailable")
		return false
	}
	o.archive(d, phase, stage, raw)
	return true
}

// captureLogs archives self-test and error logs, returning the parsed
// self-test log (nil when unavailable) and capture availability.
func (o *Orchestrator) captureLogs(d *identity.DriveIdentity, phase state.Phase, stage string) (*smart.SelfTestLog, bool) {
	available := true

	stLog, err := o.probe.SelfTestLog(d.DevPath)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"drive": d.Key, "stage": stage}).Warn("Self-test log unavailable")
		available = false
	} else {
		o.archive(d, phase, stage+"-selftest", stLog.Raw)
	}

	errLog, err := o.probe.ErrorLog(d.DevPath)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"drive": d.Key, "stage": stage}).Warn("Error log unavailable")
		available = false
	} else {
		o.archive(d, phase, stage+"-errors", errLog)
	}

	return stLog, available
}

// archive writes one raw diagnostic capture into the run's log
// directory, named by phase, drive identity and capture stage.
func (o *Orchestrator) archive(d *identity.DriveIdentity, phase state.Phase, stage, content string) {
	name := fmt.Sprintf("%s_%s_%s.json", phase, d.Key, stage)
	path := filepath.Join(o.logDir, name)
	if err := ioutil.WriteFile(path, []byte(content), 0644); err != nil {
		log.WithError(err).WithField("path", path).Warn("Failed to archive diagnostic capture")
	}
}

// record builds and appends the RunRecord for one drive from its
// evidence.
func (o *Orchestrator) record(d *identity.DriveIdentity, phase state.Phase, ev *evidence, outcome state.Outcome) error {
	rec := state.RunRecord{
		RunID:           o.runID,
		Timestamp:       timeNow(),
		Phase:           phase,
		Outcome:         outcome,
		DriveKey:        d.Key,
		WWN:             d.WWN,
		Model:           d.Model,
		SizeBytes:       d.SizeBytes,
		HealthVerdict:   healthVerdictString(ev.health),
		MaxTemperatureC: o.maxTemp(d.Key),
		LogDirectory:    o.logDir,
	}
	if ev.attrs != nil {
		rec.PowerOnHours = ev.attrs.PowerOnHours
		rec.ReallocatedSectors = ev.attrs.ReallocatedSectors
		rec.PendingSectors = ev.attrs.PendingSectors
		rec.OfflineUncorrectable = ev.attrs.OfflineUncorrectable
		rec.InterfaceErrorCount = ev.attrs.UDMACRCErrors
	}
	if err := o.store.History.Append(rec); err != nil {
		return fmt.Errorf("append run record for %s: %w", d.Key, err)
	}

	log.WithFields(log.Fields{
		"drive":   d.Key,
		"phase":   phase,
		"outcome": outcome,
	}).Info("Recorded drive outcome")
	return nil
}

func healthVerdictString(h *smart.HealthStatus) string {
	switch {
	case h == nil:
		return "UNKNOWN"
	case h.Passed:
		return "PASSED"
	default:
		return "FAILED"
	}
}
