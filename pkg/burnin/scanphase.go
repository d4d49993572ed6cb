package burnin

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/driveburn/driveburn/pkg/scan"
	"github.com/driveburn/driveburn/pkg/state"
)

// ConfirmFunc prompts the operator for the literal confirmation token.
// It is the single irreversible-action gate: RunScan proceeds only when
// the returned string matches the configured token exactly.
type ConfirmFunc func() (string, error)

// RunScan drives Phase B: the destructive multi-pass write/verify scan.
// Safety invariants are checked on every drive before any write; one
// supervised worker runs per drive; verdicts come from post-scan
// diagnostics and the bad-block lists, not worker exit codes. Returns
// ErrBatchFailed when at least one drive failed.
func (o *Orchestrator) RunScan(ctx context.Context, confirm ConfirmFunc) error {
	drives := o.Selected()
	if len(drives) == 0 {
		return fmt.Errorf("no drives selected")
	}
	if len(drives) > o.cfg.MaxScanDrives {
		return fmt.Errorf("%d drives selected, maximum per destructive batch is %d: %w",
			len(drives), o.cfg.MaxScanDrives, ErrTooManyDrives)
	}

	// every drive must pass the safety invariants before any write
	for _, d := range drives {
		if err := o.checker.CheckEligible(d.DevPath); err != nil {
			return err
		}
	}

	token, err := confirm()
	if err != nil {
		return fmt.Errorf("read confirmation: %w", err)
	}
	if strings.TrimSpace(token) != o.cfg.ConfirmToken {
		return ErrConfirmationMismatch
	}

	phaseCtx, err := o.enterPhase(ctx, state.PhaseScan)
	if err != nil {
		return err
	}

	ev := make(map[string]*evidence, len(drives))
	for _, d := range drives {
		ev[d.Key] = &evidence{preAvailable: true, postAvailable: true}
	}

	for _, d := range drives {
		if !o.captureDump(d, state.PhaseScan, "pre") {
			ev[d.Key].preAvailable = false
		}
	}

	workers := make([]scan.Runner, 0, len(drives))
	for _, d := range drives {
		workers = append(workers, o.newWorker(d.DevPath, d.Key, scan.Options{
			Passes:      o.cfg.ScanPasses,
			BlockSize:   o.cfg.ScanBlockSize,
			WorkDir:     o.logDir,
			GracePeriod: o.cfg.WorkerGracePeriod,
		}))
	}

	supervisor := scan.NewSupervisor()
	o.SetWorkers(supervisor)
	supervisor.Start(phaseCtx, workers)

	if err := o.superviseScan(phaseCtx, supervisor); err != nil {
		return err
	}

	workerErrs := supervisor.Wait()
	o.SetWorkers(nil)

	batchFailed := false
	for i, d := range drives {
		e := ev[d.Key]
		e.workerErr = workerErrs[d.DevPath]
		if e.workerErr != nil {
			log.WithError(e.workerErr).WithField("drive", d.Key).Warn("Scan worker exited abnormally")
		}

		badBlocks, err := workers[i].BadBlocks()
		if err != nil {
			log.WithError(err).WithField("drive", d.Key).Warn("Bad-block list unreadable")
			e.postAvailable = false
		}
		e.badBlockCount = len(badBlocks)
		if e.badBlockCount > 0 {
			o.archive(d, state.PhaseScan, "badblocks", strings.Join(badBlocks, "\n")+"\n")
		}

		if !o.captureDump(d, state.PhaseScan, "post") {
			e.postAvailable = false
		}
		if attrs, err := o.probe.Attributes(d.DevPath); err == nil {
			e.attrs = attrs
		} else {
			e.postAvailable = false
		}
		if health, err := o.probe.Health(d.DevPath); err == nil {
			e.health = health
		} else {
			e.postAvailable = false
		}

		outcome := computeVerdict(e)
		if outcome == state.OutcomeFail {
			batchFailed = true
		}
		if err := o.record(d, state.PhaseScan, e, outcome); err != nil {
			return err
		}
	}

	if err := o.leavePhase(state.PhaseScan); err != nil {
		return err
	}
	if batchFailed {
		return ErrBatchFailed
	}
	return nil
}

// superviseScan polls until every worker has exited, running the
// temperature monitor and reporting worker liveness on each tick.
func (o *Orchestrator) superviseScan(ctx context.Context, supervisor *scan.Supervisor) error {
	done := make(chan struct{})
	go func() {
		supervisor.Wait()
		close(done)
	}()

	for {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := sleepCtx(ctx, o.cfg.TempPollInterval); err != nil {
			return err
		}
		o.monitorTick()

		for _, w := range supervisor.Workers() {
			progress, err := w.Progress()
			if err != nil {
				continue
			}
			log.WithFields(log.Fields{
				"device":   w.Device(),
				"pid":      w.PID(),
				"progress": progress.String(),
			}).Info("Scan worker progress")
		}
	}
}
