package burnin

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/driveburn/driveburn/pkg/identity"
	"github.com/driveburn/driveburn/pkg/smart"
	"github.com/driveburn/driveburn/pkg/state"
)

// RunTriage drives Phase 0: the non-destructive SMART self-test sequence
// (short, conveyance where supported, long) with diagnostic capture
// around it. One RunRecord per drive is appended on completion.
func (o *Orchestrator) RunTriage(ctx context.Context) error {
	drives := o.Selected()
	if len(drives) == 0 {
		return fmt.Errorf("no drives selected")
	}

	phaseCtx, err := o.enterPhase(ctx, state.PhaseTriage)
	if err != nil {
		return err
	}

	ev := make(map[string]*evidence, len(drives))
	for _, d := range drives {
		ev[d.Key] = &evidence{preAvailable: true, postAvailable: true}
	}

	// pre-test diagnostics, recording probe availability
	for _, d := range drives {
		if !o.captureDump(d, state.PhaseTriage, "pre") {
			ev[d.Key].preAvailable = false
		}
		if attrs, err := o.probe.Attributes(d.DevPath); err == nil {
			ev[d.Key].attrs = attrs
		} else {
			ev[d.Key].preAvailable = false
		}
	}

	// short self-test, plus conveyance where the drive supports it
	for _, d := range drives {
		if err := o.probe.StartSelfTest(d.DevPath, smart.SelfTestShort); err != nil {
			log.WithError(err).WithField("drive", d.Key).Warn("Short self-test did not start")
			ev[d.Key].preAvailable = false
		}
		caps, err := o.probe.Capabilities(d.DevPath)
		if err != nil {
			log.WithError(err).WithField("drive", d.Key).Warn("Capabilities unavailable")
			continue
		}
		if caps.ConveyanceSupported {
			if err := o.probe.StartSelfTest(d.DevPath, smart.SelfTestConveyance); err != nil {
				log.WithError(err).WithField("drive", d.Key).Warn("Conveyance self-test did not start")
			}
		}
	}

	// settle while the temperature monitor keeps polling
	if err := o.monitoredWait(phaseCtx, o.cfg.SettleInterval); err != nil {
		return err
	}

	// post-short logs, then the long self-test
	for _, d := range drives {
		stLog, available := o.captureLogs(d, state.PhaseTriage, "post-short")
		if stLog != nil && stLog.Failed {
			ev[d.Key].selfTestFailed = true
		}
		if !available {
			ev[d.Key].postAvailable = false
		}
		if err := o.probe.StartSelfTest(d.DevPath, smart.SelfTestLong); err != nil {
			log.WithError(err).WithField("drive", d.Key).Warn("Long self-test did not start")
		}
	}

	if err := o.waitForSelfTests(phaseCtx, drives); err != nil {
		return err
	}

	// final diagnostics and verdicts
	for _, d := range drives {
		e := ev[d.Key]
		if !o.captureDump(d, state.PhaseTriage, "post") {
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
		stLog, available := o.captureLogs(d, state.PhaseTriage, "final")
		if stLog != nil && stLog.Failed {
			e.selfTestFailed = true
		}
		if !available {
			e.postAvailable = false
		}

		if err := o.record(d, state.PhaseTriage, e, computeVerdict(e)); err != nil {
			return err
		}
	}

	return o.leavePhase(state.PhaseTriage)
}

// waitForSelfTests polls until no selected drive reports a self-test in
// progress, running the temperature monitor on every poll.
func (o *Orchestrator) waitForSelfTests(ctx context.Context, drives []*identity.DriveIdentity) error {
	for {
		if err := sleepCtx(ctx, o.cfg.SelfTestPollInterval); err != nil {
			return err
		}
		o.monitorTick()

		anyRunning := false
		for _, d := range drives {
			caps, err := o.probe.Capabilities(d.DevPath)
			if err != nil {
				// an unreadable drive must not stall the whole batch
				log.WithError(err).WithField("drive", d.Key).Warn("Self-test progress unavailable")
				continue
			}
			if caps.SelfTestInProgress {
				anyRunning = true
				log.WithFields(log.Fields{
					"drive":     d.Key,
					"remaining": caps.RemainingPercent,
				}).Info("Self-test in progress")
			}
		}
		if !anyRunning {
			return nil
		}
	}
}
