package burnin

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// monitorTick polls the temperature of every selected drive once,
// updates the per-drive running maximums in the live-status document,
// and routes a thermal breach into the unified abort path. Each probe
// call is individually time-bounded, so one unresponsive drive cannot
// stall monitoring of the others.
func (o *Orchestrator) monitorTick() {
	for _, d := range o.Selected() {
		temp, err := o.probe.Temperature(d.DevPath)
		if err != nil {
			log.WithError(err).WithField("device", d.DevPath).Debug("Temperature reading unavailable")
			continue
		}

		o.mu.Lock()
		if temp > o.maxTemps[d.Key] {
			o.maxTemps[d.Key] = temp
		}
		o.mu.Unlock()

		if temp >= o.cfg.TempThresholdC {
			o.Abort(fmt.Sprintf("drive %s (%s) reached %dC, threshold %dC",
				d.Key, d.DevPath, temp, o.cfg.TempThresholdC), ExitAborted)
			return
		}
	}

	if err := o.writeStatus(); err != nil {
		log.WithError(err).Warn("Failed to persist temperature maximums")
	}
}

// monitoredWait sleeps for total, running a monitor tick every poll
// interval. The wait is cancellable so an abort interrupts it
// immediately.
func (o *Orchestrator) monitoredWait(ctx context.Context, total time.Duration) error {
	deadline := time.Now().Add(total)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		step := o.cfg.TempPollInterval
		if step > remaining {
			step = remaining
		}
		if err := sleepCtx(ctx, step); err != nil {
			return err
		}
		o.monitorTick()
	}
}
