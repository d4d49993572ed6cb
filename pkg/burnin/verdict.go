package burnin

import (
	"time"

	"github.com/driveburn/driveburn/pkg/state"
)

// timeNow is swapped out by tests that need deterministic records.
var timeNow = time.Now

// computeVerdict derives a drive's outcome from its evidence. Hard
// failure signals (explicit health FAILED, nonzero bad-sector counts, a
// failed self-test entry, surviving bad blocks) always mean FAIL. Any
// unavailable diagnostic capture degrades the result to WARN; missing
// data never produces a PASS. A worker's exit code is deliberately not
// consulted: destructive utilities exit non-zero for reasons unrelated
// to medium defects.
func computeVerdict(ev *evidence) state.Outcome {
	if ev.health != nil && !ev.health.Passed {
		return state.OutcomeFail
	}
	if ev.attrs != nil {
		if ev.attrs.ReallocatedSectors > 0 ||
			ev.attrs.PendingSectors > 0 ||
			ev.attrs.OfflineUncorrectable > 0 {
			return state.OutcomeFail
		}
	}
	if ev.selfTestFailed {
		return state.OutcomeFail
	}
	if ev.badBlockCount > 0 {
		return state.OutcomeFail
	}

	if !ev.preAvailable || !ev.postAvailable {
		return state.OutcomeWarn
	}
	return state.OutcomePass
}
