package burnin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/driveburn/driveburn/pkg/identity"
	"github.com/driveburn/driveburn/pkg/scan"
	"github.com/driveburn/driveburn/pkg/smart"
	"github.com/driveburn/driveburn/pkg/state"
)

// DiagProber is the diagnostic surface the orchestrator depends on.
// *smart.Prober implements it; tests substitute mocks.
type DiagProber interface {
	Health(devPath string) (*smart.HealthStatus, error)
	Attributes(devPath string) (*smart.Attributes, error)
	ExtendedDump(devPath string) (string, error)
	Capabilities(devPath string) (*smart.Capabilities, error)
	StartSelfTest(devPath string, kind smart.SelfTestKind) error
	SelfTestLog(devPath string) (*smart.SelfTestLog, error)
	ErrorLog(devPath string) (string, error)
	Temperature(devPath string) (int64, error)
}

// SafetyChecker validates destructive eligibility of a device.
type SafetyChecker interface {
	CheckEligible(devPath string) error
}

// Exit codes. Signals exit with 128+signum through the abort path.
const (
	ExitOK           = 0
	ExitBatchFailure = 1
	ExitFatal        = 2
	ExitAborted      = 4
)

// Sentinel errors callers classify with errors.Is. ErrBatchFailed marks a
// scan batch where at least one drive failed but the run itself completed
// normally; the other two are pre-phase refusals that leave no state
// behind.
var (
	ErrBatchFailed          = fmt.Errorf("at least one drive failed the batch")
	ErrConfirmationMismatch = fmt.Errorf("confirmation token mismatch, destructive scan refused")
	ErrTooManyDrives        = fmt.Errorf("drive count exceeds the destructive batch limit")
)

// Orchestrator owns one burn-in session: the selected drives, the phase
// state machine, the temperature maximums, the supervised workers and the
// unified abort path. All mutable per-run state lives here rather than in
// package globals so independent runs cannot interfere.
type Orchestrator struct {
	cfg     Config
	probe   DiagProber
	checker SafetyChecker
	store   *state.Store

	runID  string
	logDir string

	mu       sync.Mutex
	selected []*identity.DriveIdentity
	maxTemps map[string]int64
	status   state.CurrentRunStatus

	phaseCancel context.CancelFunc

	workers workerSet

	abortOnce sync.Once

	// newWorker builds one drive's scan runner; tests substitute fakes
	// so the scan phase runs without a real scanner binary.
	newWorker func(devPath, driveKey string, opts scan.Options) scan.Runner

	// exit is os.Exit in production; tests substitute a recorder.
	exit func(int)
}

// workerSet is the abort path's view of the scan supervisor.
type workerSet interface {
	StopAll()
}

// New creates an orchestrator with a fresh run id and per-run log
// directory, and publishes an idle live-status document.
func New(cfg Config, probe DiagProber, checker SafetyChecker, store *state.Store) (*Orchestrator, error) {
	runID := uuid.New().String()[:8]
	logDir := filepath.Join(store.Dir, "logs", runID)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", logDir, err)
	}

	o := &Orchestrator{
		cfg:      cfg,
		probe:    probe,
		checker:  checker,
		store:    store,
		runID:    runID,
		logDir:   logDir,
		maxTemps: map[string]int64{},
		newWorker: func(devPath, driveKey string, opts scan.Options) scan.Runner {
			return scan.NewWorker(devPath, driveKey, opts)
		},
		exit: os.Exit,
	}
	o.status = state.CurrentRunStatus{
		RunID:        runID,
		Status:       state.StatusIdle,
		LogDirectory: logDir,
	}
	if err := o.writeStatus(); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"runID": runID, "logDir": logDir}).Info("Orchestrator ready")
	return o, nil
}

// RunID returns this session's run id.
func (o *Orchestrator) RunID() string { return o.runID }

// LogDir returns this session's log directory.
func (o *Orchestrator) LogDir() string { return o.logDir }

// Select records the drives subsequent phases operate on, upserting each
// into the registry.
func (o *Orchestrator) Select(drives []*identity.DriveIdentity) error {
	now := time.Now()
	for _, d := range drives {
		err := o.store.Registry.Upsert(state.Observation{
			Key:       d.Key,
			WWN:       d.WWN,
			Model:     d.Model,
			SizeBytes: d.SizeBytes,
		}, now)
		if err != nil {
			return fmt.Errorf("register drive %s: %w", d.Key, err)
		}
	}

	o.mu.Lock()
	o.selected = drives
	var keys, nodes []string
	for _, d := range drives {
		keys = append(keys, d.Key)
		nodes = append(nodes, d.DevPath)
	}
	o.status.SelectedDrives = keys
	o.status.SelectedDeviceNodes = nodes
	o.mu.Unlock()
	return o.writeStatus()
}

// Selected returns the current selection.
func (o *Orchestrator) Selected() []*identity.DriveIdentity {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selected
}

// enterPhase transitions the live-status document to running and returns
// a cancellable context the phase's bounded waits hang off.
func (o *Orchestrator) enterPhase(ctx context.Context, phase state.Phase) (context.Context, error) {
	phaseCtx, cancel := context.WithCancel(ctx)

	o.mu.Lock()
	now := time.Now()
	o.status.Status = state.StatusRunning
	o.status.Phase = phase
	o.status.PhaseStartedAt = &now
	o.phaseCancel = cancel
	o.mu.Unlock()

	log.WithFields(log.Fields{"runID": o.runID, "phase": phase}).Info("Phase started")
	return phaseCtx, o.writeStatus()
}

// leavePhase returns to idle after a phase completes normally.
func (o *Orchestrator) leavePhase(phase state.Phase) error {
	o.mu.Lock()
	o.status.Status = state.StatusIdle
	o.status.Phase = ""
	o.status.PhaseStartedAt = nil
	o.phaseCancel = nil
	o.mu.Unlock()

	log.WithFields(log.Fields{"runID": o.runID, "phase": phase}).Info("Phase finished")
	return o.writeStatus()
}

func (o *Orchestrator) activePhase() state.Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status.Status == state.StatusRunning {
		return o.status.Phase
	}
	return ""
}

func (o *Orchestrator) writeStatus() error {
	o.mu.Lock()
	snapshot := o.status
	snapshot.PerDriveMaxTempC = make(map[string]int64, len(o.maxTemps))
	for k, v := range o.maxTemps {
		snapshot.PerDriveMaxTempC[k] = v
	}
	o.mu.Unlock()

	if err := o.store.Status.Write(&snapshot); err != nil {
		return fmt.Errorf("write live status: %w", err)
	}
	return nil
}

// sleepCtx is a cancellable bounded wait: an abort interrupts it
// immediately instead of waiting out the interval.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
