package burnin

import (
	"context"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveburn/driveburn/pkg/identity"
	"github.com/driveburn/driveburn/pkg/safety"
	"github.com/driveburn/driveburn/pkg/scan"
	"github.com/driveburn/driveburn/pkg/smart"
	"github.com/driveburn/driveburn/pkg/state"
)

type stubChecker struct {
	err   error
	calls int
}

func (s *stubChecker) CheckEligible(devPath string) error {
	s.calls++
	return s.err
}

// exitRecorder captures the codes the abort path would have terminated
// the process with.
type exitRecorder struct {
	codes []int
}

func (r *exitRecorder) record(code int) { r.codes = append(r.codes, code) }

func testConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.TempPollInterval = time.Millisecond
	cfg.SettleInterval = 3 * time.Millisecond
	cfg.SelfTestPollInterval = time.Millisecond
	return cfg
}

func newTestOrchestrator(t *testing.T, cfg Config, probe DiagProber, checker SafetyChecker) (*Orchestrator, *state.Store, *exitRecorder) {
	t.Helper()

	store, err := state.Open(cfg.DataDir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	orch, err := New(cfg, probe, checker, store)
	require.NoError(t, err)

	rec := &exitRecorder{}
	orch.exit = rec.record
	return orch, store, rec
}

func testDrives() []*identity.DriveIdentity {
	return []*identity.DriveIdentity{
		{
			Key: "SN1", SerialNumber: "SN1", WWN: "50014ee2b5f6d6e1",
			Model: "WDC WD40EFRX", SizeBytes: 4000787030016, DevPath: "/dev/sda",
		},
		{
			Key: "wwn-5000c500c3d5e7f9", WWN: "5000c500c3d5e7f9",
			Model: "ST2000DM008", SizeBytes: 2000398934016, DevPath: "/dev/sdb",
		},
	}
}

func TestSelectUpsertsRegistryAndStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := testConfig(t)
	orch, store, _ := newTestOrchestrator(t, cfg, NewMockDiagProber(ctrl), &stubChecker{})

	require.NoError(t, orch.Select(testDrives()))

	entries, err := store.Registry.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "SN1", entries[0].Key)
	assert.Equal(t, "wwn-5000c500c3d5e7f9", entries[1].Key)

	status, err := store.Status.Read()
	require.NoError(t, err)
	assert.Equal(t, []string{"SN1", "wwn-5000c500c3d5e7f9"}, status.SelectedDrives)
	assert.Equal(t, []string{"/dev/sda", "/dev/sdb"}, status.SelectedDeviceNodes)
	assert.Equal(t, state.StatusIdle, status.Status)
}

func TestThermalBreachAbortsWholeRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	probe := NewMockDiagProber(ctrl)
	probe.EXPECT().Temperature("/dev/sda").Return(int64(46), nil).AnyTimes()
	probe.EXPECT().Temperature("/dev/sdb").Return(int64(30), nil).AnyTimes()

	cfg := testConfig(t)
	orch, store, rec := newTestOrchestrator(t, cfg, probe, &stubChecker{})
	require.NoError(t, orch.Select(testDrives()))

	_, err := orch.enterPhase(context.Background(), state.PhaseScan)
	require.NoError(t, err)

	orch.monitorTick()

	require.NotEmpty(t, rec.codes)
	assert.Equal(t, ExitAborted, rec.codes[0])

	status, err := store.Status.Read()
	require.NoError(t, err)
	assert.Equal(t, state.StatusAborted, status.Status)
	assert.Contains(t, status.AbortReason, "reached 46C, threshold 45C")
	assert.Equal(t, int64(46), status.PerDriveMaxTempC["SN1"])

	// every selected drive gets an ABORTED row, not only the hot one
	records, err := store.History.Records()
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, state.OutcomeAborted, r.Outcome)
		assert.Equal(t, state.PhaseScan, r.Phase)
		assert.Equal(t, "UNKNOWN", r.HealthVerdict)
	}
	assert.Equal(t, int64(46), records[0].MaxTemperatureC)
}

func TestAbortIsIdempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := testConfig(t)
	orch, store, rec := newTestOrchestrator(t, cfg, NewMockDiagProber(ctrl), &stubChecker{})
	require.NoError(t, orch.Select(testDrives()))

	orch.Abort("first reason", ExitAborted)
	orch.Abort("second reason", ExitAborted)

	status, err := store.Status.Read()
	require.NoError(t, err)
	assert.Equal(t, "first reason", status.AbortReason)

	// idle at abort time: no phase was running, so no ABORTED rows
	records, err := store.History.Records()
	require.NoError(t, err)
	assert.Empty(t, records)

	assert.NotEmpty(t, rec.codes)
	for _, code := range rec.codes {
		assert.Equal(t, ExitAborted, code)
	}
}

func TestAbortOnSignalExitCode(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := testConfig(t)
	orch, _, rec := newTestOrchestrator(t, cfg, NewMockDiagProber(ctrl), &stubChecker{})

	orch.AbortOnSignal(syscall.SIGTERM, int(syscall.SIGTERM))

	require.NotEmpty(t, rec.codes)
	assert.Equal(t, 128+int(syscall.SIGTERM), rec.codes[0])
}

func TestRunScanRequiresSelection(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := testConfig(t)
	orch, _, _ := newTestOrchestrator(t, cfg, NewMockDiagProber(ctrl), &stubChecker{})

	err := orch.RunScan(context.Background(), func() (string, error) { return "DESTROY", nil })
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no drives selected")
}

func TestRunScanEnforcesDriveLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := testConfig(t)
	cfg.MaxScanDrives = 1
	orch, _, _ := newTestOrchestrator(t, cfg, NewMockDiagProber(ctrl), &stubChecker{})
	require.NoError(t, orch.Select(testDrives()))

	err := orch.RunScan(context.Background(), func() (string, error) { return "DESTROY", nil })
	assert.ErrorIs(t, err, ErrTooManyDrives)
	assert.Contains(t, err.Error(), "maximum per destructive batch")
}

func TestRunScanChecksSafetyBeforeConfirmation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	checker := &stubChecker{err: &safety.Violation{DevPath: "/dev/sda", Reason: "is mounted"}}
	cfg := testConfig(t)
	orch, _, _ := newTestOrchestrator(t, cfg, NewMockDiagProber(ctrl), checker)
	require.NoError(t, orch.Select(testDrives()))

	confirmCalled := false
	err := orch.RunScan(context.Background(), func() (string, error) {
		confirmCalled = true
		return "DESTROY", nil
	})

	var v *safety.Violation
	assert.ErrorAs(t, err, &v)
	assert.False(t, confirmCalled, "operator must not be prompted for an ineligible batch")
	assert.Equal(t, 1, checker.calls)
}

func TestRunScanRefusesWrongToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := testConfig(t)
	orch, store, rec := newTestOrchestrator(t, cfg, NewMockDiagProber(ctrl), &stubChecker{})
	require.NoError(t, orch.Select(testDrives()))

	err := orch.RunScan(context.Background(), func() (string, error) { return "destroy", nil })
	assert.ErrorIs(t, err, ErrConfirmationMismatch)

	// the refusal happens before the phase starts and writes nothing
	status, readErr := store.Status.Read()
	require.NoError(t, readErr)
	assert.Equal(t, state.StatusIdle, status.Status)
	records, readErr := store.History.Records()
	require.NoError(t, readErr)
	assert.Empty(t, records)
	assert.Empty(t, rec.codes)
}

func TestRunTriageRecordsPassVerdict(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	probe := NewMockDiagProber(ctrl)
	probe.EXPECT().ExtendedDump(gomock.Any()).Return(`{"smartctl":{}}`, nil).AnyTimes()
	probe.EXPECT().Attributes(gomock.Any()).Return(&smart.Attributes{PowerOnHours: 12000, TemperatureC: 31}, nil).AnyTimes()
	probe.EXPECT().StartSelfTest(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	probe.EXPECT().Capabilities(gomock.Any()).Return(&smart.Capabilities{SelfTestSupported: true}, nil).AnyTimes()
	probe.EXPECT().SelfTestLog(gomock.Any()).Return(&smart.SelfTestLog{Raw: "{}"}, nil).AnyTimes()
	probe.EXPECT().ErrorLog(gomock.Any()).Return("{}", nil).AnyTimes()
	probe.EXPECT().Health(gomock.Any()).Return(&smart.HealthStatus{Passed: true}, nil).AnyTimes()
	probe.EXPECT().Temperature(gomock.Any()).Return(int64(31), nil).AnyTimes()

	cfg := testConfig(t)
	orch, store, rec := newTestOrchestrator(t, cfg, probe, &stubChecker{})
	require.NoError(t, orch.Select(testDrives()[:1]))

	require.NoError(t, orch.RunTriage(context.Background()))

	records, err := store.History.Records()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, state.PhaseTriage, records[0].Phase)
	assert.Equal(t, state.OutcomePass, records[0].Outcome)
	assert.Equal(t, "PASSED", records[0].HealthVerdict)
	assert.Equal(t, int64(12000), records[0].PowerOnHours)
	assert.Equal(t, orch.LogDir(), records[0].LogDirectory)

	status, err := store.Status.Read()
	require.NoError(t, err)
	assert.Equal(t, state.StatusIdle, status.Status)
	assert.Empty(t, rec.codes)
}

func TestRunTriageFailingDriveGetsFailVerdict(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	probe := NewMockDiagProber(ctrl)
	probe.EXPECT().ExtendedDump(gomock.Any()).Return(`{"smartctl":{}}`, nil).AnyTimes()
	probe.EXPECT().Attributes(gomock.Any()).Return(&smart.Attributes{PendingSectors: 16, TemperatureC: 33}, nil).AnyTimes()
	probe.EXPECT().StartSelfTest(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	probe.EXPECT().Capabilities(gomock.Any()).Return(&smart.Capabilities{SelfTestSupported: true}, nil).AnyTimes()
	probe.EXPECT().SelfTestLog(gomock.Any()).Return(&smart.SelfTestLog{Raw: "{}"}, nil).AnyTimes()
	probe.EXPECT().ErrorLog(gomock.Any()).Return("{}", nil).AnyTimes()
	probe.EXPECT().Health(gomock.Any()).Return(&smart.HealthStatus{Passed: true}, nil).AnyTimes()
	probe.EXPECT().Temperature(gomock.Any()).Return(int64(33), nil).AnyTimes()

	cfg := testConfig(t)
	orch, store, _ := newTestOrchestrator(t, cfg, probe, &stubChecker{})
	require.NoError(t, orch.Select(testDrives()[:1]))

	require.NoError(t, orch.RunTriage(context.Background()))

	records, err := store.History.Records()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, state.OutcomeFail, records[0].Outcome)
	assert.Equal(t, int64(16), records[0].PendingSectors)
}

func TestRunTriageUnreadableProbeNeverPasses(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	probe := NewMockDiagProber(ctrl)
	probe.EXPECT().ExtendedDump(gomock.Any()).Return(`{"smartctl":{}}`, nil).AnyTimes()
	probe.EXPECT().Attributes(gomock.Any()).Return(&smart.Attributes{TemperatureC: 30}, nil).AnyTimes()
	probe.EXPECT().StartSelfTest(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	probe.EXPECT().Capabilities(gomock.Any()).Return(&smart.Capabilities{}, nil).AnyTimes()
	// the self-test log never becomes readable
	probe.EXPECT().SelfTestLog(gomock.Any()).Return(nil, assert.AnError).AnyTimes()
	probe.EXPECT().ErrorLog(gomock.Any()).Return("{}", nil).AnyTimes()
	probe.EXPECT().Health(gomock.Any()).Return(&smart.HealthStatus{Passed: true}, nil).AnyTimes()
	probe.EXPECT().Temperature(gomock.Any()).Return(int64(30), nil).AnyTimes()

	cfg := testConfig(t)
	orch, store, _ := newTestOrchestrator(t, cfg, probe, &stubChecker{})
	require.NoError(t, orch.Select(testDrives()[:1]))

	require.NoError(t, orch.RunTriage(context.Background()))

	records, err := store.History.Records()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, state.OutcomeWarn, records[0].Outcome)
}

func TestWriteSummaryFiltersOtherRuns(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := testConfig(t)
	orch, store, _ := newTestOrchestrator(t, cfg, NewMockDiagProber(ctrl), &stubChecker{})

	require.NoError(t, store.History.Append(state.RunRecord{
		RunID: orch.RunID(), Timestamp: time.Now(), Phase: state.PhaseTriage,
		Outcome: state.OutcomePass, DriveKey: "SN1", HealthVerdict: "PASSED",
		LogDirectory: orch.LogDir(),
	}))
	require.NoError(t, store.History.Append(state.RunRecord{
		RunID: "otherrun", Timestamp: time.Now(), Phase: state.PhaseScan,
		Outcome: state.OutcomeFail, DriveKey: "SN2", HealthVerdict: "FAILED",
		LogDirectory: "/elsewhere",
	}))

	path, err := orch.WriteSummary()
	require.NoError(t, err)
	assert.FileExists(t, path)

	status, err := store.Status.Read()
	require.NoError(t, err)
	assert.Equal(t, path, status.SummaryPath)
}

// fakeRunner stands in for a scan worker so the scan phase can run
// without a scanner binary on the host.
type fakeRunner struct {
	dev       string
	badBlocks []string
	listErr   error
	runErr    error
	stopped   bool
}

func (f *fakeRunner) Run(ctx context.Context) error     { return f.runErr }
func (f *fakeRunner) Stop()                             { f.stopped = true }
func (f *fakeRunner) Device() string                    { return f.dev }
func (f *fakeRunner) PID() int                          { return 0 }
func (f *fakeRunner) Progress() (*scan.Progress, error) { return nil, assert.AnError }
func (f *fakeRunner) BadBlocks() ([]string, error)      { return f.badBlocks, f.listErr }

func useFakeRunners(orch *Orchestrator, runners map[string]*fakeRunner) {
	orch.newWorker = func(devPath, driveKey string, opts scan.Options) scan.Runner {
		return runners[devPath]
	}
}

func cleanScanProbe(ctrl *gomock.Controller) *MockDiagProber {
	probe := NewMockDiagProber(ctrl)
	probe.EXPECT().ExtendedDump(gomock.Any()).Return(`{"smartctl":{}}`, nil).AnyTimes()
	probe.EXPECT().Attributes(gomock.Any()).Return(&smart.Attributes{PowerOnHours: 12000, TemperatureC: 32}, nil).AnyTimes()
	probe.EXPECT().Health(gomock.Any()).Return(&smart.HealthStatus{Passed: true}, nil).AnyTimes()
	probe.EXPECT().Temperature(gomock.Any()).Return(int64(32), nil).AnyTimes()
	return probe
}

func confirmDestroy() (string, error) { return "DESTROY", nil }

func TestRunScanCleanDrivePasses(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := testConfig(t)
	orch, store, rec := newTestOrchestrator(t, cfg, cleanScanProbe(ctrl), &stubChecker{})
	require.NoError(t, orch.Select(testDrives()[:1]))
	useFakeRunners(orch, map[string]*fakeRunner{"/dev/sda": {dev: "/dev/sda"}})

	require.NoError(t, orch.RunScan(context.Background(), confirmDestroy))

	records, err := store.History.Records()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, state.PhaseScan, records[0].Phase)
	assert.Equal(t, state.OutcomePass, records[0].Outcome)
	assert.Equal(t, "PASSED", records[0].HealthVerdict)
	assert.Equal(t, "SN1", records[0].DriveKey)

	status, err := store.Status.Read()
	require.NoError(t, err)
	assert.Equal(t, state.StatusIdle, status.Status)
	assert.Empty(t, rec.codes)
}

func TestRunScanBadBlocksFailBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := testConfig(t)
	orch, store, _ := newTestOrchestrator(t, cfg, cleanScanProbe(ctrl), &stubChecker{})
	require.NoError(t, orch.Select(testDrives()))
	useFakeRunners(orch, map[string]*fakeRunner{
		"/dev/sda": {dev: "/dev/sda", badBlocks: []string{"1024", "2048"}},
		"/dev/sdb": {dev: "/dev/sdb"},
	})

	err := orch.RunScan(context.Background(), confirmDestroy)
	assert.ErrorIs(t, err, ErrBatchFailed)

	records, err := store.History.Records()
	require.NoError(t, err)
	require.Len(t, records, 2)
	byKey := map[string]state.Outcome{}
	for _, r := range records {
		byKey[r.DriveKey] = r.Outcome
	}
	// only the defective drive fails; its batch-mate still passes
	assert.Equal(t, state.OutcomeFail, byKey["SN1"])
	assert.Equal(t, state.OutcomePass, byKey["wwn-5000c500c3d5e7f9"])

	// the surviving bad-block list is archived with the run logs
	assert.FileExists(t, filepath.Join(orch.LogDir(), "SCAN_SN1_badblocks.json"))
}

func TestRunScanWorkerErrorAloneDoesNotCondemn(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := testConfig(t)
	orch, store, _ := newTestOrchestrator(t, cfg, cleanScanProbe(ctrl), &stubChecker{})
	require.NoError(t, orch.Select(testDrives()[:1]))
	useFakeRunners(orch, map[string]*fakeRunner{
		"/dev/sda": {dev: "/dev/sda", runErr: assert.AnError},
	})

	require.NoError(t, orch.RunScan(context.Background(), confirmDestroy))

	records, err := store.History.Records()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, state.OutcomePass, records[0].Outcome)
}

func TestRunScanUnreadableBadBlockListWarns(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := testConfig(t)
	orch, store, _ := newTestOrchestrator(t, cfg, cleanScanProbe(ctrl), &stubChecker{})
	require.NoError(t, orch.Select(testDrives()[:1]))
	useFakeRunners(orch, map[string]*fakeRunner{
		"/dev/sda": {dev: "/dev/sda", listErr: assert.AnError},
	})

	require.NoError(t, orch.RunScan(context.Background(), confirmDestroy))

	records, err := store.History.Records()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, state.OutcomeWarn, records[0].Outcome)
}
