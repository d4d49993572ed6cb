package state

import "time"

// Phase names a burn-in test phase.
type Phase string

const (
	PhaseTriage Phase = "TRIAGE"
	PhaseScan   Phase = "SCAN"
)

// Outcome is the terminal result of one drive in one phase attempt.
type Outcome string

const (
	OutcomePass    Outcome = "PASS"
	OutcomeWarn    Outcome = "WARN"
	OutcomeFail    Outcome = "FAIL"
	OutcomeAborted Outcome = "ABORTED"
)

// RunStatus is the lifecycle state of the live-status document.
type RunStatus string

const (
	StatusIdle    RunStatus = "idle"
	StatusRunning RunStatus = "running"
	StatusAborted RunStatus = "aborted"
)

// Observation is one sighting of a physical drive, used to upsert the
// drive registry.
type Observation struct {
	Key       string
	WWN       string
	Model     string
	SizeBytes int64
}

// RegistryEntry is one row of the drive registry: a distinct physical
// drive identity. Rows are never deleted.
type RegistryEntry struct {
	Key       string
	WWN       string
	Model     string
	SizeBytes int64
	FirstSeen time.Time
	LastSeen  time.Time
	Notes     string
}

// RunRecord is one append-only row of the run history: one drive in one
// phase attempt. Rows are never mutated or deleted.
type RunRecord struct {
	RunID                string
	Timestamp            time.Time
	Phase                Phase
	Outcome              Outcome
	DriveKey             string
	WWN                  string
	Model                string
	SizeBytes            int64
	PowerOnHours         int64
	ReallocatedSectors   int64
	PendingSectors       int64
	OfflineUncorrectable int64
	InterfaceErrorCount  int64
	HealthVerdict        string
	MaxTemperatureC      int64
	LogDirectory         string
}

// CurrentRunStatus is the ephemeral live-status document external tools
// poll. It is rewritten atomically on every transition and is a pure
// output: nothing in this process ever reads it back.
type CurrentRunStatus struct {
	RunID               string           `json:"runId"`
	Status              RunStatus        `json:"status"`
	Phase               Phase            `json:"phase,omitempty"`
	PhaseStartedAt      *time.Time       `json:"phaseStartedAt,omitempty"`
	LastUpdate          time.Time        `json:"lastUpdate"`
	SelectedDrives      []string         `json:"selectedDrives,omitempty"`
	SelectedDeviceNodes []string         `json:"selectedDeviceNodes,omitempty"`
	AbortReason         string           `json:"abortReason,omitempty"`
	PerDriveMaxTempC    map[string]int64 `json:"perDriveMaxTemperature,omitempty"`
	LogDirectory        string           `json:"logDirectory,omitempty"`
	SummaryPath         string           `json:"summaryPath,omitempty"`
}
