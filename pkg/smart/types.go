package smart

import "strings"

// SelfTestKind names a smartctl self-test routine.
type SelfTestKind string

const (
	SelfTestShort      SelfTestKind = "short"
	SelfTestConveyance SelfTestKind = "conveyance"
	SelfTestLong       SelfTestKind = "long"
)

// Identity is the subset of "smartctl -i" this system cares about.
type Identity struct {
	SerialNumber  string
	ModelName     string
	ModelFamily   string
	FirmwareVer   string
	WWN           string
	CapacityBytes int64
	RotationRate  int64
}

// HealthStatus is the overall verdict of "smartctl -H".
type HealthStatus struct {
	// Passed is the device's own overall assessment. A drive that fails
	// this is condemned regardless of individual attribute values.
	Passed bool
}

// Attributes holds raw values of the ATA attributes used for verdicts.
// An attribute absent from the device report stays zero; that is distinct
// from the probe itself being unavailable, which surfaces as an error.
type Attributes struct {
	PowerOnHours         int64
	ReallocatedSectors   int64
	PendingSectors       int64
	OfflineUncorrectable int64
	UDMACRCErrors        int64
	TemperatureC         int64
}

// Capabilities is the subset of "smartctl -c" used to sequence self-tests.
type Capabilities struct {
	ConveyanceSupported bool
	SelfTestSupported   bool

	// SelfTestInProgress is true while a routine is running; triage polls
	// until every selected drive reports false.
	SelfTestInProgress bool
	RemainingPercent   int64
}

// SelfTestLog is the parsed "smartctl -l selftest" report.
type SelfTestLog struct {
	Raw string

	// Failed is true when any logged self-test entry did not pass.
	Failed bool
}

// placeholder serial strings some USB bridges and virtual devices report.
var placeholderSerials = map[string]struct{}{
	"":                 {},
	"unknown":          {},
	"none":             {},
	"n/a":              {},
	"0":                {},
	"00000000":         {},
	"0000000000000000": {},
	"123456789000":     {},
}

// IsPlaceholderSerial reports whether s cannot serve as a durable identity.
func IsPlaceholderSerial(s string) bool {
	_, ok := placeholderSerials[strings.ToLower(strings.TrimSpace(s))]
	return ok
}
