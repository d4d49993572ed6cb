package burnin

import (
	"fmt"
	"os/exec"
	"time"

	"github.com/gobwas/glob"
)

// requiredCommands must be on PATH before any state is touched.
var requiredCommands = []string{"smartctl", "lsblk", "udevadm", "findmnt", "badblocks"}

// Config holds all orchestrator tunables. Validation failures are fatal
// at startup, before any state mutation.
type Config struct {
	// DataDir holds the registry, history, live-status document, lock
	// file and per-run log directories.
	DataDir string

	// TempThresholdC aborts the whole run when any selected drive
	// reaches it.
	TempThresholdC int64

	// TempPollInterval is the temperature monitoring tick.
	TempPollInterval time.Duration

	// SettleInterval is the wait after starting short/conveyance
	// self-tests before capturing their logs.
	SettleInterval time.Duration

	// SelfTestPollInterval is how often triage re-checks self-test
	// progress.
	SelfTestPollInterval time.Duration

	// ScanPasses is the number of destructive write/verify passes.
	ScanPasses int

	// ScanBlockSize is the badblocks block size in bytes.
	ScanBlockSize int

	// MaxScanDrives caps how many drives one destructive batch may hold.
	MaxScanDrives int

	// ProbeTimeout bounds every individual smartctl invocation.
	ProbeTimeout time.Duration

	// WorkerGracePeriod is the wait between the graceful and the forced
	// worker termination signal.
	WorkerGracePeriod time.Duration

	// ConfirmToken is the literal string the operator must type before
	// a destructive scan starts.
	ConfirmToken string

	// ExcludePatterns are glob patterns; a device whose path or serial
	// matches any of them is filtered out before selection.
	ExcludePatterns []string

	excludeGlobs []glob.Glob
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		DataDir:              "/var/lib/driveburn",
		TempThresholdC:       45,
		TempPollInterval:     30 * time.Second,
		SettleInterval:       2 * time.Minute,
		SelfTestPollInterval: 2 * time.Minute,
		ScanPasses:           4,
		ScanBlockSize:        4096,
		MaxScanDrives:        8,
		ProbeTimeout:         30 * time.Second,
		WorkerGracePeriod:    10 * time.Second,
		ConfirmToken:         "DESTROY",
	}
}

// Validate checks thresholds, compiles exclusion globs, and verifies the
// external utilities are present.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory must be set")
	}
	if c.TempThresholdC <= 0 || c.TempThresholdC > 100 {
		return fmt.Errorf("temperature threshold %d is out of range (1..100)", c.TempThresholdC)
	}
	if c.TempPollInterval <= 0 || c.SettleInterval <= 0 || c.SelfTestPollInterval <= 0 {
		return fmt.Errorf("poll and settle intervals must be positive")
	}
	if c.ScanPasses < 1 {
		return fmt.Errorf("scan pass count %d must be at least 1", c.ScanPasses)
	}
	if c.ScanBlockSize < 512 {
		return fmt.Errorf("scan block size %d is too small", c.ScanBlockSize)
	}
	if c.MaxScanDrives < 1 {
		return fmt.Errorf("max scan drives %d must be at least 1", c.MaxScanDrives)
	}
	if c.ConfirmToken == "" {
		return fmt.Errorf("confirmation token must not be empty")
	}

	if err := c.CompileExcludes(); err != nil {
		return err
	}

	for _, cmd := range requiredCommands {
		if _, err := exec.LookPath(cmd); err != nil {
			return fmt.Errorf("required command %q not found on PATH", cmd)
		}
	}
	return nil
}

// Excluded reports whether a device is filtered out by the configured
// exclusion patterns.
func (c *Config) Excluded(devPath, serial string) bool {
	for _, g := range c.excludeGlobs {
		if g.Match(devPath) || (serial != "" && g.Match(serial)) {
			return true
		}
	}
	return false
}

// CompileExcludes compiles the exclusion patterns without running the
// full validation; tests and callers that skip Validate use it.
func (c *Config) CompileExcludes() error {
	c.excludeGlobs = nil
	for _, pattern := range c.ExcludePatterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		c.excludeGlobs = append(c.excludeGlobs, g)
	}
	return nil
}
