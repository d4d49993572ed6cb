package burnin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRejectsBadTunables(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"zero temperature threshold", func(c *Config) { c.TempThresholdC = 0 }},
		{"absurd temperature threshold", func(c *Config) { c.TempThresholdC = 400 }},
		{"zero poll interval", func(c *Config) { c.TempPollInterval = 0 }},
		{"zero scan passes", func(c *Config) { c.ScanPasses = 0 }},
		{"tiny block size", func(c *Config) { c.ScanBlockSize = 128 }},
		{"zero max scan drives", func(c *Config) { c.MaxScanDrives = 0 }},
		{"empty confirmation token", func(c *Config) { c.ConfirmToken = "" }},
		{"broken exclude pattern", func(c *Config) { c.ExcludePatterns = []string{"[sd"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestExcludedMatchesPathAndSerial(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExcludePatterns = []string{"/dev/nvme*", "VM-*"}
	require.NoError(t, cfg.CompileExcludes())

	assert.True(t, cfg.Excluded("/dev/nvme0n1", ""))
	assert.True(t, cfg.Excluded("/dev/sda", "VM-1234"))
	assert.False(t, cfg.Excluded("/dev/sda", "WD-WCC4N5XYZ123"))
}

func TestExcludedEmptyPatterns(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.CompileExcludes())
	assert.False(t, cfg.Excluded("/dev/sda", "SN1"))
}
