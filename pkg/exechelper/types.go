package exechelper

import (
	"bytes"
	"time"
)

// Executor is the interface for running external commands.
type Executor interface {
	RunCommand(params ExecParams) ExecResult
}

// ExecParams parameters to execute a command
type ExecParams struct {
	CmdName string
	CmdArgs []string

	// Timeout bounds the command run time. Zero means DefaultTimeout.
	Timeout time.Duration
}

// ExecResult result of executing a command
type ExecResult struct {
	OutBuf   *bytes.Buffer
	ErrBuf   *bytes.Buffer
	ExitCode int
	Error    error
}

// TimedOut reports whether the command was killed by its timeout.
func (r ExecResult) TimedOut() bool {
	return r.ExitCode == ExitCodeTimeout
}

const (
	// DefaultTimeout is applied when ExecParams.Timeout is zero. SMART
	// commands against a dying drive can stall for minutes; the
	// orchestrator must never block on one indefinitely.
	DefaultTimeout = 30 * time.Second

	ExitCodeSuccess    = 0
	ExitCodeErrDefault = 1
	ExitCodeTimeout    = 124
)
