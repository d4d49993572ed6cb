package exechelper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
)

var squashRegex = regexp.MustCompile("[\t\n\r]+")

type basicExecutor struct{}

// New creates an Executor backed by os/exec with per-command timeouts.
func New() Executor {
	return &basicExecutor{}
}

// RunCommand run a command, and get result
func (e *basicExecutor) RunCommand(params ExecParams) ExecResult {
	log.WithFields(log.Fields{"command": params.CmdName, "args": params.CmdArgs}).Debug("Running command")

	timeout := params.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	outbuf, errbuf := bytes.NewBufferString(""), bytes.NewBufferString("")
	cmd := exec.CommandContext(ctx, params.CmdName, params.CmdArgs...)
	cmd.Stdout = outbuf
	cmd.Stderr = errbuf
	err := cmd.Run()

	result := ExecResult{
		OutBuf:   bytes.NewBufferString(strings.TrimSuffix(outbuf.String(), "\n")),
		ErrBuf:   bytes.NewBufferString(strings.TrimSuffix(errbuf.String(), "\n")),
		ExitCode: ExitCodeSuccess,
		Error:    err,
	}

	if ctx.Err() == context.DeadlineExceeded {
		result.ExitCode = ExitCodeTimeout
		result.Error = fmt.Errorf("command %s %v timed out after %v", params.CmdName, params.CmdArgs, timeout)
		return result
	}

	if err != nil {
		// try to get the exit code
		if exitError, ok := err.(*exec.ExitError); ok {
			ws := exitError.Sys().(syscall.WaitStatus)
			result.ExitCode = ws.ExitStatus()
		} else {
			// failed to get exit code, use default code
			result.ExitCode = ExitCodeErrDefault
		}
		result.Error = errors.New(squashRegex.ReplaceAllString(err.Error(), " "))
	}

	log.WithFields(log.Fields{
		"command": params.CmdName,
		"args":    params.CmdArgs,
		"exit":    result.ExitCode,
		"error":   result.Error,
	}).Debug("Finished running command")

	return result
}
