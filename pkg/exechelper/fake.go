package exechelper

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
)

// FakeExecutor is a scriptable Executor for tests. Responses are keyed by
// the joined command line; unmatched commands fail with a non-zero exit.
type FakeExecutor struct {
	mu        sync.Mutex
	responses map[string]ExecResult
	prefixes  []fakePrefix
	Calls     []string
}

type fakePrefix struct {
	prefix string
	result ExecResult
}

func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{responses: map[string]ExecResult{}}
}

// Respond registers the exact command line (name followed by args) with a result.
func (f *FakeExecutor) Respond(cmdline string, result ExecResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[cmdline] = result
}

// RespondPrefix matches any command line starting with prefix.
func (f *FakeExecutor) RespondPrefix(prefix string, result ExecResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefixes = append(f.prefixes, fakePrefix{prefix: prefix, result: result})
}

// OKResult builds a successful result with the given stdout.
func OKResult(stdout string) ExecResult {
	return ExecResult{
		OutBuf:   bytes.NewBufferString(stdout),
		ErrBuf:   bytes.NewBufferString(""),
		ExitCode: ExitCodeSuccess,
	}
}

// FailResult builds a failed result with the given exit code and stderr.
func FailResult(exitCode int, stderr string) ExecResult {
	return ExecResult{
		OutBuf:   bytes.NewBufferString(""),
		ErrBuf:   bytes.NewBufferString(stderr),
		ExitCode: exitCode,
		Error:    fmt.Errorf("exit status %d", exitCode),
	}
}

func (f *FakeExecutor) RunCommand(params ExecParams) ExecResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	cmdline := params.CmdName
	if len(params.CmdArgs) > 0 {
		cmdline = cmdline + " " + strings.Join(params.CmdArgs, " ")
	}
	f.Calls = append(f.Calls, cmdline)

	if result, ok := f.responses[cmdline]; ok {
		return result
	}
	for _, p := range f.prefixes {
		if strings.HasPrefix(cmdline, p.prefix) {
			return p.result
		}
	}
	return FailResult(ExitCodeErrDefault, fmt.Sprintf("no fake response for %q", cmdline))
}
