package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	log "github.com/sirupsen/logrus"

	"github.com/driveburn/driveburn/pkg/burnin"
	"github.com/driveburn/driveburn/pkg/exechelper"
	"github.com/driveburn/driveburn/pkg/identity"
	"github.com/driveburn/driveburn/pkg/lsblk"
	"github.com/driveburn/driveburn/pkg/safety"
)

// menu is the minimal interactive shell: an action selector, a
// drive-number selection prompt, and the literal confirmation token for
// destructive scans.
type menu struct {
	cfg      burnin.Config
	orch     *burnin.Orchestrator
	executor exechelper.Executor
	resolver *identity.Resolver
	stdin    *bufio.Scanner
}

func newMenu(cfg burnin.Config, orch *burnin.Orchestrator, executor exechelper.Executor, prober identity.Prober) *menu {
	return &menu{
		cfg:      cfg,
		orch:     orch,
		executor: executor,
		resolver: identity.NewResolver(executor, prober),
		stdin:    bufio.NewScanner(os.Stdin),
	}
}

// loop runs until the operator exits, returning the process exit code: 0
// for a clean session, ExitBatchFailure if any batch found bad drives.
// Aborts never return here; they terminate through the abort path.
func (m *menu) loop(ctx context.Context) int {
	exitCode := burnin.ExitOK

	for {
		fmt.Println()
		fmt.Println("driveburn actions:")
		fmt.Println("  1) triage  - non-destructive SMART self-test sequence")
		fmt.Println("  2) scan    - DESTRUCTIVE multi-pass surface scan")
		fmt.Println("  3) both    - triage, then destructive scan")
		fmt.Println("  4) exit")

		choice, err := m.prompt("select action")
		if err != nil {
			return exitCode
		}

		switch strings.TrimSpace(choice) {
		case "1", "triage":
			if code := m.runPhases(ctx, true, false); code > exitCode {
				exitCode = code
			}
		case "2", "scan":
			if code := m.runPhases(ctx, false, true); code > exitCode {
				exitCode = code
			}
		case "3", "both":
			if code := m.runPhases(ctx, true, true); code > exitCode {
				exitCode = code
			}
		case "4", "exit", "q", "quit":
			return exitCode
		default:
			fmt.Println("unrecognized action")
		}
	}
}

func (m *menu) runPhases(ctx context.Context, triage, scan bool) int {
	drives, err := m.selectDrives()
	if err != nil {
		fmt.Fprintf(os.Stderr, "drive selection: %v\n", err)
		return burnin.ExitFatal
	}
	if len(drives) == 0 {
		fmt.Println("no drives selected")
		return burnin.ExitOK
	}
	if err := m.orch.Select(drives); err != nil {
		m.orch.Abort(fmt.Sprintf("internal error: %v", err), burnin.ExitAborted)
	}

	if triage {
		if err := m.orch.RunTriage(ctx); err != nil {
			// any unrecoverable error routes through the abort path
			m.orch.Abort(fmt.Sprintf("triage failed: %v", err), burnin.ExitAborted)
		}
	}

	if scan {
		err := m.orch.RunScan(ctx, m.confirmScan)
		switch {
		case err == nil:
		case errors.Is(err, burnin.ErrBatchFailed):
			fmt.Fprintln(os.Stderr, "batch failure: at least one drive failed the scan")
			return burnin.ExitBatchFailure
		default:
			var violation *safety.Violation
			if errors.As(err, &violation) {
				fmt.Fprintf(os.Stderr, "refused: %v\n", violation)
				return burnin.ExitFatal
			}
			if errors.Is(err, burnin.ErrConfirmationMismatch) || errors.Is(err, burnin.ErrTooManyDrives) {
				fmt.Fprintf(os.Stderr, "refused: %v\n", err)
				return burnin.ExitFatal
			}
			m.orch.Abort(fmt.Sprintf("scan failed: %v", err), burnin.ExitAborted)
		}
	}
	return burnin.ExitOK
}

// selectDrives enumerates eligible disks, renders them, and reads the
// operator's drive-number selection.
func (m *menu) selectDrives() ([]*identity.DriveIdentity, error) {
	disks, err := lsblk.ListDisks(m.executor)
	if err != nil {
		return nil, err
	}

	var candidates []*identity.DriveIdentity
	var rows []table.Row
	for _, disk := range disks {
		if m.cfg.Excluded(disk.Path(), disk.Serial) {
			log.WithField("device", disk.Path()).Debug("Device excluded by pattern")
			continue
		}
		ident, err := m.resolver.Resolve(disk.Path())
		if err != nil {
			log.WithError(err).WithField("device", disk.Path()).Warn("Identity resolution failed")
			continue
		}
		mounted := ""
		if disk.Mounted() {
			mounted = "yes"
		}
		candidates = append(candidates, ident)
		rows = append(rows, table.Row{
			len(candidates), disk.Path(), ident.Key, ident.Model,
			fmt.Sprintf("%.1f GiB", float64(ident.SizeBytes)/(1<<30)), mounted,
		})
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidate drives found")
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Device", "Identity", "Model", "Size", "Mounted"})
	t.AppendRows(rows)
	t.Render()

	input, err := m.prompt("drive numbers (comma separated, or 'all')")
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(input) == "all" {
		return candidates, nil
	}
	var selected []*identity.DriveIdentity
	for _, field := range strings.Split(input, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil || n < 1 || n > len(candidates) {
			return nil, fmt.Errorf("invalid drive number %q", field)
		}
		selected = append(selected, candidates[n-1])
	}
	return selected, nil
}

// confirmScan is the irreversible-action gate prompt.
func (m *menu) confirmScan() (string, error) {
	fmt.Printf("\nThis will DESTROY ALL DATA on the selected drives.\n")
	return m.prompt(fmt.Sprintf("type %s to continue", m.cfg.ConfirmToken))
}

func (m *menu) prompt(label string) (string, error) {
	fmt.Printf("%s> ", label)
	if !m.stdin.Scan() {
		if err := m.stdin.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("input closed")
	}
	return m.stdin.Text(), nil
}
