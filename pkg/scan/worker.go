package scan

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

const badblocksCmd = "badblocks"

// DefaultPatterns is the badblocks write-mode pattern set. Passes beyond
// the set size wrap around by index, so any configured pass count is
// valid.
var DefaultPatterns = []string{"0xaa", "0x55", "0xff", "0x00"}

// PatternForPass returns the pattern for a zero-based pass index.
func PatternForPass(patterns []string, pass int) string {
	return patterns[pass%len(patterns)]
}

// Options configures a scan worker.
type Options struct {
	Passes      int
	BlockSize   int
	Patterns    []string
	WorkDir     string
	GracePeriod time.Duration
}

func (o *Options) applyDefaults() {
	if o.Passes == 0 {
		o.Passes = 4
	}
	if o.BlockSize == 0 {
		o.BlockSize = 4096
	}
	if len(o.Patterns) == 0 {
		o.Patterns = DefaultPatterns
	}
	if o.GracePeriod == 0 {
		o.GracePeriod = 10 * time.Second
	}
}

// Worker supervises the destructive write/verify scan of one drive: one
// badblocks child process per pass, a per-drive progress file rewritten
// between passes, and a shared bad-block list unioned across passes. The
// progress file and the final exit status are its only channels back to
// the supervisor.
type Worker struct {
	DevPath  string
	DriveKey string

	opts Options

	mu      sync.Mutex
	current *exec.Cmd
	stopped bool
	runErr  error
}

// Progress is the compact per-pass record the supervisor polls.
type Progress struct {
	Pass        int    `json:"pass"`
	TotalPasses int    `json:"totalPasses"`
	Pattern     string `json:"pattern"`
	Status      string `json:"status"`
}

const (
	ProgressRunning   = "running"
	ProgressCompleted = "completed"
	ProgressFailed    = "failed"
	ProgressDone      = "done"
)

func NewWorker(devPath, driveKey string, opts Options) *Worker {
	opts.applyDefaults()
	return &Worker{DevPath: devPath, DriveKey: driveKey, opts: opts}
}

// Run executes the configured passes sequentially. A pass failure stops
// the remaining passes; the recorded error does not by itself condemn the
// drive, the verdict comes from diagnostics and the bad-block list.
func (w *Worker) Run(ctx context.Context) error {
	for pass := 0; pass < w.opts.Passes; pass++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.mu.Lock()
		stopped := w.stopped
		w.mu.Unlock()
		if stopped {
			return fmt.Errorf("worker for %s stopped", w.DevPath)
		}

		pattern := PatternForPass(w.opts.Patterns, pass)
		if err := w.writeProgress(Progress{
			Pass: pass + 1, TotalPasses: w.opts.Passes, Pattern: pattern, Status: ProgressRunning,
		}); err != nil {
			return err
		}

		if err := w.runPass(ctx, pass, pattern); err != nil {
			w.writeProgress(Progress{
				Pass: pass + 1, TotalPasses: w.opts.Passes, Pattern: pattern, Status: ProgressFailed,
			})
			return fmt.Errorf("pass %d/%d on %s: %w", pass+1, w.opts.Passes, w.DevPath, err)
		}

		if err := w.writeProgress(Progress{
			Pass: pass + 1, TotalPasses: w.opts.Passes, Pattern: pattern, Status: ProgressCompleted,
		}); err != nil {
			return err
		}
	}

	return w.writeProgress(Progress{
		Pass: w.opts.Passes, TotalPasses: w.opts.Passes,
		Pattern: PatternForPass(w.opts.Patterns, w.opts.Passes-1), Status: ProgressDone,
	})
}

func (w *Worker) runPass(ctx context.Context, pass int, pattern string) error {
	logFile, err := os.Create(w.passLogPath(pass))
	if err != nil {
		return err
	}
	defer logFile.Close()

	cmd := exec.Command(badblocksCmd,
		"-b", fmt.Sprintf("%d", w.opts.BlockSize),
		"-w",
		"-t", pattern,
		"-o", w.passBadBlocksPath(pass),
		w.DevPath)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	log.WithFields(log.Fields{
		"device":  w.DevPath,
		"pass":    pass + 1,
		"pattern": pattern,
	}).Info("Starting destructive scan pass")

	if err := cmd.Start(); err != nil {
		return err
	}
	w.mu.Lock()
	w.current = cmd
	w.mu.Unlock()

	err = cmd.Wait()

	w.mu.Lock()
	w.current = nil
	w.mu.Unlock()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Stop terminates the current child process: graceful signal first, then
// forced after the grace period. No further passes start.
func (w *Worker) Stop() {
	w.mu.Lock()
	w.stopped = true
	cmd := w.current
	w.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}

	log.WithFields(log.Fields{"device": w.DevPath, "pid": cmd.Process.Pid}).Info("Terminating scan worker")
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		for {
			// Signal 0 probes liveness without delivering anything.
			if cmd.Process.Signal(syscall.Signal(0)) != nil {
				close(done)
				return
			}
			time.Sleep(200 * time.Millisecond)
		}
	}()

	select {
	case <-done:
	case <-time.After(w.opts.GracePeriod):
		cmd.Process.Kill()
	}
}

// Device returns the device node this worker scans.
func (w *Worker) Device() string {
	return w.DevPath
}

// PID returns the current child's process id, or 0 when no pass is
// running.
func (w *Worker) PID() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current != nil && w.current.Process != nil {
		return w.current.Process.Pid
	}
	return 0
}

// Progress reads the current per-drive progress file.
func (w *Worker) Progress() (*Progress, error) {
	return ReadProgress(w.progressPath())
}

// BadBlocks returns the union of bad-block addresses across all passes.
func (w *Worker) BadBlocks() ([]string, error) {
	seen := map[string]struct{}{}
	var blocks []string
	for pass := 0; pass < w.opts.Passes; pass++ {
		data, err := ioutil.ReadFile(w.passBadBlocksPath(pass))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if _, ok := seen[line]; !ok {
				seen[line] = struct{}{}
				blocks = append(blocks, line)
			}
		}
	}
	return blocks, nil
}

func (w *Worker) progressPath() string {
	return filepath.Join(w.opts.WorkDir, w.DriveKey+"_progress.json")
}

func (w *Worker) passBadBlocksPath(pass int) string {
	return filepath.Join(w.opts.WorkDir, fmt.Sprintf("%s_pass%d.badblocks", w.DriveKey, pass+1))
}

func (w *Worker) passLogPath(pass int) string {
	return filepath.Join(w.opts.WorkDir, fmt.Sprintf("%s_pass%d.log", w.DriveKey, pass+1))
}
