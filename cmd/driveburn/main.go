package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"
	"runtime"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/driveburn/driveburn/pkg/burnin"
	"github.com/driveburn/driveburn/pkg/exechelper"
	"github.com/driveburn/driveburn/pkg/safety"
	"github.com/driveburn/driveburn/pkg/smart"
	"github.com/driveburn/driveburn/pkg/state"
)

var BUILDVERSION, BUILDTIME, GOVERSION string

func printVersion() {
	log.Info(fmt.Sprintf("GitCommit:%q, BuildDate:%q, GoVersion:%q", BUILDVERSION, BUILDTIME, GOVERSION))
}

func setupLogging(enableDebug bool) {
	if enableDebug {
		log.SetLevel(log.DebugLevel)
	}

	log.SetFormatter(&log.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
		// log with funcname, file fields. eg: func=runTriage file="triage.go:43"
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			s := strings.Split(f.Function, ".")
			funcname := s[len(s)-1]
			filename := path.Base(f.File)
			return funcname, fmt.Sprintf("%s:%d", filename, f.Line)
		},
	})
	log.SetReportCaller(true)
}

func main() {
	cfg := burnin.DefaultConfig()
	var enableDebug bool

	rootCmd := &cobra.Command{
		Use:   "driveburn",
		Short: "Qualify used drives with SMART triage and destructive surface scans.",
		Long: "driveburn runs non-destructive SMART diagnostics and optional destructive\n" +
			"multi-pass surface scans against operator-selected drives, recording every\n" +
			"outcome against the drive's physical identity.",
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			setupLogging(enableDebug)
			printVersion()
			return run(cfg)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for registry, history, status and logs")
	flags.Int64Var(&cfg.TempThresholdC, "temp-threshold", cfg.TempThresholdC, "abort when any drive reaches this temperature (Celsius)")
	flags.DurationVar(&cfg.TempPollInterval, "poll-interval", cfg.TempPollInterval, "temperature monitoring interval")
	flags.DurationVar(&cfg.SettleInterval, "settle-interval", cfg.SettleInterval, "wait after starting short self-tests")
	flags.DurationVar(&cfg.SelfTestPollInterval, "selftest-poll-interval", cfg.SelfTestPollInterval, "self-test progress polling interval")
	flags.IntVar(&cfg.ScanPasses, "passes", cfg.ScanPasses, "destructive write/verify passes per drive")
	flags.IntVar(&cfg.ScanBlockSize, "block-size", cfg.ScanBlockSize, "badblocks block size in bytes")
	flags.IntVar(&cfg.MaxScanDrives, "max-scan-drives", cfg.MaxScanDrives, "maximum drives per destructive batch")
	flags.DurationVar(&cfg.ProbeTimeout, "probe-timeout", cfg.ProbeTimeout, "timeout for each smartctl invocation")
	flags.DurationVar(&cfg.WorkerGracePeriod, "worker-grace", cfg.WorkerGracePeriod, "grace period before force-killing a scan worker")
	flags.StringSliceVar(&cfg.ExcludePatterns, "exclude", nil, "glob patterns of device paths or serials to exclude")
	flags.BoolVar(&enableDebug, "debug", false, "enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(burnin.ExitFatal)
	}
}

func run(cfg burnin.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	store, err := state.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	executor := exechelper.New()
	prober := smart.NewProber(executor, cfg.ProbeTimeout)
	checker := safety.NewChecker(executor)

	orch, err := burnin.New(cfg, prober, checker, store)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// operator interrupts route through the unified abort path
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		orch.AbortOnSignal(sig, int(sig.(syscall.Signal)))
	}()

	go orch.WatchHotplug(ctx)

	menu := newMenu(cfg, orch, executor, prober)
	exitCode := menu.loop(ctx)

	if path, err := orch.WriteSummary(); err != nil {
		log.WithError(err).Error("Failed to write run summary")
	} else {
		fmt.Printf("summary: %s\n", path)
	}

	if exitCode != burnin.ExitOK {
		os.Exit(exitCode)
	}
	return nil
}
