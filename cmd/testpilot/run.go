package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/psbr27/testPilotOne/internal/audit"
	"github.com/psbr27/testPilotOne/internal/command"
	"github.com/psbr27/testPilotOne/internal/config"
	"github.com/psbr27/testPilotOne/internal/dashboard"
	"github.com/psbr27/testPilotOne/internal/flow"
	"github.com/psbr27/testPilotOne/internal/logging"
	"github.com/psbr27/testPilotOne/internal/nrf"
	"github.com/psbr27/testPilotOne/internal/orchestrator"
	"github.com/psbr27/testPilotOne/internal/ratelimit"
	"github.com/psbr27/testPilotOne/internal/report"
	"github.com/psbr27/testPilotOne/internal/store"
	"github.com/psbr27/testPilotOne/internal/suite"
	"github.com/psbr27/testPilotOne/internal/transport"
	"github.com/psbr27/testPilotOne/internal/types"
	"github.com/psbr27/testPilotOne/internal/validate"
)

var (
	runInput          string
	runModule         string
	runSheets         string
	runTestName       string
	runDryRun         bool
	runExecutionMode  string
	runMockServerURL  string
	runRateLimit      float64
	runStepDelay      float64
	runLogLevel       string
	runLogDir         string
	runNoFileLogging  bool
	runDisplayMode    string
	runPayloadsDir    string
	runStorePath      string
	runNoStore        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a test suite against the configured hosts",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "path to the test suite (JSON flow document; .xlsx is not supported)")
	runCmd.Flags().StringVarP(&runModule, "module", "m", "", "module to run: otp, audit, or config")
	runCmd.Flags().StringVarP(&runSheets, "sheet", "s", "", "comma-separated list of sheets to run (default: all)")
	runCmd.Flags().StringVarP(&runTestName, "test-name", "t", "", "only run the named test")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "print the commands that would run without executing them")
	runCmd.Flags().StringVar(&runExecutionMode, "execution-mode", "production", "production or mock")
	runCmd.Flags().StringVar(&runMockServerURL, "mock-server-url", "http://localhost:8082", "base URL of the mock server for --execution-mode mock")
	runCmd.Flags().Float64Var(&runRateLimit, "rate-limit", 0, "override the configured default requests/sec (0 = use config)")
	runCmd.Flags().Float64Var(&runStepDelay, "step-delay", 0, "seconds to wait between steps within a flow (applied with -m audit only)")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "INFO", "DEBUG, INFO, WARNING, ERROR, or CRITICAL")
	runCmd.Flags().StringVar(&runLogDir, "log-dir", "logs", "directory for the file log and failure log")
	runCmd.Flags().BoolVar(&runNoFileLogging, "no-file-logging", false, "disable the file log and failure log")
	runCmd.Flags().StringVar(&runDisplayMode, "display-mode", "full", "full, progress, or simple")
	runCmd.Flags().StringVar(&runPayloadsDir, "payloads-dir", "payloads", "directory containing payload files referenced by the suite")
	runCmd.Flags().StringVar(&runStorePath, "store-path", "", "SQLite database path for persisted results/audit trail/NRF snapshots (default: <log-dir>/testpilot.db)")
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "disable persisting results to the SQLite store")

	runCmd.MarkFlagRequired("input")
	runCmd.MarkFlagRequired("module")
}

func runRun(cmd *cobra.Command, args []string) error {
	switch runModule {
	case "otp", "audit", "config":
	default:
		return &types.ConfigError{Field: "module", Err: fmt.Errorf("must be one of otp, audit, config, got %q", runModule)}
	}

	if err := configureLogging(); err != nil {
		return err
	}

	cfgPath := os.Getenv("TESTPILOT_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	flows, err := loadFlows(cfg)
	if err != nil {
		return err
	}

	tr, err := buildTransport(cfg)
	if err != nil {
		return err
	}
	defer tr.Close()

	rl := ratelimit.New(cfg.RateLimit)
	if runRateLimit > 0 && rl != nil {
		rl.SetRate(runRateLimit, "")
	}

	validator := validate.New(validate.DefaultOptions(cfg.Validation, runPayloadsDir))
	nrfMgr := nrf.NewManager()

	out := cmd.OutOrStdout()
	reporter := report.New(out, report.ColorAuto)

	var st store.Store
	runID := uuid.NewString()
	if !runNoStore {
		st, err = openStore()
		if err != nil {
			return err
		}
		defer st.Close()
	}

	sinks := []dashboard.Sink{reporter}
	if st != nil {
		sinks = append(sinks, store.Sink{Store: st, RunID: runID})
	}
	var progress *report.ProgressSink
	if runDisplayMode == "progress" {
		progress = report.NewProgressSink()
		sinks = append(sinks, progress)
	}
	sink := dashboard.Multi(sinks)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	hosts := cfg.SelectedHosts()
	if runModule == "audit" {
		runAudit(ctx, cfg, hosts, flows, tr, validator, rl, nrfMgr, sink, st, runID)
	} else {
		o := orchestrator.New(nrfMgr, tr, validator, rl)
		o.PayloadsDir = runPayloadsDir
		o.KubectlLogs = cfg.KubectlLogs
		o.PodMode = cfg.PodMode
		o.StopOnFailure = cfg.StopOnFailure
		o.DryRun = runDryRun
		o.Sink = sink
		for res := range o.Run(ctx, hosts, flows) {
			_ = res // already delivered to sink; channel drain unblocks the orchestrator's workers
		}
	}

	if progress != nil {
		progress.Stop()
	}

	if st != nil {
		for _, tracker := range nrfMgr.Sessions() {
			store.PersistNRFSnapshot(st, runID, tracker.DiagnosticReport())
		}
	}

	if err := writeArtifacts(reporter); err != nil {
		return err
	}

	sum := reporter.Summarize()
	fmt.Fprintf(out, "\n%d total, %d passed, %d failed, %d skipped, %d dry-run\n",
		sum.Total, sum.Passed, sum.Failed, sum.Skipped, sum.DryRun)
	runResultCode = sum.ExitCode()
	return nil
}

// runAudit drives every (host, flow) pair through an audit.Adapter
// instead of the plain orchestrator, since strict-mode delegation
// (spec.md §4.11) is a property of the executor each host/flow pair
// gets, not of the fan-out policy across hosts — the orchestrator's
// own concurrency/grace-window handling isn't reused here because it
// hard-codes flow.Executor construction per (host, flow) pair
// (internal/orchestrator's runHost). Concurrency is sequential across
// hosts here; the audit trail is a compliance record, not a
// high-throughput path.
func runAudit(ctx context.Context, cfg *types.Config, hosts []types.Host, flows []types.TestFlow, tr transport.Transport, validator *validate.Engine, rl *ratelimit.Limiter, nrfMgr *nrf.Manager, sink dashboard.Sink, st store.Store, runID string) {
	for _, host := range hosts {
		for _, f := range flows {
			if ctx.Err() != nil {
				return
			}
			sessionID := fmt.Sprintf("%s/%s/%s", f.Sheet, f.TestName, host.Name)
			builder := command.New(runPayloadsDir, nrfMgr, sessionID)
			executor := flow.New(builder, tr, validator, rl)
			executor.PodMode = cfg.PodMode
			executor.DryRun = runDryRun
			executor.KubectlLogs = cfg.KubectlLogs
			executor.Sink = sink
			executor.GraceWindow = 5 * time.Second
			executor.StepDelay = time.Duration(runStepDelay * float64(time.Second))

			adapter := audit.New(executor, validate.DefaultOptions(cfg.Validation, runPayloadsDir))
			adapter.Run(ctx, f, host, cfg.StopOnFailure)

			if st != nil {
				store.PersistAuditTrail(st, runID, auditRowsFrom(adapter.Trail))
			}
		}
	}
}

// auditRowsFrom converts an audit.Adapter's in-memory trail into the
// store package's persisted row shape.
func auditRowsFrom(trail []audit.Record) []store.AuditRecordRow {
	rows := make([]store.AuditRecordRow, 0, len(trail))
	for _, rec := range trail {
		rows = append(rows, store.AuditRecordRow{
			ID:          rec.ID,
			StepID:      rec.StepID,
			TestName:    rec.TestName,
			Host:        rec.Host,
			Pattern:     rec.Pattern,
			Actual:      rec.Actual,
			Differences: rec.Differences,
			Outcome:     string(rec.Outcome),
		})
	}
	return rows
}

// openStore opens the SQLite-backed store at --store-path, defaulting
// to a file inside the log directory, creating that directory first if
// it does not already exist.
func openStore() (store.Store, error) {
	path := runStorePath
	if path == "" {
		logDir := runLogDir
		if v := os.Getenv("TESTPILOT_LOG_DIR"); v != "" {
			logDir = v
		}
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, &types.ConfigError{Field: "store-path", Err: err}
		}
		path = fmt.Sprintf("%s/testpilot.db", logDir)
	}
	st, err := store.New(store.Config{Path: path})
	if err != nil {
		return nil, &types.ConfigError{Field: "store-path", Err: err}
	}
	return st, nil
}

func loadFlows(cfg *types.Config) ([]types.TestFlow, error) {
	src := suite.JSONLoader{Path: runInput}
	flows, err := src.Load()
	if err != nil {
		return nil, err
	}

	var sheetFilter map[string]bool
	if runSheets != "" {
		sheetFilter = make(map[string]bool)
		for _, s := range strings.Split(runSheets, ",") {
			sheetFilter[strings.TrimSpace(s)] = true
		}
	}

	var out []types.TestFlow
	for _, f := range flows {
		if sheetFilter != nil && !sheetFilter[f.Sheet] {
			continue
		}
		if runTestName != "" && f.TestName != runTestName {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func buildTransport(cfg *types.Config) (transport.Transport, error) {
	switch runExecutionMode {
	case "mock":
		return transport.NewMock(runMockServerURL), nil
	case "production", "":
		if cfg.PodMode || !cfg.UseSSH {
			return transport.NewLocal(), nil
		}
		return transport.NewSSH(cfg.SSH), nil
	default:
		return nil, &types.ConfigError{Field: "execution-mode", Err: fmt.Errorf("must be production or mock, got %q", runExecutionMode)}
	}
}

func configureLogging() error {
	level := strings.ToUpper(runLogLevel)
	if v := os.Getenv("TESTPILOT_LOG_LEVEL"); v != "" {
		level = strings.ToUpper(v)
	}
	verbose := level == "DEBUG"

	logDir := runLogDir
	if v := os.Getenv("TESTPILOT_LOG_DIR"); v != "" {
		logDir = v
	}

	filePath := ""
	if !runNoFileLogging {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return &types.ConfigError{Field: "log-dir", Err: err}
		}
		filePath = fmt.Sprintf("%s/testpilot.log", logDir)
	}
	return logging.Configure(verbose, filePath)
}

func writeArtifacts(r *report.Reporter) error {
	switch runDisplayMode {
	case "simple":
		r.WriteSimple()
	case "progress":
		// the spinner already showed live progress; still emit the table
		// for a durable record of what ran.
		r.WriteTable()
	default:
		r.WriteTable()
	}

	if runNoFileLogging {
		return nil
	}

	logDir := runLogDir
	if v := os.Getenv("TESTPILOT_LOG_DIR"); v != "" {
		logDir = v
	}

	failureLogPath := fmt.Sprintf("%s/testpilot_failures.log", logDir)
	f, err := os.Create(failureLogPath)
	if err != nil {
		return fmt.Errorf("creating failure log: %w", err)
	}
	defer f.Close()
	if err := r.WriteFailureLog(f); err != nil {
		return fmt.Errorf("writing failure log: %w", err)
	}

	resultsPath := fmt.Sprintf("%s/testpilot_results.json", logDir)
	jf, err := os.Create(resultsPath)
	if err != nil {
		return fmt.Errorf("creating results file: %w", err)
	}
	defer jf.Close()
	return r.WriteJSON(jf)
}
