// Package testpilot provides a library entry point around the
// workflow-aware REST/Kubernetes test orchestration engine implemented
// by the internal packages: load a host configuration, build a
// transport and validator from it, and run a set of flows, all without
// going through the cmd/testpilot CLI.
package testpilot

import (
	"context"

	"github.com/psbr27/testPilotOne/internal/config"
	"github.com/psbr27/testPilotOne/internal/dashboard"
	"github.com/psbr27/testPilotOne/internal/nrf"
	"github.com/psbr27/testPilotOne/internal/orchestrator"
	"github.com/psbr27/testPilotOne/internal/ratelimit"
	"github.com/psbr27/testPilotOne/internal/suite"
	"github.com/psbr27/testPilotOne/internal/transport"
	"github.com/psbr27/testPilotOne/internal/types"
	"github.com/psbr27/testPilotOne/internal/validate"
)

// Re-export the data model types a caller needs to construct flows,
// inspect results, or implement its own suite.Source, without reaching
// into internal/types directly.
type (
	Config    = types.Config
	Host      = types.Host
	TestFlow  = types.TestFlow
	TestStep  = types.TestStep
	TestResult = types.TestResult
	Outcome   = types.Outcome
	Method    = types.Method
)

// Re-export the outcome constants.
const (
	OutcomePass    = types.OutcomePass
	OutcomeFail    = types.OutcomeFail
	OutcomeSkipped = types.OutcomeSkipped
	OutcomeDryRun  = types.OutcomeDryRun
)

// RunnerOption configures a Runner returned by NewRunner.
type RunnerOption func(*runnerConfig)

type runnerConfig struct {
	payloadsDir  string
	executionMode string
	mockServerURL string
	podMode      bool
}

// WithPayloadsDir sets the directory holding payload files referenced
// by payload/response_payload columns. Defaults to "payloads".
func WithPayloadsDir(dir string) RunnerOption {
	return func(c *runnerConfig) { c.payloadsDir = dir }
}

// WithMockTransport routes every request to a mock server at baseURL
// instead of SSH or local exec, the library equivalent of
// --execution-mode mock.
func WithMockTransport(baseURL string) RunnerOption {
	return func(c *runnerConfig) {
		c.executionMode = "mock"
		c.mockServerURL = baseURL
	}
}

// Runner wires together the host registry, transport, rate limiter,
// and validation engine needed to execute flows against a config's
// hosts.
type Runner struct {
	cfg       *types.Config
	transport transport.Transport
	validator *validate.Engine
	rateLimit *ratelimit.Limiter
	nrfMgr    *nrf.Manager
	payloads  string
}

// NewRunner loads configPath and builds a Runner ready to execute
// flows against its hosts.
func NewRunner(configPath string, opts ...RunnerOption) (*Runner, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	rc := &runnerConfig{payloadsDir: "payloads", executionMode: "production"}
	for _, opt := range opts {
		opt(rc)
	}

	var tr transport.Transport
	switch {
	case rc.executionMode == "mock":
		tr = transport.NewMock(rc.mockServerURL)
	case cfg.PodMode || !cfg.UseSSH:
		tr = transport.NewLocal()
	default:
		tr = transport.NewSSH(cfg.SSH)
	}

	return &Runner{
		cfg:       cfg,
		transport: tr,
		validator: validate.New(validate.DefaultOptions(cfg.Validation, rc.payloadsDir)),
		rateLimit: ratelimit.New(cfg.RateLimit),
		nrfMgr:    nrf.NewManager(),
		payloads:  rc.payloadsDir,
	}, nil
}

// Close releases transport resources (SSH connections).
func (r *Runner) Close() error {
	return r.transport.Close()
}

// Config returns the loaded host configuration.
func (r *Runner) Config() *types.Config {
	return r.cfg
}

// LoadFlows reads a JSON flow document via suite.JSONLoader. Callers
// needing a different suite format should implement suite.Source
// directly and skip this helper.
func LoadFlows(path string) ([]TestFlow, error) {
	return suite.JSONLoader{Path: path}.Load()
}

// Run executes flows against every host selected by the config's
// connect_to list (or all hosts, if empty), notifying sink as results
// arrive and returning the full slice once every host/flow pair has
// finished.
func (r *Runner) Run(ctx context.Context, flows []TestFlow, sink dashboard.Sink) []TestResult {
	o := orchestrator.New(r.nrfMgr, r.transport, r.validator, r.rateLimit)
	o.PayloadsDir = r.payloads
	o.KubectlLogs = r.cfg.KubectlLogs
	o.PodMode = r.cfg.PodMode
	o.StopOnFailure = r.cfg.StopOnFailure
	if sink != nil {
		o.Sink = sink
	}

	var results []TestResult
	for res := range o.Run(ctx, r.cfg.SelectedHosts(), flows) {
		results = append(results, res)
	}
	return results
}
