// Package orchestrator fans a set of flows out across a set of hosts,
// bounding concurrency the way titus's validator.Engine bounds
// concurrent validations with a semaphore channel, but retargeted at
// "run a flow on a host" instead of "validate one finding" (spec.md
// §4.10/§5).
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/psbr27/testPilotOne/internal/command"
	"github.com/psbr27/testPilotOne/internal/dashboard"
	"github.com/psbr27/testPilotOne/internal/flow"
	"github.com/psbr27/testPilotOne/internal/logging"
	"github.com/psbr27/testPilotOne/internal/nrf"
	"github.com/psbr27/testPilotOne/internal/ratelimit"
	"github.com/psbr27/testPilotOne/internal/transport"
	"github.com/psbr27/testPilotOne/internal/types"
	"github.com/psbr27/testPilotOne/internal/validate"
)

var log = logging.Get("orchestrator")

// Orchestrator owns the cross-flow, cross-host execution policy. One
// instance is built per run; it is not reused across runs.
type Orchestrator struct {
	NRFManager    *nrf.Manager
	PayloadsDir   string
	Transport     transport.Transport
	Validator     *validate.Engine
	RateLimiter   *ratelimit.Limiter
	KubectlLogs   types.KubectlLogsSettings
	PodMode       bool
	StopOnFailure bool
	DryRun        bool
	Sink          dashboard.Sink

	// Concurrency bounds how many hosts run flows simultaneously.
	// Zero means "number of hosts passed to Run" (spec.md §4.10's
	// default).
	Concurrency int

	// GraceWindow is the in-flight-transport grace period threaded
	// through to every flow.Executor (spec.md §5). Defaults to 5s.
	GraceWindow time.Duration
}

// New returns an Orchestrator with a 5s default grace window and a
// no-op dashboard sink.
func New(nrfMgr *nrf.Manager, tr transport.Transport, validator *validate.Engine, rl *ratelimit.Limiter) *Orchestrator {
	return &Orchestrator{
		NRFManager:  nrfMgr,
		Transport:   tr,
		Validator:   validator,
		RateLimiter: rl,
		Sink:        dashboard.NoOp{},
		GraceWindow: 5 * time.Second,
	}
}

// Run iterates flows × hosts, running each host's flows sequentially
// (same-host/same-test serialization falls out naturally from one
// worker per host) while bounding how many hosts run at once. It
// returns a channel of TestResult that closes once every host has
// finished or ctx is canceled and all in-flight work has unwound.
func (o *Orchestrator) Run(ctx context.Context, hosts []types.Host, flows []types.TestFlow) <-chan types.TestResult {
	out := make(chan types.TestResult)

	concurrency := o.Concurrency
	if concurrency <= 0 {
		concurrency = len(hosts)
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	for _, host := range hosts {
		host := host
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()
			o.runHost(ctx, host, flows, out)
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// runHost drives every flow against host in order, one at a time,
// which is what guarantees same-host/same-test_name serialization
// (spec.md §4.10) without any extra locking: there is exactly one
// goroutine per host.
func (o *Orchestrator) runHost(ctx context.Context, host types.Host, flows []types.TestFlow, out chan<- types.TestResult) {
	for _, f := range flows {
		if ctx.Err() != nil {
			log.Debugw("cancellation observed, abandoning remaining flows", "host", host.Name)
			return
		}

		sessionID := fmt.Sprintf("%s/%s/%s", f.Sheet, f.TestName, host.Name)
		builder := command.New(o.PayloadsDir, o.NRFManager, sessionID)
		executor := flow.New(builder, o.Transport, o.Validator, o.RateLimiter)
		executor.PodMode = o.PodMode
		executor.DryRun = o.DryRun
		executor.KubectlLogs = o.KubectlLogs
		executor.Sink = o.Sink
		executor.GraceWindow = o.GraceWindow

		for _, result := range executor.Run(ctx, f, host, o.StopOnFailure) {
			select {
			case out <- result:
			case <-ctx.Done():
				return
			}
		}
	}
}
