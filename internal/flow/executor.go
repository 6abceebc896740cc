// Package flow drives one TestFlow against one host: the per-step
// pipeline of build → rate-limit → transport → parse → validate that
// spec.md §4.9 lays out, the Go analog of the sequential "run one
// scenario" loop found in the original runner, expressed in the style
// of titus's per-target scanning loop (build inputs, execute, collect
// results — no hidden global state beyond what's passed in).
package flow

import (
	"context"
	"sync"
	"time"

	"github.com/psbr27/testPilotOne/internal/command"
	"github.com/psbr27/testPilotOne/internal/dashboard"
	"github.com/psbr27/testPilotOne/internal/logging"
	"github.com/psbr27/testPilotOne/internal/ratelimit"
	"github.com/psbr27/testPilotOne/internal/response"
	"github.com/psbr27/testPilotOne/internal/transport"
	"github.com/psbr27/testPilotOne/internal/types"
	"github.com/psbr27/testPilotOne/internal/validate"
)

var log = logging.Get("flow")

// Executor runs the steps of one flow, on one host, to completion.
type Executor struct {
	Builder     *command.Builder
	Transport   transport.Transport
	Validator   *validate.Engine
	RateLimiter *ratelimit.Limiter // nil means rate limiting is disabled
	KubectlLogs types.KubectlLogsSettings
	Sink        dashboard.Sink
	PodMode     bool
	DryRun      bool

	// GraceWindow, when set, keeps an in-flight transport call alive for
	// this long past the run context's cancellation before forcibly
	// canceling it (spec.md §5's 5s grace window). Zero means transport
	// calls are canceled the instant ctx is.
	GraceWindow time.Duration

	// StepDelay paces successive steps within a flow (--step-delay),
	// mirroring the original runner's fixed inter-step sleep. Zero
	// means no delay.
	StepDelay time.Duration
}

// New returns an Executor with NoOp dashboard notification by default.
func New(builder *command.Builder, tr transport.Transport, validator *validate.Engine, rl *ratelimit.Limiter) *Executor {
	return &Executor{
		Builder:     builder,
		Transport:   tr,
		Validator:   validator,
		RateLimiter: rl,
		Sink:        dashboard.NoOp{},
	}
}

// Run executes flow against host in step order, honoring
// stopOnFailure. Sheet identifies the source sheet for TestResult
// bookkeeping and NRF context.
func (e *Executor) Run(ctx context.Context, flow types.TestFlow, host types.Host, stopOnFailure bool) []types.TestResult {
	fctx := types.NewFlowContext()
	results := make([]types.TestResult, 0, len(flow.Steps))

	for _, step := range flow.Steps {
		if ctx.Err() != nil {
			log.Debugw("flow canceled, skipping remaining steps", "test", flow.TestName)
			break
		}

		result := e.runStep(ctx, flow, step, host, fctx)
		results = append(results, result)
		if e.Sink != nil {
			e.Sink.Notify(result)
		}

		if !result.Passed && stopOnFailure {
			log.Infow("stop_on_failure set, aborting flow", "test", flow.TestName, "row", step.RowIdx)
			break
		}

		if e.StepDelay > 0 {
			select {
			case <-time.After(e.StepDelay):
			case <-ctx.Done():
				return results
			}
		}
	}
	return results
}

func (e *Executor) runStep(ctx context.Context, flow types.TestFlow, step types.TestStep, host types.Host, fctx *types.FlowContext) types.TestResult {
	base, resp, done := e.Dispatch(ctx, flow, step, host, fctx)
	if done {
		return base
	}

	valRes := e.Validator.Validate(step, resp, fctx)
	base.Outcome = outcomeFor(valRes.Passed)
	base.Passed = valRes.Passed
	base.FailReason = valRes.Reason
	base.Category = valRes.Category
	base.Response = resp
	base.DurationMS = time.Since(base.Timestamp).Milliseconds()
	return base
}

// Dispatch runs everything up to (but not including) validation: build,
// skip/dry-run short-circuits, rate-limit gate, transport exec, parse,
// and the optional kubectl-log overlay. done is true when base is
// already a final TestResult (skip, dry-run, build error, transport
// error) and the caller must not validate resp (nil in that case).
// internal/audit's C11 calls this directly to run the same pipeline C9
// does, then applies its own (strict) validation on top.
func (e *Executor) Dispatch(ctx context.Context, flow types.TestFlow, step types.TestStep, host types.Host, fctx *types.FlowContext) (types.TestResult, *types.Response, bool) {
	start := time.Now()
	base := types.TestResult{
		Sheet:          flow.Sheet,
		RowIdx:         step.RowIdx,
		Host:           host.Name,
		TestName:       flow.TestName,
		Method:         step.Method,
		Timestamp:      start,
		ExpectedStatus: step.ExpectedStatus,
		PatternMatch:   step.PatternMatch,
	}

	nrfCtx := types.NRFTestContext{TestName: flow.TestName, Sheet: flow.Sheet, RowIdx: step.RowIdx}
	built, err := e.Builder.Build(step, host, e.PodMode, nrfCtx, fctx)
	if err != nil {
		base.Outcome = types.OutcomeFail
		base.FailReason = err.Error()
		base.Category = types.CategoryBuildError
		base.DurationMS = time.Since(start).Milliseconds()
		return base, nil, true
	}
	if built.Skip {
		base.Outcome = types.OutcomeSkipped
		base.FailReason = built.SkipReason
		base.Category = types.CategoryNRFNoActive
		base.DurationMS = time.Since(start).Milliseconds()
		return base, nil, true
	}
	base.Command = built.Command

	if e.DryRun {
		base.Outcome = types.OutcomeDryRun
		base.Passed = true
		base.DurationMS = time.Since(start).Milliseconds()
		return base, nil, true
	}

	if e.RateLimiter != nil {
		if err := e.RateLimiter.Wait(ctx, host.Name, step); err != nil {
			base.Outcome = types.OutcomeFail
			base.FailReason = "rate limit wait canceled: " + err.Error()
			base.Category = types.CategoryTransportError
			base.DurationMS = time.Since(start).Milliseconds()
			return base, nil, true
		}
	}

	execCtx := ctx
	if e.GraceWindow > 0 {
		graced, cancel := withGracePeriod(ctx, e.GraceWindow)
		defer cancel()
		execCtx = graced
	}

	var logsCh chan string
	if step.PodExec != "" && e.KubectlLogs.CaptureDurationS > 0 {
		logsCh = e.startKubectlLogs(ctx, host, step)
	}

	raw, err := e.Transport.Exec(execCtx, host, built.Command)
	if err != nil {
		base.Outcome = types.OutcomeFail
		base.FailReason = err.Error()
		base.Category = types.CategoryTransportError
		base.DurationMS = time.Since(start).Milliseconds()
		return base, nil, true
	}

	resp := response.Parse(raw.Stdout, raw.Stderr, raw.DurationMS)

	if logsCh != nil {
		resp.SupplementaryLogs = <-logsCh
	}

	return base, resp, false
}

func outcomeFor(passed bool) types.Outcome {
	if passed {
		return types.OutcomePass
	}
	return types.OutcomeFail
}

// startKubectlLogs launches a bounded log-tail capture against the
// step's pod, overlapping the main request instead of trailing it
// (spec.md §4.9 step 6: capture runs "concurrently with step 5"). The
// returned channel delivers the captured text exactly once, after the
// capture's own timeout or the main call's caller reads it — whichever
// comes first is never forced; the caller blocks on it only after its
// own Transport.Exec has returned. Capture errors are logged and
// otherwise ignored: missing log text degrades the pattern match, it
// does not fail the step outright.
func (e *Executor) startKubectlLogs(ctx context.Context, host types.Host, step types.TestStep) chan string {
	ch := make(chan string, 1)

	since := e.KubectlLogs.SinceDuration
	if since == "" {
		since = "1m"
	}
	duration := time.Duration(e.KubectlLogs.CaptureDurationS) * time.Second
	if duration <= 0 {
		close(ch)
		return ch
	}
	logsCmd := e.Builder.BuildKubectlLogsCommand(host, step.PodExec, since)

	go func() {
		captureCtx, cancel := context.WithTimeout(ctx, duration)
		defer cancel()

		raw, err := e.Transport.Exec(captureCtx, host, logsCmd)
		if err != nil {
			log.Debugw("kubectl log capture failed", "err", err, "test", step.TestName)
			ch <- ""
			return
		}
		ch <- raw.Stdout
	}()
	return ch
}

// withGracePeriod returns a context that outlives parent's cancellation
// by grace before it, in turn, cancels — letting an in-flight transport
// call finish naturally if it can, and only forcibly killing it once
// the grace window elapses (spec.md §5).
func withGracePeriod(parent context.Context, grace time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	stop := func() { once.Do(cancel) }
	go func() {
		select {
		case <-parent.Done():
			timer := time.NewTimer(grace)
			defer timer.Stop()
			select {
			case <-timer.C:
				stop()
			case <-ctx.Done():
			}
		case <-ctx.Done():
		}
	}()
	return ctx, stop
}
