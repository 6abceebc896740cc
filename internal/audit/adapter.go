// Package audit wraps C9's flow executor to enforce strict (100%)
// validation and record a compliance trail, the Go shape of
// audit_engine.py's AuditEngine but delegating actual request dispatch
// to the flow executor instead of duplicating it (spec.md §4.11).
package audit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/psbr27/testPilotOne/internal/flow"
	"github.com/psbr27/testPilotOne/internal/logging"
	"github.com/psbr27/testPilotOne/internal/pattern"
	"github.com/psbr27/testPilotOne/internal/types"
	"github.com/psbr27/testPilotOne/internal/validate"
)

var log = logging.Get("audit")

// Record is one audit trail entry: what was checked, what came back,
// and how the two validation modes disagreed, if at all.
type Record struct {
	ID          string
	StepID      string
	TestName    string
	Host        string
	Pattern     string
	Actual      string
	Differences []string
	Outcome     types.Outcome
	Timestamp   time.Time
}

// Adapter runs a flow.Executor's pipeline but validates every response
// twice: once under the executor's own (lenient) settings and once
// under a forced-strict engine. A step that only the lenient pass
// accepts is downgraded to FAIL with AuditStrictFail, and the lenient
// outcome is preserved in the TestResult's AuditMeta for comparison.
type Adapter struct {
	Executor *flow.Executor
	Strict   *validate.Engine

	mu    sync.Mutex
	Trail []Record
}

// New builds an Adapter around executor, deriving a strict validate.Engine
// from base (array ordering on, subset matching off — strict mode
// already implies both).
func New(executor *flow.Executor, base validate.Options) *Adapter {
	strictOpts := base
	strictOpts.Mode = pattern.ModeStrict
	strictOpts.IgnoreArrayOrder = false
	return &Adapter{
		Executor: executor,
		Strict:   validate.New(strictOpts),
	}
}

// Run drives flow against host exactly as flow.Executor.Run would,
// substituting strict validation and audit-trail recording for the
// executor's own validation pass.
func (a *Adapter) Run(ctx context.Context, f types.TestFlow, host types.Host, stopOnFailure bool) []types.TestResult {
	fctx := types.NewFlowContext()
	results := make([]types.TestResult, 0, len(f.Steps))

	for _, step := range f.Steps {
		if ctx.Err() != nil {
			log.Debugw("audit flow canceled, skipping remaining steps", "test", f.TestName)
			break
		}

		result := a.runStep(ctx, f, step, host, fctx)
		results = append(results, result)
		if a.Executor.Sink != nil {
			a.Executor.Sink.Notify(result)
		}

		if !result.Passed && stopOnFailure {
			break
		}

		if a.Executor.StepDelay > 0 {
			select {
			case <-time.After(a.Executor.StepDelay):
			case <-ctx.Done():
				return results
			}
		}
	}
	return results
}

func (a *Adapter) runStep(ctx context.Context, f types.TestFlow, step types.TestStep, host types.Host, fctx *types.FlowContext) types.TestResult {
	base, resp, done := a.Executor.Dispatch(ctx, f, step, host, fctx)
	if done {
		a.record(f, step, host, "", "", nil, base.Outcome)
		return base
	}

	lenientRes := a.Executor.Validator.Validate(step, resp, fctx)
	strictRes := a.Strict.Validate(step, resp, fctx)

	base.Outcome = outcomeFor(strictRes.Passed)
	base.Passed = strictRes.Passed
	base.FailReason = strictRes.Reason
	base.Category = strictRes.Category
	base.Response = resp
	base.DurationMS = time.Since(base.Timestamp).Milliseconds()

	if lenientRes.Passed && !strictRes.Passed {
		base.Category = types.CategoryAuditStrictFail
		base.AuditMeta = map[string]string{
			"otp_mode_outcome": string(types.OutcomePass),
			"strict_reason":    strictRes.Reason,
		}
		log.Infow("strict validation downgraded an otherwise-passing step",
			"test", f.TestName, "row", step.RowIdx, "reason", strictRes.Reason)
	}

	a.record(f, step, host, step.PatternMatch, bodyPreview(resp), differencesFor(strictRes), base.Outcome)
	return base
}

func outcomeFor(passed bool) types.Outcome {
	if passed {
		return types.OutcomePass
	}
	return types.OutcomeFail
}

func bodyPreview(resp *types.Response) string {
	if resp == nil {
		return ""
	}
	return resp.BodyText
}

func differencesFor(res validate.Result) []string {
	if res.Passed {
		return nil
	}
	return []string{res.Reason}
}

func (a *Adapter) record(f types.TestFlow, step types.TestStep, host types.Host, patternStr, actual string, differences []string, outcome types.Outcome) {
	rec := Record{
		ID:          uuid.NewString(),
		StepID:      f.Sheet + "/" + f.TestName + "/" + host.Name + "#" + strconv.Itoa(step.RowIdx),
		TestName:    f.TestName,
		Host:        host.Name,
		Pattern:     patternStr,
		Actual:      actual,
		Differences: differences,
		Outcome:     outcome,
		Timestamp:   time.Now(),
	}
	a.mu.Lock()
	a.Trail = append(a.Trail, rec)
	a.mu.Unlock()
}
