// Package nrf tracks nfInstanceId lifecycle for NRF-targeted flows
// (spec.md §4.4), ported from instance_tracker.py. A PUT on a
// nf-instances collection registers a new instance and pushes it onto a
// LIFO stack; GET/PATCH reuse the active instance; DELETE pops it.
// Cleanup runs automatically on test/suite transitions according to a
// per-instance policy inferred from the registering test's name.
package nrf

import (
	"strings"
	"sync"
	"time"

	"github.com/psbr27/testPilotOne/internal/logging"
	"github.com/psbr27/testPilotOne/internal/types"
)

var log = logging.Get("nrf")

// CleanupPolicyResolver maps a registering test's name to a cleanup
// policy. Overridable per spec.md §9's "should be configurable" note on
// the heuristics ported from _determine_cleanup_policy.
type CleanupPolicyResolver func(testName string) types.CleanupPolicy

// Tracker is safe for concurrent use; flows targeting the same NRF
// session share one Tracker instance.
type Tracker struct {
	mu       sync.Mutex
	session  *types.NRFSession
	now      func() time.Time
	resolver CleanupPolicyResolver
}

// New returns a Tracker with an empty session and the default
// substring-based cleanup policy heuristics.
func New() *Tracker {
	return &Tracker{session: types.NewNRFSession(), now: time.Now, resolver: determineCleanupPolicy}
}

// SetCleanupPolicyResolver overrides the default heuristics.
func (t *Tracker) SetCleanupPolicyResolver(r CleanupPolicyResolver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resolver = r
}

// TrackTestProgression records the step's test context and, on a
// test-name or sheet change from the previous step, runs the matching
// automatic cleanup pass (track_test_progression).
func (t *Tracker) TrackTestProgression(ctx types.NRFTestContext) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session.CurrentTest != nil {
		prev := *t.session.CurrentTest
		if prev.TestName != ctx.TestName {
			log.Infow("test transition detected", "from", prev.TestName, "to", ctx.TestName)
			t.cleanupTestInstances(prev)
		}
		if prev.Sheet != ctx.Sheet {
			log.Infow("suite transition detected", "from", prev.Sheet, "to", ctx.Sheet)
			t.cleanupSuiteInstances(prev)
		}
	}
	t.session.CurrentTest = &ctx
	t.session.History = append(t.session.History, ctx)
}

// HandlePut registers a newly created instance and pushes it onto the
// active stack (handle_put_operation).
func (t *Tracker) HandlePut(ctx types.NRFTestContext, nfInstanceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	rec := &types.NRFInstanceRecord{
		NFInstanceID: nfInstanceID,
		CreatedBy: types.NRFCreatedBy{
			TestName:  ctx.TestName,
			Sheet:     ctx.Sheet,
			RowIdx:    ctx.RowIdx,
			Timestamp: now,
		},
		Operations:    []types.NRFOperation{{Method: types.MethodPut, RowIdx: ctx.RowIdx, Timestamp: now}},
		Status:        types.NRFInstanceActive,
		CleanupPolicy: t.resolver(ctx.TestName),
	}
	t.session.Registry[nfInstanceID] = rec
	t.session.ActiveStack = append(t.session.ActiveStack, nfInstanceID)

	log.Infow("created NRF instance", "nfInstanceId", nfInstanceID, "test", ctx.TestName)
	log.Debugw("active stack size", "size", len(t.session.ActiveStack))
}

// ActiveInstanceID resolves the instance a GET/PATCH/DELETE should use:
// the most recent one created by the same test, falling back to the top
// of the stack (get_active_instance_id). Returns "" with ok=false when
// the stack is empty (types.ErrNRFNoActiveInstance territory).
func (t *Tracker) ActiveInstanceID(ctx types.NRFTestContext, method types.Method) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.session.ActiveStack) - 1; i >= 0; i-- {
		nfID := t.session.ActiveStack[i]
		if rec := t.session.Registry[nfID]; rec != nil && rec.CreatedBy.TestName == ctx.TestName {
			t.logOperation(nfID, ctx.RowIdx, method)
			return nfID, true
		}
	}
	if n := len(t.session.ActiveStack); n > 0 {
		nfID := t.session.ActiveStack[n-1]
		t.logOperation(nfID, ctx.RowIdx, method)
		return nfID, true
	}
	log.Warnw("no active instance found", "test", ctx.TestName)
	return "", false
}

// HandleDelete resolves and pops the active instance, marking it deleted
// (handle_delete_operation).
func (t *Tracker) HandleDelete(ctx types.NRFTestContext) (string, bool) {
	nfID, ok := t.ActiveInstanceID(ctx, types.MethodDelete)
	if !ok {
		return "", false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeFromStack(nfID)
	t.markDeleted(nfID, "DELETE_OPERATION")
	log.Infow("deleted NRF instance", "nfInstanceId", nfID)
	log.Debugw("active stack size after delete", "size", len(t.session.ActiveStack))
	return nfID, true
}

// CleanupAll clears every active instance, typically at session end
// (cleanup_all_active_instances).
func (t *Tracker) CleanupAll(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n := len(t.session.ActiveStack); n > 0 {
		log.Infow("cleaning up active instances", "count", n, "reason", reason)
	}
	for len(t.session.ActiveStack) > 0 {
		n := len(t.session.ActiveStack)
		nfID := t.session.ActiveStack[n-1]
		t.session.ActiveStack = t.session.ActiveStack[:n-1]
		t.markDeleted(nfID, reason)
	}
}

// DiagnosticReport builds the operator-facing snapshot (get_diagnostic_report).
func (t *Tracker) DiagnosticReport() types.NRFDiagnosticReport {
	t.mu.Lock()
	defer t.mu.Unlock()

	var activeIDs []string
	for nfID, rec := range t.session.Registry {
		if rec.Status == types.NRFInstanceActive {
			activeIDs = append(activeIDs, nfID)
		}
	}

	report := types.NRFDiagnosticReport{
		ActiveInstances:       len(activeIDs),
		ActiveInstanceIDs:     activeIDs,
		ActiveStackSize:       len(t.session.ActiveStack),
		TotalInstancesCreated: len(t.session.Registry),
		InstancesByTest:       t.groupByTest(),
		InstancesByStatus:     t.groupByStatus(),
		OrphanedInstances:     t.findOrphaned(),
		StackTrace:            append([]string(nil), t.session.ActiveStack...),
	}
	return report
}

func (t *Tracker) logOperation(nfID string, rowIdx int, method types.Method) {
	if rec := t.session.Registry[nfID]; rec != nil {
		rec.Operations = append(rec.Operations, types.NRFOperation{Method: method, RowIdx: rowIdx, Timestamp: t.now()})
	}
}

func (t *Tracker) markDeleted(nfID, reason string) {
	if rec := t.session.Registry[nfID]; rec != nil {
		rec.Status = types.NRFInstanceDeleted
		rec.DeletedAt = t.now()
		rec.DeletionReason = reason
		log.Debugw("marked instance deleted", "nfInstanceId", nfID, "reason", reason)
	}
}

func (t *Tracker) removeFromStack(nfID string) {
	for i, id := range t.session.ActiveStack {
		if id == nfID {
			t.session.ActiveStack = append(t.session.ActiveStack[:i], t.session.ActiveStack[i+1:]...)
			return
		}
	}
}

func (t *Tracker) cleanupTestInstances(prev types.NRFTestContext) {
	var toClean []string
	for nfID, rec := range t.session.Registry {
		if rec.Status == types.NRFInstanceActive && rec.CleanupPolicy == types.CleanupTestEnd && rec.CreatedBy.TestName == prev.TestName {
			toClean = append(toClean, nfID)
		}
	}
	if len(toClean) > 0 {
		log.Infow("auto-cleaning instances for test", "count", len(toClean), "test", prev.TestName)
	}
	for _, nfID := range toClean {
		t.removeFromStack(nfID)
		t.markDeleted(nfID, "auto_cleanup_test_end")
	}
}

func (t *Tracker) cleanupSuiteInstances(prev types.NRFTestContext) {
	var toClean []string
	for nfID, rec := range t.session.Registry {
		if rec.Status == types.NRFInstanceActive && rec.CleanupPolicy == types.CleanupSuiteEnd && rec.CreatedBy.Sheet == prev.Sheet {
			toClean = append(toClean, nfID)
		}
	}
	if len(toClean) > 0 {
		log.Infow("auto-cleaning instances for suite", "count", len(toClean), "sheet", prev.Sheet)
	}
	for _, nfID := range toClean {
		t.removeFromStack(nfID)
		t.markDeleted(nfID, "auto_cleanup_suite_end")
	}
}

func (t *Tracker) groupByTest() map[string]map[types.NRFInstanceStatus]int {
	out := make(map[string]map[types.NRFInstanceStatus]int)
	for _, rec := range t.session.Registry {
		m, ok := out[rec.CreatedBy.TestName]
		if !ok {
			m = map[types.NRFInstanceStatus]int{types.NRFInstanceActive: 0, types.NRFInstanceDeleted: 0}
			out[rec.CreatedBy.TestName] = m
		}
		m[rec.Status]++
	}
	return out
}

func (t *Tracker) groupByStatus() map[types.NRFInstanceStatus]int {
	out := map[types.NRFInstanceStatus]int{types.NRFInstanceActive: 0, types.NRFInstanceDeleted: 0}
	for _, rec := range t.session.Registry {
		out[rec.Status]++
	}
	return out
}

func (t *Tracker) findOrphaned() []types.NRFOrphan {
	var current string
	if t.session.CurrentTest != nil {
		current = t.session.CurrentTest.TestName
	}
	var orphans []types.NRFOrphan
	for nfID, rec := range t.session.Registry {
		if rec.Status != types.NRFInstanceActive || rec.CleanupPolicy != types.CleanupTestEnd || rec.CreatedBy.TestName == current {
			continue
		}
		age := t.now().Sub(rec.CreatedBy.Timestamp).Minutes()
		orphans = append(orphans, types.NRFOrphan{
			NFInstanceID:    nfID,
			CreatedBy:       rec.CreatedBy.TestName,
			AgeMinutes:      roundTo2(age),
			OperationsCount: len(rec.Operations),
		})
	}
	return orphans
}

func roundTo2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

// determineCleanupPolicy infers a policy from the registering test's name
// (_determine_cleanup_policy's substring heuristics).
func determineCleanupPolicy(testName string) types.CleanupPolicy {
	name := strings.ToLower(testName)
	switch {
	case strings.Contains(name, "registration"):
		return types.CleanupTestEnd
	case strings.Contains(name, "discovery"):
		return types.CleanupSuiteEnd
	case strings.Contains(name, "validation"), strings.Contains(name, "validate"):
		return types.CleanupTestEnd
	default:
		return types.CleanupSessionEnd
	}
}
