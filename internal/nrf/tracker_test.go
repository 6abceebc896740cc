package nrf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psbr27/testPilotOne/internal/types"
)

func TestTracker_HandlePutThenActiveInstanceID(t *testing.T) {
	tr := New()
	ctx := types.NRFTestContext{TestName: "registration_test", Sheet: "NRF", RowIdx: 1}
	tr.TrackTestProgression(ctx)
	tr.HandlePut(ctx, "nf-1")

	id, ok := tr.ActiveInstanceID(ctx, types.MethodGet)
	require.True(t, ok)
	assert.Equal(t, "nf-1", id)
}

func TestTracker_ActiveInstanceID_EmptyStackReturnsFalse(t *testing.T) {
	tr := New()
	_, ok := tr.ActiveInstanceID(types.NRFTestContext{TestName: "t1"}, types.MethodGet)
	assert.False(t, ok)
}

func TestTracker_ActiveInstanceID_PrefersSameTestOverStackTop(t *testing.T) {
	tr := New()
	ctxA := types.NRFTestContext{TestName: "testA", Sheet: "S"}
	ctxB := types.NRFTestContext{TestName: "testB", Sheet: "S"}

	tr.TrackTestProgression(ctxA)
	tr.HandlePut(ctxA, "nf-a")
	tr.TrackTestProgression(ctxB)
	tr.HandlePut(ctxB, "nf-b")

	id, ok := tr.ActiveInstanceID(ctxA, types.MethodGet)
	require.True(t, ok)
	assert.Equal(t, "nf-a", id)
}

func TestTracker_HandleDelete_RemovesFromStackAndMarksDeleted(t *testing.T) {
	tr := New()
	ctx := types.NRFTestContext{TestName: "t1"}
	tr.TrackTestProgression(ctx)
	tr.HandlePut(ctx, "nf-1")

	id, ok := tr.HandleDelete(ctx)
	require.True(t, ok)
	assert.Equal(t, "nf-1", id)

	_, ok = tr.ActiveInstanceID(ctx, types.MethodGet)
	assert.False(t, ok)
}

func TestTracker_TestTransitionCleansUpTestEndPolicyInstances(t *testing.T) {
	tr := New()
	ctx1 := types.NRFTestContext{TestName: "registration_test", Sheet: "S"}
	tr.TrackTestProgression(ctx1)
	tr.HandlePut(ctx1, "nf-1")

	ctx2 := types.NRFTestContext{TestName: "other_test", Sheet: "S"}
	tr.TrackTestProgression(ctx2)

	report := tr.DiagnosticReport()
	assert.Equal(t, 0, report.ActiveInstances)
}

func TestTracker_SuiteTransitionCleansUpSuiteEndPolicyInstances(t *testing.T) {
	tr := New()
	ctx1 := types.NRFTestContext{TestName: "discovery_test", Sheet: "sheetA"}
	tr.TrackTestProgression(ctx1)
	tr.HandlePut(ctx1, "nf-1")

	ctx2 := types.NRFTestContext{TestName: "discovery_test", Sheet: "sheetB"}
	tr.TrackTestProgression(ctx2)

	report := tr.DiagnosticReport()
	assert.Equal(t, 0, report.ActiveInstances)
}

func TestTracker_CleanupAll_ClearsEveryActiveInstance(t *testing.T) {
	tr := New()
	ctx := types.NRFTestContext{TestName: "session_default_test"}
	tr.TrackTestProgression(ctx)
	tr.HandlePut(ctx, "nf-1")
	tr.HandlePut(ctx, "nf-2")

	tr.CleanupAll("suite_end")

	report := tr.DiagnosticReport()
	assert.Equal(t, 0, report.ActiveInstances)
	assert.Equal(t, 2, report.TotalInstancesCreated)
}

func TestDetermineCleanupPolicy_MatchesExpectedSubstrings(t *testing.T) {
	assert.Equal(t, types.CleanupTestEnd, determineCleanupPolicy("NRF_Registration_Test"))
	assert.Equal(t, types.CleanupSuiteEnd, determineCleanupPolicy("nf_discovery_flow"))
	assert.Equal(t, types.CleanupTestEnd, determineCleanupPolicy("payload_validation"))
	assert.Equal(t, types.CleanupSessionEnd, determineCleanupPolicy("unrelated_test"))
}

func TestTracker_DiagnosticReport_CurrentTestInstanceIsNotOrphaned(t *testing.T) {
	tr := New()
	ctx := types.NRFTestContext{TestName: "validation_test", Sheet: "S"}
	tr.TrackTestProgression(ctx)
	tr.HandlePut(ctx, "nf-1")

	// the test_end instance is still owned by the test that is running,
	// so it is active but not reported as orphaned.
	report := tr.DiagnosticReport()
	assert.Equal(t, 1, report.ActiveInstances)
	assert.Empty(t, report.OrphanedInstances)
}
