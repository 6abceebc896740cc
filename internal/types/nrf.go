package types

import "time"

// CleanupPolicy decides when an NRF instance record is evicted from the
// tracker, inferred from the owning test's name (instance_tracker.py).
type CleanupPolicy string

const (
	CleanupTestEnd    CleanupPolicy = "test_end"
	CleanupSuiteEnd   CleanupPolicy = "suite_end"
	CleanupSessionEnd CleanupPolicy = "session_end"
)

// NRFInstanceStatus is the lifecycle state of a tracked instance.
type NRFInstanceStatus string

const (
	NRFInstanceActive  NRFInstanceStatus = "active"
	NRFInstanceDeleted NRFInstanceStatus = "deleted"
)

// NRFOperation is one recorded touch of an instance, in creation order.
type NRFOperation struct {
	Method    Method
	RowIdx    int
	Timestamp time.Time
}

// NRFCreatedBy identifies the step that registered an instance.
type NRFCreatedBy struct {
	TestName  string
	Sheet     string
	RowIdx    int
	Timestamp time.Time
}

// NRFInstanceRecord tracks one registered NF instance across the steps that
// created, queried, and eventually deregistered it (spec.md §3).
type NRFInstanceRecord struct {
	NFInstanceID    string
	CreatedBy       NRFCreatedBy
	Operations      []NRFOperation
	Status          NRFInstanceStatus
	CleanupPolicy   CleanupPolicy
	DeletedAt        time.Time
	DeletionReason   string
}

// NRFTestContext identifies the step currently executing, for the
// tracker's test/suite transition detection (instance_tracker.py's
// track_test_progression).
type NRFTestContext struct {
	TestName string
	Sheet    string
	RowIdx   int
}

// NRFSession is the per-run NRF bookkeeping: a LIFO stack of currently
// active instance IDs plus the full registry, keyed by instance ID
// (spec.md §4.4, instance_tracker.py).
type NRFSession struct {
	Registry    map[string]*NRFInstanceRecord
	ActiveStack []string
	CurrentTest *NRFTestContext
	History     []NRFTestContext
}

// NewNRFSession returns an empty, ready-to-use session.
func NewNRFSession() *NRFSession {
	return &NRFSession{Registry: make(map[string]*NRFInstanceRecord)}
}

// NRFDiagnosticReport summarizes tracker state for operator troubleshooting
// (spec.md §4.4, instance_tracker.py's get_diagnostic_report).
type NRFDiagnosticReport struct {
	ActiveInstances       int
	ActiveInstanceIDs     []string
	ActiveStackSize       int
	TotalInstancesCreated int
	InstancesByTest       map[string]map[NRFInstanceStatus]int
	InstancesByStatus     map[NRFInstanceStatus]int
	OrphanedInstances     []NRFOrphan
	StackTrace            []string
}

// NRFOrphan is an active, TEST_END-policy instance that outlived the test
// that created it.
type NRFOrphan struct {
	NFInstanceID    string
	CreatedBy       string
	AgeMinutes      float64
	OperationsCount int
}
