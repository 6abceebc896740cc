package store

import (
	"github.com/psbr27/testPilotOne/internal/logging"
	"github.com/psbr27/testPilotOne/internal/types"
)

var log = logging.Get("store")

// Sink persists every notified TestResult under RunID, satisfying
// dashboard.Sink so a run can sit a Store alongside the terminal
// reporter in a dashboard.Multi (spec.md §2's run-artifact
// persistence). A persistence failure is logged, not propagated — a
// broken database must not abort an in-flight test run.
type Sink struct {
	Store Store
	RunID string
}

// Notify implements dashboard.Sink.
func (s Sink) Notify(result types.TestResult) {
	if err := s.Store.AddResult(s.RunID, result); err != nil {
		log.Warnw("failed to persist test result", "err", err, "test", result.TestName, "row", result.RowIdx)
	}
}

// PersistAuditTrail writes every audit.Record-shaped row collected
// during a strict-mode run to the audit_records table.
func PersistAuditTrail(s Store, runID string, rows []AuditRecordRow) {
	for _, rec := range rows {
		if err := s.AddAuditRecord(runID, rec); err != nil {
			log.Warnw("failed to persist audit record", "err", err, "id", rec.ID)
		}
	}
}

// PersistNRFSnapshot writes one NRF diagnostic snapshot. Called once
// per tracked session after a run completes.
func PersistNRFSnapshot(s Store, runID string, report types.NRFDiagnosticReport) {
	if err := s.AddNRFSnapshot(runID, report); err != nil {
		log.Warnw("failed to persist NRF diagnostic snapshot", "err", err)
	}
}
