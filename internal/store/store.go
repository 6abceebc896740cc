// Package store persists the audit trail and NRF diagnostic snapshots
// to SQLite, the Go shape of titus's pkg/store (Store interface +
// CreateSchema/db.Exec), retargeted from scan findings to TestPilot's
// TestResults and audit records.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"time"

	_ "modernc.org/sqlite"

	"github.com/psbr27/testPilotOne/internal/types"
)

const timeLayout = time.RFC3339Nano

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// Store persists run artifacts: TestResults, audit trail entries, and
// NRF diagnostic snapshots.
type Store interface {
	AddResult(runID string, r types.TestResult) error
	AddAuditRecord(runID string, rec AuditRecordRow) error
	AddNRFSnapshot(runID string, report types.NRFDiagnosticReport) error

	GetResults(runID string) ([]types.TestResult, error)
	GetAuditRecords(runID string) ([]AuditRecordRow, error)

	Close() error
}

// AuditRecordRow is the persisted shape of an internal/audit.Record.
type AuditRecordRow struct {
	ID          string
	StepID      string
	TestName    string
	Host        string
	Pattern     string
	Actual      string
	Differences []string
	Outcome     string
}

// Config configures store initialization.
type Config struct {
	// Path is the database file path. Use ":memory:" for an in-memory
	// database; an empty Path also opens an in-memory database.
	Path string
}

// New opens (creating if necessary) a SQLite-backed Store at cfg.Path.
func New(cfg Config) (Store, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

func createSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS results (
			run_id TEXT NOT NULL,
			sheet TEXT,
			row_idx INTEGER,
			host TEXT,
			test_name TEXT,
			method TEXT,
			outcome TEXT,
			passed INTEGER,
			fail_reason TEXT,
			category TEXT,
			duration_ms INTEGER,
			command TEXT,
			timestamp TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS audit_records (
			run_id TEXT NOT NULL,
			id TEXT NOT NULL,
			step_id TEXT,
			test_name TEXT,
			host TEXT,
			pattern TEXT,
			actual TEXT,
			differences_json TEXT,
			outcome TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS nrf_snapshots (
			run_id TEXT NOT NULL,
			active_instances INTEGER,
			total_created INTEGER,
			report_json TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_run ON audit_records(run_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

type sqliteStore struct {
	db *sql.DB
}

func (s *sqliteStore) AddResult(runID string, r types.TestResult) error {
	_, err := s.db.Exec(`
		INSERT INTO results (run_id, sheet, row_idx, host, test_name, method, outcome, passed, fail_reason, category, duration_ms, command, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID, r.Sheet, r.RowIdx, r.Host, r.TestName, string(r.Method), string(r.Outcome),
		boolToInt(r.Passed), r.FailReason, string(r.Category), r.DurationMS, r.Command, r.Timestamp.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting result: %w", err)
	}
	return nil
}

func (s *sqliteStore) AddAuditRecord(runID string, rec AuditRecordRow) error {
	diffsJSON, err := json.Marshal(rec.Differences)
	if err != nil {
		return fmt.Errorf("marshaling differences: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO audit_records (run_id, id, step_id, test_name, host, pattern, actual, differences_json, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID, rec.ID, rec.StepID, rec.TestName, rec.Host, rec.Pattern, rec.Actual, string(diffsJSON), rec.Outcome,
	)
	if err != nil {
		return fmt.Errorf("inserting audit record: %w", err)
	}
	return nil
}

func (s *sqliteStore) AddNRFSnapshot(runID string, report types.NRFDiagnosticReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshaling nrf report: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO nrf_snapshots (run_id, active_instances, total_created, report_json)
		VALUES (?, ?, ?, ?)
	`,
		runID, report.ActiveInstances, report.TotalInstancesCreated, string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting nrf snapshot: %w", err)
	}
	return nil
}

func (s *sqliteStore) GetResults(runID string) ([]types.TestResult, error) {
	rows, err := s.db.Query(`
		SELECT sheet, row_idx, host, test_name, method, outcome, passed, fail_reason, category, duration_ms, command, timestamp
		FROM results WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}
	defer rows.Close()

	var out []types.TestResult
	for rows.Next() {
		var r types.TestResult
		var method, outcome, category, timestamp string
		var passed int
		if err := rows.Scan(&r.Sheet, &r.RowIdx, &r.Host, &r.TestName, &method, &outcome, &passed,
			&r.FailReason, &category, &r.DurationMS, &r.Command, &timestamp); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		r.Method = types.Method(method)
		r.Outcome = types.Outcome(outcome)
		r.Category = types.FailCategory(category)
		r.Passed = passed != 0
		if ts, err := parseTime(timestamp); err == nil {
			r.Timestamp = ts
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating results: %w", err)
	}
	return out, nil
}

func (s *sqliteStore) GetAuditRecords(runID string) ([]AuditRecordRow, error) {
	rows, err := s.db.Query(`
		SELECT id, step_id, test_name, host, pattern, actual, differences_json, outcome
		FROM audit_records WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying audit records: %w", err)
	}
	defer rows.Close()

	var out []AuditRecordRow
	for rows.Next() {
		var rec AuditRecordRow
		var diffsJSON string
		if err := rows.Scan(&rec.ID, &rec.StepID, &rec.TestName, &rec.Host, &rec.Pattern, &rec.Actual, &diffsJSON, &rec.Outcome); err != nil {
			return nil, fmt.Errorf("scanning audit record: %w", err)
		}
		if err := json.Unmarshal([]byte(diffsJSON), &rec.Differences); err != nil {
			return nil, fmt.Errorf("unmarshaling differences: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit records: %w", err)
	}
	return out, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
