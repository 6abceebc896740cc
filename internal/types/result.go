package types

import "time"

// Outcome is the terminal disposition of one step execution.
type Outcome string

const (
	OutcomePass    Outcome = "PASS"
	OutcomeFail    Outcome = "FAIL"
	OutcomeSkipped Outcome = "SKIPPED"
	OutcomeDryRun  Outcome = "DRY-RUN"
)

// FailCategory classifies a failed or skipped TestResult (spec.md §7).
type FailCategory string

const (
	CategoryNone              FailCategory = ""
	CategoryStatusMismatch    FailCategory = "StatusMismatch"
	CategoryPatternMismatch   FailCategory = "PatternMismatch"
	CategoryPayloadMismatch   FailCategory = "PayloadMismatch"
	CategoryMissingSaved      FailCategory = "MissingSavedValue"
	CategoryComparisonMismatch FailCategory = "ComparisonMismatch"
	CategoryNRFNoActive       FailCategory = "NRFNoActiveInstance"
	CategoryAuditStrictFail   FailCategory = "AuditStrictFail"
	CategoryTransportError    FailCategory = "TransportError"
	CategoryBuildError        FailCategory = "BuildError"
	CategoryInternal          FailCategory = "Internal"
)

// TestResult is one record per step per host per flow attempt (spec.md §3).
type TestResult struct {
	Sheet      string
	RowIdx     int
	Host       string
	TestName   string
	Method     Method
	Outcome    Outcome
	Passed     bool
	FailReason string
	Category   FailCategory
	DurationMS int64
	Command    string
	Response   *Response
	Timestamp  time.Time

	// ExpectedStatus and PatternMatch echo the step's own expectations,
	// carried onto the result so a reporter can populate the structured
	// failure log's EXPECTED_STATUS/PATTERN_MATCH columns (spec.md §6)
	// without needing the originating TestStep in hand.
	ExpectedStatus string
	PatternMatch   string

	// AuditMeta carries the OTP-mode outcome when the Audit Adapter
	// downgrades a pass to AuditStrictFail (spec.md §4.11).
	AuditMeta map[string]string
}
