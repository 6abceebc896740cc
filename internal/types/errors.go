package types

import (
	"errors"
	"strconv"
)

// Sentinel errors for the taxonomy in spec.md §7. Components wrap these with
// fmt.Errorf("...: %w", ErrX) so callers can errors.Is against a stable
// category while the message carries row/host detail.
var (
	// ErrConfig covers malformed or invalid host-config documents (C1).
	ErrConfig = errors.New("config error")

	// ErrInput covers malformed flow/suite input (missing columns, bad method).
	ErrInput = errors.New("input error")

	// ErrBuild covers command-assembly failures: unresolved placeholder,
	// missing payload file, unknown CLI kind (C3).
	ErrBuild = errors.New("build error")

	// ErrTransport covers SSH/exec/network failures reaching a host (C5).
	ErrTransport = errors.New("transport error")

	// ErrParse covers failures reconstructing a Response from raw output (C6).
	ErrParse = errors.New("parse error")

	// ErrNRFNoActiveInstance fires when a step needs the active NRF instance
	// but the tracker's stack is empty (C4).
	ErrNRFNoActiveInstance = errors.New("nrf: no active instance")

	// ErrAuditStrictFail fires when the Audit Adapter's strict comparison
	// disagrees with the validator's lenient pass (C11).
	ErrAuditStrictFail = errors.New("audit: strict comparison failed")
)

// ConfigError wraps ErrConfig with the offending field or file.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config error: " + e.Err.Error()
	}
	return "config error: " + e.Field + ": " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// InputError wraps ErrInput with the offending sheet/row.
type InputError struct {
	Sheet  string
	RowIdx int
	Err    error
}

func (e *InputError) Error() string {
	return "input error: " + e.Sheet + " row " + strconv.Itoa(e.RowIdx) + ": " + e.Err.Error()
}

func (e *InputError) Unwrap() error { return ErrInput }

// BuildError wraps ErrBuild with the step that failed to build.
type BuildError struct {
	TestName string
	RowIdx   int
	Err      error
}

func (e *BuildError) Error() string {
	return "build error: " + e.TestName + " row " + strconv.Itoa(e.RowIdx) + ": " + e.Err.Error()
}

func (e *BuildError) Unwrap() error { return ErrBuild }

// TransportError wraps ErrTransport with the host it failed against.
type TransportError struct {
	Host string
	Err  error
}

func (e *TransportError) Error() string {
	return "transport error: " + e.Host + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return ErrTransport }

// ParseError wraps ErrParse with the raw fragment that failed to parse.
type ParseError struct {
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	return "parse error: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return ErrParse }

