package types

import "net/http"

// Response is the reconstructed result of executing a command (spec.md §3).
type Response struct {
	StatusCode int
	Headers    http.Header // case-insensitive multimap
	BodyBytes  []byte
	BodyText   string
	BodyJSON   any // nil if the body did not parse as JSON

	RawStdout string
	RawStderr string

	DurationMS int64

	// IsKubectlLogs marks a response whose body is pod log lines rather
	// than an HTTP payload (response_parser.py's is_kubectl_logs heuristic).
	IsKubectlLogs bool

	// SupplementaryLogs holds text captured separately via `kubectl logs`
	// (spec.md §4.9 step 6), available to the pattern matcher alongside the
	// primary body.
	SupplementaryLogs string
}
