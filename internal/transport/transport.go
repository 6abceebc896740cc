// Package transport executes an already-built command string against a
// host and returns the raw process output for C6 to parse (spec.md
// §4.5). Three implementations share one interface, the shape of
// titus's enum.Enumerator / matcher.Matcher pattern: local (os/exec),
// ssh (golang.org/x/crypto/ssh), and mock (direct HTTP against a
// mockserver or arbitrary base URL, for hermetic test runs).
package transport

import (
	"context"

	"github.com/psbr27/testPilotOne/internal/types"
)

// Transport runs a pre-built shell command against a host and returns
// its raw stdout/stderr/exit-derived status for C6's parser.
type Transport interface {
	// Exec runs command on host, returning raw output. stdout, stderr,
	// exit status and duration are captured on the returned RawOutput's
	// Stdout, Stderr, ExitCode and DurationMS fields; callers pass the
	// result straight to response.Parse.
	Exec(ctx context.Context, host types.Host, command string) (RawOutput, error)

	// Close releases any pooled connections (SSH clients). Local and
	// mock transports no-op.
	Close() error
}

// RawOutput is everything the transport observed about one command run,
// before C6 turns it into a types.Response.
type RawOutput struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	DurationMS int64
}
