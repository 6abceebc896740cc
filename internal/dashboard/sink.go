// Package dashboard defines the opaque TestResult sink C9 notifies
// after every step (spec.md §4.9 step 8). The blessed/curses-style
// terminal dashboard in original_source/blessed_dashboard.py is
// explicitly out of scope (spec.md §1); this package only specifies the
// interface collaborators implement, plus a no-op default, the way
// titus's DebugLogger stands in for a real sink during tests.
package dashboard

import "github.com/psbr27/testPilotOne/internal/types"

// Sink receives one notification per TestResult as it is produced.
// Implementations must not block the executor for long; a slow sink
// should buffer internally.
type Sink interface {
	Notify(result types.TestResult)
}

// NoOp discards every notification. It is the default sink when none is
// configured.
type NoOp struct{}

func (NoOp) Notify(types.TestResult) {}

// Multi fans a notification out to every sink in order.
type Multi []Sink

func (m Multi) Notify(result types.TestResult) {
	for _, s := range m {
		s.Notify(result)
	}
}
