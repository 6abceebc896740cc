package main

import (
	"errors"

	"github.com/psbr27/testPilotOne/internal/types"
)

// exitCodeFor maps an error returned from a subcommand onto spec.md
// §6's exit codes.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, types.ErrConfig):
		return 2
	case errors.Is(err, types.ErrInput):
		return 3
	default:
		return 1
	}
}

// runResultCode carries the "0 all passed / 1 any failed" exit code a
// successful `run` invocation computes once it has a Summary; cobra's
// RunE maps a nil error to exit 0 unconditionally, so run.go records
// the real code here instead of calling os.Exit mid-function (which
// would skip every deferred cleanup — transport.Close, context
// cancellation).
var runResultCode = 0
