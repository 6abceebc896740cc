package transport

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/psbr27/testPilotOne/internal/logging"
	"github.com/psbr27/testPilotOne/internal/types"
)

var log = logging.Get("transport")

// Local runs commands on the machine TestPilot itself is running on,
// used when use_ssh is false (direct curl execution mode, spec.md §1).
type Local struct{}

// NewLocal returns a ready-to-use local transport.
func NewLocal() *Local { return &Local{} }

func (l *Local) Exec(ctx context.Context, host types.Host, command string) (RawOutput, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, "sh", "-c", command)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := RawOutput{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMS: time.Since(start).Milliseconds(),
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		out.ExitCode = exitErr.ExitCode()
		return out, nil // non-zero exit is a result, not a transport failure
	}
	if err != nil {
		return out, &types.TransportError{Host: host.Name, Err: err}
	}
	return out, nil
}

func (l *Local) Close() error { return nil }
