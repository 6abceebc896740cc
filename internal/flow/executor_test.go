package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/psbr27/testPilotOne/internal/command"
	"github.com/psbr27/testPilotOne/internal/pattern"
	"github.com/psbr27/testPilotOne/internal/transport"
	"github.com/psbr27/testPilotOne/internal/types"
	"github.com/psbr27/testPilotOne/internal/validate"
)

type stubTransport struct {
	stdout string
	stderr string
	err    error
}

func (s *stubTransport) Exec(ctx context.Context, host types.Host, cmd string) (transport.RawOutput, error) {
	if s.err != nil {
		return transport.RawOutput{}, s.err
	}
	return transport.RawOutput{Stdout: s.stdout, Stderr: s.stderr, DurationMS: 1}, nil
}

func (s *stubTransport) Close() error { return nil }

func newExecutor(tr transport.Transport) *Executor {
	builder := command.New("", nil, "test-session")
	validator := validate.New(validate.Options{Mode: pattern.ModeLenient, JSONThresholdPct: 50})
	return New(builder, tr, validator, nil)
}

func TestExecutor_RunPassingStep(t *testing.T) {
	tr := &stubTransport{stderr: "< HTTP/1.1 200 OK\n", stdout: `{"status":"ok"}`}
	ex := newExecutor(tr)
	flow := types.TestFlow{
		Sheet:    "sheet1",
		TestName: "healthcheck",
		Steps: []types.TestStep{
			{RowIdx: 1, TestName: "healthcheck", Method: types.MethodGet, URL: "http://nf/health", ExpectedStatus: "200"},
		},
	}
	host := types.Host{Name: "host1"}
	results := ex.Run(context.Background(), flow, host, false)
	assert.Len(t, results, 1)
	assert.True(t, results[0].Passed)
	assert.Equal(t, types.OutcomePass, results[0].Outcome)
}

func TestExecutor_StatusMismatchFails(t *testing.T) {
	tr := &stubTransport{stderr: "< HTTP/1.1 500 Internal Server Error\n", stdout: `{"error":"boom"}`}
	ex := newExecutor(tr)
	flow := types.TestFlow{
		Sheet:    "sheet1",
		TestName: "healthcheck",
		Steps: []types.TestStep{
			{RowIdx: 1, TestName: "healthcheck", Method: types.MethodGet, URL: "http://nf/health", ExpectedStatus: "200"},
		},
	}
	host := types.Host{Name: "host1"}
	results := ex.Run(context.Background(), flow, host, false)
	assert.Len(t, results, 1)
	assert.False(t, results[0].Passed)
	assert.Equal(t, types.CategoryStatusMismatch, results[0].Category)
}

func TestExecutor_DryRunSkipsTransport(t *testing.T) {
	tr := &stubTransport{}
	ex := newExecutor(tr)
	ex.DryRun = true
	flow := types.TestFlow{
		Sheet:    "sheet1",
		TestName: "healthcheck",
		Steps: []types.TestStep{
			{RowIdx: 1, TestName: "healthcheck", Method: types.MethodGet, URL: "http://nf/health", ExpectedStatus: "200"},
		},
	}
	host := types.Host{Name: "host1"}
	results := ex.Run(context.Background(), flow, host, false)
	assert.Len(t, results, 1)
	assert.Equal(t, types.OutcomeDryRun, results[0].Outcome)
	assert.True(t, results[0].Passed)
	assert.NotEmpty(t, results[0].Command)
}

func TestExecutor_ContinuesPastFailureByDefault(t *testing.T) {
	tr := &stubTransport{stderr: "< HTTP/1.1 500 Internal Server Error\n"}
	ex := newExecutor(tr)
	flow := types.TestFlow{
		Sheet:    "sheet1",
		TestName: "teardown",
		Steps: []types.TestStep{
			{RowIdx: 1, TestName: "teardown", Method: types.MethodGet, URL: "http://nf/a", ExpectedStatus: "200"},
			{RowIdx: 2, TestName: "teardown", Method: types.MethodDelete, URL: "http://nf/b", ExpectedStatus: "200"},
		},
	}
	host := types.Host{Name: "host1"}
	results := ex.Run(context.Background(), flow, host, false)
	assert.Len(t, results, 2, "both steps should run even though the first failed")
}

func TestExecutor_StopOnFailureAborts(t *testing.T) {
	tr := &stubTransport{stderr: "< HTTP/1.1 500 Internal Server Error\n"}
	ex := newExecutor(tr)
	flow := types.TestFlow{
		Sheet:    "sheet1",
		TestName: "teardown",
		Steps: []types.TestStep{
			{RowIdx: 1, TestName: "teardown", Method: types.MethodGet, URL: "http://nf/a", ExpectedStatus: "200"},
			{RowIdx: 2, TestName: "teardown", Method: types.MethodDelete, URL: "http://nf/b", ExpectedStatus: "200"},
		},
	}
	host := types.Host{Name: "host1"}
	results := ex.Run(context.Background(), flow, host, true)
	assert.Len(t, results, 1, "stop_on_failure should abort after the first failing step")
}
