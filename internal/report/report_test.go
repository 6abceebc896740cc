package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psbr27/testPilotOne/internal/types"
)

func sampleResults() []types.TestResult {
	return []types.TestResult{
		{
			Sheet: "sheet1", RowIdx: 1, Host: "host1", TestName: "create-nf",
			Method: types.MethodPut, Outcome: types.OutcomePass, Passed: true,
		},
		{
			Sheet: "sheet1", RowIdx: 2, Host: "host1", TestName: "get-nf",
			Method: types.MethodGet, Outcome: types.OutcomeFail, Passed: false,
			FailReason: "Status mismatch: 404 vs 200", Category: types.CategoryStatusMismatch,
			ExpectedStatus: "200", Command: "curl ...",
			Response: &types.Response{StatusCode: 404, RawStdout: "abc", RawStderr: ""},
		},
		{
			Sheet: "sheet1", RowIdx: 3, Host: "host1", TestName: "delete-nf",
			Method: types.MethodDelete, Outcome: types.OutcomeSkipped,
			FailReason: "no active nf instance",
		},
	}
}

func TestReporter_NotifyAndSummarize(t *testing.T) {
	var out bytes.Buffer
	r := New(&out, ColorNever)
	for _, res := range sampleResults() {
		r.Notify(res)
	}

	sum := r.Summarize()
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 1, sum.Passed)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, sum.ExitCode())

	assert.Contains(t, out.String(), "[FAIL][sheet1][row 2][host1]")
}

func TestSummary_ExitCodeAllPassed(t *testing.T) {
	var out bytes.Buffer
	r := New(&out, ColorNever)
	r.Notify(types.TestResult{Outcome: types.OutcomePass})
	assert.Equal(t, 0, r.Summarize().ExitCode())
}

func TestReporter_WriteFailureLog(t *testing.T) {
	var out bytes.Buffer
	r := New(&out, ColorNever)
	for _, res := range sampleResults() {
		r.Notify(res)
	}
	out.Reset() // drop the inline [FAIL] line printed by Notify

	var log bytes.Buffer
	require.NoError(t, r.WriteFailureLog(&log))

	lines := strings.Split(strings.TrimSpace(log.String()), "\n")
	require.Len(t, lines, 2) // header + one failed result (skipped isn't a failure)
	assert.Equal(t, strings.Join(failureLogHeader, "|"), lines[0])
	assert.Contains(t, lines[1], "get-nf")
	assert.Contains(t, lines[1], "404")
	assert.Contains(t, lines[1], "200")
}

func TestReporter_WriteJSON(t *testing.T) {
	var out bytes.Buffer
	r := New(&out, ColorNever)
	for _, res := range sampleResults() {
		r.Notify(res)
	}

	var jsonOut bytes.Buffer
	require.NoError(t, r.WriteJSON(&jsonOut))
	assert.Contains(t, jsonOut.String(), "create-nf")
	assert.Contains(t, jsonOut.String(), "get-nf")
}

func TestReporter_WriteTableAndSimpleDoNotPanic(t *testing.T) {
	var out bytes.Buffer
	r := New(&out, ColorNever)
	for _, res := range sampleResults() {
		r.Notify(res)
	}
	out.Reset()

	r.WriteTable()
	assert.Contains(t, out.String(), "create-nf")

	out.Reset()
	r.WriteSimple()
	assert.Contains(t, out.String(), "get-nf")
}

func TestEscapeFields(t *testing.T) {
	out := escapeFields([]string{"a|b", "clean"})
	assert.Equal(t, "a│b", out[0])
	assert.Equal(t, "clean", out[1])
}
