// Package report renders a run's TestResults: a colorized console
// summary table, a one-line-per-failure console stream, a
// pipe-separated structured failure log, and a JSON results file —
// the Go shape of titus's cmd/titus/report.go styles/color-toggle
// pattern, retargeted from findings to TestResults.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"

	"github.com/psbr27/testPilotOne/internal/types"
)

// ColorMode mirrors titus's --color flag: auto resolves against the
// terminal and NO_COLOR, the other two force the decision.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ResolveColor decides whether color output is enabled for out, mirroring
// cmd/titus/report.go's outputReportHuman resolution exactly: --color
// always/never override, auto checks both the TTY and NO_COLOR.
func ResolveColor(mode ColorMode, out *os.File) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return term.IsTerminal(int(out.Fd())) && os.Getenv("NO_COLOR") == ""
	}
}

// styles holds the color formatters used across the console report,
// disabled wholesale when color output is off.
type styles struct {
	pass    *color.Color
	fail    *color.Color
	skipped *color.Color
	dryRun  *color.Color
	heading *color.Color
	reason  *color.Color
}

func newStyles(enabled bool) *styles {
	s := &styles{
		pass:    color.New(color.FgHiGreen),
		fail:    color.New(color.Bold, color.FgHiRed),
		skipped: color.New(color.FgHiYellow),
		dryRun:  color.New(color.FgHiCyan),
		heading: color.New(color.Bold),
		reason:  color.New(color.FgYellow),
	}
	if !enabled {
		s.pass.DisableColor()
		s.fail.DisableColor()
		s.skipped.DisableColor()
		s.dryRun.DisableColor()
		s.heading.DisableColor()
		s.reason.DisableColor()
	}
	return s
}

func (s *styles) forOutcome(o types.Outcome) *color.Color {
	switch o {
	case types.OutcomePass:
		return s.pass
	case types.OutcomeFail:
		return s.fail
	case types.OutcomeSkipped:
		return s.skipped
	case types.OutcomeDryRun:
		return s.dryRun
	default:
		return s.heading
	}
}

// Reporter accumulates TestResults as they arrive (it implements
// dashboard.Sink) and renders them on demand; it is the run's single
// point of contact with stdout/the failure log/the JSON file.
type Reporter struct {
	Out       io.Writer
	ColorMode ColorMode
	results   []types.TestResult
}

// New returns a Reporter writing to out.
func New(out io.Writer, colorMode ColorMode) *Reporter {
	return &Reporter{Out: out, ColorMode: colorMode}
}

// Notify implements dashboard.Sink: buffer the result and, for a
// failure, print the one-line console summary spec.md §7 specifies
// immediately rather than waiting for the final summary.
func (r *Reporter) Notify(result types.TestResult) {
	r.results = append(r.results, result)
	if result.Outcome == types.OutcomeFail {
		r.printFailureLine(result)
	}
}

func (r *Reporter) colorEnabled() bool {
	f, ok := r.Out.(*os.File)
	if !ok {
		return r.ColorMode == ColorAlways
	}
	return ResolveColor(r.ColorMode, f)
}

// printFailureLine emits "[FAIL][sheet][row N][host] Reason" exactly as
// spec.md §7 names it, colorized when enabled.
func (r *Reporter) printFailureLine(result types.TestResult) {
	s := newStyles(r.colorEnabled())
	line := fmt.Sprintf("[FAIL][%s][row %d][%s] %s", result.Sheet, result.RowIdx, result.Host, result.FailReason)
	fmt.Fprintln(r.Out, s.fail.Sprint(line))
}

// Results returns every TestResult notified so far, in arrival order.
func (r *Reporter) Results() []types.TestResult {
	return r.results
}

// Summary tallies pass/fail/skip/dry-run counts across every buffered
// result.
type Summary struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
	DryRun  int
}

func (r *Reporter) Summarize() Summary {
	var s Summary
	for _, res := range r.results {
		s.Total++
		switch res.Outcome {
		case types.OutcomePass:
			s.Passed++
		case types.OutcomeFail:
			s.Failed++
		case types.OutcomeSkipped:
			s.Skipped++
		case types.OutcomeDryRun:
			s.DryRun++
		}
	}
	return s
}

// ExitCode maps a Summary onto spec.md §6's exit codes, given that any
// ConfigError/InputError abort before a Reporter is even constructed
// (those map to 2/3 at the CLI layer directly): 0 when nothing failed,
// 1 when anything did.
func (s Summary) ExitCode() int {
	if s.Failed > 0 {
		return 1
	}
	return 0
}

// WriteTable renders the full per-result table with go-pretty/v6/table,
// the --display-mode full rendering (grounded on giantswarm-muster's
// direct dependency on the same library for its own CLI tables).
func (r *Reporter) WriteTable() {
	s := newStyles(r.colorEnabled())
	t := table.NewWriter()
	t.SetOutputMirror(r.Out)
	t.AppendHeader(table.Row{"Sheet", "Row", "Host", "Test", "Method", "Outcome", "Duration(ms)", "Reason"})
	for _, res := range r.results {
		outcomeCell := s.forOutcome(res.Outcome).Sprint(string(res.Outcome))
		t.AppendRow(table.Row{res.Sheet, res.RowIdx, res.Host, res.TestName, string(res.Method), outcomeCell, res.DurationMS, res.FailReason})
	}
	sum := r.Summarize()
	t.AppendFooter(table.Row{"", "", "", "", "", "Total", sum.Total, fmt.Sprintf("pass=%d fail=%d skip=%d dry=%d", sum.Passed, sum.Failed, sum.Skipped, sum.DryRun)})
	t.Render()
}

// WriteSimple renders one line per result with no table framing, for
// --display-mode simple.
func (r *Reporter) WriteSimple() {
	s := newStyles(r.colorEnabled())
	for _, res := range r.results {
		outcomeCell := s.forOutcome(res.Outcome).Sprint(string(res.Outcome))
		fmt.Fprintf(r.Out, "[%s] %s/%s/%s (%s) %dms\n", outcomeCell, res.Sheet, res.TestName, res.Host, res.Method, res.DurationMS)
	}
}

// WriteJSON marshals every buffered result as an indented JSON array to
// out, the JSON sibling of the xlsx/html result generators spec.md §6
// names as external collaborators.
func (r *Reporter) WriteJSON(out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(r.results)
}

// failureLogHeader is the column order spec.md §6's structured failure
// log names verbatim.
var failureLogHeader = []string{
	"SHEET", "ROW", "HOST", "TEST_NAME", "COMMAND", "REASON",
	"EXPECTED_STATUS", "ACTUAL_STATUS", "PATTERN_MATCH", "PATTERN_FOUND",
	"OUTPUT_LENGTH", "ERROR_LENGTH",
}

// WriteFailureLog appends one pipe-separated line per failed result to
// out, in the field order spec.md §6 specifies for
// testpilot_failures.log. patternFound records whether the pattern
// layer itself matched: true when a pattern was set and the failure
// category is not PatternMismatch (the layer never ran or it passed),
// false when the category is PatternMismatch.
func (r *Reporter) WriteFailureLog(out io.Writer) error {
	w := out
	if _, err := fmt.Fprintln(w, strings.Join(failureLogHeader, "|")); err != nil {
		return err
	}
	for _, res := range r.results {
		if res.Outcome != types.OutcomeFail {
			continue
		}
		if err := writeFailureLine(w, res); err != nil {
			return err
		}
	}
	return nil
}

func writeFailureLine(w io.Writer, res types.TestResult) error {
	actualStatus := ""
	outputLen, errorLen := 0, 0
	if res.Response != nil {
		actualStatus = strconv.Itoa(res.Response.StatusCode)
		outputLen = len(res.Response.RawStdout)
		errorLen = len(res.Response.RawStderr)
	}
	patternFound := res.PatternMatch != "" && res.Category != types.CategoryPatternMismatch

	fields := []string{
		res.Sheet,
		strconv.Itoa(res.RowIdx),
		res.Host,
		res.TestName,
		res.Command,
		res.FailReason,
		res.ExpectedStatus,
		actualStatus,
		res.PatternMatch,
		strconv.FormatBool(patternFound),
		strconv.Itoa(outputLen),
		strconv.Itoa(errorLen),
	}
	_, err := fmt.Fprintln(w, strings.Join(escapeFields(fields), "|"))
	return err
}

// escapeFields replaces any literal "|" in a field with a visually
// similar character so the pipe-separated format stays parseable;
// command strings and fail reasons are the only fields likely to
// contain one.
func escapeFields(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = strings.ReplaceAll(f, "|", "│")
	}
	return out
}
