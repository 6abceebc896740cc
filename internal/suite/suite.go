// Package suite defines the interface spec.md §1 leaves to an external
// collaborator — "spreadsheet parsing (reads cells → yields flows)" —
// plus one minimal concrete loader: a JSON flow document, used by tests
// and by `testpilot run` in every execution mode in place of a real
// .xlsx reader, which
// stays out of scope per spec.md §1's explicit exclusion.
package suite

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/psbr27/testPilotOne/internal/types"
)

// Source yields the flows contained in a test suite, grouped by sheet.
// A real spreadsheet parser and the JSONLoader below both implement it.
type Source interface {
	// Load returns every flow in the suite, in source (sheet, row) order.
	Load() ([]types.TestFlow, error)
}

// JSONLoader reads a flow document shaped as a flat list of rows, each
// carrying its own sheet/test_name — the column set spec.md §6 names,
// expressed as JSON fields instead of spreadsheet cells. Rows sharing a
// (sheet, test_name) pair are grouped into one TestFlow, in the order
// they first appear in the file, mirroring the "rows with the same
// Test_Name form one flow, in sheet order" rule spec.md §6 states for
// real spreadsheets.
type JSONLoader struct {
	Path string
}

// jsonRow is the on-disk shape of one spreadsheet row.
type jsonRow struct {
	Sheet           string        `json:"sheet"`
	TestName        string        `json:"test_name"`
	RowIdx          int           `json:"row_idx"`
	Command         string        `json:"command,omitempty"`
	Method          string        `json:"method,omitempty"`
	URL             string        `json:"url,omitempty"`
	Headers         []jsonHeader  `json:"headers,omitempty"`
	Payload         string        `json:"payload,omitempty"`
	ExpectedStatus  string        `json:"expected_status,omitempty"`
	PatternMatch    string        `json:"pattern_match,omitempty"`
	ResponsePayload string        `json:"response_payload,omitempty"`
	SaveAs          string        `json:"save_as,omitempty"`
	CompareWith     string        `json:"compare_with,omitempty"`
	PodExec         string        `json:"pod_exec,omitempty"`
	ReqsPerSec      float64       `json:"reqs_sec,omitempty"`
}

type jsonHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Load reads l.Path and groups its rows into TestFlows.
func (l JSONLoader) Load() ([]types.TestFlow, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("reading suite file: %w", err)
	}
	var rows []jsonRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, &types.InputError{Err: fmt.Errorf("parsing suite JSON: %w", err)}
	}
	return groupRows(rows)
}

// groupRows collects rows sharing (sheet, test_name) into one TestFlow
// each, preserving first-seen order for both sheets and flows within a
// sheet (spec.md §6's "in sheet order" requirement), then sorts each
// flow's steps by row_idx in case the source listed them out of order.
func groupRows(rows []jsonRow) ([]types.TestFlow, error) {
	type key struct{ sheet, test string }
	order := make([]key, 0)
	byKey := make(map[key]*types.TestFlow)

	for _, row := range rows {
		if row.TestName == "" {
			return nil, &types.InputError{Sheet: row.Sheet, RowIdx: row.RowIdx, Err: fmt.Errorf("row missing test_name")}
		}
		step, err := stepFromRow(row)
		if err != nil {
			return nil, &types.InputError{Sheet: row.Sheet, RowIdx: row.RowIdx, Err: err}
		}

		k := key{row.Sheet, row.TestName}
		flow, ok := byKey[k]
		if !ok {
			flow = &types.TestFlow{Sheet: row.Sheet, TestName: row.TestName}
			byKey[k] = flow
			order = append(order, k)
		}
		flow.Steps = append(flow.Steps, step)
	}

	flows := make([]types.TestFlow, 0, len(order))
	for _, k := range order {
		flow := byKey[k]
		sort.SliceStable(flow.Steps, func(i, j int) bool { return flow.Steps[i].RowIdx < flow.Steps[j].RowIdx })
		flows = append(flows, *flow)
	}
	return flows, nil
}

// stepFromRow builds a TestStep from one decoded row, recognizing the
// Command-cell override rule: a non-empty Command means the structured
// method/URL/headers/payload columns are not authoritative, so the
// Command Builder must use RawCommand verbatim (spec.md §6, §9).
func stepFromRow(row jsonRow) (types.TestStep, error) {
	step := types.TestStep{
		RowIdx:          row.RowIdx,
		TestName:        row.TestName,
		URL:             row.URL,
		Payload:         row.Payload,
		ExpectedStatus:  row.ExpectedStatus,
		PatternMatch:    row.PatternMatch,
		ResponsePayload: row.ResponsePayload,
		SaveAs:          row.SaveAs,
		CompareWith:     row.CompareWith,
		PodExec:         row.PodExec,
		ReqsPerSec:      row.ReqsPerSec,
		RawCommand:      row.Command,
	}
	for _, h := range row.Headers {
		step.Headers = append(step.Headers, types.Header{Name: h.Name, Value: h.Value})
	}

	if row.Command != "" {
		return step, nil
	}

	method, err := normalizeMethod(row.Method)
	if err != nil {
		return types.TestStep{}, err
	}
	step.Method = method
	return step, nil
}

func normalizeMethod(raw string) (types.Method, error) {
	switch raw {
	case "GET", "get":
		return types.MethodGet, nil
	case "POST", "post":
		return types.MethodPost, nil
	case "PUT", "put":
		return types.MethodPut, nil
	case "PATCH", "patch":
		return types.MethodPatch, nil
	case "DELETE", "delete":
		return types.MethodDelete, nil
	default:
		return "", fmt.Errorf("unknown method %q", raw)
	}
}
