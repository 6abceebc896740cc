package types

// Header is a single ordered request header. A slice (not a map) preserves
// source order and allows duplicate header names, as curl -H does.
type Header struct {
	Name  string
	Value string
}

// Method is an HTTP method recognized by the command builder.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodPatch  Method = "PATCH"
	MethodDelete Method = "DELETE"
)

// TestStep is one row of a flow, immutable after load (spec.md §3).
type TestStep struct {
	RowIdx         int
	TestName       string
	Method         Method
	URL            string
	Headers        []Header
	Payload        string // literal JSON/text, or a payloads-folder filename
	ExpectedStatus string // "200" | "2xx" | "200,201" | "410-415" | ""
	PatternMatch   string
	ResponsePayload string // literal or file-ref, compared structurally
	PodExec        string // container hint; empty means no pod exec
	SaveAs         string
	CompareWith    string
	ReqsPerSec     float64 // 0 means "unset", fall through the rate chain

	// RawCommand holds a full curl/kubectl/oc invocation when the source
	// row's "Command" cell overrides the structured columns (spec.md §6).
	// When non-empty, the Command Builder skips its own assembly and uses
	// this string verbatim (after placeholder substitution).
	RawCommand string
}

// HasReqsPerSec reports whether the step specifies its own rate.
func (s TestStep) HasReqsPerSec() bool {
	return s.ReqsPerSec > 0
}

// TestFlow is an ordered sequence of steps sharing a TestName (spec.md §3).
type TestFlow struct {
	Sheet    string
	TestName string
	Steps    []TestStep
}
