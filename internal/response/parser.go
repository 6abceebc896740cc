// Package response reconstructs a types.Response from the raw
// stdout/stderr of a curl (or kubectl-exec-curl) invocation, following
// spec.md §4.6's status/header/body scan over a curl -v trace, in the
// line-scanning style of response_parser.py's parse_curl_output.
package response

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/psbr27/testPilotOne/internal/logging"
	"github.com/psbr27/testPilotOne/internal/types"
)

var log = logging.Get("response")

var (
	statusLinePattern = regexp.MustCompile(`^< HTTP/[12](?:\.\d)? (\d{3})`)
	headerLinePattern = regexp.MustCompile(`^< ([^:]+):\s*(.*)$`)
	ttyWarningPattern = regexp.MustCompile(`(?i)Unable to use a TTY`)
	reasonPattern     = regexp.MustCompile(`Reason:\s*(.*)`)
)

// Parse builds a types.Response from a transport's raw output. durationMS
// is the wall-clock time the transport measured for the command.
func Parse(stdout, stderr string, durationMS int64) *types.Response {
	resp := &types.Response{
		RawStdout:  stdout,
		RawStderr:  stderr,
		DurationMS: durationMS,
	}

	resp.StatusCode = lastStatusCode(stderr)
	headers := parseHeaders(stderr)
	if len(headers) > 0 {
		resp.Headers = headers
	}

	body := stripKubectlTTYWarnings(stdout)
	resp.BodyText = body
	if body != "" {
		resp.BodyBytes = []byte(body)
		var parsed any
		if err := json.Unmarshal([]byte(body), &parsed); err != nil {
			log.Debugw("body did not parse as JSON, leaving body_json nil", "err", err)
		} else {
			resp.BodyJSON = parsed
		}
	}

	// kubectl-logs heuristic: no status, no JSON body, no headers means
	// the "response" is actually pod log lines captured via exec.
	if resp.StatusCode == 0 && resp.BodyJSON == nil && len(headers) == 0 {
		resp.IsKubectlLogs = true
		log.Debugw("treating output as kubectl logs", "len", len(body))
	}

	return resp
}

// Reason extracts the curl "Reason:" annotation some NF responses carry
// in their verbose trace, used for diagnostics (not validated against).
func Reason(trace string) string {
	if m := reasonPattern.FindStringSubmatch(trace); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// lastStatusCode scans stderr for "< HTTP/..." lines and returns the
// status of the last one, per spec.md §4.6 step 1 (curl -v repeats the
// status line across HTTP/2 CONTINUATION or redirect chains; the final
// line reflects the actual response delivered).
func lastStatusCode(stderr string) int {
	status := 0
	for _, line := range strings.Split(stderr, "\n") {
		if m := statusLinePattern.FindStringSubmatch(strings.TrimRight(line, "\r")); m != nil {
			status, _ = strconv.Atoi(m[1])
		}
	}
	return status
}

// parseHeaders extracts "< key: value" lines curl -v writes to stderr
// into a case-insensitive multimap.
func parseHeaders(stderr string) map[string][]string {
	headers := make(map[string][]string)
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimRight(line, "\r")
		m := headerLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(m[1]))
		headers[key] = append(headers[key], strings.TrimSpace(m[2]))
	}
	return headers
}

// stripKubectlTTYWarnings removes kubectl exec's "Unable to use a TTY"
// advisory lines so they are never mistaken for body content
// (spec.md §4.6 step 4). When no such line is present, stdout is
// returned untouched — the body is stdout byte-for-byte (spec.md §4.6/
// §8), so nothing is trimmed on the common path.
func stripKubectlTTYWarnings(stdout string) string {
	if !ttyWarningPattern.MatchString(stdout) {
		return stdout
	}
	var kept []string
	for _, line := range strings.Split(stdout, "\n") {
		if ttyWarningPattern.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
