package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/psbr27/testPilotOne/internal/types"
)

// Mock executes the request a built curl command describes directly
// against an HTTP endpoint via retryablehttp, instead of shelling out to
// curl. Used for the hermetic "direct HTTP" execution mode (spec.md §1,
// §9) and for --execution-mode mock runs against internal/mockserver.
type Mock struct {
	client  *retryablehttp.Client
	baseURL string // overrides the host scheme/authority when non-empty
}

// NewMock returns a Mock transport. When baseURL is non-empty, every
// request is redirected there regardless of the curl command's own
// host/port, the way a run against internal/mockserver does.
func NewMock(baseURL string) *Mock {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.Logger = nil
	return &Mock{client: client, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Exec parses the method/URL/headers/body back out of a curl command
// string assembled by internal/command, and performs it as a real HTTP
// round trip. This keeps C3's command-building logic as the single
// source of truth for request shape while letting the mock path skip
// process-spawning entirely.
func (m *Mock) Exec(ctx context.Context, host types.Host, command string) (RawOutput, error) {
	method, url, headers, body := parseCurlCommand(command)
	if m.baseURL != "" {
		url = rebaseURL(url, m.baseURL)
	}

	start := time.Now()
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, strings.NewReader(body))
	if err != nil {
		return RawOutput{}, &types.TransportError{Host: host.Name, Err: err}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return RawOutput{}, &types.TransportError{Host: host.Name, Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	out := RawOutput{
		Stdout:     string(bodyBytes),
		Stderr:     formatCurlVerboseTrace(resp),
		ExitCode:   0,
		DurationMS: time.Since(start).Milliseconds(),
	}
	return out, nil
}

func (m *Mock) Close() error { return nil }

// parseCurlCommand extracts method, URL, headers, and body from a curl
// command string produced by internal/command.Builder.buildCurl. It is
// the inverse of that function, not a general-purpose shell parser.
func parseCurlCommand(cmd string) (method, url string, headers map[string]string, body string) {
	headers = make(map[string]string)
	method = "GET"

	if m := regexp.MustCompile(`-X\s+'([^']*)'`).FindStringSubmatch(cmd); m != nil {
		method = m[1]
	}
	if m := regexp.MustCompile(`-X\s+'[^']*'\s+'([^']*)'`).FindStringSubmatch(cmd); m != nil {
		url = m[1]
	}
	for _, m := range regexp.MustCompile(`-H\s+'([^:]+):\s*([^']*)'`).FindAllStringSubmatch(cmd, -1) {
		headers[m[1]] = m[2]
	}
	if m := regexp.MustCompile(`-d\s+'((?:[^'\\]|\\.)*)'`).FindStringSubmatch(cmd); m != nil {
		body = strings.ReplaceAll(m[1], `'"'"'`, "'")
	}
	return method, url, headers, body
}

func rebaseURL(originalURL, baseURL string) string {
	idx := strings.Index(originalURL, "://")
	if idx < 0 {
		return baseURL + originalURL
	}
	rest := originalURL[idx+3:]
	slash := strings.Index(rest, "/")
	if slash < 0 {
		return baseURL
	}
	return baseURL + rest[slash:]
}

// formatCurlVerboseTrace renders the "< HTTP/... " status and header
// lines curl -v writes to stderr, so response.Parse's stderr scan finds
// them exactly as it would for a real curl invocation.
func formatCurlVerboseTrace(resp *http.Response) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "< HTTP/%d.%d %s\n", resp.ProtoMajor, resp.ProtoMinor, resp.Status)
	for k, vals := range resp.Header {
		for _, v := range vals {
			fmt.Fprintf(&b, "< %s: %s\n", k, v)
		}
	}
	return b.String()
}
