// Package command assembles the exact shell command TestPilot will run
// for a step: a direct curl invocation, or that same curl wrapped in a
// kubectl/oc exec for pod-mode SSH targets (spec.md §4.3), ported from
// curl_builder.py's build_curl_command / build_ssh_k8s_curl_command /
// build_pod_mode.
package command

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/psbr27/testPilotOne/internal/logging"
	"github.com/psbr27/testPilotOne/internal/nrf"
	"github.com/psbr27/testPilotOne/internal/types"
)

var log = logging.Get("command")

// Builder assembles commands for one flow run. PayloadsDir resolves
// ".json"-suffixed Payload columns; NRFManager is nil when the target NF
// does not activate instance tracking.
type Builder struct {
	PayloadsDir string
	NRFManager  *nrf.Manager
	SessionID   string
}

// New returns a Builder rooted at payloadsDir. nrfMgr may be nil.
func New(payloadsDir string, nrfMgr *nrf.Manager, sessionID string) *Builder {
	return &Builder{PayloadsDir: payloadsDir, NRFManager: nrfMgr, SessionID: sessionID}
}

// Built is the result of assembling one step: the command to execute
// and the payload actually sent, for audit/report purposes. Skip is set
// when the step targets an NRF instance operation with no active
// instance to act on — C9 turns this into a SKIPPED TestResult instead
// of dispatching a request that can only 404.
type Built struct {
	Command         string
	ResolvedPayload string
	Skip            bool
	SkipReason      string
}

// Build assembles the command for step against host, substituting
// fctx's saved-value placeholders first and delegating to NRF URL
// rewriting when applicable. nrfCtx carries the NRF test-progression
// context.
func (b *Builder) Build(step types.TestStep, host types.Host, podMode bool, nrfCtx types.NRFTestContext, fctx *types.FlowContext) (Built, error) {
	url := SubstituteWithContext(step.URL, fctx)
	if tok, ok := firstUnresolvedPlaceholder(url); ok {
		return Built{}, &types.BuildError{TestName: step.TestName, RowIdx: step.RowIdx, Err: fmt.Errorf("unresolved placeholder %s in url", tok)}
	}

	substitutedPayload := SubstituteWithContext(step.Payload, fctx)
	if tok, ok := firstUnresolvedPlaceholder(substitutedPayload); ok {
		return Built{}, &types.BuildError{TestName: step.TestName, RowIdx: step.RowIdx, Err: fmt.Errorf("unresolved placeholder %s in payload", tok)}
	}
	resolvedPayload, err := b.resolvePayload(substitutedPayload)
	if err != nil {
		return Built{}, &types.BuildError{TestName: step.TestName, RowIdx: step.RowIdx, Err: err}
	}

	rewritten, noActive := b.maybeRewriteForNRF(step, url, resolvedPayload, nrfCtx)
	if noActive {
		return Built{Skip: true, SkipReason: "no active NRF instance for " + string(step.Method) + " " + url}, nil
	}
	url = rewritten

	if step.RawCommand != "" {
		rawCmd := SubstituteWithContext(step.RawCommand, fctx)
		if tok, ok := firstUnresolvedPlaceholder(rawCmd); ok {
			return Built{}, &types.BuildError{TestName: step.TestName, RowIdx: step.RowIdx, Err: fmt.Errorf("unresolved placeholder %s in command", tok)}
		}
		return Built{Command: rawCmd}, nil
	}

	curlCmd := b.buildCurl(url, step, resolvedPayload)

	if podMode {
		return Built{Command: curlCmd, ResolvedPayload: resolvedPayload}, nil
	}
	if host.Namespace != "" && step.PodExec != "" {
		exec := b.buildPodExec(host, step.PodExec, curlCmd)
		return Built{Command: exec, ResolvedPayload: resolvedPayload}, nil
	}
	return Built{Command: curlCmd, ResolvedPayload: resolvedPayload}, nil
}

// maybeRewriteForNRF delegates to C4 when the configured NF is NRF and
// the URL shape matches (build_curl_command's "Handle NRF-specific
// operations" branch). resolvedPayload is the file-loaded/substituted
// body, not the raw Payload column, so a PUT's nfInstanceId is read
// from what will actually be sent (spec.md §4.3 step 2).
func (b *Builder) maybeRewriteForNRF(step types.TestStep, url, resolvedPayload string, nrfCtx types.NRFTestContext) (string, bool) {
	if b.NRFManager == nil {
		return url, false
	}
	outcome := b.NRFManager.HandleOperation(nrf.RewriteRequest{
		SessionID: b.SessionID,
		Context:   nrfCtx,
		Method:    step.Method,
		URL:       url,
		Payload:   resolvedPayload,
	})
	if outcome.NoActiveInstance {
		return url, true
	}
	if outcome.Applied {
		log.Debugw("NRF handler modified URL", "url", outcome.URL)
	}
	return outcome.URL, false
}

// resolvePayload loads a ".json"-suffixed Payload column from disk, or
// validates/reformats an inline JSON payload the same way
// build_curl_command does before shlex-quoting it.
func (b *Builder) resolvePayload(payload string) (string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", nil
	}
	if strings.HasSuffix(payload, ".json") {
		path := filepath.Join(b.PayloadsDir, payload)
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("payload file not found: %s: %w", path, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	var parsed any
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		log.Debugw("payload is not valid JSON, using as-is", "err", err)
		return payload, nil
	}
	compact, err := json.Marshal(parsed)
	if err != nil {
		return payload, nil
	}
	return string(compact), nil
}

// buildCurl renders the curl invocation itself (build_curl_command).
func (b *Builder) buildCurl(url string, step types.TestStep, resolvedPayload string) string {
	var parts []string
	parts = append(parts, "curl", "-v", "--http2-prior-knowledge", "-X", shellQuote(string(step.Method)), shellQuote(url))

	if len(step.Headers) == 0 {
		parts = append(parts, "-H", shellQuote("Content-Type: application/json"))
	} else {
		for _, h := range step.Headers {
			parts = append(parts, "-H", shellQuote(h.Name+": "+h.Value))
		}
	}

	if resolvedPayload != "" && resolvedPayload != "nan" {
		parts = append(parts, "-d", shellQuote(resolvedPayload))
	}

	return strings.Join(parts, " ")
}

// podNamePattern matches build_ssh_k8s_curl_command's awk/grep pipeline
// for finding the pod that backs a named container.
var podNamePattern = regexp.MustCompile(`^[a-z0-9-]+-[a-z0-9]+-[a-z0-9]+$`)

func (b *Builder) buildPodExec(host types.Host, container, curlCmd string) string {
	cli := string(host.CLI)
	if cli == "" {
		cli = "kubectl"
	}
	pattern := container + "-[a-z0-9]+-[a-z0-9]+$"
	podFind := fmt.Sprintf("%s get po -n %s | awk '{print $1}' | grep -E %s | head -n 1",
		cli, shellQuote(host.Namespace), shellQuote(pattern))
	return fmt.Sprintf("%s | xargs -I{} %s exec -it {} -n %s -c %s -- %s",
		podFind, cli, shellQuote(host.Namespace), shellQuote(container), curlCmd)
}

// BuildKubectlLogsCommand assembles a log-tail invocation against the
// same pod container a step's pod_exec targets, for C9's concurrent
// kubectl-logs capture (spec.md §4.9 step 6). since is a kubectl
// --since duration string ("5m"); reuses buildPodExec's pod-discovery
// pattern so the log stream comes from the exact pod the step hit.
func (b *Builder) BuildKubectlLogsCommand(host types.Host, container, since string) string {
	cli := string(host.CLI)
	if cli == "" {
		cli = "kubectl"
	}
	pattern := container + "-[a-z0-9]+-[a-z0-9]+$"
	podFind := fmt.Sprintf("%s get po -n %s | awk '{print $1}' | grep -E %s | head -n 1",
		cli, shellQuote(host.Namespace), shellQuote(pattern))
	return fmt.Sprintf("%s | xargs -I{} %s logs {} -n %s -c %s --since=%s",
		podFind, cli, shellQuote(host.Namespace), shellQuote(container), shellQuote(since))
}

// shellQuote is the Go equivalent of shlex.quote: single-quote the
// value, escaping embedded single quotes POSIX-sh style.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || strings.ContainsRune("@%_-+=:,./", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// substitute replaces {name} tokens using vars; unresolved tokens are
// left intact so downstream validation can surface the miss.
func substitute(s string, vars map[string]string) string {
	if len(vars) == 0 {
		return s
	}
	for k, v := range vars {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}

// SubstituteWithContext replaces {name} placeholders in s using the
// flow's saved-value/placeholder bindings (spec.md §4.9's placeholder
// substitution step, run before every command build).
func SubstituteWithContext(s string, fctx *types.FlowContext) string {
	if fctx == nil {
		return s
	}
	return substitute(s, fctx.PlaceholderMap())
}

// placeholderPattern matches a residual {name} token after substitution
// has run, the shape Build uses to detect a missing binding. The token
// body is restricted to identifier-shaped names so inline JSON payloads
// like {"a":1} are never misread as an unresolved placeholder.
var placeholderPattern = regexp.MustCompile(`\{[A-Za-z_][A-Za-z0-9_.-]*\}`)

// firstUnresolvedPlaceholder reports the first {name} token still present
// in s, if any (spec.md §4.3/§8: a step referencing an unbound placeholder
// is a BuildError, not a request dispatched with the literal token in it).
func firstUnresolvedPlaceholder(s string) (string, bool) {
	tok := placeholderPattern.FindString(s)
	return tok, tok != ""
}
