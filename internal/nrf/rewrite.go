package nrf

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/psbr27/testPilotOne/internal/types"
)

// Manager owns one Tracker per session ID, the Go shape of
// sequence_manager.py's module-level _session_managers map.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Tracker
}

// NewManager returns an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Tracker)}
}

// Session returns the tracker for sessionID, creating it on first use
// (get_or_create_session_manager). Callers serialize session lookups at
// a higher level (one orchestrator goroutine per flow run), so no
// internal locking is needed here beyond map safety during setup.
func (m *Manager) Session(sessionID string) *Tracker {
	if sessionID == "" {
		sessionID = "default"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.sessions[sessionID]; ok {
		return t
	}
	log.Infow("creating NRF session manager", "session_id", sessionID)
	t := New()
	m.sessions[sessionID] = t
	return t
}

// CleanupAllSessions tears down every tracked session, typically at
// suite end (cleanup_all_sessions).
func (m *Manager) CleanupAllSessions() {
	m.mu.Lock()
	defer m.mu.Unlock()
	log.Infow("cleaning up NRF sessions", "count", len(m.sessions))
	for id, t := range m.sessions {
		t.CleanupAll("session_cleanup_" + id)
	}
	m.sessions = make(map[string]*Tracker)
}

// Sessions returns a snapshot of every session tracker known so far,
// keyed by session ID, for callers that persist or report per-session
// diagnostics after a run (spec.md §2's NRF diagnostic snapshots).
func (m *Manager) Sessions() map[string]*Tracker {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*Tracker, len(m.sessions))
	for id, t := range m.sessions {
		out[id] = t
	}
	return out
}

// RewriteRequest is what HandleOperation needs to decide how (or whether)
// to rewrite a request URL for NRF instance tracking.
type RewriteRequest struct {
	SessionID string
	Context   types.NRFTestContext
	Method    types.Method
	URL       string
	Payload   string // resolved request body, JSON text or empty
}

// OperationOutcome reports what HandleOperation decided: whether the
// URL was rewritten, and, when it wasn't, whether that's because the
// operation needed an active instance and none existed (the "skip
// sentinel" C9 turns into a SKIPPED TestResult rather than dispatching
// a request that can only 404).
type OperationOutcome struct {
	URL              string
	Applied          bool
	NoActiveInstance bool
}

// HandleOperation is the Go analog of handle_nrf_operation: it mutates
// tracker state for PUT/GET/PATCH/DELETE against an nf-instances
// collection URL and returns the URL with the active nfInstanceId
// appended.
func (m *Manager) HandleOperation(req RewriteRequest) OperationOutcome {
	if !shouldApplyInstanceID(req.URL) {
		log.Debugw("URL does not match nfInstanceId pattern", "url", req.URL)
		return OperationOutcome{URL: req.URL}
	}

	tracker := m.Session(req.SessionID)
	tracker.TrackTestProgression(req.Context)

	switch req.Method {
	case types.MethodPut:
		nfID := extractNFInstanceID(req.Payload)
		if nfID == "" {
			log.Warnw("PUT operation but no nfInstanceId found in payload")
			return OperationOutcome{URL: req.URL}
		}
		tracker.HandlePut(req.Context, nfID)
		log.Infow("PUT operation registered nfInstanceId", "nfInstanceId", nfID)
		return OperationOutcome{URL: req.URL + nfID, Applied: true}

	case types.MethodGet, types.MethodPatch:
		nfID, ok := tracker.ActiveInstanceID(req.Context, req.Method)
		if !ok {
			log.Warnw("operation but no active nfInstanceId found", "method", req.Method)
			return OperationOutcome{URL: req.URL, NoActiveInstance: true}
		}
		log.Infow("operation using nfInstanceId", "method", req.Method, "nfInstanceId", nfID)
		return OperationOutcome{URL: req.URL + nfID, Applied: true}

	case types.MethodDelete:
		nfID, ok := tracker.HandleDelete(req.Context)
		if !ok {
			log.Warnw("DELETE operation but no active nfInstanceId found")
			return OperationOutcome{URL: req.URL, NoActiveInstance: true}
		}
		return OperationOutcome{URL: req.URL + nfID, Applied: true}

	default:
		log.Debugw("method does not require nfInstanceId handling", "method", req.Method)
		return OperationOutcome{URL: req.URL}
	}
}

// shouldApplyInstanceID implements the URL-shape gate shared by
// curl_builder.py's legacy path and sequence_manager.py's
// _should_apply_nf_instance_id: must touch the nf-instances collection,
// must not already carry query parameters.
func shouldApplyInstanceID(url string) bool {
	const marker = "nnrf-nfm/v1/nf-instances"
	if !strings.Contains(url, marker) {
		return false
	}
	if strings.Contains(url, "?") {
		return false
	}
	return strings.HasSuffix(url, marker) || strings.Contains(url, marker+"/")
}

// extractNFInstanceID pulls nfInstanceId out of a PUT payload, checking
// both the top level and a nested nfProfile object, and the first
// matching element when the payload is a JSON array
// (_extract_nf_instance_id).
func extractNFInstanceID(payload string) string {
	if payload == "" {
		return ""
	}
	var asObject map[string]any
	if err := json.Unmarshal([]byte(payload), &asObject); err == nil {
		if id := stringField(asObject, "nfInstanceId"); id != "" {
			return id
		}
		if profile, ok := asObject["nfProfile"].(map[string]any); ok {
			if id := stringField(profile, "nfInstanceId"); id != "" {
				return id
			}
		}
		return ""
	}
	var asArray []map[string]any
	if err := json.Unmarshal([]byte(payload), &asArray); err == nil {
		for _, item := range asArray {
			if id := stringField(item, "nfInstanceId"); id != "" {
				return id
			}
		}
	}
	return ""
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
