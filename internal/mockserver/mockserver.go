// Package mockserver implements the hermetic HTTP mock server spec.md
// §9 names as an out-of-scope collaborator, specified only at its
// interface: `GET /mock/sheets`, `GET /mock/tests`,
// `GET /mock/test/<sheet>/<name>`, and a wildcard route returning a
// recorded response keyed by (sheet, test_name, method, path). Ported
// from enhanced_mock_server.py's primary/endpoint lookup strategy,
// trimmed to the fixed set of endpoints spec.md actually names (no
// kubectl mock routes, no query-parameter candidate scoring — those are
// enhanced_mock_server.py features the distillation didn't carry
// forward).
//
// Server follows titus's pkg/serve lifecycle shape (NewServer, Run(ctx))
// adapted from a stdin/stdout protocol to net/http.
package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/psbr27/testPilotOne/internal/logging"
)

var log = logging.Get("mockserver")

// RecordedResponse is one fixture entry: the response to return when a
// request matches its key.
type RecordedResponse struct {
	StatusCode int    `yaml:"status_code"`
	Body       any    `yaml:"body"`
	BodyText   string `yaml:"body_text,omitempty"`
}

// testEntry groups every endpoint recorded for one (sheet, test_name)
// pair, mirroring enhanced_mock_server.py's primary_mappings value
// shape closely enough to support the same lookup strategy.
type testEntry struct {
	Sheet     string
	TestName  string
	Endpoints map[string]RecordedResponse // "METHOD::/path" -> response
}

// Fixtures is the --data-file document shape: a flat list of recorded
// (sheet, test, method, path) -> response entries, decoded from YAML.
type Fixtures struct {
	Entries []FixtureEntry `yaml:"entries"`
}

// FixtureEntry is one row of the fixture file.
type FixtureEntry struct {
	Sheet    string            `yaml:"sheet"`
	TestName string            `yaml:"test_name"`
	Method   string            `yaml:"method"`
	Path     string            `yaml:"path"`
	Response RecordedResponse  `yaml:"response"`
}

// LoadFixtures reads and decodes a YAML fixture file (titus's
// pkg/rule/pkg/validator convention of loading test fixtures as YAML).
func LoadFixtures(path string) (Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, fmt.Errorf("reading fixture file: %w", err)
	}
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fixtures{}, fmt.Errorf("parsing fixture file: %w", err)
	}
	return f, nil
}

// Server is the embedded mock HTTP server. One instance serves one run.
type Server struct {
	mu sync.RWMutex

	primary map[string]*testEntry // "sheet::test" -> entry
	byTest  map[string]*testEntry // "test" -> entry (alternative lookup, no sheet given)

	httpServer *http.Server
	addr       string
}

// NewServer builds a Server from fixtures, listening on addr (e.g.
// ":8082").
func NewServer(addr string, fixtures Fixtures) *Server {
	s := &Server{
		addr:    addr,
		primary: make(map[string]*testEntry),
		byTest:  make(map[string]*testEntry),
	}
	s.index(fixtures)

	mux := http.NewServeMux()
	mux.HandleFunc("/mock/sheets", s.handleSheets)
	mux.HandleFunc("/mock/tests", s.handleTests)
	mux.HandleFunc("/mock/test/", s.handleTestDetails)
	mux.HandleFunc("/", s.handleWildcard)

	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

func (s *Server) index(fixtures Fixtures) {
	for _, e := range fixtures.Entries {
		key := e.Sheet + "::" + e.TestName
		entry, ok := s.primary[key]
		if !ok {
			entry = &testEntry{Sheet: e.Sheet, TestName: e.TestName, Endpoints: make(map[string]RecordedResponse)}
			s.primary[key] = entry
			s.byTest[e.TestName] = entry
		}
		endpointKey := strings.ToUpper(e.Method) + "::" + normalizePath(e.Path)
		entry.Endpoints[endpointKey] = e.Response
	}
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}

// Run starts serving and blocks until ctx is canceled, then shuts down
// gracefully (titus pkg/serve's Run(ctx) shape).
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infow("mock server listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleSheets(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]bool{}
	var sheets []string
	for _, e := range s.primary {
		if !seen[e.Sheet] {
			seen[e.Sheet] = true
			sheets = append(sheets, e.Sheet)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sheets": sheets, "total": len(sheets)})
}

func (s *Server) handleTests(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sheetFilter := r.URL.Query().Get("sheet")
	tests := map[string]any{}
	for key, e := range s.primary {
		if sheetFilter != "" && e.Sheet != sheetFilter {
			continue
		}
		tests[key] = map[string]string{"sheet_name": e.Sheet, "test_name": e.TestName}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tests": tests, "total": len(tests)})
}

// handleTestDetails serves GET /mock/test/<sheet>/<name>.
func (s *Server) handleTestDetails(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/mock/test/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "test not found"})
		return
	}
	sheet, test := parts[0], parts[1]

	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.primary[sheet+"::"+test]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("Test not found: %s::%s", sheet, test)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sheet_name": entry.Sheet,
		"test_name":  entry.TestName,
		"endpoints":  entry.Endpoints,
	})
}

// handleWildcard implements find_best_response's primary strategy: look
// up by the X-Test-Sheet/X-Test-Name headers first, falling back to
// X-Test-Name alone, falling back to a generic status-code response
// when nothing matches (generate_generic_response).
func (s *Server) handleWildcard(w http.ResponseWriter, r *http.Request) {
	sheet := r.Header.Get("X-Test-Sheet")
	test := r.Header.Get("X-Test-Name")
	endpointKey := r.Method + "::" + normalizePath(r.URL.Path)

	s.mu.RLock()
	resp, ok := s.lookup(sheet, test, endpointKey)
	s.mu.RUnlock()

	if ok {
		writeRecorded(w, resp)
		return
	}
	writeGeneric(w, r.Method)
}

func (s *Server) lookup(sheet, test, endpointKey string) (RecordedResponse, bool) {
	if sheet != "" && test != "" {
		if entry, ok := s.primary[sheet+"::"+test]; ok {
			if resp, ok := entry.Endpoints[endpointKey]; ok {
				return resp, true
			}
		}
	}
	if test != "" {
		if entry, ok := s.byTest[test]; ok {
			if resp, ok := entry.Endpoints[endpointKey]; ok {
				return resp, true
			}
		}
	}
	return RecordedResponse{}, false
}

func writeRecorded(w http.ResponseWriter, resp RecordedResponse) {
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	if resp.Body != nil {
		writeJSON(w, status, resp.Body)
		return
	}
	w.WriteHeader(status)
	if resp.BodyText != "" {
		w.Write([]byte(resp.BodyText))
	}
}

// writeGeneric mirrors generate_generic_response's per-method defaults
// for requests with no recorded fixture.
func writeGeneric(w http.ResponseWriter, method string) {
	switch method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{"message": "mock response"})
	case http.MethodPost, http.MethodPut:
		w.WriteHeader(http.StatusCreated)
	case http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": fmt.Sprintf("method %s not implemented", method)})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorw("encoding mock response", "err", err)
	}
}
