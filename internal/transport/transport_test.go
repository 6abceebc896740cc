package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psbr27/testPilotOne/internal/types"
)

func TestLocal_Exec_CapturesStdoutAndExitCode(t *testing.T) {
	l := NewLocal()
	out, err := l.Exec(context.Background(), types.Host{Name: "h1"}, "echo hello")
	require.NoError(t, err)
	assert.Contains(t, out.Stdout, "hello")
	assert.Equal(t, 0, out.ExitCode)
}

func TestLocal_Exec_NonZeroExitIsNotATransportError(t *testing.T) {
	l := NewLocal()
	out, err := l.Exec(context.Background(), types.Host{Name: "h1"}, "exit 7")
	require.NoError(t, err)
	assert.Equal(t, 7, out.ExitCode)
}

func TestLocal_Close_NoOp(t *testing.T) {
	assert.NoError(t, NewLocal().Close())
}

func TestMock_Exec_RoundTripsAgainstHTTPServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	m := NewMock(srv.URL)
	cmd := `curl -v --http2-prior-knowledge -X 'POST' '/nf-instances' -H 'Content-Type: application/json' -d '{"a":1}'`

	out, err := m.Exec(context.Background(), types.Host{Name: "h1"}, cmd)
	require.NoError(t, err)
	assert.Contains(t, out.Stdout, `{"ok":true}`)
	assert.Contains(t, out.Stderr, "201")
	assert.Contains(t, out.Stderr, "Content-Type")
}

func TestMock_Close_NoOp(t *testing.T) {
	assert.NoError(t, NewMock("http://localhost:8082").Close())
}

func TestParseCurlCommand_ExtractsAllParts(t *testing.T) {
	cmd := `curl -v --http2-prior-knowledge -X 'PUT' 'https://nrf:8443/x' -H 'Content-Type: application/json' -H 'Accept: application/json' -d '{"a":1}'`
	method, url, headers, body := parseCurlCommand(cmd)
	assert.Equal(t, "PUT", method)
	assert.Equal(t, "https://nrf:8443/x", url)
	assert.Equal(t, "application/json", headers["Content-Type"])
	assert.Equal(t, "application/json", headers["Accept"])
	assert.Equal(t, `{"a":1}`, body)
}

func TestParseCurlCommand_DefaultsToGETWhenNoDashX(t *testing.T) {
	method, _, _, _ := parseCurlCommand(`curl -v 'https://nrf:8443/x'`)
	assert.Equal(t, "GET", method)
}

func TestRebaseURL_RelativePathConcatenatesWithBase(t *testing.T) {
	assert.Equal(t, "http://localhost:8082/ping", rebaseURL("/ping", "http://localhost:8082"))
}

func TestRebaseURL_AbsoluteURLSwapsAuthorityKeepingPath(t *testing.T) {
	got := rebaseURL("https://nrf.example.com:8443/nf-instances/1", "http://localhost:8082")
	assert.Equal(t, "http://localhost:8082/nf-instances/1", got)
}

func TestSSHClientConfig_RequiresPasswordOrKeyPath(t *testing.T) {
	_, err := sshClientConfig(types.Host{Name: "h1"}, types.SSHSettings{})
	assert.Error(t, err)
}

func TestSSHClientConfig_PasswordAuthSucceeds(t *testing.T) {
	host := types.Host{Name: "h1", Username: "u", Auth: types.Auth{Password: "pw"}}
	cfg, err := sshClientConfig(host, types.SSHSettings{})
	require.NoError(t, err)
	assert.Equal(t, "u", cfg.User)
	assert.Len(t, cfg.Auth, 1)
}

func TestSSHClientConfig_MissingKeyFileErrors(t *testing.T) {
	host := types.Host{Name: "h1", Auth: types.Auth{KeyPath: "/nonexistent/key"}}
	_, err := sshClientConfig(host, types.SSHSettings{})
	assert.Error(t, err)
}

func TestSSH_Close_NoClientsIsNoOp(t *testing.T) {
	s := NewSSH(types.SSHSettings{})
	assert.NoError(t, s.Close())
}
