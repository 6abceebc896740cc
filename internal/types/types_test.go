package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigError_UnwrapsToErrConfig(t *testing.T) {
	err := &ConfigError{Field: "hosts", Err: errors.New("boom")}
	assert.True(t, errors.Is(err, ErrConfig))
	assert.Contains(t, err.Error(), "hosts")
}

func TestBuildError_UnwrapsToErrBuild(t *testing.T) {
	err := &BuildError{TestName: "t1", RowIdx: 2, Err: errors.New("boom")}
	assert.True(t, errors.Is(err, ErrBuild))
	assert.Contains(t, err.Error(), "t1")
}

func TestTransportError_UnwrapsToErrTransport(t *testing.T) {
	err := &TransportError{Host: "h1", Err: errors.New("conn refused")}
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestInputError_UnwrapsToErrInput(t *testing.T) {
	err := &InputError{Sheet: "S", RowIdx: 4, Err: errors.New("bad method")}
	assert.True(t, errors.Is(err, ErrInput))
}

func TestParseError_UnwrapsToErrParse(t *testing.T) {
	err := &ParseError{Snippet: "garbage", Err: errors.New("bad")}
	assert.True(t, errors.Is(err, ErrParse))
}

func TestHost_Validate_RequiresExactlyOneAuthMethodWhenSSH(t *testing.T) {
	assert.Error(t, Host{Name: "h1"}.Validate(true))
	assert.Error(t, Host{Name: "h1", Auth: Auth{Password: "p", KeyPath: "k"}}.Validate(true))
	assert.NoError(t, Host{Name: "h1", Auth: Auth{Password: "p"}}.Validate(true))
	assert.NoError(t, Host{Name: "h1", Auth: Auth{KeyPath: "k"}}.Validate(true))
}

func TestHost_Validate_SkipsAuthCheckWhenNotSSH(t *testing.T) {
	assert.NoError(t, Host{Name: "h1"}.Validate(false))
}

func TestHost_Addr_DefaultsPortTo22(t *testing.T) {
	assert.Equal(t, "10.0.0.1:22", Host{Hostname: "10.0.0.1"}.Addr())
	assert.Equal(t, "10.0.0.1:2222", Host{Hostname: "10.0.0.1", Port: 2222}.Addr())
}

func TestConfig_IsNRF_MatchesNRFAliases(t *testing.T) {
	assert.True(t, Config{NFName: "NRF"}.IsNRF())
	assert.True(t, Config{NFName: " ocnrf "}.IsNRF())
	assert.False(t, Config{NFName: "SCP"}.IsNRF())
}

func TestConfig_HostByName_FindsMatch(t *testing.T) {
	cfg := Config{Hosts: []Host{{Name: "h1"}, {Name: "h2"}}}
	h, ok := cfg.HostByName("h2")
	assert.True(t, ok)
	assert.Equal(t, "h2", h.Name)

	_, ok = cfg.HostByName("missing")
	assert.False(t, ok)
}

func TestConfig_SelectedHosts_EmptyConnectToReturnsAll(t *testing.T) {
	cfg := Config{Hosts: []Host{{Name: "h1"}, {Name: "h2"}}}
	assert.Len(t, cfg.SelectedHosts(), 2)
}

func TestConfig_SelectedHosts_FiltersByConnectTo(t *testing.T) {
	cfg := Config{Hosts: []Host{{Name: "h1"}, {Name: "h2"}}, ConnectTo: []string{"h2"}}
	got := cfg.SelectedHosts()
	assert.Len(t, got, 1)
	assert.Equal(t, "h2", got[0].Name)
}

func TestFlowContext_SaveAndGet(t *testing.T) {
	fctx := NewFlowContext()
	fctx.Save("nfInstanceId", "abc-1")
	v, ok := fctx.Get("nfInstanceId")
	assert.True(t, ok)
	assert.Equal(t, "abc-1", v)
}

func TestFlowContext_PlaceholderMapMergesPlaceholdersAndSavedStrings(t *testing.T) {
	fctx := NewFlowContext()
	fctx.SetPlaceholder("hostId", "h1")
	fctx.Save("nfInstanceId", "abc-1")
	fctx.Save("count", 3) // non-string saved values are excluded

	m := fctx.PlaceholderMap()
	assert.Equal(t, "h1", m["hostId"])
	assert.Equal(t, "abc-1", m["nfInstanceId"])
	_, ok := m["count"]
	assert.False(t, ok)
}

func TestTestStep_HasReqsPerSec(t *testing.T) {
	assert.False(t, TestStep{}.HasReqsPerSec())
	assert.True(t, TestStep{ReqsPerSec: 5}.HasReqsPerSec())
}
