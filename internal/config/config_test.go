package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psbr27/testPilotOne/internal/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_ValidConfigDecodesHosts(t *testing.T) {
	path := writeConfig(t, `{
		"use_ssh": false,
		"hosts": [{"name": "h1", "hostname": "127.0.0.1"}]
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Hosts, 1)
	assert.Equal(t, "h1", cfg.Hosts[0].Name)
}

func TestLoad_MissingFileReturnsConfigError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfig)
}

func TestLoad_InvalidJSONReturnsConfigError(t *testing.T) {
	path := writeConfig(t, `{not valid json`)
	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfig)
}

func TestLoad_ResolvesEnvVarTokens(t *testing.T) {
	t.Setenv("TESTPILOT_TEST_HOSTNAME", "resolved-host")
	path := writeConfig(t, `{
		"use_ssh": false,
		"hosts": [{"name": "h1", "hostname": "${TESTPILOT_TEST_HOSTNAME}"}]
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "resolved-host", cfg.Hosts[0].Hostname)
}

func TestLoad_MissingRequiredEnvVarFails(t *testing.T) {
	os.Unsetenv("TESTPILOT_UNSET_VAR_XYZ")
	path := writeConfig(t, `{
		"use_ssh": false,
		"hosts": [{"name": "h1", "hostname": "${TESTPILOT_UNSET_VAR_XYZ}"}]
	}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfig)
}

func TestValidate_RequiresAtLeastOneHost(t *testing.T) {
	err := Validate(&types.Config{})
	require.Error(t, err)
	var cfgErr *types.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "hosts", cfgErr.Field)
}

func TestValidate_RejectsDuplicateHostNames(t *testing.T) {
	cfg := &types.Config{Hosts: []types.Host{{Name: "h1"}, {Name: "h1"}}}
	err := Validate(cfg)
	assert.Error(t, err)
}

func TestValidate_RejectsUnknownConnectToHost(t *testing.T) {
	cfg := &types.Config{Hosts: []types.Host{{Name: "h1"}}, ConnectTo: []string{"missing"}}
	err := Validate(cfg)
	assert.Error(t, err)
}

func TestValidate_RejectsNonPositiveRateWhenEnabled(t *testing.T) {
	cfg := &types.Config{
		Hosts:     []types.Host{{Name: "h1"}},
		RateLimit: types.RateLimiting{Enabled: true, DefaultReqsPerS: 0},
	}
	err := Validate(cfg)
	assert.Error(t, err)
}

func TestValidate_AcceptsWellFormedConfig(t *testing.T) {
	cfg := &types.Config{Hosts: []types.Host{{Name: "h1"}}}
	assert.NoError(t, Validate(cfg))
}

func TestResolveEnvVars_DefaultFallback(t *testing.T) {
	os.Unsetenv("TESTPILOT_ABSENT_VAR")
	got, err := ResolveEnvVars("${TESTPILOT_ABSENT_VAR:-fallback}")
	require.NoError(t, err)
	assert.Equal(t, "fallback", got)
}

func TestResolveEnvVars_WalksNestedStructures(t *testing.T) {
	t.Setenv("TESTPILOT_NESTED_VAR", "nested-value")
	doc := map[string]any{
		"list": []any{"${TESTPILOT_NESTED_VAR}", "plain"},
	}
	got, err := ResolveEnvVars(doc)
	require.NoError(t, err)
	m := got.(map[string]any)
	list := m["list"].([]any)
	assert.Equal(t, "nested-value", list[0])
	assert.Equal(t, "plain", list[1])
}

func TestMaskSensitive_RedactsPasswordAndKeyFields(t *testing.T) {
	doc := map[string]any{
		"password": "supersecret",
		"name":     "h1",
		"nested":   map[string]any{"key_path": "/etc/id_rsa"},
	}
	masked := MaskSensitive(doc).(map[string]any)
	assert.Equal(t, "***MASKED***", masked["password"])
	assert.Equal(t, "h1", masked["name"])
	nested := masked["nested"].(map[string]any)
	assert.Equal(t, "***MASKED***", nested["key_path"])
}

func TestMaskSensitive_LeavesEmptySensitiveValuesAlone(t *testing.T) {
	doc := map[string]any{"password": ""}
	masked := MaskSensitive(doc).(map[string]any)
	assert.Equal(t, "", masked["password"])
}
