package types

import "strings"

// RateLimiting mirrors the "rate_limiting" block of the host config file.
type RateLimiting struct {
	Enabled         bool    `json:"enabled"`
	DefaultReqsPerS float64 `json:"default_reqs_per_sec"`
	PerHost         bool    `json:"per_host"`
	BurstSize       int     `json:"burst_size"`
}

// SSHSettings mirrors the "ssh_settings" block.
type SSHSettings struct {
	AutoAddHosts bool `json:"auto_add_hosts"`
	MaxRetries   int  `json:"max_retries"`
	RetryDelayS  int  `json:"retry_delay"`
	TimeoutS     int  `json:"timeout_seconds"`
}

// KubectlLogsSettings mirrors "kubectl_logs_settings".
type KubectlLogsSettings struct {
	CaptureDurationS int    `json:"capture_duration"`
	SinceDuration    string `json:"since_duration"`
}

// ValidationSettings mirrors "validation_settings".
type ValidationSettings struct {
	JSONMatchThresholdPct float64 `json:"json_match_threshold"`
}

// Config is the top-level host configuration document (spec.md §6).
type Config struct {
	UseSSH      bool                `json:"use_ssh"`
	PodMode     bool                `json:"pod_mode"`
	NFName      string              `json:"nf_name"`
	ConnectTo   []string            `json:"connect_to"`
	Hosts       []Host              `json:"hosts"`
	RateLimit   RateLimiting        `json:"rate_limiting"`
	SSH         SSHSettings         `json:"ssh_settings"`
	KubectlLogs KubectlLogsSettings `json:"kubectl_logs_settings"`
	Validation  ValidationSettings  `json:"validation_settings"`

	// StopOnFailure flips the default "continue past a failed step" policy
	// for a flow (spec.md §4.9).
	StopOnFailure bool `json:"stop_on_failure"`
}

// NFNameLower returns the configured NF identity, lower-cased, for C3/C4's
// NRF-activation check.
func (c Config) NFNameLower() string {
	return strings.ToLower(strings.TrimSpace(c.NFName))
}

// IsNRF reports whether NRF-specific instance tracking should activate.
func (c Config) IsNRF() bool {
	switch c.NFNameLower() {
	case "nrf", "ocnrf":
		return true
	default:
		return false
	}
}

// HostByName looks up a configured host by name.
func (c Config) HostByName(name string) (Host, bool) {
	for _, h := range c.Hosts {
		if h.Name == name {
			return h, true
		}
	}
	return Host{}, false
}

// SelectedHosts resolves ConnectTo against Hosts. An empty ConnectTo means
// "every configured host."
func (c Config) SelectedHosts() []Host {
	if len(c.ConnectTo) == 0 {
		return c.Hosts
	}
	wanted := make(map[string]bool, len(c.ConnectTo))
	for _, n := range c.ConnectTo {
		wanted[n] = true
	}
	var out []Host
	for _, h := range c.Hosts {
		if wanted[h.Name] {
			out = append(out, h)
		}
	}
	return out
}
