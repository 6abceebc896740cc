package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/psbr27/testPilotOne/internal/types"
)

// Load reads path, resolves environment references, and decodes the
// result into a types.Config. It mirrors load_config_with_env +
// validate_host_config from the original tool, adapted to Go's static
// decoding in two passes: once into a generic document for env
// resolution, once (after re-marshaling) into types.Config.
func Load(path string) (*types.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", types.ErrConfig, path, err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", types.ErrConfig, path, err)
	}

	resolved, err := ResolveEnvVars(generic)
	if err != nil {
		return nil, err
	}

	reencoded, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("%w: re-encoding resolved config: %v", types.ErrConfig, err)
	}

	var cfg types.Config
	if err := json.Unmarshal(reencoded, &cfg); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", types.ErrConfig, path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural invariants the decoder cannot express:
// at least one host, unique host names, and each host's own validation
// (spec.md §4.1, validate_host_config).
func Validate(cfg *types.Config) error {
	if len(cfg.Hosts) == 0 {
		return &types.ConfigError{Field: "hosts", Err: fmt.Errorf("at least one host is required")}
	}
	seen := make(map[string]bool, len(cfg.Hosts))
	for _, h := range cfg.Hosts {
		if h.Name == "" {
			return &types.ConfigError{Field: "hosts", Err: fmt.Errorf("host entry missing name")}
		}
		if seen[h.Name] {
			return &types.ConfigError{Field: "hosts", Err: fmt.Errorf("duplicate host name %q", h.Name)}
		}
		seen[h.Name] = true
		if err := h.Validate(cfg.UseSSH); err != nil {
			return &types.ConfigError{Field: "hosts." + h.Name, Err: err}
		}
	}
	for _, name := range cfg.ConnectTo {
		if !seen[name] {
			return &types.ConfigError{Field: "connect_to", Err: fmt.Errorf("unknown host %q", name)}
		}
	}
	if cfg.RateLimit.Enabled && cfg.RateLimit.DefaultReqsPerS <= 0 {
		return &types.ConfigError{Field: "rate_limiting.default_reqs_per_sec", Err: fmt.Errorf("must be positive when rate limiting is enabled")}
	}
	return nil
}
