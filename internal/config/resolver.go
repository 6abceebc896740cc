// Package config loads the host configuration document (spec.md §6),
// resolving ${VAR} / ${VAR:-default} environment references the way
// config_resolver.py does, then validates and shapes it into types.Config.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/psbr27/testPilotOne/internal/types"
)

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars recursively substitutes ${VAR} and ${VAR:-default} tokens
// found in any string leaf of v. Maps and slices are walked in place;
// everything else is returned unchanged.
func ResolveEnvVars(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return resolveString(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			resolved, err := ResolveEnvVars(item)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			resolved, err := ResolveEnvVars(item)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

func resolveString(s string) (string, error) {
	if !envPattern.MatchString(s) {
		return s, nil
	}
	var firstErr error
	result := envPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}
		expr := envPattern.FindStringSubmatch(match)[1]
		if name, def, ok := strings.Cut(expr, ":-"); ok {
			if v, present := os.LookupEnv(name); present {
				return v
			}
			return def
		}
		v, present := os.LookupEnv(expr)
		if !present {
			firstErr = fmt.Errorf("%w: required environment variable %q not set", types.ErrConfig, expr)
			return match
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// MaskSensitive returns a copy of a decoded JSON document with password,
// key_path, secret, and token-like fields redacted, safe to log.
func MaskSensitive(v any) any {
	sensitive := []string{"password", "key_path", "key_file", "private_key", "secret", "token"}
	isSensitive := func(key string) bool {
		lower := strings.ToLower(key)
		for _, s := range sensitive {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
	var mask func(v any) any
	mask = func(v any) any {
		switch val := v.(type) {
		case map[string]any:
			out := make(map[string]any, len(val))
			for k, item := range val {
				if isSensitive(k) {
					if s, ok := item.(string); ok && s != "" {
						out[k] = "***MASKED***"
						continue
					}
				}
				out[k] = mask(item)
			}
			return out
		case []any:
			out := make([]any, len(val))
			for i, item := range val {
				out[i] = mask(item)
			}
			return out
		default:
			return v
		}
	}
	return mask(v)
}
