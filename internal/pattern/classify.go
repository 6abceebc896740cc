// Package pattern classifies a pattern_match string into one of the six
// shapes spec.md §4.8 defines and checks it against a parsed response,
// the Go counterpart of titus's matcher.Matcher but for structural/
// textual assertions instead of secret-detection regexes.
package pattern

import (
	"encoding/json"
	"regexp"
	"strings"
	"sync"

	"github.com/dlclark/regexp2"

	"github.com/psbr27/testPilotOne/internal/logging"
)

var log = logging.Get("pattern")

// Kind is one of the pattern shapes classify can produce.
type Kind string

const (
	KindSubstring  Kind = "substring"
	KindKV         Kind = "kv"
	KindMultiKV    Kind = "multi_kv"
	KindJSONObject Kind = "json_object"
	KindJSONArray  Kind = "json_array"
	KindJSONPath   Kind = "jsonpath"
	KindRegex      Kind = "regex"
)

var regexMetaChars = regexp.MustCompile(`[.*+?^${}()|\\]`)

// Classify applies spec.md §4.8's ordered heuristics to determine a
// pattern string's shape.
func Classify(s string) Kind {
	trimmed := strings.TrimSpace(s)

	if strings.HasPrefix(trimmed, "$") {
		return KindJSONPath
	}

	var asJSON any
	if err := json.Unmarshal([]byte(trimmed), &asJSON); err == nil {
		switch asJSON.(type) {
		case map[string]any:
			return KindJSONObject
		case []any:
			return KindJSONArray
		}
	}

	if isRegexLiteral(trimmed) {
		return KindRegex
	}

	pairs := splitTopLevelCommas(trimmed)
	if len(pairs) > 1 && allLookLikeKV(pairs) {
		return KindMultiKV
	}
	if len(pairs) == 1 && strings.Count(trimmed, ":") == 1 && !strings.Contains(trimmed, ",") {
		if k, v, ok := splitKV(trimmed); ok && k != "" && v != "" {
			return KindKV
		}
	}

	return KindSubstring
}

// isRegexLiteral recognizes /pattern/ wrapping, or unwrapped text that
// is dense with regex metacharacters relative to its length — plain
// substrings rarely carry more than a stray "." or "-".
func isRegexLiteral(s string) bool {
	if strings.HasPrefix(s, "/") && strings.HasSuffix(s, "/") && len(s) > 1 {
		return true
	}
	metaCount := len(regexMetaChars.FindAllString(s, -1))
	return metaCount >= 3 && metaCount*3 >= len(s)
}

func splitTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	return parts
}

func allLookLikeKV(parts []string) bool {
	for _, p := range parts {
		if _, _, ok := splitKV(p); !ok {
			return false
		}
	}
	return true
}

func splitKV(s string) (key, value string, ok bool) {
	k, v, found := strings.Cut(s, ":")
	if !found {
		return "", "", false
	}
	k = strings.TrimSpace(strings.Trim(k, `"`))
	v = strings.TrimSpace(strings.Trim(v, `"`))
	return k, v, k != "" && v != ""
}

// compiledCache caches regex2 compilations by pattern string
// (spec.md §4.8's "Compiled patterns are cached by pattern string").
type compiledCache struct {
	mu    sync.Mutex
	regex map[string]*regexp2.Regexp
}

var cache = &compiledCache{regex: make(map[string]*regexp2.Regexp)}

func compileRegex(pattern string) (*regexp2.Regexp, error) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	if re, ok := cache.regex[pattern]; ok {
		return re, nil
	}
	body := strings.TrimPrefix(strings.TrimSuffix(pattern, "/"), "/")
	re, err := regexp2.Compile(body, regexp2.None)
	if err != nil {
		log.Debugw("failed to compile regex pattern", "pattern", pattern, "err", err)
		return nil, err
	}
	cache.regex[pattern] = re
	return re, nil
}
