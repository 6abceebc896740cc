package pattern

import (
	"strconv"
	"strings"
)

// evalJSONPath evaluates a minimal "$.foo.bar[0].baz" path-query
// against a decoded JSON value and returns every matching leaf. This is
// deliberately narrower than a full JSONPath grammar (no filters,
// wildcards, or recursive descent) — TestPilot's patterns are fixed
// query strings written by a test author, not dynamic queries, so the
// supported subset matches what nf-response assertions actually use.
func evalJSONPath(path string, root any) ([]any, error) {
	tokens, err := tokenizeJSONPath(path)
	if err != nil {
		return nil, err
	}
	current := []any{root}
	for _, tok := range tokens {
		var next []any
		for _, c := range current {
			switch t := tok.(type) {
			case fieldToken:
				if m, ok := c.(map[string]any); ok {
					if v, present := m[t.name]; present {
						next = append(next, v)
					}
				}
			case indexToken:
				if arr, ok := c.([]any); ok {
					if t.index >= 0 && t.index < len(arr) {
						next = append(next, arr[t.index])
					}
				}
			}
		}
		current = next
		if len(current) == 0 {
			break
		}
	}
	return current, nil
}

type fieldToken struct{ name string }
type indexToken struct{ index int }

func tokenizeJSONPath(path string) ([]any, error) {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "$")
	path = strings.TrimPrefix(path, ".")

	var tokens []any
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			continue
		}
		name, indices := splitFieldAndIndices(segment)
		if name != "" {
			tokens = append(tokens, fieldToken{name: name})
		}
		for _, idxStr := range indices {
			idx, err := strconv.Atoi(idxStr)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, indexToken{index: idx})
		}
	}
	return tokens, nil
}

// splitFieldAndIndices splits "bar[0][1]" into ("bar", ["0","1"]).
func splitFieldAndIndices(segment string) (string, []string) {
	var indices []string
	name := segment
	for {
		open := strings.IndexByte(name, '[')
		if open < 0 {
			break
		}
		closeIdx := strings.IndexByte(name[open:], ']')
		if closeIdx < 0 {
			break
		}
		indices = append(indices, name[open+1:open+closeIdx])
		name = name[:open] + name[open+closeIdx+1:]
	}
	return name, indices
}

// EvalJSONPath exposes evalJSONPath for callers outside this package
// that need to extract a value (e.g. save_as) rather than just check a
// match.
func EvalJSONPath(path string, root any) ([]any, error) {
	return evalJSONPath(path, root)
}

func matchJSONPath(pattern string, target Target) MatchResult {
	if target.BodyJSON == nil {
		return MatchResult{Detail: "no JSON body to evaluate jsonpath against"}
	}
	results, err := evalJSONPath(pattern, target.BodyJSON)
	if err != nil {
		return MatchResult{Detail: "invalid jsonpath: " + err.Error()}
	}
	if len(results) > 0 {
		return MatchResult{Matched: true}
	}
	return MatchResult{Detail: "jsonpath '" + pattern + "' produced an empty result set"}
}
