package pattern

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/psbr27/testPilotOne/internal/jsonmatch"
)

// Mode selects lenient or strict comparison semantics for the
// array/subset-matching rules spec.md §4.8 specifies.
type Mode string

const (
	ModeLenient Mode = "lenient"
	ModeStrict  Mode = "strict"
)

// Target is what a pattern is checked against: response body text,
// header lines, and/or the JSON-decoded body.
type Target struct {
	BodyText   string
	HeaderText string // header lines joined, "key: value" per line
	BodyJSON   any

	// PodLogs holds kubectl-exec log output when the response carries
	// pod logs instead of an HTTP body (types.Response.IsKubectlLogs).
	// When set, Match dispatches to the pod-log matching strategies
	// instead of the generic body/header/JSON rules.
	PodLogs string
}

// MatchResult carries the pass/fail outcome plus enough detail for a
// fail_reason string.
type MatchResult struct {
	Matched bool
	Detail  string
}

// Match classifies pattern and checks it against target in mode.
func Match(pattern string, target Target, mode Mode) MatchResult {
	if target.PodLogs != "" {
		return matchPodLogs(pattern, target.PodLogs)
	}
	kind := Classify(pattern)
	switch kind {
	case KindSubstring:
		return matchSubstring(pattern, target)
	case KindKV:
		return matchKV([]string{pattern}, target)
	case KindMultiKV:
		return matchKV(splitTopLevelCommas(pattern), target)
	case KindJSONObject:
		return matchJSONObject(pattern, target, mode)
	case KindJSONArray:
		return matchJSONArray(pattern, target, mode)
	case KindJSONPath:
		return matchJSONPath(pattern, target)
	case KindRegex:
		return matchRegex(pattern, target)
	default:
		return matchSubstring(pattern, target)
	}
}

// matchSubstring does a case-sensitive contains check against the body
// text or any header line, pre-filtered with Aho-Corasick the way a
// multi-pattern scan would be, even though here there is only one
// needle — kept for a uniform fast-reject path shared with batch
// classification callers.
func matchSubstring(pattern string, target Target) MatchResult {
	m := ahocorasick.NewStringMatcher([]string{pattern})
	if len(m.Match([]byte(target.BodyText))) > 0 {
		return MatchResult{Matched: true}
	}
	if len(m.Match([]byte(target.HeaderText))) > 0 {
		return MatchResult{Matched: true}
	}
	return MatchResult{Detail: "pattern '" + pattern + "' not found in response"}
}

// matchKV requires each "key:value" pair to appear somewhere in the
// decoded JSON body at any depth, key==value with light type coercion
// (parse_pattern_match.py's key:value parsing, spec.md §4.8's kv rule).
func matchKV(pairs []string, target Target) MatchResult {
	if target.BodyJSON == nil {
		return MatchResult{Detail: "no JSON body to match key:value pattern against"}
	}
	flat := make(map[string]any)
	flattenForLookup(target.BodyJSON, "", flat)

	for _, pair := range pairs {
		key, value, ok := splitKV(pair)
		if !ok {
			return MatchResult{Detail: "malformed key:value pattern: " + pair}
		}
		if !anyFlattenedKeyMatches(flat, key, value) {
			return MatchResult{Detail: "key:value pair not found: " + pair}
		}
	}
	return MatchResult{Matched: true}
}

func flattenForLookup(v any, parent string, out map[string]any) {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			newKey := k
			if parent != "" {
				newKey = parent + "." + k
			}
			out[newKey] = item
			flattenForLookup(item, newKey, out)
		}
	case []any:
		for i, item := range val {
			newKey := parent + "[" + strconv.Itoa(i) + "]"
			flattenForLookup(item, newKey, out)
		}
	}
}

func anyFlattenedKeyMatches(flat map[string]any, key, value string) bool {
	for k, v := range flat {
		leaf := k
		if idx := strings.LastIndexByte(k, '.'); idx >= 0 {
			leaf = k[idx+1:]
		}
		if leaf != key {
			continue
		}
		if coercedEqual(v, value) {
			return true
		}
	}
	return false
}

// coercedEqual compares a decoded JSON leaf against a string pattern
// value, with "true"/"false"/numeric-string coercion.
func coercedEqual(actual any, wanted string) bool {
	switch a := actual.(type) {
	case bool:
		return (wanted == "true" && a) || (wanted == "false" && !a)
	case float64:
		f, err := strconv.ParseFloat(wanted, 64)
		return err == nil && f == a
	case string:
		return a == wanted
	case nil:
		return wanted == "null"
	default:
		return false
	}
}

func matchJSONObject(pattern string, target Target, mode Mode) MatchResult {
	var want map[string]any
	if err := json.Unmarshal([]byte(pattern), &want); err != nil {
		return MatchResult{Detail: "invalid json_object pattern: " + err.Error()}
	}
	actual, ok := target.BodyJSON.(map[string]any)
	if !ok {
		return MatchResult{Detail: "response body is not a JSON object"}
	}
	if mode == ModeStrict {
		res := jsonmatch.Compare(actual, want, nil, false)
		if res.MatchPercentage == 100 {
			return MatchResult{Matched: true}
		}
		return MatchResult{Detail: "strict json_object mismatch: " + strconv.FormatFloat(res.MatchPercentage, 'f', 2, 64) + "% match"}
	}
	if subsetMatchObject(want, actual) {
		return MatchResult{Matched: true}
	}
	return MatchResult{Detail: "pattern object not found as subset of response"}
}

// subsetMatchObject reports whether every key in want is present in
// actual with an equal (or, for nested objects, recursively subset)
// value. A null value in want means "key must exist" (spec.md §4.8).
func subsetMatchObject(want map[string]any, actual map[string]any) bool {
	for k, wv := range want {
		av, present := actual[k]
		if !present {
			return false
		}
		if wv == nil {
			continue
		}
		switch wvt := wv.(type) {
		case map[string]any:
			avt, ok := av.(map[string]any)
			if !ok || !subsetMatchObject(wvt, avt) {
				return false
			}
		case []any:
			avt, ok := av.([]any)
			if !ok || !subsetMatchArray(wvt, avt, false) {
				return false
			}
		default:
			if !jsonLeafEqual(wv, av) {
				return false
			}
		}
	}
	return true
}

func jsonLeafEqual(a, b any) bool {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return a == b
	}
}

func matchJSONArray(pattern string, target Target, mode Mode) MatchResult {
	var want []any
	if err := json.Unmarshal([]byte(pattern), &want); err != nil {
		return MatchResult{Detail: "invalid json_array pattern: " + err.Error()}
	}
	actual, ok := target.BodyJSON.([]any)
	if !ok {
		return MatchResult{Detail: "response body is not a JSON array"}
	}
	if mode == ModeStrict {
		if len(want) != len(actual) {
			return MatchResult{Detail: "strict json_array length mismatch"}
		}
		for i := range want {
			if !subsetEqualStrict(want[i], actual[i]) {
				return MatchResult{Detail: "strict json_array element mismatch at index " + strconv.Itoa(i)}
			}
		}
		return MatchResult{Matched: true}
	}
	if subsetMatchArray(want, actual, false) {
		return MatchResult{Matched: true}
	}
	return MatchResult{Detail: "pattern array not found as subset of response (any order)"}
}

// subsetMatchArray checks every element of want subset-matches some
// (ordered=false) or the corresponding (ordered=true) element of
// actual.
func subsetMatchArray(want, actual []any, ordered bool) bool {
	if ordered {
		if len(want) > len(actual) {
			return false
		}
		for i, w := range want {
			if !elementSubsetMatches(w, actual[i]) {
				return false
			}
		}
		return true
	}
	used := make([]bool, len(actual))
	for _, w := range want {
		found := false
		for i, a := range actual {
			if used[i] {
				continue
			}
			if elementSubsetMatches(w, a) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func elementSubsetMatches(want, actual any) bool {
	switch w := want.(type) {
	case map[string]any:
		a, ok := actual.(map[string]any)
		return ok && subsetMatchObject(w, a)
	case []any:
		a, ok := actual.([]any)
		return ok && subsetMatchArray(w, a, false)
	default:
		return jsonLeafEqual(want, actual)
	}
}

func subsetEqualStrict(want, actual any) bool {
	switch w := want.(type) {
	case map[string]any:
		a, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		res := jsonmatch.Compare(a, w, nil, false)
		return res.MatchPercentage == 100
	case []any:
		a, ok := actual.([]any)
		if !ok || len(a) != len(w) {
			return false
		}
		for i := range w {
			if !subsetEqualStrict(w[i], a[i]) {
				return false
			}
		}
		return true
	default:
		return jsonLeafEqual(want, actual)
	}
}

func matchRegex(pattern string, target Target) MatchResult {
	re, err := compileRegex(pattern)
	if err != nil {
		return MatchResult{Detail: "invalid regex pattern: " + err.Error()}
	}
	found, err := re.MatchString(target.BodyText)
	if err != nil {
		return MatchResult{Detail: "regex evaluation error: " + err.Error()}
	}
	if found {
		return MatchResult{Matched: true}
	}
	return MatchResult{Detail: "regex pattern did not match response body"}
}
