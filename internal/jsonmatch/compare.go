// Package jsonmatch implements the flatten-and-compare percentage
// algorithm used by both the payload and lenient pattern layers
// (spec.md §4.7/§4.8), ported from json_match.py's
// compare_structure_and_values.
package jsonmatch

import (
	"fmt"
	"sort"
)

// Mismatch records one flattened key whose value differs between the
// two sides being compared.
type Mismatch struct {
	Key    string
	Actual any
	Other  any
}

// Missing records one flattened key present on only one side.
type Missing struct {
	Key       string
	PresentIn string // "actual" | "other"
	Value     any
}

// Result is the outcome of comparing two JSON-decoded values.
type Result struct {
	MatchPercentage float64
	TotalFields     int
	MatchingFields  int
	Mismatched      []Mismatch
	Missing         []Missing
}

// Passed reports whether the match percentage clears threshold.
func (r Result) Passed(thresholdPct float64) bool {
	return r.MatchPercentage > thresholdPct
}

// Compare flattens actual and other into dotted/indexed paths and
// compares leaf values, returning a match percentage over the union of
// keys (compare_structure_and_values). ignoreFields removes dotted
// paths from both sides before comparison; ignoreArrayOrder, when true,
// sorts list elements by their rendered string form before flattening
// so reordered arrays don't register as mismatches.
func Compare(actual, other any, ignoreFields []string, ignoreArrayOrder bool) Result {
	if ignoreArrayOrder {
		actual = sortArraysDeep(actual)
		other = sortArraysDeep(other)
	}

	flatActual := make(map[string]any)
	flatten(actual, "", flatActual)
	flatOther := make(map[string]any)
	flatten(other, "", flatOther)

	ignore := make(map[string]bool, len(ignoreFields))
	for _, f := range ignoreFields {
		ignore[f] = true
	}
	for k := range ignore {
		delete(flatActual, k)
		delete(flatOther, k)
	}

	allKeys := make(map[string]bool, len(flatActual)+len(flatOther))
	for k := range flatActual {
		allKeys[k] = true
	}
	for k := range flatOther {
		allKeys[k] = true
	}

	var mismatched []Mismatch
	var missing []Missing
	matching := 0
	for k := range allKeys {
		av, aok := flatActual[k]
		ov, ook := flatOther[k]
		switch {
		case aok && ook:
			if valuesEqual(av, ov) {
				matching++
			} else {
				mismatched = append(mismatched, Mismatch{Key: k, Actual: av, Other: ov})
			}
		case aok:
			missing = append(missing, Missing{Key: k, PresentIn: "actual", Value: av})
		default:
			missing = append(missing, Missing{Key: k, PresentIn: "other", Value: ov})
		}
	}

	total := len(allKeys)
	pct := 100.0
	if total > 0 {
		pct = float64(matching) / float64(total) * 100
	}

	sort.Slice(mismatched, func(i, j int) bool { return mismatched[i].Key < mismatched[j].Key })
	sort.Slice(missing, func(i, j int) bool { return missing[i].Key < missing[j].Key })

	return Result{
		MatchPercentage: roundTo2(pct),
		TotalFields:     total,
		MatchingFields:  matching,
		Mismatched:      mismatched,
		Missing:         missing,
	}
}

// flatten walks obj, writing one entry per leaf under a dotted/indexed
// path key, matching flatten_json's "parent.key" / "parent[i]" scheme.
func flatten(obj any, parentKey string, out map[string]any) {
	switch v := obj.(type) {
	case map[string]any:
		for k, val := range v {
			newKey := k
			if parentKey != "" {
				newKey = parentKey + "." + k
			}
			flatten(val, newKey, out)
		}
	case []any:
		for i, val := range v {
			newKey := fmt.Sprintf("%s[%d]", parentKey, i)
			flatten(val, newKey, out)
		}
	default:
		out[parentKey] = v
	}
}

// valuesEqual compares two leaf values with light numeric/bool/string
// coercion, the same tolerance the kv pattern layer applies.
func valuesEqual(a, b any) bool {
	if a == b {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	as, asok := toBoolString(a)
	bs, bsok := toBoolString(b)
	if asok && bsok {
		return as == bs
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func toBoolString(v any) (string, bool) {
	switch b := v.(type) {
	case bool:
		if b {
			return "true", true
		}
		return "false", true
	case string:
		lower := b
		if lower == "true" || lower == "false" {
			return lower, true
		}
	}
	return "", false
}

func roundTo2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

// sortArraysDeep returns a copy of v with every []any sorted by its
// elements' rendered form, so reordered-but-equal arrays flatten to the
// same keys (ignore_array_order support).
func sortArraysDeep(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = sortArraysDeep(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sortArraysDeep(item)
		}
		sort.Slice(out, func(i, j int) bool {
			return fmt.Sprint(out[i]) < fmt.Sprint(out[j])
		})
		return out
	default:
		return v
	}
}
