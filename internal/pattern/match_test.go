package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch_SubstringFoundInBody(t *testing.T) {
	res := Match("hello", Target{BodyText: "well hello there"}, ModeLenient)
	assert.True(t, res.Matched)
}

func TestMatch_SubstringNotFound(t *testing.T) {
	res := Match("missing", Target{BodyText: "well hello there"}, ModeLenient)
	assert.False(t, res.Matched)
}

func TestMatch_KVPairMatchesAtAnyDepth(t *testing.T) {
	res := Match("nfStatus:REGISTERED", Target{BodyJSON: map[string]any{
		"nfProfile": map[string]any{"nfStatus": "REGISTERED"},
	}}, ModeLenient)
	assert.True(t, res.Matched)
}

func TestMatch_MultiKVRequiresAllPairs(t *testing.T) {
	body := map[string]any{"a": "1", "b": "2"}
	assert.True(t, Match("a:1,b:2", Target{BodyJSON: body}, ModeLenient).Matched)
	assert.False(t, Match("a:1,b:3", Target{BodyJSON: body}, ModeLenient).Matched)
}

// Regression: spec's end-to-end scenario 3. A lenient json_object pattern
// with a nested array must match that array as a subset in any order, not
// position-by-position — items[0] in the pattern can match any element of
// the actual array, not just actual's own index 0.
func TestMatch_JSONObjectLenient_NestedArrayMatchesAnyOrder(t *testing.T) {
	pattern := `{"count":3,"items":[{"id":1}]}`
	body := map[string]any{
		"count": float64(3),
		"items": []any{
			map[string]any{"id": float64(2)},
			map[string]any{"id": float64(1)},
		},
	}
	res := Match(pattern, Target{BodyJSON: body}, ModeLenient)
	assert.True(t, res.Matched, "expected lenient match, got: %s", res.Detail)
}

func TestMatch_JSONObjectLenient_MissingKeyFails(t *testing.T) {
	pattern := `{"count":3}`
	body := map[string]any{"other": float64(1)}
	res := Match(pattern, Target{BodyJSON: body}, ModeLenient)
	assert.False(t, res.Matched)
}

func TestMatch_JSONObjectLenient_NullValueOnlyRequiresKeyPresence(t *testing.T) {
	pattern := `{"nfInstanceId":null}`
	body := map[string]any{"nfInstanceId": "abc-1"}
	res := Match(pattern, Target{BodyJSON: body}, ModeLenient)
	assert.True(t, res.Matched)
}

func TestMatch_JSONObjectStrict_RequiresExactMatch(t *testing.T) {
	pattern := `{"count":3}`
	body := map[string]any{"count": float64(3), "extra": "x"}
	res := Match(pattern, Target{BodyJSON: body}, ModeStrict)
	assert.False(t, res.Matched)

	exact := Match(pattern, Target{BodyJSON: map[string]any{"count": float64(3)}}, ModeStrict)
	assert.True(t, exact.Matched)
}

func TestMatch_JSONArrayLenient_SubsetAnyOrder(t *testing.T) {
	pattern := `[1,2]`
	body := []any{float64(2), float64(3), float64(1)}
	res := Match(pattern, Target{BodyJSON: body}, ModeLenient)
	assert.True(t, res.Matched)
}

func TestMatch_JSONArrayStrict_RequiresSameLengthAndOrder(t *testing.T) {
	pattern := `[1,2]`
	assert.False(t, Match(pattern, Target{BodyJSON: []any{float64(2), float64(1)}}, ModeStrict).Matched)
	assert.True(t, Match(pattern, Target{BodyJSON: []any{float64(1), float64(2)}}, ModeStrict).Matched)
}

func TestMatch_Regex(t *testing.T) {
	res := Match("/^hello/", Target{BodyText: "hello world"}, ModeLenient)
	assert.True(t, res.Matched)
}

func TestMatch_JSONPath_DelegatesToJSONPathMatcher(t *testing.T) {
	res := Match("$.status", Target{BodyJSON: map[string]any{"status": "ok"}}, ModeLenient)
	assert.True(t, res.Matched)
}

func TestSubsetMatchObject_NestedObjectRecurses(t *testing.T) {
	want := map[string]any{"nfProfile": map[string]any{"nfStatus": "REGISTERED"}}
	actual := map[string]any{"nfProfile": map[string]any{"nfStatus": "REGISTERED", "extra": "x"}}
	assert.True(t, subsetMatchObject(want, actual))
}

func TestSubsetMatchArray_OrderedRequiresPositionalMatch(t *testing.T) {
	want := []any{map[string]any{"id": float64(1)}}
	actual := []any{map[string]any{"id": float64(2)}, map[string]any{"id": float64(1)}}
	assert.False(t, subsetMatchArray(want, actual, true))
	assert.True(t, subsetMatchArray(want, actual, false))
}
