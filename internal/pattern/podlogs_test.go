package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchPodLogs_LevelField(t *testing.T) {
	output := `{"level":"INFO","message":"startup complete"}
{"level":"ERROR","message":"connection refused"}`

	res := matchPodLogs(`"level":"ERROR"`, output)
	assert.True(t, res.Matched)

	res = matchPodLogs(`"level":"WARN"`, output)
	assert.False(t, res.Matched)
}

func TestMatchPodLogs_EmbeddedRequestJSON(t *testing.T) {
	// check_pod_logs compares the extracted request/instant fragment's
	// fields against each decoded log line's top-level fields directly,
	// not against a nested "request" object.
	output := `{"level":"INFO","method":"PUT","path":"/nnrf-nfm/v1/nf-instances/abc"}
{"level":"INFO","method":"GET","path":"/other"}`

	// Pattern cells copy-paste raw JSON inside the outer quoted string
	// without escaping the inner quotes, which is exactly why extraction
	// brace-counts rather than regex-matching a cleanly quoted string.
	pattern := `"request":"{"method":"PUT"}"`
	res := matchPodLogs(pattern, output)
	assert.True(t, res.Matched, res.Detail)

	pattern = `"request":"{"method":"DELETE"}"`
	res = matchPodLogs(pattern, output)
	assert.False(t, res.Matched)
}

func TestMatchPodLogFlexible_LevelLoggerAndPhrase(t *testing.T) {
	output := `{"level":"ERROR","loggerName":"igw","message":"Error response generated at IGW for request X"}
{"level":"INFO","loggerName":"igw","message":"ok"}`

	pattern := `"level":"ERROR","loggerName":"igw","message":"Error response generated at IGW"`
	res := matchPodLogFlexible(pattern, output)
	assert.True(t, res.Matched, res.Detail)

	pattern = `"level":"ERROR","loggerName":"other","message":"x"`
	res = matchPodLogFlexible(pattern, output)
	assert.False(t, res.Matched)
}

func TestMatchPodLogFlexible_SubstringFallbackWithoutLevelOrLogger(t *testing.T) {
	output := "plain text log line with no json structure"
	res := matchPodLogFlexible("json structure", output)
	assert.True(t, res.Matched)
}

func TestMatchPodLogs_UnrecognizedPatternShape(t *testing.T) {
	res := matchPodLogs("some arbitrary text", `{"level":"INFO"}`)
	assert.False(t, res.Matched)
}

func TestMatchPodLogs_EmptyOutput(t *testing.T) {
	res := matchPodLogs(`"level":"INFO"`, "")
	assert.False(t, res.Matched)
}

func TestExtractEmbeddedJSON(t *testing.T) {
	pattern := `"request":"{"a":1,"b":{"c":2}}"`
	obj, ok := extractEmbeddedJSON(pattern)
	assert.True(t, ok)
	assert.Equal(t, float64(1), obj["a"])
}

func TestMatch_DispatchesToPodLogsWhenSet(t *testing.T) {
	target := Target{
		BodyText: "irrelevant",
		PodLogs:  `{"level":"ERROR","message":"boom"}`,
	}
	res := Match(`"level":"ERROR"`, target, ModeLenient)
	assert.True(t, res.Matched)
}
