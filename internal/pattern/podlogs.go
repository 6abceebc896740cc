package pattern

import (
	"encoding/json"
	"regexp"
	"strings"
)

// matchPodLogs matches a pattern against NDJSON pod log output, each
// line parsed independently:
//
//  1. `"level":"X"` patterns require a line whose decoded "level" field
//     equals X.
//  2. `"request":...` / `"instant":...` patterns carry an embedded JSON
//     fragment that must be a subset of some line's decoded fields; if
//     the fragment can't be extracted, falls back to a level+loggerName
//     plus known-failure-phrase match instead.
//
// Any other pattern shape matches neither form and reports unmatched,
// same as the Python original's fallthrough.
func matchPodLogs(pattern string, output string) MatchResult {
	if output == "" {
		return MatchResult{Detail: "no pod log output to match against"}
	}

	switch {
	case strings.HasPrefix(pattern, `"level`):
		return matchPodLogLevel(pattern, output)
	case strings.HasPrefix(pattern, `"request`), strings.HasPrefix(pattern, `"instant`):
		return matchPodLogEmbeddedJSON(pattern, output)
	default:
		return MatchResult{Detail: "pattern matches neither the level nor the request/instant pod log forms"}
	}
}

func matchPodLogLevel(pattern, output string) MatchResult {
	parts := strings.SplitN(pattern, ":", 2)
	if len(parts) != 2 {
		return MatchResult{Detail: "malformed level pattern: " + pattern}
	}
	wantLevel := strings.Trim(strings.TrimSpace(parts[1]), `"`)

	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if level, _ := entry["level"].(string); level == wantLevel {
			return MatchResult{Matched: true}
		}
	}
	return MatchResult{Detail: "no log line with level " + wantLevel}
}

// matchPodLogEmbeddedJSON extracts the JSON object embedded as a string
// value after "request": or "instant": (extract_request_json_manual's
// brace-counting approach, see extractEmbeddedJSON) and requires every one of its fields to equal the corresponding field on
// some decoded log line.
func matchPodLogEmbeddedJSON(pattern, output string) MatchResult {
	embedded, ok := extractEmbeddedJSON(pattern)
	if !ok {
		return matchPodLogFlexible(pattern, output)
	}

	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if subsetMatchObject(embedded, entry) {
			return MatchResult{Matched: true}
		}
	}
	return MatchResult{Detail: "embedded request/instant JSON not found in any pod log line"}
}

// extractEmbeddedJSON finds the `"request":"..."` or `"instant":"..."`
// span and brace-counts from its opening `{` to the matching close,
// mirroring extract_request_json_manual exactly rather than the looser
// regex variant, since embedded JSON routinely contains its own nested
// braces and quotes.
func extractEmbeddedJSON(pattern string) (map[string]any, bool) {
	for _, marker := range []string{`"request":"`, `"instant":"`} {
		start := strings.Index(pattern, marker)
		if start < 0 {
			continue
		}
		start += len(marker)
		depth := 0
		end := start
		for i := start; i < len(pattern); i++ {
			switch pattern[i] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					end = i + 1
					goto found
				}
			}
		}
		continue
	found:
		var obj map[string]any
		if err := json.Unmarshal([]byte(pattern[start:end]), &obj); err == nil {
			return obj, true
		}
	}
	return nil, false
}

var (
	levelFieldPattern   = regexp.MustCompile(`"level":"([^"]+)"`)
	loggerFieldPattern  = regexp.MustCompile(`"loggerName":"([^"]+)"`)
	messageFieldPattern = regexp.MustCompile(`"message":"((?:[^"\\]|\\.)*)"`)
)

// knownFailurePhrases are the message substrings check_flexible_log_pattern_v3
// singles out as the interesting part of a log line once level/logger
// already match. When the pattern's message names one or more of them,
// a matching line's message must contain one of those; when it names
// none, a bare level+logger match is accepted.
var knownFailurePhrases = []string{
	"Error response generated at IGW",
	"Request Timeout",
	"Bad Request",
	"User agent validation failure",
}

// matchPodLogFlexible falls back to extracting level/loggerName/message
// via regex from pattern (since pattern is rarely valid JSON on its own)
// and scanning output for a line sharing level and loggerName, optionally
// narrowed further by a known failure phrase in the message.
func matchPodLogFlexible(pattern, output string) MatchResult {
	levelMatch := levelFieldPattern.FindStringSubmatch(pattern)
	loggerMatch := loggerFieldPattern.FindStringSubmatch(pattern)
	if levelMatch == nil || loggerMatch == nil {
		if strings.Contains(output, pattern) {
			return MatchResult{Matched: true}
		}
		return MatchResult{Detail: "pattern not found in pod log output (no level/loggerName to extract)"}
	}
	level, loggerName := levelMatch[1], loggerMatch[1]

	var phrases []string
	if msgMatch := messageFieldPattern.FindStringSubmatch(pattern); msgMatch != nil {
		for _, phrase := range knownFailurePhrases {
			if strings.Contains(msgMatch[1], phrase) {
				phrases = append(phrases, phrase)
			}
		}
	}

	matchedLevelLogger := false
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		entryLevel, _ := entry["level"].(string)
		entryLogger, _ := entry["loggerName"].(string)
		if entryLevel != level || entryLogger != loggerName {
			continue
		}
		matchedLevelLogger = true
		if len(phrases) == 0 {
			return MatchResult{Matched: true}
		}
		message, _ := entry["message"].(string)
		for _, phrase := range phrases {
			if strings.Contains(message, phrase) {
				return MatchResult{Matched: true}
			}
		}
	}
	if matchedLevelLogger {
		return MatchResult{Detail: "level/loggerName matched but no known failure phrase found in message"}
	}
	return MatchResult{Detail: "no pod log line with level=" + level + " loggerName=" + loggerName}
}
