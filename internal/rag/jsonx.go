package rag

import (
	"encoding/json"
	"regexp"
)

var jsonObjectPattern = regexp.MustCompile(`(?s)(\{.*\})`)

// extractJSON pulls a JSON object out of model output, tolerating
// Markdown fences and conversational framing. Returns nil when nothing
// parseable is found.
func extractJSON(text string) map[string]any {
	if text == "" {
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		return obj
	}

	// Greedy first-{ to last-} capture handles fenced and prefixed
	// output.
	m := jsonObjectPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(m[1]), &obj); err != nil {
		return nil
	}
	return obj
}
