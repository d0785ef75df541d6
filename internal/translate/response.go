package translate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var jsonFenceRegex = regexp.MustCompile("```(?:json)?\\s*")

func cleanJSONResponse(s string) string {
	s = jsonFenceRegex.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// finds the first JSON value in text that decodes to translated items,
// either a bare array or an object wrapping one
func extractResults(text string) ([]Item, error) {
	for i := 0; i < len(text); i++ {
		if text[i] != '[' && text[i] != '{' {
			continue
		}
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&raw); err != nil {
			continue
		}
		if results, ok := itemsFrom(raw); ok {
			return results, nil
		}
	}
	return nil, fmt.Errorf("no valid translation JSON found in response")
}

func itemsFrom(raw json.RawMessage) ([]Item, bool) {
	var items []Item
	if err := json.Unmarshal(raw, &items); err == nil && hasText(items) {
		return items, true
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, false
	}
	for _, key := range []string{"results", "translations", "captions", "items"} {
		field, ok := wrapper[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(field, &items); err == nil && hasText(items) {
			return items, true
		}
	}
	return nil, false
}

func hasText(items []Item) bool {
	for _, it := range items {
		if it.Text != "" {
			return true
		}
	}
	return false
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
