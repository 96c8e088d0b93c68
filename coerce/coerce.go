// Package coerce recovers a usable JSON object from free-form model
// output. Generation services are not guaranteed to honor a requested
// schema: they wrap objects in markdown fences, prepend prose, or return
// plain text. The pipeline here tries progressively looser extraction
// stages and only gives up to a plain-text fallback, never an error,
// unless the input is empty.
package coerce

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrEmptyInput is returned when there is no text to coerce at all.
var ErrEmptyInput = errors.New("coerce: empty input")

// Fallback keys added when no object could be extracted.
const (
	KeyResponse        = "response"
	KeyTaskStatus      = "task_status"
	KeyParsingFallback = "parsing_fallback"
)

var fenceRe = regexp.MustCompile("(?s)```(?:[a-zA-Z0-9_-]*)\\s*\\n?(.*?)```")

// Coerce extracts a JSON object from raw model output. Stages, in order:
//
//  1. parse the trimmed text directly
//  2. strip a fenced code block (language-tagged or not) and parse its body
//  3. extract the first balanced top-level object span and parse that
//  4. wrap the raw text as {"response": raw, "task_status": "complete",
//     "parsing_fallback": true}
//
// Only empty input produces an error.
func Coerce(raw string) (map[string]any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ErrEmptyInput
	}

	for _, candidate := range candidates(trimmed) {
		if obj, ok := parseObject(candidate); ok {
			return obj, nil
		}
	}

	return map[string]any{
		KeyResponse:        trimmed,
		KeyTaskStatus:      "complete",
		KeyParsingFallback: true,
	}, nil
}

// candidates returns extraction attempts in precedence order.
func candidates(trimmed string) []string {
	out := []string{trimmed}

	if m := fenceRe.FindStringSubmatch(trimmed); m != nil {
		out = append(out, strings.TrimSpace(m[1]))
	}

	if span, ok := balancedSpan(trimmed); ok {
		out = append(out, span)
	}

	return out
}

func parseObject(s string) (map[string]any, bool) {
	if s == "" {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// balancedSpan finds the first top-level {...} span with balanced braces,
// honoring string literals and escapes.
func balancedSpan(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}

	return "", false
}
