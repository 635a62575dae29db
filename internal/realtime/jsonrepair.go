package realtime

import (
	"encoding/json"
	"strings"
)

// ParseArguments decodes tool-call argument text. The transport can
// deliver truncated strings when a turn is interrupted mid-stream, so a
// failed parse goes through a bounded repair pass; if that also fails the
// tool runs with an empty argument set rather than not at all.
func ParseArguments(raw string) json.RawMessage {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return json.RawMessage("{}")
	}
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	repaired := repairJSON(trimmed)
	if json.Valid([]byte(repaired)) {
		return json.RawMessage(repaired)
	}
	return json.RawMessage("{}")
}

// repairJSON closes unterminated strings and unmatched brackets/braces
// in truncated transport frames. It is not a general parser: anything it
// cannot fix falls back to "{}" upstream.
func repairJSON(s string) string {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// brackets inside strings are literal
		case c == '{' || c == '[':
			stack = append(stack, c)
		case c == '}':
			if len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
			}
		case c == ']':
			if len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(s)

	if escaped {
		// A trailing lone backslash can never be valid; drop it.
		s = s[:len(s)-1]
		b.Reset()
		b.WriteString(s)
	}
	if inString {
		b.WriteByte('"')
	}

	// A value cut off right after a key (`{"question":`) is unrepairable
	// by bracket balancing alone; strip the dangling separator first.
	out := strings.TrimRight(b.String(), ",:")

	b.Reset()
	b.WriteString(out)
	for i := len(stack) - 1; i >= 0; i-- {
		switch stack[i] {
		case '{':
			b.WriteByte('}')
		case '[':
			b.WriteByte(']')
		}
	}
	return b.String()
}
