// Package jsonrecover extracts a usable JSON object from noisy LLM output:
// it scans for the first balanced top-level {...} span and trims trailing
// commas and duplicate commas. It does not parse or validate the result;
// callers decode it themselves. Built on the standard library.
package jsonrecover

import "strings"

// ExtractBalancedObject scans s for the first top-level balanced {...}
// span, respecting string literals and escape sequences so that braces
// inside quoted strings are ignored. It returns the substring and true on
// success, or "" and false if no balanced object is found.
func ExtractBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// CleanTrailingCommas removes a comma that appears (ignoring whitespace)
// immediately before a closing `}` or `]`, and collapses consecutive commas
// into one. LLMs frequently emit either when truncating or repairing their
// own output mid-stream.
func CleanTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if inString {
			b.WriteRune(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteRune(c)
			continue
		}
		if c == ',' {
			// Look ahead past whitespace for a closer, or another comma.
			j := i + 1
			for j < len(runes) && (runes[j] == ' ' || runes[j] == '\t' || runes[j] == '\n' || runes[j] == '\r') {
				j++
			}
			if j < len(runes) && (runes[j] == '}' || runes[j] == ']' || runes[j] == ',') {
				continue // drop this comma
			}
		}
		b.WriteRune(c)
	}
	return b.String()
}
