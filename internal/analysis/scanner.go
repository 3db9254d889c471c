package analysis

import (
	"slices"
	"strings"
)

// objectSpans returns every balanced top-level {...} span in s, in order.
// Quote tracking only applies inside an object so that stray quotes in
// surrounding prose do not hide the JSON that follows.
func objectSpans(s string) []string {
	var spans []string
	depth := 0
	start := -1
	inString := false
	escape := false

	for i := 0; i < len(s); i++ {
		b := s[i]

		if escape {
			escape = false
			continue
		}
		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					spans = append(spans, s[start:i+1])
					start = -1
				}
			}
		}
	}
	return spans
}

// spanAt returns the balanced object that opens at s[start], which must be
// a '{'.
func spanAt(s string, start int) (string, bool) {
	depth := 0
	inString := false
	escape := false

	for i := start; i < len(s); i++ {
		b := s[i]

		if escape {
			escape = false
			continue
		}
		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
			}
			continue
		}

		switch b {
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

// laterBraces returns the offset of every '{' in s after the first one.
func laterBraces(s string) []int {
	var offsets []int
	first := true
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		if first {
			first = false
			continue
		}
		offsets = append(offsets, i)
	}
	return offsets
}

// unbalancedTail returns the text from the last top-level '{' that is never
// closed, together with the closers it is missing in nesting order. strStart
// is the offset within tail of the opening quote of an unterminated string,
// or -1. ok is false when every object in s is balanced.
func unbalancedTail(s string) (tail string, open []byte, strStart int, ok bool) {
	var stack []byte
	start := -1
	quote := -1
	inString := false
	escape := false

	for i := 0; i < len(s); i++ {
		b := s[i]

		if escape {
			escape = false
			continue
		}
		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			if len(stack) > 0 {
				inString = true
				quote = i
			}
		case '{':
			if len(stack) == 0 {
				start = i
			}
			stack = append(stack, '}')
		case '[':
			if len(stack) > 0 {
				stack = append(stack, ']')
			}
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == b {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if len(stack) == 0 || start == -1 {
		return "", nil, -1, false
	}
	strStart = -1
	if inString {
		strStart = quote - start
	}
	return s[start:], stack, strStart, true
}

// completions returns candidate repairs of a truncated object: first with the
// missing closers appended in nesting order, then with all braces followed by
// all brackets. When the text stops inside a string, the string is first
// closed as-is and then dropped entirely, since a half-written key cannot be
// salvaged.
func completions(s string) []string {
	tail, open, strStart, ok := unbalancedTail(s)
	if !ok {
		return nil
	}

	var nested strings.Builder
	braces, brackets := 0, 0
	for i := len(open) - 1; i >= 0; i-- {
		nested.WriteByte(open[i])
		if open[i] == '}' {
			braces++
		} else {
			brackets++
		}
	}
	flat := strings.Repeat("}", braces) + strings.Repeat("]", brackets)

	var out []string
	add := func(body string) {
		body = trimDangling(body)
		for _, closers := range []string{nested.String(), flat} {
			if c := body + closers; !slices.Contains(out, c) {
				out = append(out, c)
			}
		}
	}
	if strStart >= 0 {
		add(tail + `"`)
		add(tail[:strStart])
	} else {
		add(tail)
	}
	return out
}

// trimDangling removes a trailing comma and gives a dangling key a null
// value.
func trimDangling(body string) string {
	body = strings.TrimRight(body, " \t\r\n")
	body = strings.TrimSuffix(body, ",")
	if strings.HasSuffix(body, ":") {
		body += "null"
	}
	return body
}

// stripTrailingCommas drops every comma that is followed, after optional
// whitespace, by a closing brace or bracket. String contents are copied
// untouched.
func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escape := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escape:
			escape = false
		case inString:
			if c == '\\' {
				escape = true
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == ',':
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}
