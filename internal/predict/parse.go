package predict

import "errors"

// ErrMalformedResponse means the model output contained no parseable JSON
// document of the expected shape. Callers recover by treating the scan as
// empty; partially parsed records are never surfaced.
var ErrMalformedResponse = errors.New("malformed model response")

// extractJSON returns the first balanced JSON document in raw that starts
// with the given opening bracket. Models routinely wrap their output in
// prose or fenced code blocks, so the scanner walks the text tracking
// string literals and nesting depth instead of trusting the whole body.
func extractJSON(raw string, open, close byte) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(raw); i++ {
		c := raw[i]

		if start == -1 {
			if c == open {
				start = i
				depth = 1
			}
			continue
		}

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
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

func extractJSONArray(raw string) (string, bool) {
	return extractJSON(raw, '[', ']')
}

func extractJSONObject(raw string) (string, bool) {
	return extractJSON(raw, '{', '}')
}
