package analysis

// extractJSONObject returns the first balanced {...} object in b, or false if
// none exists. Workers are allowed to write diagnostic noise around the result
// on the same stream; only the balanced object is data.
//
// The scanner is string-aware: braces inside JSON string literals (including
// escaped quotes) do not affect nesting depth.
func extractJSONObject(b []byte) ([]byte, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, c := range b {
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
			if start >= 0 {
				inString = true
			}
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return b[start : i+1], true
			}
		}
	}
	return nil, false
}
