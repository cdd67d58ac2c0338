// Package jsonc turns JSON-with-comments configuration files into plain JSON.
package jsonc

// Normalize strips // and /* */ comments and trailing commas from content.
// Comment-like sequences and commas inside string literals are left untouched.
func Normalize(content []byte) []byte {
	out := make([]byte, 0, len(content))

	inString := false
	escape := false
	// index in out of a comma that may turn out to be trailing, -1 when none
	pendingComma := -1

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out = append(out, ch)
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				inString = false
			}
			continue
		}

		if ch == '/' && i+1 < len(content) {
			switch content[i+1] {
			case '/':
				for i < len(content) && content[i] != '\n' {
					i++
				}
				if i < len(content) {
					out = append(out, '\n')
				}
				continue
			case '*':
				i += 2
				for i+1 < len(content) && !(content[i] == '*' && content[i+1] == '/') {
					i++
				}
				i++
				continue
			}
		}

		switch ch {
		case ' ', '\t', '\r', '\n':
			out = append(out, ch)
			continue
		case '}', ']':
			if pendingComma >= 0 {
				out = append(out[:pendingComma], out[pendingComma+1:]...)
			}
		case '"':
			inString = true
		}

		pendingComma = -1
		if ch == ',' {
			pendingComma = len(out)
		}
		out = append(out, ch)
	}

	return out
}
