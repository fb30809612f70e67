package plsql

import "strings"

// StripComments removes single-line (--) and block (/* */) comments from
// Oracle source while leaving string literals untouched. Comment bytes are
// replaced with spaces (newlines preserved) so token positions in the
// stripped text still index into a same-length buffer.
func StripComments(source string) string {
	var out strings.Builder
	out.Grow(len(source))

	i := 0
	for i < len(source) {
		c := source[i]

		// String literal: copy through to the closing quote. Doubled
		// quotes ('') are an escaped quote, not a terminator.
		if c == '\'' {
			out.WriteByte(c)
			i++
			for i < len(source) {
				out.WriteByte(source[i])
				if source[i] == '\'' {
					if i+1 < len(source) && source[i+1] == '\'' {
						i++
						out.WriteByte(source[i])
					} else {
						break
					}
				}
				i++
			}
			i++
			continue
		}

		// Quoted identifier: same treatment, no escape handling needed.
		if c == '"' {
			out.WriteByte(c)
			i++
			for i < len(source) && source[i] != '"' {
				out.WriteByte(source[i])
				i++
			}
			if i < len(source) {
				out.WriteByte('"')
				i++
			}
			continue
		}

		if c == '-' && i+1 < len(source) && source[i+1] == '-' {
			for i < len(source) && source[i] != '\n' {
				out.WriteByte(' ')
				i++
			}
			continue
		}

		if c == '/' && i+1 < len(source) && source[i+1] == '*' {
			out.WriteString("  ")
			i += 2
			for i < len(source) {
				if source[i] == '*' && i+1 < len(source) && source[i+1] == '/' {
					out.WriteString("  ")
					i += 2
					break
				}
				if source[i] == '\n' {
					out.WriteByte('\n')
				} else {
					out.WriteByte(' ')
				}
				i++
			}
			continue
		}

		out.WriteByte(c)
		i++
	}

	return out.String()
}
