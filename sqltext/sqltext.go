// Package sqltext prepares raw SQL text for execution. It removes block and
// line comments without touching single-quoted literals, and splits scripts
// into individual statements.
package sqltext

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// StripComments returns sql with every /* ... */ and -- comment removed.
//
// The text is scanned left to right with a single-quote toggle, so comment
// markers inside string literals are kept verbatim. A line comment is removed
// up to, but not including, its line break. A block comment that is the only
// content of the lines it spans is removed together with those lines; any
// other block comment is cut out in place. An unterminated block comment runs
// to the end of the input.
//
// Example:
//
//	sqltext.StripComments("/*\nselect * from a.b;\n*/\n\nselect * from c.d\n")
//	// "\nselect * from c.d\n"
func StripComments(sql string) string {
	out := make([]byte, 0, len(sql))
	lineStart := 0 // offset in out where the current output line begins
	inQuote := false
	n := len(sql)

	for i := 0; i < n; {
		c := sql[i]

		if inQuote {
			out = append(out, c)
			switch c {
			case '\'':
				inQuote = false
			case '\n':
				lineStart = len(out)
			}
			i++
			continue
		}

		switch {
		case c == '\'':
			inQuote = true
			out = append(out, c)
			i++

		case c == '-' && i+1 < n && sql[i+1] == '-':
			i = lineCommentEnd(sql, i)

		case c == '/' && i+1 < n && sql[i+1] == '*':
			end := n
			if j := strings.Index(sql[i+2:], "*/"); j >= 0 {
				end = i + 2 + j + 2
			}

			k := end
			for k < n && (sql[k] == ' ' || sql[k] == '\t' || sql[k] == '\r') {
				k++
			}
			if (k == n || sql[k] == '\n') && isBlank(out[lineStart:]) {
				// The comment owns its lines.
				out = out[:lineStart]
				if k < n {
					k++
				}
				i = k
				continue
			}

			// Cutting the comment out must not fuse "-" "-" or "/" "*" into a new marker.
			if len(out) > 0 && end < n && fuses(out[len(out)-1], sql[end]) {
				out = append(out, ' ')
			}
			i = end

		case c == '\n':
			out = append(out, c)
			lineStart = len(out)
			i++

		default:
			out = append(out, c)
			i++
		}
	}

	return string(out)
}

// lineCommentEnd returns the offset of the line break ending the comment at i.
// A CRLF pair is left intact.
func lineCommentEnd(sql string, i int) int {
	j := strings.IndexByte(sql[i:], '\n')
	if j < 0 {
		return len(sql)
	}
	end := i + j
	if end > i && sql[end-1] == '\r' {
		end--
	}
	return end
}

func isBlank(b []byte) bool {
	for _, c := range b {
		if c != ' ' && c != '\t' && c != '\r' {
			return false
		}
	}
	return true
}

func fuses(prev, next byte) bool {
	return (prev == '-' && next == '-') || (prev == '/' && next == '*')
}

// Statements strips comments from sql and splits it on semicolons that are
// outside string literals. Surrounding whitespace is trimmed and empty
// statements are dropped.
func Statements(sql string) []string {
	stripped := StripComments(sql)

	var stmts []string
	inQuote := false
	start := 0
	for i := 0; i < len(stripped); i++ {
		switch stripped[i] {
		case '\'':
			inQuote = !inQuote
		case ';':
			if inQuote {
				continue
			}
			if s := strings.TrimSpace(stripped[start:i]); s != "" {
				stmts = append(stmts, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(stripped[start:]); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}

// Read reads a whole SQL script from r and returns it with comments removed.
func Read(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read SQL: %w", err)
	}
	return StripComments(string(data)), nil
}

// ReadFile reads the SQL script at path and returns it with comments removed.
func ReadFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open SQL file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Read(f)
}
