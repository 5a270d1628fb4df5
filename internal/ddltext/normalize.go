// Package ddltext normalizes the raw statement text carried by QUERY
// binlog events before it is logged or forwarded to the admin broker as
// a DdlEvent: literal values are replaced with placeholders and
// whitespace is collapsed, so that repeated DDL statements differing
// only in literal arguments group together, adapted from the teacher's
// query.Normalize.
package ddltext

import "strings"

// Normalize replaces string and standalone numeric literals in stmt
// with '?', collapsing runs of whitespace to a single space. QUERY
// events are observed, not semantically parsed (see the agent's DDL
// non-goal), so this is a lexical pass only — it never attempts to
// parse the statement's grammar.
func Normalize(stmt string) string {
	if stmt == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(stmt))

	i := 0
	prevSpace := false
	for i < len(stmt) {
		ch := stmt[i]

		if ch == '\'' {
			i = normalizeString(&b, stmt, i)
			prevSpace = false
			continue
		}

		if isDigit(ch) && (i == 0 || isBoundary(stmt[i-1])) {
			if next, ok := normalizeNumber(&b, stmt, i); ok {
				i = next
				prevSpace = false
				continue
			}
		}

		if isSpace(ch) {
			if !prevSpace && b.Len() > 0 {
				b.WriteByte(' ')
				prevSpace = true
			}
			i++
			continue
		}

		b.WriteByte(ch)
		i++
		prevSpace = false
	}

	return strings.TrimRight(b.String(), " ")
}

func normalizeString(b *strings.Builder, s string, pos int) int {
	j := pos + 1
	for j < len(s) {
		if s[j] == '\'' && j+1 < len(s) && s[j+1] == '\'' {
			j += 2
			continue
		}
		if s[j] == '\'' {
			j++
			break
		}
		j++
	}
	b.WriteString("'?'")
	return j
}

func normalizeNumber(b *strings.Builder, s string, pos int) (int, bool) {
	j := pos + 1
	for j < len(s) && (isDigit(s[j]) || s[j] == '.') {
		j++
	}
	if j >= len(s) || isBoundary(s[j]) {
		b.WriteByte('?')
		return j, true
	}
	return 0, false
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isBoundary(c byte) bool {
	return isSpace(c) ||
		c == ',' || c == '(' || c == ')' || c == '=' ||
		c == '<' || c == '>' || c == '+' || c == '-' ||
		c == '*' || c == '/' || c == ';'
}
