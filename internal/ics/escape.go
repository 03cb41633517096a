package ics

import "strings"

// EscapeText escapes a value for use in an iCalendar text property:
// backslash, semicolon, comma and newline become \\ \; \, \n.
// Backslash must be escaped first so later replacements cannot introduce
// new escape sequences.
func EscapeText(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, ";", `\;`)
	s = strings.ReplaceAll(s, ",", `\,`)
	s = strings.ReplaceAll(s, "\r\n", `\n`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

// UnescapeText is the exact inverse of EscapeText. It walks the string in
// a single pass so an escaped backslash is never re-read as the start of
// another escape.
func UnescapeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case ';':
			b.WriteByte(';')
		case ',':
			b.WriteByte(',')
		case 'n', 'N':
			b.WriteByte('\n')
		default:
			// Unknown escape: keep both bytes as-is.
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
