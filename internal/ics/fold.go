package ics

import (
	"strings"
	"unicode/utf8"
)

const (
	// maxLineOctets is the RFC 5545 limit for one physical line, not
	// counting the CRLF terminator.
	maxLineOctets = 75
	// maxContOctets is the payload limit of a continuation line, which
	// spends one octet on its leading space.
	maxContOctets = 74
)

// FoldLine breaks one logical content line into physical lines of at most
// 75 octets. Continuation lines begin with a single space. The split point
// never lands inside a multi-byte UTF-8 sequence.
//
// The input must not contain line breaks; callers fold the already
// assembled "NAME:value" string.
func FoldLine(line string) []string {
	if len(line) <= maxLineOctets {
		return []string{line}
	}

	out := make([]string, 0, len(line)/maxContOctets+1)
	limit := maxLineOctets
	for len(line) > limit {
		cut := limit
		// Back up to a rune boundary.
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		if cut == 0 {
			// A single rune wider than the limit cannot occur in valid
			// UTF-8; emit the rest rather than looping forever.
			break
		}
		out = append(out, line[:cut])
		line = " " + line[cut:]
		limit = maxContOctets + 1 // payload plus the leading space
	}
	out = append(out, line)
	return out
}

// Unfold reverses folding: a CRLF (or bare LF) immediately followed by a
// space or tab is removed together with that space or tab.
func Unfold(s string) string {
	s = strings.ReplaceAll(s, "\r\n ", "")
	s = strings.ReplaceAll(s, "\r\n\t", "")
	s = strings.ReplaceAll(s, "\n ", "")
	s = strings.ReplaceAll(s, "\n\t", "")
	return s
}
