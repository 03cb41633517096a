package ics

import (
	"strings"

	"agentcal/internal/model"
)

// SanitizeEvent cleans every text field of an event in place. Stores run
// this once when an event enters, so stored and re-parsed events are
// already clean.
func SanitizeEvent(e *model.Event) {
	e.Title = SanitizeStructural(e.Title)
	e.Description = SanitizeContent(e.Description)
	e.Category = SanitizeStructural(e.Category)
	e.Agent = SanitizeStructural(e.Agent)
	e.Project = SanitizeStructural(e.Project)
	e.RRule = SanitizeStructural(e.RRule)
	e.URL = SanitizeStructural(e.URL)
	for i := range e.Alerts {
		e.Alerts[i].Message = SanitizeStructural(e.Alerts[i].Message)
		if e.Alerts[i].Message == "" {
			e.Alerts[i].Message = "Reminder"
		}
		if e.Alerts[i].MinutesBefore < 0 {
			e.Alerts[i].MinutesBefore = 0
		}
	}
}

// SanitizeStructural strips every control character, including line
// separators. Applied to titles, tag-like fields and URLs, which must stay
// single-line.
func SanitizeStructural(s string) string {
	return strings.Map(func(r rune) rune {
		if isControl(r) || isLineSeparator(r) {
			return -1
		}
		return r
	}, s)
}

// SanitizeContent keeps internal newlines (bullet lists live in the
// description) but normalizes Unicode line separators to plain \n and
// strips the remaining control characters.
func SanitizeContent(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n':
			b.WriteRune('\n')
		case isLineSeparator(r) || r == '\r':
			b.WriteRune('\n')
		case isControl(r):
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}

func isLineSeparator(r rune) bool {
	// U+2028 LINE SEPARATOR, U+2029 PARAGRAPH SEPARATOR, U+0085 NEL.
	return r == '\u2028' || r == '\u2029' || r == '\u0085'
}
