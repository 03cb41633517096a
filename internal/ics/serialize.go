package ics

import (
	"strconv"
	"strings"

	"agentcal/internal/model"
)

const (
	// ProdID identifies this generator in the calendar header.
	ProdID = "-//agentcal//agentcal//EN"

	// UIDDomain is appended to every serialized UID so feed clients see a
	// globally scoped identifier.
	UIDDomain = "@agentcal"
)

// RenderDocument serializes a full store document: calendar header, one
// VEVENT block per event in the given order, footer. Output is UTF-8 with
// CRLF line endings and folded lines throughout.
func RenderDocument(calName string, events []model.Event) []byte {
	var b strings.Builder

	writeLine(&b, "BEGIN:VCALENDAR")
	writeLine(&b, "VERSION:2.0")
	writeLine(&b, "PRODID:"+ProdID)
	writeLine(&b, "CALSCALE:GREGORIAN")
	writeLine(&b, "METHOD:PUBLISH")
	writeLine(&b, "X-WR-CALNAME:"+EscapeText(calName))
	writeLine(&b, "X-WR-TIMEZONE:UTC")

	for i := range events {
		writeEvent(&b, &events[i])
	}

	writeLine(&b, "END:VCALENDAR")
	return []byte(b.String())
}

func writeEvent(b *strings.Builder, e *model.Event) {
	writeLine(b, "BEGIN:VEVENT")
	writeLine(b, "UID:"+EscapeText(e.UID)+UIDDomain)

	stamp := e.Stamp
	if stamp.IsZero() {
		stamp = e.Start
	}
	writeLine(b, "DTSTAMP:"+FormatDateTime(stamp))

	if e.AllDay {
		writeLine(b, "DTSTART;VALUE=DATE:"+FormatDate(e.Start))
		end := e.End
		if end.IsZero() {
			end = e.Start.AddDate(0, 0, 1)
		}
		writeLine(b, "DTEND;VALUE=DATE:"+FormatDate(end))
	} else {
		writeLine(b, "DTSTART:"+FormatDateTime(e.Start))
		switch {
		case !e.End.IsZero():
			writeLine(b, "DTEND:"+FormatDateTime(e.End))
		case e.DurationMin > 0:
			writeLine(b, "DURATION:"+FormatDuration(e.DurationMin))
		default:
			writeLine(b, "DURATION:"+FormatDuration(model.DefaultDurationMin))
		}
	}

	writeLine(b, "SUMMARY:"+EscapeText(e.Title))
	if e.Description != "" {
		writeLine(b, "DESCRIPTION:"+EscapeText(e.Description))
	}
	if e.Category != "" {
		writeLine(b, "CATEGORIES:"+EscapeText(e.Category))
	}
	writeLine(b, "STATUS:"+FormatStatus(e.Status))
	writeLine(b, "SEQUENCE:"+strconv.Itoa(e.Sequence))
	if e.RRule != "" {
		writeLine(b, "RRULE:"+e.RRule)
	}
	if e.Agent != "" {
		writeLine(b, "X-AGENTCAL-AGENT:"+EscapeText(e.Agent))
	}
	if e.Project != "" {
		writeLine(b, "X-AGENTCAL-PROJECT:"+EscapeText(e.Project))
	}
	if e.URL != "" {
		writeLine(b, "URL:"+EscapeText(e.URL))
	}
	// Debug tag mirroring the bare identifier.
	writeLine(b, "X-AGENTCAL-ID:"+EscapeText(e.UID))

	for _, a := range e.Alerts {
		writeLine(b, "BEGIN:VALARM")
		writeLine(b, "ACTION:DISPLAY")
		writeLine(b, "TRIGGER:"+FormatTrigger(a.MinutesBefore))
		msg := a.Message
		if msg == "" {
			msg = "Reminder"
		}
		writeLine(b, "DESCRIPTION:"+EscapeText(msg))
		writeLine(b, "END:VALARM")
	}

	writeLine(b, "END:VEVENT")
}

// writeLine folds one logical line and terminates every physical line
// with CRLF.
func writeLine(b *strings.Builder, line string) {
	for _, physical := range FoldLine(line) {
		b.WriteString(physical)
		b.WriteString("\r\n")
	}
}
