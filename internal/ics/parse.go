package ics

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "agentcal/internal/log"
	"agentcal/internal/model"
)

// ParseDocument parses a store document back into events.
//
// A malformed VEVENT is logged and skipped so one bad block never aborts a
// whole load; a calendar-level parse failure is returned. name is only
// used for logging.
func ParseDocument(name string, body []byte) ([]model.Event, error) {
	if len(body) == 0 {
		return nil, errors.New("empty calendar body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("calendar parse failed", err, "feed", name)
		return nil, err
	}

	events := make([]model.Event, 0)
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(ve)
		if perr != nil {
			appLog.Error("vevent parse failed, skipping block", perr, "feed", name)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("calendar parse completed", "feed", name, "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (model.Event, error) {
	var out model.Event

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = UnescapeText(strings.TrimSuffix(uidProp.Value, UIDDomain))

	// DTSTART: all-day is signaled by VALUE=DATE or a date-only value.
	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return out, errors.New("missing DTSTART")
	}
	start, dateOnly, err := ParseDateTime(dtStart.Value)
	if err != nil {
		return out, err
	}
	out.Start = start
	out.AllDay = dateOnly
	if params := dtStart.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			out.AllDay = true
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil && p.Value != "" {
		if end, _, eerr := ParseDateTime(p.Value); eerr == nil {
			out.End = end
		}
	}
	if p := ve.GetProperty(ical.ComponentProperty("DURATION")); p != nil && p.Value != "" {
		if mins, derr := ParseDurationMinutes(p.Value); derr == nil {
			out.DurationMin = mins
		}
	}
	if out.AllDay && !out.End.IsZero() && out.End.Equal(out.Start.AddDate(0, 0, 1)) {
		// The next-day DTEND of an all-day event is derived at render
		// time, not caller state; drop it so round trips stay stable.
		out.End = time.Time{}
	}

	if p := ve.GetProperty(ical.ComponentPropertyDtstamp); p != nil && p.Value != "" {
		if stamp, _, serr := ParseDateTime(p.Value); serr == nil {
			out.Stamp = stamp
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = UnescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = UnescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyCategories); p != nil {
		out.Category = UnescapeText(p.Value)
	}

	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil {
		out.Status = ParseStatus(p.Value)
	} else {
		out.Status = model.StatusPlanned
	}

	if p := ve.GetProperty(ical.ComponentPropertySequence); p != nil {
		if n, aerr := strconv.Atoi(strings.TrimSpace(p.Value)); aerr == nil {
			out.Sequence = n
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RRule = p.Value
	}

	if p := ve.GetProperty(ical.ComponentProperty("X-AGENTCAL-AGENT")); p != nil {
		out.Agent = UnescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentProperty("X-AGENTCAL-PROJECT")); p != nil {
		out.Project = UnescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyUrl); p != nil {
		out.URL = UnescapeText(p.Value)
	}

	for _, alarm := range ve.Alarms() {
		var a model.Alert
		ok := false
		if p := alarm.GetProperty(ical.ComponentProperty("TRIGGER")); p != nil {
			if mins, terr := ParseTrigger(p.Value); terr == nil {
				a.MinutesBefore = mins
				ok = true
			}
		}
		if !ok {
			continue
		}
		if p := alarm.GetProperty(ical.ComponentPropertyDescription); p != nil {
			a.Message = UnescapeText(p.Value)
		}
		out.Alerts = append(out.Alerts, a)
	}

	return out, nil
}
