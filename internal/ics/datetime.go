package ics

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	layoutDateTimeUTC = "20060102T150405Z"
	layoutDateTime    = "20060102T150405"
	layoutDate        = "20060102"
)

// FormatDateTime renders an instant as an iCalendar UTC date-time,
// e.g. 20250225T120000Z.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(layoutDateTimeUTC)
}

// FormatDate renders a date-only value, e.g. 20250225. Used for all-day
// events.
func FormatDate(t time.Time) string {
	return t.UTC().Format(layoutDate)
}

// ParseDateTime parses the two forms FormatDateTime/FormatDate produce.
// dateOnly reports whether the value carried no time component; date-only
// values come back as UTC midnight.
//
// Anything else falls through to a small set of permissive layouts before
// failing; callers must not depend on that path succeeding.
func ParseDateTime(v string) (t time.Time, dateOnly bool, err error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false, errors.New("empty date value")
	}

	if strings.HasSuffix(v, "Z") {
		t, err = time.Parse(layoutDateTimeUTC, v)
		return t, false, err
	}

	if !strings.Contains(v, "T") {
		t, err = time.ParseInLocation(layoutDate, v, time.UTC)
		return t, true, err
	}

	// Permissive fallback: floating local time and RFC 3339.
	if t, err = time.ParseInLocation(layoutDateTime, v, time.UTC); err == nil {
		return t, false, nil
	}
	if t, err = time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), false, nil
	}
	return time.Time{}, false, errors.New("unrecognized date value: " + v)
}

// FormatDuration renders a positive minute count as an iCalendar duration,
// e.g. PT15M. Whole hours collapse to PT1H form.
func FormatDuration(minutes int) string {
	if minutes <= 0 {
		return "PT0M"
	}
	if minutes%60 == 0 {
		return "PT" + strconv.Itoa(minutes/60) + "H"
	}
	return "PT" + strconv.Itoa(minutes) + "M"
}

// FormatTrigger renders an alert offset as a negative duration relative to
// the event start, e.g. -PT30M.
func FormatTrigger(minutesBefore int) string {
	if minutesBefore < 0 {
		minutesBefore = 0
	}
	return "-" + FormatDuration(minutesBefore)
}

// ParseTrigger is the inverse of FormatTrigger; it also accepts positive
// and hour/day based durations since other producers emit those.
func ParseTrigger(v string) (int, error) {
	v = strings.TrimSpace(strings.ToUpper(v))
	if v == "" {
		return 0, errors.New("empty trigger value")
	}
	neg := false
	if strings.HasPrefix(v, "-") {
		neg = true
		v = v[1:]
	} else if strings.HasPrefix(v, "+") {
		v = v[1:]
	}
	minutes, err := ParseDurationMinutes(v)
	if err != nil {
		return 0, err
	}
	if !neg {
		// A positive trigger fires after start; the model only knows
		// minutes-before, so clamp to zero.
		return 0, nil
	}
	return minutes, nil
}

// ParseDurationMinutes parses an unsigned iCalendar duration (PT15M, PT1H,
// P1D, ...) into whole minutes. Seconds are dropped.
func ParseDurationMinutes(v string) (int, error) {
	v = strings.TrimSpace(strings.ToUpper(v))
	if !strings.HasPrefix(v, "P") {
		return 0, errors.New("value is not a duration")
	}
	v = v[1:]

	minutes := 0
	num := 0
	haveNum := false
	inTime := false
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			num = num*10 + int(r-'0')
			haveNum = true
		case r == 'T':
			inTime = true
		case r == 'W':
			minutes += num * 7 * 24 * 60
			num, haveNum = 0, false
		case r == 'D':
			minutes += num * 24 * 60
			num, haveNum = 0, false
		case r == 'H':
			minutes += num * 60
			num, haveNum = 0, false
		case r == 'M':
			if !inTime {
				return 0, errors.New("month durations are not supported")
			}
			minutes += num
			num, haveNum = 0, false
		case r == 'S':
			// Sub-minute precision is dropped.
			num, haveNum = 0, false
		default:
			return 0, errors.New("malformed duration")
		}
	}
	if haveNum {
		return 0, errors.New("malformed duration")
	}
	return minutes, nil
}
