package mapper

import (
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/teambition/rrule-go"

	appLog "agentcal/internal/log"
)

// CronToRRule translates a five-field cron expression into an iCalendar
// recurrence rule. The translation is deliberately partial; it recognizes:
//
//   - every day                  "0 8 * * *"        FREQ=DAILY
//   - a single weekday           "0 8 * * 1"        FREQ=WEEKLY;BYDAY=MO
//   - a weekday list             "0 8 * * 1,3,5"    FREQ=WEEKLY;BYDAY=MO,WE,FR
//   - the Monday-Friday range    "0 8 * * 1-5"      FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR
//
// Any sub-hourly or sub-daily pattern (minute field containing '/' or ',',
// hour field containing '/'), restricted day-of-month/month fields, and
// anything the cron parser rejects yield an empty rule rather than an
// incorrect approximation.
func CronToRRule(expr string) string {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return ""
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		appLog.Debug("unparseable cron expression, no recurrence", "expr", expr, "err", err)
		return ""
	}

	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return ""
	}
	minute, hour, dom, month, dow := fields[0], fields[1], fields[2], fields[3], fields[4]

	if strings.ContainsAny(minute, "/,") || minute == "*" {
		return "" // sub-hourly
	}
	if strings.Contains(hour, "/") || hour == "*" {
		return "" // sub-daily
	}
	if dom != "*" || month != "*" {
		return ""
	}

	if dow == "*" {
		return ruleString(rrule.ROption{Freq: rrule.DAILY})
	}

	days, ok := parseWeekdayField(dow)
	if !ok {
		return ""
	}
	return ruleString(rrule.ROption{Freq: rrule.WEEKLY, Byweekday: days})
}

func ruleString(opt rrule.ROption) string {
	r, err := rrule.NewRRule(opt)
	if err != nil {
		appLog.Error("recurrence rule construction failed", err)
		return ""
	}
	return r.String()
}

// parseWeekdayField handles a single numeric weekday, a comma list, and
// the 1-5 weekday range.
func parseWeekdayField(dow string) ([]rrule.Weekday, bool) {
	if dow == "1-5" {
		return []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR}, true
	}
	if strings.Contains(dow, "-") || strings.Contains(dow, "/") {
		return nil, false
	}

	var days []rrule.Weekday
	for _, tok := range strings.Split(dow, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			return nil, false
		}
		day, ok := weekdayFromCron(n)
		if !ok {
			return nil, false
		}
		days = append(days, day)
	}
	if len(days) == 0 {
		return nil, false
	}
	return days, true
}

// weekdayFromCron maps cron day-of-week numbers (0 and 7 are Sunday).
func weekdayFromCron(n int) (rrule.Weekday, bool) {
	switch n {
	case 0, 7:
		return rrule.SU, true
	case 1:
		return rrule.MO, true
	case 2:
		return rrule.TU, true
	case 3:
		return rrule.WE, true
	case 4:
		return rrule.TH, true
	case 5:
		return rrule.FR, true
	case 6:
		return rrule.SA, true
	}
	return rrule.Weekday{}, false
}
