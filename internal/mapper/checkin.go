package mapper

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	appLog "agentcal/internal/log"
	"agentcal/internal/model"
)

// CheckinEvents produces one follow-up event per offset expression,
// anchored at the launch event's start. IDs derive from the anchor UID and
// the offset's position, so reprocessing the same notification overwrites
// the same events instead of duplicating them.
//
// Offsets use a single unit suffix: "30m", "24h", "7d". Malformed offsets
// are logged and skipped.
func CheckinEvents(anchor model.Event, offsets []string) []model.Event {
	out := make([]model.Event, 0, len(offsets))
	for i, off := range offsets {
		d, err := parseOffset(off)
		if err != nil {
			appLog.Error("skipping malformed check-in offset", err, "offset", off, "anchor", anchor.UID)
			continue
		}
		ev := model.Event{
			UID:         anchor.UID + "-checkin-" + strconv.Itoa(i+1),
			Title:       "Check in: " + anchor.Title,
			Description: "Follow up on \"" + anchor.Title + "\" (" + off + " after launch)",
			Start:       anchor.Start.Add(d),
			DurationMin: model.DefaultDurationMin,
			Category:    "check-in",
			Agent:       anchor.Agent,
			Project:     anchor.Project,
			Status:      model.StatusPlanned,
			URL:         anchor.URL,
		}
		out = append(out, ev)
	}
	return out
}

// parseOffset parses "Nm" / "Nh" / "Nd" into a duration.
func parseOffset(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if len(s) < 2 {
		return 0, fmt.Errorf("bad offset expression: %q", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("bad offset expression: %q", s)
	}
	switch s[len(s)-1] {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("bad offset expression: %q", s)
}
