// Package mapper translates upstream activity notifications into calendar
// events, including check-in follow-ups, cron-to-recurrence translation
// and the daily task rollup.
package mapper

import (
	"time"

	"agentcal/internal/model"
)

// Kind identifies one of the five logical notification kinds the upstream
// bus delivers.
type Kind string

const (
	KindSchedule       Kind = "schedule"
	KindScheduleUpdate Kind = "schedule-update"
	KindScheduleCancel Kind = "schedule-cancel"
	KindTaskComplete   Kind = "task-complete"
	KindCronRegister   Kind = "cron-register"
)

// Notification is one raw activity notification. Which fields matter
// depends on Kind; for updates, zero-valued fields are treated as unset.
type Notification struct {
	Kind Kind `json:"kind"`

	UID         string `json:"uid,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	StartsAt    time.Time `json:"starts_at,omitempty"`
	EndsAt      time.Time `json:"ends_at,omitempty"`
	DurationMin int       `json:"duration_min,omitempty"`
	AllDay      bool      `json:"all_day,omitempty"`

	Category string       `json:"category,omitempty"`
	Agent    string       `json:"agent,omitempty"`
	Project  string       `json:"project,omitempty"`
	Status   model.Status `json:"status,omitempty"`
	URL      string       `json:"url,omitempty"`

	// AlertMinutes lists reminder offsets, minutes before start.
	AlertMinutes []int `json:"alert_minutes,omitempty"`

	// CheckinOffsets are follow-up offsets relative to StartsAt, e.g.
	// "24h", "48h", "7d". Only meaningful for schedule notifications.
	CheckinOffsets []string `json:"checkin_offsets,omitempty"`

	// CronExpr is the cron schedule of a cron-register notification.
	CronExpr string `json:"cron,omitempty"`

	// CompletedAt / TaskSummary describe a task-complete notification.
	CompletedAt time.Time `json:"completed_at,omitempty"`
	TaskSummary string    `json:"task_summary,omitempty"`
}

// FromSchedule maps a schedule notification onto a new event.
func FromSchedule(n Notification) model.Event {
	ev := model.Event{
		UID:         n.UID,
		Title:       n.Title,
		Description: n.Description,
		Start:       n.StartsAt,
		End:         n.EndsAt,
		DurationMin: n.DurationMin,
		AllDay:      n.AllDay,
		Category:    n.Category,
		Agent:       n.Agent,
		Project:     n.Project,
		Status:      n.Status,
		URL:         n.URL,
	}
	if ev.Status == "" {
		ev.Status = model.StatusPlanned
	}
	for _, m := range n.AlertMinutes {
		ev.Alerts = append(ev.Alerts, model.Alert{MinutesBefore: m})
	}
	return ev
}

// PartialFromUpdate maps a schedule-update notification onto a partial
// event update. Zero-valued notification fields leave the stored event
// untouched.
func PartialFromUpdate(n Notification) model.Partial {
	var p model.Partial
	if n.Title != "" {
		p.Title = &n.Title
	}
	if n.Description != "" {
		p.Description = &n.Description
	}
	if !n.StartsAt.IsZero() {
		p.Start = &n.StartsAt
	}
	if !n.EndsAt.IsZero() {
		p.End = &n.EndsAt
	}
	if n.DurationMin > 0 {
		p.DurationMin = &n.DurationMin
	}
	if n.Category != "" {
		p.Category = &n.Category
	}
	if n.Project != "" {
		p.Project = &n.Project
	}
	if n.Status != "" {
		p.Status = &n.Status
	}
	if n.URL != "" {
		p.URL = &n.URL
	}
	if len(n.AlertMinutes) > 0 {
		alerts := make([]model.Alert, 0, len(n.AlertMinutes))
		for _, m := range n.AlertMinutes {
			alerts = append(alerts, model.Alert{MinutesBefore: m})
		}
		p.Alerts = &alerts
	}
	return p
}

// FromCron maps a cron-register notification onto a recurring event. The
// recurrence rule is translated from the cron expression; unsupported
// patterns leave RRule empty and the event behaves as a one-off marker.
func FromCron(n Notification) model.Event {
	ev := FromSchedule(n)
	ev.RRule = CronToRRule(n.CronExpr)
	if ev.Category == "" {
		ev.Category = "recurring"
	}
	return ev
}
