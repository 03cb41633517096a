package model

import "time"

// Status is the lifecycle state of an event. It drives the serialized
// confirmation state (see internal/ics).
type Status string

const (
	StatusPlanned    Status = "PLANNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// DefaultDurationMin is the effective duration applied when an event
// carries neither an end time nor an explicit duration.
const DefaultDurationMin = 15

// Alert is a reminder attached to an event: minutes before start plus an
// optional display message.
type Alert struct {
	MinutesBefore int
	Message       string
}

// Event is one calendar-visible activity record. UID is unique within a
// single store and immutable after creation; Sequence only increases.
type Event struct {
	UID string

	Title       string
	Description string

	Start       time.Time
	End         time.Time // zero unless explicitly set
	DurationMin int       // minutes; 0 means unset
	AllDay      bool

	Category string
	Agent    string // source identifier; drives per-source feed routing
	Project  string

	Status   Status
	Sequence int

	// RRule marks the event as recurring when non-empty. Recurrence is
	// emitted verbatim; expansion is left to the consuming client.
	RRule string

	Alerts []Alert
	URL    string

	// Stamp is the generation timestamp (DTSTAMP). Set when the event
	// enters a store.
	Stamp time.Time
}

// EffectiveEnd returns End when set, otherwise Start plus the explicit
// duration, otherwise Start plus DefaultDurationMin.
func (e *Event) EffectiveEnd() time.Time {
	if !e.End.IsZero() {
		return e.End
	}
	if e.DurationMin > 0 {
		return e.Start.Add(time.Duration(e.DurationMin) * time.Minute)
	}
	return e.Start.Add(DefaultDurationMin * time.Minute)
}

// Clone returns a deep copy; Alerts are copied so callers cannot alias
// store-owned state.
func (e *Event) Clone() Event {
	out := *e
	if len(e.Alerts) > 0 {
		out.Alerts = make([]Alert, len(e.Alerts))
		copy(out.Alerts, e.Alerts)
	}
	return out
}

// Partial is a field-wise update for Event. Nil pointers leave the
// corresponding field untouched.
type Partial struct {
	Title       *string
	Description *string
	Start       *time.Time
	End         *time.Time
	DurationMin *int
	AllDay      *bool
	Category    *string
	Agent       *string
	Project     *string
	Status      *Status
	RRule       *string
	Alerts      *[]Alert
	URL         *string
}

// Apply merges the set fields of p into e. The caller is responsible for
// bumping Sequence; Apply itself never touches UID or Sequence.
func (p Partial) Apply(e *Event) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Start != nil {
		e.Start = *p.Start
	}
	if p.End != nil {
		e.End = *p.End
	}
	if p.DurationMin != nil {
		e.DurationMin = *p.DurationMin
	}
	if p.AllDay != nil {
		e.AllDay = *p.AllDay
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Agent != nil {
		e.Agent = *p.Agent
	}
	if p.Project != nil {
		e.Project = *p.Project
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.RRule != nil {
		e.RRule = *p.RRule
	}
	if p.Alerts != nil {
		alerts := make([]Alert, len(*p.Alerts))
		copy(alerts, *p.Alerts)
		e.Alerts = alerts
	}
	if p.URL != nil {
		e.URL = *p.URL
	}
}
