package mapper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentcal/internal/model"
)

func TestFromSchedule(t *testing.T) {
	n := Notification{
		Kind:         KindSchedule,
		UID:          "e1",
		Title:        "Tweet thread",
		Description:  "details",
		StartsAt:     time.Date(2025, 2, 25, 12, 0, 0, 0, time.UTC),
		DurationMin:  30,
		Category:     "social",
		Agent:        "growth-bot",
		Project:      "launch",
		URL:          "https://example.com/t/1",
		AlertMinutes: []int{30, 5},
	}

	ev := FromSchedule(n)
	assert.Equal(t, "e1", ev.UID)
	assert.Equal(t, "Tweet thread", ev.Title)
	assert.Equal(t, model.StatusPlanned, ev.Status)
	assert.Equal(t, 30, ev.DurationMin)
	require.Len(t, ev.Alerts, 2)
	assert.Equal(t, 30, ev.Alerts[0].MinutesBefore)
	assert.Equal(t, 5, ev.Alerts[1].MinutesBefore)
}

func TestFromScheduleKeepsExplicitStatus(t *testing.T) {
	ev := FromSchedule(Notification{Kind: KindSchedule, Title: "x", Status: model.StatusInProgress})
	assert.Equal(t, model.StatusInProgress, ev.Status)
}

func TestPartialFromUpdateZeroFieldsAreUnset(t *testing.T) {
	p := PartialFromUpdate(Notification{Kind: KindScheduleUpdate, UID: "e1"})
	assert.Nil(t, p.Title)
	assert.Nil(t, p.Description)
	assert.Nil(t, p.Start)
	assert.Nil(t, p.Status)
	assert.Nil(t, p.Alerts)
}

func TestPartialFromUpdateAppliesSetFields(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	n := Notification{
		Kind:         KindScheduleUpdate,
		UID:          "e1",
		Title:        "Renamed",
		StartsAt:     start,
		Status:       model.StatusInProgress,
		AlertMinutes: []int{10},
	}

	p := PartialFromUpdate(n)
	require.NotNil(t, p.Title)
	assert.Equal(t, "Renamed", *p.Title)
	require.NotNil(t, p.Start)
	assert.True(t, p.Start.Equal(start))
	require.NotNil(t, p.Status)
	assert.Equal(t, model.StatusInProgress, *p.Status)
	require.NotNil(t, p.Alerts)
	assert.Equal(t, []model.Alert{{MinutesBefore: 10}}, *p.Alerts)

	ev := model.Event{UID: "e1", Title: "Before", Description: "keep me"}
	p.Apply(&ev)
	assert.Equal(t, "Renamed", ev.Title)
	assert.Equal(t, "keep me", ev.Description)
}

func TestFromCron(t *testing.T) {
	n := Notification{
		Kind:     KindCronRegister,
		UID:      "standup",
		Title:    "Daily standup",
		StartsAt: time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC),
		CronExpr: "0 9 * * 1-5",
	}

	ev := FromCron(n)
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR", ev.RRule)
	assert.Equal(t, "recurring", ev.Category)

	// Unsupported expressions fall back to a one-off marker event.
	n.CronExpr = "*/5 * * * *"
	n.Category = "ops"
	ev = FromCron(n)
	assert.Empty(t, ev.RRule)
	assert.Equal(t, "ops", ev.Category)
}
