package applecal

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentcal/internal/model"
)

func TestDescriptorForSkipsRecurring(t *testing.T) {
	_, ok := DescriptorFor(model.Event{
		UID:   "standup",
		Title: "Daily standup",
		Start: time.Now().UTC(),
		RRule: "FREQ=DAILY",
	}, false)
	assert.False(t, ok)
}

func TestDescriptorForUpsert(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	d, ok := DescriptorFor(model.Event{
		UID:         "e1",
		Title:       "Ship v2",
		Description: "notes",
		Start:       start,
		DurationMin: 30,
		Agent:       "dev",
	}, false)
	require.True(t, ok)

	assert.Equal(t, OpUpsert, d.Op)
	assert.Equal(t, "dev", d.Calendar)
	assert.Equal(t, "e1", d.UID)
	assert.True(t, d.End.Equal(start.Add(30*time.Minute)))
}

func TestDescriptorForFallbackCalendar(t *testing.T) {
	d, ok := DescriptorFor(model.Event{UID: "e1", Title: "x", Start: time.Now().UTC()}, false)
	require.True(t, ok)
	assert.Equal(t, "agentcal", d.Calendar)
}

func TestDescriptorForDelete(t *testing.T) {
	ev := model.Event{UID: "e1", Title: "x", Start: time.Now().UTC()}

	d, ok := DescriptorFor(ev, true)
	require.True(t, ok)
	assert.Equal(t, OpDelete, d.Op)

	ev.Status = model.StatusCancelled
	d, ok = DescriptorFor(ev, false)
	require.True(t, ok)
	assert.Equal(t, OpDelete, d.Op)
}

func TestBuildScriptUpsert(t *testing.T) {
	script := BuildScript(Descriptor{
		Calendar: "dev",
		UID:      "e1",
		Title:    `Say "hi"`,
		Notes:    "line1\nline2",
		Start:    time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		End:      time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
		Op:       OpUpsert,
	})

	assert.Contains(t, script, `tell application "Calendar"`)
	assert.Contains(t, script, `if not (exists calendar "dev") then`)
	assert.Contains(t, script, `every event whose url is "agentcal://e1"`)
	assert.Contains(t, script, `summary:"Say \"hi\""`)
	assert.Contains(t, script, `description:"line1\nline2"`)
	assert.Contains(t, script, "set year of startDate to 2025")
	assert.Contains(t, script, "make new event with properties")
}

func TestBuildScriptDeleteOmitsCreation(t *testing.T) {
	script := BuildScript(Descriptor{
		Calendar: "dev",
		UID:      "e1",
		Op:       OpDelete,
	})

	assert.Contains(t, script, `every event whose url is "agentcal://e1"`)
	assert.NotContains(t, script, "make new event")
}

func TestDispatcherMirrorEvent(t *testing.T) {
	var got []string
	d := NewDispatcher(time.Second)
	d.run = func(_ context.Context, script string) error {
		got = append(got, script)
		return nil
	}

	err := d.MirrorEvent(context.Background(), model.Event{
		UID:   "e1",
		Title: "x",
		Start: time.Now().UTC(),
		Agent: "dev",
	}, false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, strings.Contains(got[0], "agentcal://e1"))

	// Recurring events never invoke the script runner.
	err = d.MirrorEvent(context.Background(), model.Event{
		UID:   "standup",
		Title: "x",
		Start: time.Now().UTC(),
		RRule: "FREQ=DAILY",
	}, false)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDispatcherWrapsRunErrors(t *testing.T) {
	d := NewDispatcher(time.Second)
	d.run = func(context.Context, string) error { return errors.New("not on macOS") }

	err := d.Apply(context.Background(), Descriptor{Calendar: "dev", UID: "e1", Op: OpDelete})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "e1")
	assert.Contains(t, err.Error(), "not on macOS")
}

func TestDispatcherHonorsContextCancellation(t *testing.T) {
	d := NewDispatcher(time.Second)
	d.run = func(ctx context.Context, _ string) error { return ctx.Err() }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Apply(ctx, Descriptor{Calendar: "dev", UID: "e1", Op: OpDelete})
	assert.Error(t, err)
}
