// Package applecal mirrors feed events into the scriptable macOS Calendar
// application. It is a one-way side channel: writes are best effort, never
// read back, and never block the store's own write path beyond a bounded
// timeout.
package applecal

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	appLog "agentcal/internal/log"
	"agentcal/internal/model"
)

// Op distinguishes descriptor intents.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// DefaultTimeout bounds one osascript invocation.
const DefaultTimeout = 10 * time.Second

// Descriptor is the inert request the core emits: calendar name plus the
// event fields the script needs. Building one has no side effects.
type Descriptor struct {
	Calendar string
	UID      string
	Title    string
	Notes    string
	Start    time.Time
	End      time.Time
	AllDay   bool
	Op       Op
}

// DescriptorFor derives the mirror request for an event. Recurring events
// yield no descriptor at all: the scripting surface cannot faithfully
// represent a recurrence rule. Cancelled or removed events map to a
// delete.
func DescriptorFor(ev model.Event, removed bool) (Descriptor, bool) {
	if ev.RRule != "" {
		return Descriptor{}, false
	}
	cal := ev.Agent
	if cal == "" {
		cal = "agentcal"
	}
	d := Descriptor{
		Calendar: cal,
		UID:      ev.UID,
		Title:    ev.Title,
		Notes:    ev.Description,
		Start:    ev.Start,
		End:      ev.EffectiveEnd(),
		AllDay:   ev.AllDay,
		Op:       OpUpsert,
	}
	if removed || ev.Status == model.StatusCancelled {
		d.Op = OpDelete
	}
	return d, true
}

// Dispatcher executes descriptors against the Calendar application with a
// bounded timeout.
type Dispatcher struct {
	timeout time.Duration

	// run executes one AppleScript; tests swap it out.
	run func(ctx context.Context, script string) error
}

func NewDispatcher(timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{timeout: timeout, run: runOsascript}
}

// MirrorEvent implements the bus.Mirror contract.
func (d *Dispatcher) MirrorEvent(ctx context.Context, ev model.Event, removed bool) error {
	desc, ok := DescriptorFor(ev, removed)
	if !ok {
		appLog.Debug("recurring event skipped by calendar mirror", "uid", ev.UID)
		return nil
	}
	return d.Apply(ctx, desc)
}

// Apply runs one descriptor: ensure the calendar exists, delete any item
// carrying the UID marker, then recreate it unless the op is a delete.
func (d *Dispatcher) Apply(ctx context.Context, desc Descriptor) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	script := BuildScript(desc)
	if err := d.run(ctx, script); err != nil {
		return fmt.Errorf("calendar mirror %s for %q: %w", desc.Op, desc.UID, err)
	}
	appLog.Debug("calendar mirror applied", "op", string(desc.Op), "calendar", desc.Calendar, "uid", desc.UID)
	return nil
}

func runOsascript(ctx context.Context, script string) error {
	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("osascript: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// markerURL tags mirrored items so upserts and deletes can find them
// again; Calendar exposes no writable UID.
func markerURL(uid string) string {
	return "agentcal://" + uid
}

// BuildScript renders the AppleScript for one descriptor.
func BuildScript(d Descriptor) string {
	var b strings.Builder

	b.WriteString("tell application \"Calendar\"\n")
	fmt.Fprintf(&b, "\tif not (exists calendar %s) then\n", quote(d.Calendar))
	fmt.Fprintf(&b, "\t\tmake new calendar with properties {name:%s}\n", quote(d.Calendar))
	b.WriteString("\tend if\n")
	fmt.Fprintf(&b, "\ttell calendar %s\n", quote(d.Calendar))
	fmt.Fprintf(&b, "\t\tset stale to every event whose url is %s\n", quote(markerURL(d.UID)))
	b.WriteString("\t\trepeat with ev in stale\n\t\t\tdelete ev\n\t\tend repeat\n")

	if d.Op == OpUpsert {
		writeDateVar(&b, "startDate", d.Start, d.AllDay)
		writeDateVar(&b, "endDate", d.End, d.AllDay)
		fmt.Fprintf(&b,
			"\t\tmake new event with properties {summary:%s, start date:startDate, end date:endDate, allday event:%v, description:%s, url:%s}\n",
			quote(d.Title), d.AllDay, quote(d.Notes), quote(markerURL(d.UID)))
	}

	b.WriteString("\tend tell\nend tell\n")
	return b.String()
}

// writeDateVar emits locale-independent date construction: AppleScript's
// literal date parsing depends on system settings, setting the components
// does not.
func writeDateVar(b *strings.Builder, name string, t time.Time, allDay bool) {
	local := t.Local()
	if allDay {
		local = time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.Local)
	}
	fmt.Fprintf(b, "\t\tset %s to current date\n", name)
	fmt.Fprintf(b, "\t\tset year of %s to %d\n", name, local.Year())
	fmt.Fprintf(b, "\t\tset month of %s to %d\n", name, int(local.Month()))
	fmt.Fprintf(b, "\t\tset day of %s to %d\n", name, local.Day())
	fmt.Fprintf(b, "\t\tset time of %s to %d\n", name, local.Hour()*3600+local.Minute()*60+local.Second())
}

// quote renders an AppleScript string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return "\"" + s + "\""
}
