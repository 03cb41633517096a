// Package feed fans single logical events out to a combined calendar and
// per-source calendars, and merges reads back together.
package feed

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	appLog "agentcal/internal/log"
	"agentcal/internal/model"
	"agentcal/internal/store"
)

// CombinedName is the reserved feed name of the combined calendar.
const CombinedName = "combined"

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SafeName derives a filesystem-safe feed name from a source identifier:
// every character outside [A-Za-z0-9_-] becomes '-'. Arbitrary source
// identifiers (path separators, whitespace) can therefore never escape
// the feed directory. The reserved combined name is suffixed to avoid a
// collision.
func SafeName(source string) string {
	name := unsafeNameChars.ReplaceAllString(source, "-")
	if name == "" {
		name = "unnamed"
	}
	if name == CombinedName {
		name = name + "-src"
	}
	return name
}

// Options configures a Router.
type Options struct {
	// Dir is the feed directory holding one .ics document per store.
	Dir string
	// CalendarName is the display name of the combined calendar.
	CalendarName string
	// Combined enables the combined store.
	Combined bool
	// PerSource enables lazily created per-source stores.
	PerSource bool
}

// Router owns zero-or-one combined store plus a dynamic set of per-source
// stores keyed by safe name.
type Router struct {
	mu        sync.Mutex
	opts      Options
	combined  *store.Store
	sources   map[string]*store.Store
	sourceIDs map[string]string // safe name -> original source identifier
}

// NewRouter builds a router and eagerly loads any per-source documents
// already present in the feed directory, so a restart rehydrates all known
// sources before the first write.
func NewRouter(opts Options) *Router {
	if opts.CalendarName == "" {
		opts.CalendarName = "agentcal"
	}
	r := &Router{
		opts:      opts,
		sources:   make(map[string]*store.Store),
		sourceIDs: make(map[string]string),
	}
	if opts.Combined {
		r.combined = store.New(filepath.Join(opts.Dir, CombinedName+".ics"), opts.CalendarName)
	}
	if opts.PerSource {
		r.discover()
	}
	return r
}

func (r *Router) discover() {
	entries, err := os.ReadDir(r.opts.Dir)
	if err != nil {
		if !os.IsNotExist(err) {
			appLog.Error("feed directory scan failed", err, "dir", r.opts.Dir)
		}
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".ics") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".ics")
		if name == CombinedName || name == "" {
			continue
		}
		st := store.New(filepath.Join(r.opts.Dir, entry.Name()), name)
		r.sources[name] = st
		r.sourceIDs[name] = name
		appLog.Info("discovered per-source feed", "feed", name, "event_count", st.Len())
	}
}

// storeForSource returns (creating if needed) the store for one source
// identifier. Caller holds r.mu.
func (r *Router) storeForSource(source string) *store.Store {
	name := SafeName(source)
	if st, ok := r.sources[name]; ok {
		return st
	}
	st := store.New(filepath.Join(r.opts.Dir, name+".ics"), name)
	r.sources[name] = st
	r.sourceIDs[name] = source
	appLog.Info("created per-source feed", "feed", name, "source", source)
	return st
}

// AddEvent writes the event to the combined store and, when it carries a
// source identifier, to that source's store. Both copies share the UID;
// an event without a source is only visible in the combined feed.
func (r *Router) AddEvent(ev model.Event) (model.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ev.UID == "" {
		ev.UID = uuid.NewString()
	}
	if ev.Stamp.IsZero() {
		// Shared stamp so the combined and per-source copies agree.
		ev.Stamp = time.Now().UTC().Truncate(time.Second)
	}

	out := ev
	if r.combined != nil {
		stored, err := r.combined.Add(ev)
		if err != nil {
			return model.Event{}, err
		}
		out = stored
	}
	if r.opts.PerSource && ev.Agent != "" {
		if _, err := r.storeForSource(ev.Agent).Add(ev); err != nil {
			return model.Event{}, err
		}
	}
	return out, nil
}

// UpdateEvent applies a partial update to the combined store and to every
// per-source store currently holding the UID. An event's home store is not
// tracked, so this is a scan over known per-source stores; fine at this
// scale. Returns whether any store held the UID.
func (r *Router) UpdateEvent(uid string, p model.Partial) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	found := false
	if r.combined != nil {
		ok, err := r.combined.Update(uid, p)
		if err != nil {
			return ok, err
		}
		found = found || ok
	}
	for _, st := range r.sources {
		ok, err := st.Update(uid, p)
		if err != nil {
			return found || ok, err
		}
		found = found || ok
	}
	return found, nil
}

// CancelEvent cancels the UID in every store that holds it.
func (r *Router) CancelEvent(uid string) (bool, error) {
	st := model.StatusCancelled
	return r.UpdateEvent(uid, model.Partial{Status: &st})
}

// RemoveEvent deletes the UID from every store that holds it.
func (r *Router) RemoveEvent(uid string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	found := false
	if r.combined != nil {
		ok, err := r.combined.Remove(uid)
		if err != nil {
			return ok, err
		}
		found = found || ok
	}
	for _, st := range r.sources {
		ok, err := st.Remove(uid)
		if err != nil {
			return found || ok, err
		}
		found = found || ok
	}
	return found, nil
}

// GetEvent looks the UID up, combined store first, then per-source stores.
func (r *Router) GetEvent(uid string) (model.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.combined != nil {
		if ev, ok := r.combined.Get(uid); ok {
			return ev, true
		}
	}
	for _, name := range r.sortedSourceNames() {
		if ev, ok := r.sources[name].Get(uid); ok {
			return ev, true
		}
	}
	return model.Event{}, false
}

// AllEvents returns the combined store's contents when one exists,
// otherwise the per-source stores' contents deduplicated by UID.
func (r *Router) AllEvents() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.combined != nil {
		return r.combined.Events()
	}

	seen := make(map[string]bool)
	out := make([]model.Event, 0)
	for _, name := range r.sortedSourceNames() {
		for _, ev := range r.sources[name].Events() {
			if seen[ev.UID] {
				continue
			}
			seen[ev.UID] = true
			out = append(out, ev)
		}
	}
	return out
}

// Render returns the current document for the named feed.
func (r *Router) Render(name string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.combined != nil && name == CombinedName {
		return r.combined.Render(), true
	}
	if st, ok := r.sources[name]; ok {
		return st.Render(), true
	}
	return nil, false
}

// Names lists the known feed names: the combined feed (when enabled)
// followed by per-source feeds in sorted order.
func (r *Router) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.sources)+1)
	if r.combined != nil {
		out = append(out, CombinedName)
	}
	out = append(out, r.sortedSourceNames()...)
	return out
}

// CleanupAll runs retention cleanup on every store and returns the total
// removed. The first persistence error aborts the pass.
func (r *Router) CleanupAll(retentionDays, maxCompleted int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := 0
	if r.combined != nil {
		n, err := r.combined.Cleanup(retentionDays, maxCompleted)
		total += n
		if err != nil {
			return total, err
		}
	}
	for _, name := range r.sortedSourceNames() {
		n, err := r.sources[name].Cleanup(retentionDays, maxCompleted)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (r *Router) sortedSourceNames() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
