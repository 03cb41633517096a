// Package store owns the keyed event collection for one calendar feed and
// its backing .ics document. The document is the store's only persisted
// representation; every mutation rewrites it in full.
package store

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"

	"agentcal/internal/ics"
	appLog "agentcal/internal/log"
	"agentcal/internal/model"
)

// Store is safe for concurrent use; one mutation is in flight at a time so
// concurrent writes can never interleave into a corrupt document.
type Store struct {
	mu     sync.Mutex
	path   string
	name   string // calendar display name (X-WR-CALNAME)
	events map[string]*model.Event
	order  []string // insertion order, drives render order
}

// New opens the store backed by the document at path. An existing document
// is parsed fully before any operation is accepted; an unreadable path
// just yields an empty store.
func New(path, name string) *Store {
	s := &Store{
		path:   path,
		name:   name,
		events: make(map[string]*model.Event),
	}

	body, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			appLog.Debug("store backing document unreadable, starting empty", "path", path, "err", err)
		}
		return s
	}

	parsed, err := ics.ParseDocument(name, body)
	if err != nil {
		appLog.Error("store backing document unparseable, starting empty", err, "path", path)
		return s
	}
	for i := range parsed {
		ev := parsed[i]
		if _, dup := s.events[ev.UID]; dup {
			continue
		}
		s.events[ev.UID] = &ev
		s.order = append(s.order, ev.UID)
	}
	appLog.Info("store loaded", "path", path, "event_count", len(s.order))
	return s
}

// Name returns the calendar display name.
func (s *Store) Name() string { return s.name }

// Path returns the backing document location.
func (s *Store) Path() string { return s.path }

// Add sanitizes the event, inserts or overwrites it by UID, and persists
// the full document. A missing UID is generated. The stored copy is
// returned so callers see the generated UID and stamp.
func (s *Store) Add(ev model.Event) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.UID == "" {
		ev.UID = uuid.NewString()
	}
	if ev.Status == "" {
		ev.Status = model.StatusPlanned
	}
	if ev.Stamp.IsZero() {
		ev.Stamp = time.Now().UTC().Truncate(time.Second)
	}
	ics.SanitizeEvent(&ev)

	if _, exists := s.events[ev.UID]; !exists {
		s.order = append(s.order, ev.UID)
	}
	stored := ev.Clone()
	s.events[ev.UID] = &stored

	if err := s.persistLocked(); err != nil {
		return model.Event{}, err
	}
	return stored.Clone(), nil
}

// Update merges the set fields of p into the event, bumps Sequence by one
// and persists. An unknown UID is a silent no-op (updates may race against
// cleanup), reported via the bool.
func (s *Store) Update(uid string, p model.Partial) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[uid]
	if !ok {
		return false, nil
	}
	p.Apply(ev)
	ev.Sequence++
	ics.SanitizeEvent(ev)

	if err := s.persistLocked(); err != nil {
		return true, err
	}
	return true, nil
}

// Cancel flips the event to CANCELLED. Cancellation is a status
// transition, never a deletion: the event stays in the document so pollers
// that saw it learn of the cancellation.
func (s *Store) Cancel(uid string) (bool, error) {
	st := model.StatusCancelled
	return s.Update(uid, model.Partial{Status: &st})
}

// Remove deletes the entry entirely and persists. Used by cleanup, never
// by the cancel path.
func (s *Store) Remove(uid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[uid]; !ok {
		return false, nil
	}
	s.deleteLocked(uid)
	if err := s.persistLocked(); err != nil {
		return true, err
	}
	return true, nil
}

// Cleanup removes completed events older than retentionDays, then evicts
// the oldest remaining completed events (by start time) until at most
// maxCompleted are left. Non-completed events are never touched. Persists
// only if something was removed; returns the removed count.
func (s *Store) Cleanup(retentionDays, maxCompleted int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	removed := 0

	for _, uid := range append([]string(nil), s.order...) {
		ev := s.events[uid]
		if ev.Status != model.StatusCompleted {
			continue
		}
		if ev.Start.Before(cutoff) {
			s.deleteLocked(uid)
			removed++
		}
	}

	if maxCompleted >= 0 {
		completed := make([]*model.Event, 0)
		for _, uid := range s.order {
			if ev := s.events[uid]; ev.Status == model.StatusCompleted {
				completed = append(completed, ev)
			}
		}
		if len(completed) > maxCompleted {
			sort.Slice(completed, func(i, j int) bool {
				return completed[i].Start.Before(completed[j].Start)
			})
			for _, ev := range completed[:len(completed)-maxCompleted] {
				s.deleteLocked(ev.UID)
				removed++
			}
		}
	}

	if removed == 0 {
		return 0, nil
	}
	if err := s.persistLocked(); err != nil {
		return removed, err
	}
	appLog.Info("store cleanup", "path", s.path, "removed", removed)
	return removed, nil
}

// Get returns a copy of the event with the given UID.
func (s *Store) Get(uid string) (model.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[uid]
	if !ok {
		return model.Event{}, false
	}
	return ev.Clone(), true
}

// Events returns copies of all events in insertion order.
func (s *Store) Events() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Event, 0, len(s.order))
	for _, uid := range s.order {
		out = append(out, s.events[uid].Clone())
	}
	return out
}

// Len returns the number of events currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Render produces the current document bytes without persisting.
func (s *Store) Render() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderLocked()
}

func (s *Store) renderLocked() []byte {
	events := make([]model.Event, 0, len(s.order))
	for _, uid := range s.order {
		events = append(events, *s.events[uid])
	}
	return ics.RenderDocument(s.name, events)
}

func (s *Store) deleteLocked(uid string) {
	delete(s.events, uid)
	for i, u := range s.order {
		if u == uid {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// persistLocked rewrites the backing document atomically and durably.
// A write failure is surfaced to the caller; losing it silently would
// break the in-memory/on-disk consistency the store relies on.
func (s *Store) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return renameio.WriteFile(s.path, s.renderLocked(), 0o644)
}
