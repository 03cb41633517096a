// Package bus adapts upstream activity notifications onto the mapper and
// the feed router. The subscription transport itself lives outside; hosts
// inject whatever delivery they have and call Handle per notification.
package bus

import (
	"context"
	"fmt"

	"agentcal/internal/feed"
	appLog "agentcal/internal/log"
	"agentcal/internal/mapper"
	"agentcal/internal/model"
)

// Mirror pushes one event into the native-calendar side channel. Mirror
// failures are logged and discarded by the handler, never propagated: the
// feed stays authoritative.
type Mirror interface {
	MirrorEvent(ctx context.Context, ev model.Event, removed bool) error
}

// Handler routes the five notification kinds to store writes.
type Handler struct {
	router *feed.Router
	agg    *mapper.Aggregator
	mirror Mirror // optional
}

func NewHandler(router *feed.Router, agg *mapper.Aggregator, mirror Mirror) *Handler {
	return &Handler{router: router, agg: agg, mirror: mirror}
}

// Handle processes one notification. Persistence failures are returned;
// unknown UIDs on update/cancel are silent no-ops since those may race
// against retention cleanup.
func (h *Handler) Handle(ctx context.Context, n mapper.Notification) error {
	switch n.Kind {
	case mapper.KindSchedule:
		return h.handleSchedule(ctx, n)
	case mapper.KindScheduleUpdate:
		return h.handleScheduleUpdate(ctx, n)
	case mapper.KindScheduleCancel:
		return h.handleScheduleCancel(ctx, n)
	case mapper.KindTaskComplete:
		return h.handleTaskComplete(ctx, n)
	case mapper.KindCronRegister:
		return h.handleCronRegister(n)
	default:
		return fmt.Errorf("unknown notification kind %q", n.Kind)
	}
}

func (h *Handler) handleSchedule(ctx context.Context, n mapper.Notification) error {
	ev := mapper.FromSchedule(n)
	stored, err := h.router.AddEvent(ev)
	if err != nil {
		return err
	}
	for _, checkin := range mapper.CheckinEvents(stored, n.CheckinOffsets) {
		if _, err := h.router.AddEvent(checkin); err != nil {
			return err
		}
	}
	h.mirrorEvent(ctx, stored, false)
	return nil
}

func (h *Handler) handleScheduleUpdate(ctx context.Context, n mapper.Notification) error {
	found, err := h.router.UpdateEvent(n.UID, mapper.PartialFromUpdate(n))
	if err != nil {
		return err
	}
	if !found {
		appLog.Debug("update for unknown uid ignored", "uid", n.UID)
		return nil
	}
	if ev, ok := h.router.GetEvent(n.UID); ok {
		h.mirrorEvent(ctx, ev, false)
	}
	return nil
}

func (h *Handler) handleScheduleCancel(ctx context.Context, n mapper.Notification) error {
	found, err := h.router.CancelEvent(n.UID)
	if err != nil {
		return err
	}
	if !found {
		appLog.Debug("cancel for unknown uid ignored", "uid", n.UID)
		return nil
	}
	if ev, ok := h.router.GetEvent(n.UID); ok {
		h.mirrorEvent(ctx, ev, true)
	}
	return nil
}

func (h *Handler) handleTaskComplete(ctx context.Context, n mapper.Notification) error {
	if h.agg != nil {
		_, err := h.agg.RecordCompletion(n.Agent, n.TaskSummary, n.CompletedAt)
		return err
	}

	// Aggregation disabled: record the completion as its own event.
	ev := mapper.FromSchedule(n)
	if ev.Title == "" {
		ev.Title = n.TaskSummary
	}
	if ev.Start.IsZero() {
		ev.Start = n.CompletedAt
	}
	ev.Status = model.StatusCompleted
	stored, err := h.router.AddEvent(ev)
	if err != nil {
		return err
	}
	h.mirrorEvent(ctx, stored, false)
	return nil
}

func (h *Handler) handleCronRegister(n mapper.Notification) error {
	ev := mapper.FromCron(n)
	// Recurring events never reach the mirror; the scripting surface
	// cannot represent a recurrence rule.
	_, err := h.router.AddEvent(ev)
	return err
}

func (h *Handler) mirrorEvent(ctx context.Context, ev model.Event, removed bool) {
	if h.mirror == nil {
		return
	}
	if err := h.mirror.MirrorEvent(ctx, ev, removed); err != nil {
		appLog.Error("native calendar mirror failed", err, "uid", ev.UID)
	}
}
