package mapper

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"agentcal/internal/feed"
	"agentcal/internal/model"
)

// MaxAggregateBullets caps the bullet list of a daily rollup; completions
// past the cap are folded into a trailing "+K more" line.
const MaxAggregateBullets = 25

// EventWriter is the slice of the feed router the aggregator needs.
type EventWriter interface {
	AddEvent(model.Event) (model.Event, error)
	UpdateEvent(uid string, p model.Partial) (bool, error)
	GetEvent(uid string) (model.Event, bool)
}

// Aggregator folds many task completions into one rolling all-day summary
// event per (source, calendar day).
type Aggregator struct {
	w EventWriter
}

func NewAggregator(w EventWriter) *Aggregator {
	return &Aggregator{w: w}
}

// AggregateUID is the deterministic key of the rollup event for one source
// and one calendar day, so repeated completions on the same day update the
// same event instead of creating duplicates.
func AggregateUID(source string, day time.Time) string {
	return "agg-" + feed.SafeName(source) + "-" + day.UTC().Format("20060102")
}

// RecordCompletion adds one completed task to the source's rollup for the
// day of at. The bullet list is re-rendered from the stored description
// each time, so no separate task history is kept; the first completion of
// a day creates the event, every later one updates it (bumping Sequence).
func (a *Aggregator) RecordCompletion(source, summary string, at time.Time) (model.Event, error) {
	uid := AggregateUID(source, at)
	bullet := "- " + strings.TrimSpace(summary)

	existing, ok := a.w.GetEvent(uid)
	if !ok {
		day := at.UTC().Truncate(24 * time.Hour)
		ev := model.Event{
			UID:         uid,
			Title:       aggregateTitle(1, source),
			Description: bullet,
			Start:       day,
			AllDay:      true,
			Category:    "daily-summary",
			Agent:       source,
			Status:      model.StatusCompleted,
		}
		return a.w.AddEvent(ev)
	}

	bullets, total := parseBullets(existing.Description)
	total++
	if len(bullets) < MaxAggregateBullets {
		bullets = append(bullets, bullet)
	}

	desc := strings.Join(bullets, "\n")
	if overflow := total - len(bullets); overflow > 0 {
		desc += "\n+" + strconv.Itoa(overflow) + " more"
	}
	title := aggregateTitle(total, source)
	status := model.StatusCompleted

	if _, err := a.w.UpdateEvent(uid, model.Partial{
		Title:       &title,
		Description: &desc,
		Status:      &status,
	}); err != nil {
		return model.Event{}, err
	}
	ev, _ := a.w.GetEvent(uid)
	return ev, nil
}

func aggregateTitle(n int, source string) string {
	return fmt.Sprintf("Shipped %d task(s) — %s", n, source)
}

// parseBullets reconstructs the bullet lines and the true completion count
// from a stored rollup description, including any folded "+K more" tail.
func parseBullets(desc string) (bullets []string, total int) {
	for _, line := range strings.Split(desc, "\n") {
		line = strings.TrimRight(line, " ")
		if strings.HasPrefix(line, "- ") {
			bullets = append(bullets, line)
			total++
			continue
		}
		if strings.HasPrefix(line, "+") && strings.HasSuffix(line, " more") {
			if k, err := strconv.Atoi(strings.TrimSuffix(line[1:], " more")); err == nil && k > 0 {
				total += k
			}
		}
	}
	return bullets, total
}
