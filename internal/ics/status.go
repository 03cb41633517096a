package ics

import (
	"strings"

	"agentcal/internal/model"
)

// FormatStatus maps a lifecycle status onto its iCalendar confirmation
// state.
func FormatStatus(s model.Status) string {
	switch s {
	case model.StatusCancelled:
		return "CANCELLED"
	case model.StatusCompleted, model.StatusInProgress:
		return "CONFIRMED"
	default:
		return "TENTATIVE"
	}
}

// ParseStatus is the reverse mapping. CONFIRMED is ambiguous between
// COMPLETED and IN_PROGRESS on disk; it loads back as COMPLETED, a known
// lossy edge of the round trip. Unknown values default to PLANNED.
func ParseStatus(v string) model.Status {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "CANCELLED":
		return model.StatusCancelled
	case "CONFIRMED":
		return model.StatusCompleted
	default:
		return model.StatusPlanned
	}
}
