package chart

import (
	"fmt"
	"strings"
)

// View is the time window a chart shows.
type View string

const (
	ViewDay   View = "day"
	ViewWeek  View = "week"
	ViewMonth View = "month"
)

// ParseView parses a view name. An empty name is the month view.
func ParseView(s string) (View, error) {
	switch View(strings.ToLower(strings.TrimSpace(s))) {
	case ViewDay:
		return ViewDay, nil
	case ViewWeek:
		return ViewWeek, nil
	case ViewMonth, "":
		return ViewMonth, nil
	default:
		return "", fmt.Errorf("unknown chart view: %q", s)
	}
}

// Len is the number of points the view holds.
func (v View) Len() int {
	switch v {
	case ViewDay:
		return 24
	case ViewWeek:
		return 7
	default:
		return 30
	}
}

var weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Labels returns the x-axis labels.
func Labels(v View) []string {
	switch v {
	case ViewDay:
		labels := make([]string, 24)
		for i := range labels {
			labels[i] = fmt.Sprintf("%02d:00", i)
		}
		return labels
	case ViewWeek:
		return append([]string(nil), weekdays...)
	default:
		labels := make([]string, 30)
		for i := range labels {
			labels[i] = fmt.Sprintf("Day %d", i+1)
		}
		return labels
	}
}

// Title returns the chart heading.
func Title(v View) string {
	switch v {
	case ViewDay:
		return "Hourly Energy Usage"
	case ViewWeek:
		return "Daily Energy Usage (This Week)"
	case ViewMonth:
		return "Daily Energy Usage (This Month)"
	default:
		return "Energy Usage"
	}
}

// XAxisTitle returns the x-axis caption.
func XAxisTitle(v View) string {
	switch v {
	case ViewDay:
		return "Hour of Day"
	case ViewWeek:
		return "Day of Week"
	case ViewMonth:
		return "Day of Month"
	default:
		return "Time"
	}
}
