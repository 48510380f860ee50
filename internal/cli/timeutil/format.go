// Package timeutil provides time formatting utilities for CLI output.
package timeutil

import (
	"fmt"
	"time"
)

// LocalTimeFormat is the format used for displaying local times in CLI output.
// Uses Go's reference time: Mon Jan 2 15:04:05 2006.
const LocalTimeFormat = "Mon Jan 2 15:04:05 2006"

// FormatTime renders a timestamp in local time for table output.
func FormatTime(t time.Time) string {
	return t.Local().Format(LocalTimeFormat)
}

// FormatTimePtr renders an optional timestamp, or "-" when unset.
// Lease and task rows carry several nullable timestamps (renewed_at,
// released_at, started_at, processed_at).
func FormatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return FormatTime(*t)
}

// FormatRemaining renders the interval from now until t as a compact
// countdown, or "expired" once t has passed. Both instants must come from
// the same clock; mixing server timestamps with the local clock here only
// works because display precision is seconds.
func FormatRemaining(t, now time.Time) string {
	d := t.Sub(now)
	if d <= 0 {
		return "expired"
	}

	d = d.Round(time.Second)
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
