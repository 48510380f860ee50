package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatTimePtr(t *testing.T) {
	assert.Equal(t, "-", FormatTimePtr(nil))

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, FormatTime(at), FormatTimePtr(&at))
}

func TestFormatRemaining(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{name: "seconds", t: now.Add(42 * time.Second), want: "42s"},
		{name: "minutes", t: now.Add(3*time.Minute + 5*time.Second), want: "3m5s"},
		{name: "hours", t: now.Add(2*time.Hour + 30*time.Minute), want: "2h30m0s"},
		{name: "already passed", t: now.Add(-time.Second), want: "expired"},
		{name: "exactly now", t: now, want: "expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatRemaining(tt.t, now))
		})
	}
}
