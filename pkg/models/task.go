package models

import (
	"encoding/json"
	"time"
)

// Task is a unit of work dispatched to exactly one processor at a time.
//
// A task's lifecycle is tracked entirely through nullable timestamps: a row
// with processed_at set is finished, a row with started_at set and a live
// heartbeat deadline is being worked on, and everything else is up for grabs.
// There is no status column to drift out of sync.
type Task struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	TaskData            json.RawMessage `gorm:"type:jsonb;not null" json:"task_data"`
	TaskOutput          json.RawMessage `gorm:"type:jsonb" json:"task_output,omitempty"`
	ScheduledAt         time.Time       `gorm:"not null;autoCreateTime:false" json:"scheduled_at"`
	StartedAt           *time.Time      `json:"started_at,omitempty"`
	LastHeartbeatAt     *time.Time      `json:"last_heartbeat_at,omitempty"`
	MustHeartbeatBefore *time.Time      `json:"must_heartbeat_before,omitempty"`
	ProcessedAt         *time.Time      `json:"processed_at,omitempty"`
	Processor           *string         `gorm:"size:255" json:"processor,omitempty"`
}

// TableName returns the table name for Task.
func (Task) TableName() string {
	return "tasks"
}

// ClaimableAt reports whether the task may be handed to a processor at the
// given instant: scheduled, not yet finished, and either never started or
// abandoned by a processor whose heartbeat deadline has lapsed.
func (t *Task) ClaimableAt(now time.Time) bool {
	if t.ProcessedAt != nil {
		return false
	}
	if t.ScheduledAt.After(now) {
		return false
	}
	if t.StartedAt == nil {
		return true
	}
	return t.MustHeartbeatBefore != nil && !t.MustHeartbeatBefore.After(now)
}

// OwnedBy reports whether the task is currently assigned to the processor.
func (t *Task) OwnedBy(processor string) bool {
	return t.Processor != nil && *t.Processor == processor
}

// LiveFor reports whether the processor still holds the task at the given
// instant: it owns the row, the row is unfinished, and the heartbeat
// deadline has not passed. Heartbeats and completions from a processor
// that fails this check must be rejected, because the task may already
// have been claimed by someone else.
func (t *Task) LiveFor(processor string, now time.Time) bool {
	return t.OwnedBy(processor) &&
		t.ProcessedAt == nil &&
		t.MustHeartbeatBefore != nil &&
		t.MustHeartbeatBefore.After(now)
}

// IsStarted reports whether the task has been claimed but not yet finished.
func (t *Task) IsStarted() bool {
	return t.StartedAt != nil && t.ProcessedAt == nil
}

// IsProcessed reports whether the task has been completed.
func (t *Task) IsProcessed() bool {
	return t.ProcessedAt != nil
}
