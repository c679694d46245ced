package model

import "time"

// EventType identifies a task lifecycle transition.
type EventType string

const (
	EventCreate          EventType = "CREATE"
	EventStart           EventType = "START"
	EventPause           EventType = "PAUSE"
	EventResume          EventType = "RESUME"
	EventComplete        EventType = "COMPLETE"
	EventInterrupt       EventType = "INTERRUPT"
	EventSystemInterrupt EventType = "SYSTEM_INTERRUPT"
)

// Event is one immutable row of the task audit trail, appended on every
// successful transition. Events are never updated or deleted.
type Event struct {
	ID         string `gorm:"primaryKey"`
	TaskID     string `gorm:"index"`
	UserID     string `gorm:"index"`
	Type       EventType
	OccurredAt time.Time
	Payload    string // free-form annotation: "auto-switch", "import", an interrupt reason
	CreatedAt  time.Time
}
