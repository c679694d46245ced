package model

import "fmt"

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusPending     TaskStatus = "PENDING"
	StatusInProgress  TaskStatus = "IN_PROGRESS"
	StatusPaused      TaskStatus = "PAUSED"
	StatusCompleted   TaskStatus = "COMPLETED"
	StatusInterrupted TaskStatus = "INTERRUPTED"
)

// ParseStatus converts a raw string into a TaskStatus. Unknown values
// are an error rather than a silent default, so corrupted rows surface
// instead of reappearing as PENDING.
func ParseStatus(raw string) (TaskStatus, error) {
	s := TaskStatus(raw)
	switch s {
	case StatusPending, StatusInProgress, StatusPaused, StatusCompleted, StatusInterrupted:
		return s, nil
	}
	return "", fmt.Errorf("unknown task status %q", raw)
}

// Terminal reports whether no further transitions are defined from s.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusInterrupted
}

// Priority of a task. Defaults to MEDIUM when unset.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// ParsePriority is lenient: empty or unrecognized input falls back to
// MEDIUM, matching the create default.
func ParsePriority(raw string) Priority {
	switch Priority(raw) {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return Priority(raw)
	}
	return PriorityMedium
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}
