package model

import "time"

// Task is a single unit of tracked work.
//
// The two duration counters accumulate across runs and never decrease.
// ActiveStartAt is non-nil exactly while the task is IN_PROGRESS,
// PauseStartedAt exactly while it is PAUSED; at most one of them is set.
type Task struct {
	ID          string `gorm:"primaryKey"`
	UserID      string `gorm:"index"`
	ModuleID    string `gorm:"index"`
	Title       string
	Description string
	Priority    Priority
	Tags        string // encoded tag list, see EncodeTags
	DueDate     *time.Time

	Status TaskStatus `gorm:"index"`

	StartedAt        *time.Time
	EndedAt          *time.Time
	ActiveStartAt    *time.Time
	PauseStartedAt   *time.Time
	DurationMs       int64
	PausedDurationMs int64

	LastEventAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// ProjectedDurationMs carries the read-time duration of a running
	// task (stored counter plus elapsed time of the open run). Never
	// persisted.
	ProjectedDurationMs int64 `gorm:"-"`
}
