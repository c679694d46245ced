// Package timeacct folds open-ended run/pause markers into the
// accumulated duration counters on a task. All functions are pure over
// the task value and the supplied wall-clock time.
package timeacct

import (
	"time"

	"timeclerk/internal/model"
)

// FoldActive adds the elapsed time of the current run to DurationMs and
// clears ActiveStartAt. No-op when the task has no open run. Negative
// deltas from clock skew clamp to zero so the counter never decreases.
func FoldActive(t *model.Task, now time.Time) {
	if t.ActiveStartAt == nil {
		return
	}
	t.DurationMs += clampMs(now.Sub(*t.ActiveStartAt))
	t.ActiveStartAt = nil
}

// FoldPaused is the pause-side counterpart of FoldActive, folding the
// open pause interval into PausedDurationMs.
func FoldPaused(t *model.Task, now time.Time) {
	if t.PauseStartedAt == nil {
		return
	}
	t.PausedDurationMs += clampMs(now.Sub(*t.PauseStartedAt))
	t.PauseStartedAt = nil
}

// Projected returns the duration a running task would show if it were
// folded right now, without mutating the task. For tasks with no open
// run it is simply the stored counter.
func Projected(t *model.Task, now time.Time) int64 {
	if t.ActiveStartAt == nil {
		return t.DurationMs
	}
	return t.DurationMs + clampMs(now.Sub(*t.ActiveStartAt))
}

func clampMs(d time.Duration) int64 {
	ms := d.Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}
