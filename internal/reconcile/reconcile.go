// Package reconcile replays the event log into recomputed duration
// counters and flags tasks whose stored counters have drifted. The
// counters stay the fast path; the log is the recoverable ledger.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"timeclerk/internal/model"
	"timeclerk/internal/repository"
)

// Drift records a mismatch between a task's stored counters and the
// values replayed from its event log.
type Drift struct {
	TaskID           string
	UserID           string
	StoredActiveMs   int64
	ReplayedActiveMs int64
	StoredPausedMs   int64
	ReplayedPausedMs int64
}

// Sweeper walks terminal tasks and compares counters against the event
// log. With repair enabled it rewrites drifted counters; by default it
// only reports.
type Sweeper struct {
	tasks  *repository.TaskRepository
	events *repository.EventRepository
	repair bool
}

func NewSweeper(db *gorm.DB, repair bool) *Sweeper {
	return &Sweeper{
		tasks:  repository.NewTaskRepository(db),
		events: repository.NewEventRepository(db),
		repair: repair,
	}
}

// Sweep reconciles every user's terminal tasks. Tasks with an open run
// or pause are skipped; their counters are still moving.
func (s *Sweeper) Sweep(ctx context.Context) ([]Drift, error) {
	userIDs, err := s.tasks.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	var drifts []Drift
	terminal := []model.TaskStatus{model.StatusCompleted, model.StatusInterrupted}
	for _, userID := range userIDs {
		tasks, err := s.tasks.ListByUser(ctx, userID, terminal, "")
		if err != nil {
			return nil, fmt.Errorf("list tasks for user %s: %w", userID, err)
		}
		for i := range tasks {
			drift, err := s.reconcileTask(ctx, &tasks[i])
			if err != nil {
				return nil, err
			}
			if drift != nil {
				drifts = append(drifts, *drift)
			}
		}
	}
	return drifts, nil
}

func (s *Sweeper) reconcileTask(ctx context.Context, task *model.Task) (*Drift, error) {
	events, err := s.events.ListByTask(ctx, task.UserID, task.ID)
	if err != nil {
		return nil, fmt.Errorf("list events for task %s: %w", task.ID, err)
	}
	if len(events) == 0 {
		// Nothing to replay against; imported history may predate the log.
		return nil, nil
	}

	activeMs, pausedMs := Replay(events)
	if activeMs == task.DurationMs && pausedMs == task.PausedDurationMs {
		return nil, nil
	}

	drift := &Drift{
		TaskID:           task.ID,
		UserID:           task.UserID,
		StoredActiveMs:   task.DurationMs,
		ReplayedActiveMs: activeMs,
		StoredPausedMs:   task.PausedDurationMs,
		ReplayedPausedMs: pausedMs,
	}
	log.Printf("[warn] counter drift on task %s: active %d/%d paused %d/%d (stored/replayed)",
		task.ID, drift.StoredActiveMs, drift.ReplayedActiveMs, drift.StoredPausedMs, drift.ReplayedPausedMs)

	if s.repair {
		task.DurationMs = activeMs
		task.PausedDurationMs = pausedMs
		if err := s.tasks.Save(ctx, task); err != nil {
			return nil, fmt.Errorf("repair task %s: %w", task.ID, err)
		}
		log.Printf("[info] repaired counters on task %s", task.ID)
	}
	return drift, nil
}

// Replay folds a chronological event sequence into the active and
// paused totals it implies. Clock-skew negatives clamp to zero, the
// same guard the live folds apply.
func Replay(events []model.Event) (activeMs, pausedMs int64) {
	var runStart, pauseStart *time.Time
	for i := range events {
		ev := &events[i]
		at := ev.OccurredAt
		switch ev.Type {
		case model.EventStart, model.EventResume:
			if pauseStart != nil {
				pausedMs += clampMs(at.Sub(*pauseStart))
				pauseStart = nil
			}
			t := at
			runStart = &t
		case model.EventPause:
			if runStart != nil {
				activeMs += clampMs(at.Sub(*runStart))
				runStart = nil
			}
			t := at
			pauseStart = &t
		case model.EventComplete, model.EventInterrupt, model.EventSystemInterrupt:
			if runStart != nil {
				activeMs += clampMs(at.Sub(*runStart))
				runStart = nil
			}
			if pauseStart != nil {
				pausedMs += clampMs(at.Sub(*pauseStart))
				pauseStart = nil
			}
		}
	}
	return activeMs, pausedMs
}

func clampMs(d time.Duration) int64 {
	ms := d.Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}
