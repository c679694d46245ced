// Package engine is the task lifecycle state machine. Every mutation of
// a task's status, duration counters or run/pause markers goes through
// here; reads may bypass it but must never write.
package engine

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"timeclerk/internal/model"
	"timeclerk/internal/repository"
	"timeclerk/internal/timeacct"
)

// CacheInvalidator drops cached read models for a user after a
// successful mutation. Optional; a nil invalidator disables it.
type CacheInvalidator interface {
	InvalidateUser(ctx context.Context, userID string) error
}

// Engine enacts task transitions. Each transition runs inside one store
// transaction, so the read-check-write sequence (including the
// auto-pause of competing running tasks) is atomic against concurrent
// starts on the SQLite backend. On a server-grade store the running-set
// query is the seam for a per-user advisory lock.
type Engine struct {
	db      *gorm.DB
	tasks   *repository.TaskRepository
	modules *repository.ModuleRepository
	events  *repository.EventRepository
	cache   CacheInvalidator
	now     func() time.Time
}

func New(db *gorm.DB, cache CacheInvalidator) *Engine {
	return &Engine{
		db:      db,
		tasks:   repository.NewTaskRepository(db),
		modules: repository.NewModuleRepository(db),
		events:  repository.NewEventRepository(db),
		cache:   cache,
		now:     time.Now,
	}
}

// CreateTaskInput carries the caller-supplied fields of a new task.
type CreateTaskInput struct {
	ModuleID    string
	Title       string
	Description string
	Priority    model.Priority
	DueDate     *time.Time
	Tags        []string
}

func (e *Engine) CreateTask(ctx context.Context, userID string, in CreateTaskInput) (*model.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if in.ModuleID == "" {
		return nil, ErrModuleRequired
	}
	if _, err := e.modules.GetByID(ctx, userID, in.ModuleID); err != nil {
		return nil, asNotFound(err, ErrModuleNotFound)
	}

	priority := in.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.Valid() {
		return nil, ErrBadPriority
	}

	now := e.now()
	task := &model.Task{
		ID:          uuid.New().String(),
		UserID:      userID,
		ModuleID:    in.ModuleID,
		Title:       title,
		Description: in.Description,
		Priority:    priority,
		Tags:        model.EncodeTags(in.Tags),
		DueDate:     normalizeDueDate(in.DueDate),
		Status:      model.StatusPending,
		LastEventAt: &now,
	}
	if err := e.tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	e.appendEvents(ctx, model.Event{
		TaskID: task.ID, UserID: userID, Type: model.EventCreate, OccurredAt: now,
	})
	e.invalidate(ctx, userID)
	return task, nil
}

// StartTask moves a PENDING or PAUSED task into IN_PROGRESS. Any other
// task of the same user currently running is auto-paused first, so the
// per-user running set stays at cardinality <= 1. Resume is the same
// transition; the only difference is the RESUME event recorded when the
// prior status was PAUSED.
func (e *Engine) StartTask(ctx context.Context, userID, taskID string) (*model.Task, error) {
	now := e.now()
	var task *model.Task
	var pending []model.Event

	err := e.db.Transaction(func(tx *gorm.DB) error {
		tasks := e.tasks.WithTx(tx)

		t, err := tasks.FindByID(ctx, userID, taskID)
		if err != nil {
			return asNotFound(err, ErrTaskNotFound)
		}
		if t.Status != model.StatusPending && t.Status != model.StatusPaused {
			return ErrStartNotAllowed
		}

		running, err := tasks.FindRunning(ctx, userID, t.ID)
		if err != nil {
			return err
		}
		for i := range running {
			other := &running[i]
			at := now
			timeacct.FoldActive(other, now)
			other.Status = model.StatusPaused
			other.PauseStartedAt = &at
			other.LastEventAt = &at
			if err := tasks.Save(ctx, other); err != nil {
				return err
			}
			pending = append(pending, model.Event{
				TaskID: other.ID, UserID: userID, Type: model.EventPause,
				OccurredAt: now, Payload: "auto-switch",
			})
		}

		prior := t.Status
		at := now
		timeacct.FoldPaused(t, now)
		t.ActiveStartAt = &at
		if t.StartedAt == nil {
			t.StartedAt = &at
		}
		t.EndedAt = nil
		t.Status = model.StatusInProgress
		t.LastEventAt = &at
		if err := tasks.Save(ctx, t); err != nil {
			return err
		}

		eventType := model.EventStart
		if prior == model.StatusPaused {
			eventType = model.EventResume
		}
		pending = append(pending, model.Event{
			TaskID: t.ID, UserID: userID, Type: eventType, OccurredAt: now,
		})
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.appendEvents(ctx, pending...)
	e.invalidate(ctx, userID)
	task.ProjectedDurationMs = timeacct.Projected(task, now)
	return task, nil
}

// ResumeTask is an alias of StartTask.
func (e *Engine) ResumeTask(ctx context.Context, userID, taskID string) (*model.Task, error) {
	return e.StartTask(ctx, userID, taskID)
}

// PauseTask folds the current run and parks the task in PAUSED. The
// system flag marks engine- or scheduler-initiated pauses in the event
// payload.
func (e *Engine) PauseTask(ctx context.Context, userID, taskID string, system bool) (*model.Task, error) {
	now := e.now()
	var task *model.Task

	err := e.db.Transaction(func(tx *gorm.DB) error {
		tasks := e.tasks.WithTx(tx)
		t, err := tasks.FindByID(ctx, userID, taskID)
		if err != nil {
			return asNotFound(err, ErrTaskNotFound)
		}
		if t.Status != model.StatusInProgress {
			return ErrPauseNotAllowed
		}

		at := now
		timeacct.FoldActive(t, now)
		t.PauseStartedAt = &at
		t.Status = model.StatusPaused
		t.LastEventAt = &at
		if err := tasks.Save(ctx, t); err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	payload := ""
	if system {
		payload = "system"
	}
	e.appendEvents(ctx, model.Event{
		TaskID: task.ID, UserID: userID, Type: model.EventPause,
		OccurredAt: now, Payload: payload,
	})
	e.invalidate(ctx, userID)
	task.ProjectedDurationMs = timeacct.Projected(task, now)
	return task, nil
}

// CompleteTask folds any open run or pause and closes the task.
// Completing an already-COMPLETED task is a no-op returning the current
// state; no second COMPLETE event is appended.
func (e *Engine) CompleteTask(ctx context.Context, userID, taskID string) (*model.Task, error) {
	now := e.now()
	var task *model.Task
	alreadyDone := false

	err := e.db.Transaction(func(tx *gorm.DB) error {
		tasks := e.tasks.WithTx(tx)
		t, err := tasks.FindByID(ctx, userID, taskID)
		if err != nil {
			return asNotFound(err, ErrTaskNotFound)
		}
		if t.Status == model.StatusCompleted {
			task = t
			alreadyDone = true
			return nil
		}
		if t.Status == model.StatusInterrupted {
			return ErrCompleteNotAllowed
		}

		at := now
		timeacct.FoldActive(t, now)
		timeacct.FoldPaused(t, now)
		t.EndedAt = &at
		t.Status = model.StatusCompleted
		t.LastEventAt = &at
		if err := tasks.Save(ctx, t); err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	task.ProjectedDurationMs = timeacct.Projected(task, now)
	if alreadyDone {
		return task, nil
	}

	e.appendEvents(ctx, model.Event{
		TaskID: task.ID, UserID: userID, Type: model.EventComplete, OccurredAt: now,
	})
	e.invalidate(ctx, userID)
	return task, nil
}

// InterruptTask closes a non-terminal task as INTERRUPTED. The optional
// reason is stored on the event; the system flag selects the
// SYSTEM_INTERRUPT event type used by cleanup routines.
func (e *Engine) InterruptTask(ctx context.Context, userID, taskID, reason string, system bool) (*model.Task, error) {
	now := e.now()
	var task *model.Task

	err := e.db.Transaction(func(tx *gorm.DB) error {
		tasks := e.tasks.WithTx(tx)
		t, err := tasks.FindByID(ctx, userID, taskID)
		if err != nil {
			return asNotFound(err, ErrTaskNotFound)
		}
		if t.Status == model.StatusCompleted {
			return ErrTaskCompleted
		}
		if t.Status == model.StatusInterrupted {
			return ErrTaskInterrupted
		}

		at := now
		timeacct.FoldActive(t, now)
		timeacct.FoldPaused(t, now)
		t.EndedAt = &at
		t.Status = model.StatusInterrupted
		t.LastEventAt = &at
		if err := tasks.Save(ctx, t); err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	eventType := model.EventInterrupt
	if system {
		eventType = model.EventSystemInterrupt
	}
	e.appendEvents(ctx, model.Event{
		TaskID: task.ID, UserID: userID, Type: eventType,
		OccurredAt: now, Payload: reason,
	})
	e.invalidate(ctx, userID)
	task.ProjectedDurationMs = timeacct.Projected(task, now)
	return task, nil
}

// UpdateTaskInput is a field-level merge; nil pointers leave the field
// untouched, a nil Tags slice leaves the tag list untouched.
type UpdateTaskInput struct {
	Title        *string
	Description  *string
	Priority     *model.Priority
	ModuleID     *string
	Tags         []string
	DueDate      *time.Time
	ClearDueDate bool
}

// UpdateTask merges descriptive fields. Rejected while IN_PROGRESS so a
// task cannot be edited mid-run.
func (e *Engine) UpdateTask(ctx context.Context, userID, taskID string, in UpdateTaskInput) (*model.Task, error) {
	var task *model.Task

	err := e.db.Transaction(func(tx *gorm.DB) error {
		tasks := e.tasks.WithTx(tx)
		t, err := tasks.FindByID(ctx, userID, taskID)
		if err != nil {
			return asNotFound(err, ErrTaskNotFound)
		}
		if t.Status == model.StatusInProgress {
			return ErrTaskRunning
		}

		if in.Title != nil {
			title := strings.TrimSpace(*in.Title)
			if title == "" {
				return ErrTitleRequired
			}
			t.Title = title
		}
		if in.Description != nil {
			t.Description = *in.Description
		}
		if in.Priority != nil {
			if !in.Priority.Valid() {
				return ErrBadPriority
			}
			t.Priority = *in.Priority
		}
		if in.ModuleID != nil {
			if _, err := e.modules.WithTx(tx).GetByID(ctx, userID, *in.ModuleID); err != nil {
				return asNotFound(err, ErrModuleNotFound)
			}
			t.ModuleID = *in.ModuleID
		}
		if in.Tags != nil {
			t.Tags = model.EncodeTags(in.Tags)
		}
		if in.ClearDueDate {
			t.DueDate = nil
		} else if in.DueDate != nil {
			t.DueDate = normalizeDueDate(in.DueDate)
		}

		if err := tasks.Save(ctx, t); err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.invalidate(ctx, userID)
	task.ProjectedDurationMs = timeacct.Projected(task, e.now())
	return task, nil
}

// DeleteTask hard-deletes a task. Rejected while IN_PROGRESS. The
// task's events stay in the log.
func (e *Engine) DeleteTask(ctx context.Context, userID, taskID string) error {
	err := e.db.Transaction(func(tx *gorm.DB) error {
		tasks := e.tasks.WithTx(tx)
		t, err := tasks.FindByID(ctx, userID, taskID)
		if err != nil {
			return asNotFound(err, ErrTaskNotFound)
		}
		if t.Status == model.StatusInProgress {
			return ErrTaskRunning
		}
		return tasks.Delete(ctx, userID, taskID)
	})
	if err != nil {
		return err
	}
	e.invalidate(ctx, userID)
	return nil
}

// BatchDeleteTasks deletes each id in turn, continuing past failures.
// Returns the number deleted and the per-id errors joined together.
func (e *Engine) BatchDeleteTasks(ctx context.Context, userID string, taskIDs []string) (int, error) {
	deleted := 0
	var errs []error
	for _, id := range taskIDs {
		if err := e.DeleteTask(ctx, userID, id); err != nil {
			errs = append(errs, &taskError{taskID: id, err: err})
			continue
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}

type taskError struct {
	taskID string
	err    error
}

func (e *taskError) Error() string { return "task " + e.taskID + ": " + e.err.Error() }
func (e *taskError) Unwrap() error { return e.err }

// GetTask returns one task with its read-time projected duration.
func (e *Engine) GetTask(ctx context.Context, userID, taskID string) (*model.Task, error) {
	t, err := e.tasks.FindByID(ctx, userID, taskID)
	if err != nil {
		return nil, asNotFound(err, ErrTaskNotFound)
	}
	t.ProjectedDurationMs = timeacct.Projected(t, e.now())
	return t, nil
}

// ListTasks returns a user's tasks with projected durations, optionally
// filtered by status set and module.
func (e *Engine) ListTasks(ctx context.Context, userID string, statuses []model.TaskStatus, moduleID string) ([]model.Task, error) {
	tasks, err := e.tasks.ListByUser(ctx, userID, statuses, moduleID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	for i := range tasks {
		tasks[i].ProjectedDurationMs = timeacct.Projected(&tasks[i], now)
	}
	return tasks, nil
}

// GetActiveTask returns the user's single IN_PROGRESS task, or nil.
func (e *Engine) GetActiveTask(ctx context.Context, userID string) (*model.Task, error) {
	running, err := e.tasks.FindRunning(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	if len(running) == 0 {
		return nil, nil
	}
	t := &running[0]
	t.ProjectedDurationMs = timeacct.Projected(t, e.now())
	return t, nil
}

// ListEvents returns a task's audit trail in chronological order.
func (e *Engine) ListEvents(ctx context.Context, userID, taskID string) ([]model.Event, error) {
	if _, err := e.tasks.FindByID(ctx, userID, taskID); err != nil {
		return nil, asNotFound(err, ErrTaskNotFound)
	}
	return e.events.ListByTask(ctx, userID, taskID)
}

// appendEvents writes audit events after the owning transaction has
// committed. A failed append is logged and swallowed: the transition
// already happened and must not be reported as failed.
func (e *Engine) appendEvents(ctx context.Context, events ...model.Event) {
	for i := range events {
		if err := e.events.Append(ctx, &events[i]); err != nil {
			log.Printf("[warn] append %s event for task %s: %v", events[i].Type, events[i].TaskID, err)
		}
	}
}

func (e *Engine) invalidate(ctx context.Context, userID string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.InvalidateUser(ctx, userID); err != nil {
		log.Printf("[warn] invalidate stats cache for user %s: %v", userID, err)
	}
}

func asNotFound(err error, sentinel *BusinessError) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

// normalizeDueDate discards the time of day; due dates are calendar
// dates.
func normalizeDueDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return &d
}

// ParseDueDate parses a caller-supplied due-date string. Parse failures
// are logged and treated as "no due date" so one bad field does not
// abort an otherwise valid mutation.
func ParseDueDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return normalizeDueDate(&t)
		}
	}
	log.Printf("[warn] unparseable due date %q, treating as none", raw)
	return nil
}
