package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"timeclerk/internal/model"
)

// fakeClock lets tests step the engine's wall clock deterministically.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestEngine(t *testing.T) (*Engine, *fakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Module{}, &model.Task{}, &model.Event{}))

	eng := New(db, nil)
	clock := newFakeClock()
	eng.now = clock.Now
	return eng, clock
}

func mustModule(t *testing.T, eng *Engine, userID, name string) *model.Module {
	t.Helper()
	module, err := eng.CreateModule(context.Background(), userID, name)
	require.NoError(t, err)
	return module
}

func mustTask(t *testing.T, eng *Engine, userID, moduleID, title string) *model.Task {
	t.Helper()
	task, err := eng.CreateTask(context.Background(), userID, CreateTaskInput{
		ModuleID: moduleID,
		Title:    title,
	})
	require.NoError(t, err)
	return task
}

func eventTypes(t *testing.T, eng *Engine, userID, taskID string) []model.EventType {
	t.Helper()
	events, err := eng.ListEvents(context.Background(), userID, taskID)
	require.NoError(t, err)
	types := make([]model.EventType, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	return types
}

func TestCreateTask(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	module := mustModule(t, eng, "u1", "work")

	task, err := eng.CreateTask(ctx, "u1", CreateTaskInput{
		ModuleID:    module.ID,
		Title:       "  write report  ",
		Description: "quarterly",
		Tags:        []string{"deep", "q2"},
	})
	require.NoError(t, err)

	assert.Equal(t, "write report", task.Title)
	assert.Equal(t, model.StatusPending, task.Status)
	assert.Equal(t, model.PriorityMedium, task.Priority)
	assert.Zero(t, task.DurationMs)
	assert.Zero(t, task.PausedDurationMs)
	assert.Nil(t, task.ActiveStartAt)
	assert.Nil(t, task.PauseStartedAt)
	assert.Equal(t, []string{"deep", "q2"}, model.DecodeTags(task.Tags))

	assert.Equal(t, []model.EventType{model.EventCreate}, eventTypes(t, eng, "u1", task.ID))
}

func TestCreateTaskValidation(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	module := mustModule(t, eng, "u1", "work")

	_, err := eng.CreateTask(ctx, "u1", CreateTaskInput{ModuleID: module.ID, Title: "   "})
	assert.ErrorIs(t, err, ErrTitleRequired)

	_, err = eng.CreateTask(ctx, "u1", CreateTaskInput{Title: "no module"})
	assert.ErrorIs(t, err, ErrModuleRequired)

	_, err = eng.CreateTask(ctx, "u1", CreateTaskInput{ModuleID: "missing", Title: "x"})
	assert.ErrorIs(t, err, ErrModuleNotFound)

	// A module owned by another user is indistinguishable from a
	// missing one.
	_, err = eng.CreateTask(ctx, "u2", CreateTaskInput{ModuleID: module.ID, Title: "x"})
	assert.ErrorIs(t, err, ErrModuleNotFound)
}

// Canonical timing walk: start at t=0, pause at t=100ms, resume at
// t=150ms, complete at t=200ms.
func TestLifecycleTimingScenario(t *testing.T) {
	eng, clock := newTestEngine(t)
	ctx := context.Background()
	module := mustModule(t, eng, "u1", "work")
	task := mustTask(t, eng, "u1", module.ID, "scenario")

	started, err := eng.StartTask(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, started.Status)
	require.NotNil(t, started.ActiveStartAt)
	assert.Nil(t, started.PauseStartedAt)
	require.NotNil(t, started.StartedAt)
	assert.True(t, started.StartedAt.Equal(clock.Now()))

	clock.Advance(100 * time.Millisecond)
	paused, err := eng.PauseTask(ctx, "u1", task.ID, false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaused, paused.Status)
	assert.EqualValues(t, 100, paused.DurationMs)
	assert.EqualValues(t, 0, paused.PausedDurationMs)
	assert.Nil(t, paused.ActiveStartAt)
	require.NotNil(t, paused.PauseStartedAt)

	clock.Advance(50 * time.Millisecond)
	resumed, err := eng.StartTask(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, resumed.Status)
	assert.EqualValues(t, 100, resumed.DurationMs)
	assert.EqualValues(t, 50, resumed.PausedDurationMs)
	assert.Nil(t, resumed.PauseStartedAt)

	clock.Advance(50 * time.Millisecond)
	done, err := eng.CompleteTask(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)
	assert.EqualValues(t, 150, done.DurationMs)
	assert.EqualValues(t, 50, done.PausedDurationMs)
	require.NotNil(t, done.EndedAt)
	assert.True(t, done.EndedAt.Equal(clock.Now()))
	assert.Nil(t, done.ActiveStartAt)
	assert.Nil(t, done.PauseStartedAt)

	assert.Equal(t, []model.EventType{
		model.EventCreate, model.EventStart, model.EventPause,
		model.EventResume, model.EventComplete,
	}, eventTypes(t, eng, "u1", task.ID))
}

func TestStartAutoPausesRunningTask(t *testing.T) {
	eng, clock := newTestEngine(t)
	ctx := context.Background()
	module := mustModule(t, eng, "u1", "work")
	taskA := mustTask(t, eng, "u1", module.ID, "task A")
	taskB := mustTask(t, eng, "u1", module.ID, "task B")

	_, err := eng.StartTask(ctx, "u1", taskA.ID)
	require.NoError(t, err)

	clock.Advance(30 * time.Millisecond)
	startedB, err := eng.StartTask(ctx, "u1", taskB.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, startedB.Status)

	gotA, err := eng.GetTask(ctx, "u1", taskA.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaused, gotA.Status)
	assert.EqualValues(t, 30, gotA.DurationMs)
	require.NotNil(t, gotA.PauseStartedAt)

	// Exactly one auto-switch PAUSE on A.
	events, err := eng.ListEvents(ctx, "u1", taskA.ID)
	require.NoError(t, err)
	autoSwitch := 0
	for _, ev := range events {
		if ev.Type == model.EventPause && ev.Payload == "auto-switch" {
			autoSwitch++
		}
	}
	assert.Equal(t, 1, autoSwitch)

	// The running set has cardinality 1.
	active, err := eng.GetActiveTask(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, taskB.ID, active.ID)
}

func TestStartDoesNotPauseOtherUsers(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	moduleA := mustModule(t, eng, "u1", "work")
	moduleB := mustModule(t, eng, "u2", "work")
	taskA := mustTask(t, eng, "u1", moduleA.ID, "task A")
	taskB := mustTask(t, eng, "u2", moduleB.ID, "task B")

	_, err := eng.StartTask(ctx, "u1", taskA.ID)
	require.NoError(t, err)
	_, err = eng.StartTask(ctx, "u2", taskB.ID)
	require.NoError(t, err)

	gotA, err := eng.GetTask(ctx, "u1", taskA.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, gotA.Status)
}

func TestStartFromTerminalFails(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	module := mustModule(t, eng, "u1", "work")
	task := mustTask(t, eng, "u1", module.ID, "done soon")

	_, err := eng.CompleteTask(ctx, "u1", task.ID)
	require.NoError(t, err)

	_, err = eng.StartTask(ctx, "u1", task.ID)
	assert.ErrorIs(t, err, ErrStartNotAllowed)
}

func TestPauseRequiresRunning(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	module := mustModule(t, eng, "u1", "work")
	task := mustTask(t, eng, "u1", module.ID, "pending")

	_, err := eng.PauseTask(ctx, "u1", task.ID, false)
	assert.ErrorIs(t, err, ErrPauseNotAllowed)
}

func TestCompleteIsIdempotent(t *testing.T) {
	eng, clock := newTestEngine(t)
	ctx := context.Background()
	module := mustModule(t, eng, "u1", "work")
	task := mustTask(t, eng, "u1", module.ID, "idempotent")

	_, err := eng.StartTask(ctx, "u1", task.ID)
	require.NoError(t, err)
	clock.Advance(20 * time.Millisecond)

	first, err := eng.CompleteTask(ctx, "u1", task.ID)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	second, err := eng.CompleteTask(ctx, "u1", task.ID)
	require.NoError(t, err)

	assert.Equal(t, first.DurationMs, second.DurationMs)
	assert.True(t, first.EndedAt.Equal(*second.EndedAt))

	completes := 0
	for _, typ := range eventTypes(t, eng, "u1", task.ID) {
		if typ == model.EventComplete {
			completes++
		}
	}
	assert.Equal(t, 1, completes)
}

func TestInterruptRecordsReason(t *testing.T) {
	eng, clock := newTestEngine(t)
	ctx := context.Background()
	module := mustModule(t, eng, "u1", "work")
	task := mustTask(t, eng, "u1", module.ID, "interrupted")

	_, err := eng.StartTask(ctx, "u1", task.ID)
	require.NoError(t, err)
	clock.Advance(40 * time.Millisecond)

	got, err := eng.InterruptTask(ctx, "u1", task.ID, "phone call", false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInterrupted, got.Status)
	assert.EqualValues(t, 40, got.DurationMs)
	require.NotNil(t, got.EndedAt)

	events, err := eng.ListEvents(ctx, "u1", task.ID)
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Equal(t, model.EventInterrupt, last.Type)
	assert.Equal(t, "phone call", last.Payload)
}

func TestSystemInterruptEventType(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	module := mustModule(t, eng, "u1", "work")
	task := mustTask(t, eng, "u1", module.ID, "swept")

	_, err := eng.InterruptTask(ctx, "u1", task.ID, "stale", true)
	require.NoError(t, err)

	events, err := eng.ListEvents(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EventSystemInterrupt, events[len(events)-1].Type)
}

func TestInterruptCompletedFails(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	module := mustModule(t, eng, "u1", "work")
	task := mustTask(t, eng, "u1", module.ID, "done")

	done, err := eng.CompleteTask(ctx, "u1", task.ID)
	require.NoError(t, err)

	_, err = eng.InterruptTask(ctx, "u1", task.ID, "", false)
	assert.ErrorIs(t, err, ErrTaskCompleted)

	// Fields unchanged.
	got, err := eng.GetTask(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.True(t, done.EndedAt.Equal(*got.EndedAt))
}

func TestUpdateRejectedWhileRunning(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	module := mustModule(t, eng, "u1", "work")
	task := mustTask(t, eng, "u1", module.ID, "running")

	_, err := eng.StartTask(ctx, "u1", task.ID)
	require.NoError(t, err)

	title := "edited"
	_, err = eng.UpdateTask(ctx, "u1", task.ID, UpdateTaskInput{Title: &title})
	assert.ErrorIs(t, err, ErrTaskRunning)
}

func TestUpdateMergesFields(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	module := mustModule(t, eng, "u1", "work")
	other := mustModule(t, eng, "u1", "home")
	due := time.Date(2025, 7, 1, 15, 30, 0, 0, time.UTC)
	task := mustTask(t, eng, "u1", module.ID, "original")

	title := "renamed"
	prio := model.PriorityHigh
	got, err := eng.UpdateTask(ctx, "u1", task.ID, UpdateTaskInput{
		Title:    &title,
		Priority: &prio,
		ModuleID: &other.ID,
		Tags:     []string{"a"},
		DueDate:  &due,
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, model.PriorityHigh, got.Priority)
	assert.Equal(t, other.ID, got.ModuleID)
	assert.Equal(t, []string{"a"}, model.DecodeTags(got.Tags))
	// Time of day is discarded from due dates.
	require.NotNil(t, got.DueDate)
	assert.Equal(t, 0, got.DueDate.Hour())
	assert.Equal(t, due.Day(), got.DueDate.Day())

	// Untouched fields survive the merge.
	assert.Equal(t, task.Description, got.Description)

	cleared, err := eng.UpdateTask(ctx, "u1", task.ID, UpdateTaskInput{ClearDueDate: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.DueDate)
}

func TestDeleteRejectedWhileRunning(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	module := mustModule(t, eng, "u1", "work")
	task := mustTask(t, eng, "u1", module.ID, "running")

	_, err := eng.StartTask(ctx, "u1", task.ID)
	require.NoError(t, err)

	err = eng.DeleteTask(ctx, "u1", task.ID)
	assert.ErrorIs(t, err, ErrTaskRunning)

	got, err := eng.GetTask(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, got.Status)
}

func TestBatchDeleteContinuesPastFailures(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	module := mustModule(t, eng, "u1", "work")
	t1 := mustTask(t, eng, "u1", module.ID, "one")
	t2 := mustTask(t, eng, "u1", module.ID, "two")
	t3 := mustTask(t, eng, "u1", module.ID, "three")

	_, err := eng.StartTask(ctx, "u1", t2.ID)
	require.NoError(t, err)

	deleted, err := eng.BatchDeleteTasks(ctx, "u1", []string{t1.ID, t2.ID, t3.ID, "missing"})
	assert.Equal(t, 2, deleted)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTaskRunning)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestGetActiveTaskProjectsDuration(t *testing.T) {
	eng, clock := newTestEngine(t)
	ctx := context.Background()
	module := mustModule(t, eng, "u1", "work")
	task := mustTask(t, eng, "u1", module.ID, "live")

	active, err := eng.GetActiveTask(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, active)

	_, err = eng.StartTask(ctx, "u1", task.ID)
	require.NoError(t, err)
	clock.Advance(75 * time.Millisecond)

	active, err = eng.GetActiveTask(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.EqualValues(t, 75, active.ProjectedDurationMs)
	// Projection is read-only: the stored counter is untouched.
	assert.EqualValues(t, 0, active.DurationMs)
}

func TestForeignTaskIsNotFound(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	module := mustModule(t, eng, "u1", "work")
	task := mustTask(t, eng, "u1", module.ID, "mine")

	_, err := eng.GetTask(ctx, "u2", task.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	_, err = eng.StartTask(ctx, "u2", task.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	_, err = eng.ListEvents(ctx, "u2", task.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestDeleteModuleBlockedWhileTasksExist(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	module := mustModule(t, eng, "u1", "work")
	task := mustTask(t, eng, "u1", module.ID, "holds module")

	err := eng.DeleteModule(ctx, "u1", module.ID)
	assert.ErrorIs(t, err, ErrModuleHasTasks)

	require.NoError(t, eng.DeleteTask(ctx, "u1", task.ID))
	require.NoError(t, eng.DeleteModule(ctx, "u1", module.ID))
}

// Counters never decrease across any transition sequence.
func TestCountersMonotonic(t *testing.T) {
	eng, clock := newTestEngine(t)
	ctx := context.Background()
	module := mustModule(t, eng, "u1", "work")
	task := mustTask(t, eng, "u1", module.ID, "monotonic")

	var lastActive, lastPaused int64
	check := func(got *model.Task) {
		t.Helper()
		assert.GreaterOrEqual(t, got.DurationMs, lastActive)
		assert.GreaterOrEqual(t, got.PausedDurationMs, lastPaused)
		lastActive, lastPaused = got.DurationMs, got.PausedDurationMs

		// Exactly one marker may be set, matching the status.
		assert.Equal(t, got.Status == model.StatusInProgress, got.ActiveStartAt != nil)
		assert.Equal(t, got.Status == model.StatusPaused, got.PauseStartedAt != nil)
	}

	for i := 0; i < 3; i++ {
		got, err := eng.StartTask(ctx, "u1", task.ID)
		require.NoError(t, err)
		check(got)
		clock.Advance(17 * time.Millisecond)

		got, err = eng.PauseTask(ctx, "u1", task.ID, false)
		require.NoError(t, err)
		check(got)
		clock.Advance(11 * time.Millisecond)
	}

	got, err := eng.StartTask(ctx, "u1", task.ID)
	require.NoError(t, err)
	check(got)
	clock.Advance(5 * time.Millisecond)

	got, err = eng.CompleteTask(ctx, "u1", task.ID)
	require.NoError(t, err)
	check(got)
}
