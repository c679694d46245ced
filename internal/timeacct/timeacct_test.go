package timeacct

import (
	"testing"
	"time"

	"timeclerk/internal/model"
)

func TestFoldActive(t *testing.T) {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	now := start.Add(90 * time.Second)

	task := &model.Task{DurationMs: 500, ActiveStartAt: &start}
	FoldActive(task, now)

	if task.DurationMs != 500+90_000 {
		t.Errorf("expected 90500, got %d", task.DurationMs)
	}
	if task.ActiveStartAt != nil {
		t.Error("expected ActiveStartAt cleared")
	}
}

func TestFoldActiveNoOpWithoutMarker(t *testing.T) {
	task := &model.Task{DurationMs: 500}
	FoldActive(task, time.Now())

	if task.DurationMs != 500 {
		t.Errorf("expected counter unchanged, got %d", task.DurationMs)
	}
}

func TestFoldActiveClampsClockSkew(t *testing.T) {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	// now is before the marker; the counter must not decrease.
	now := start.Add(-time.Minute)

	task := &model.Task{DurationMs: 700, ActiveStartAt: &start}
	FoldActive(task, now)

	if task.DurationMs != 700 {
		t.Errorf("expected 700, got %d", task.DurationMs)
	}
	if task.ActiveStartAt != nil {
		t.Error("expected ActiveStartAt cleared even on skew")
	}
}

func TestFoldPaused(t *testing.T) {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	now := start.Add(30 * time.Second)

	task := &model.Task{PausedDurationMs: 100, PauseStartedAt: &start}
	FoldPaused(task, now)

	if task.PausedDurationMs != 100+30_000 {
		t.Errorf("expected 30100, got %d", task.PausedDurationMs)
	}
	if task.PauseStartedAt != nil {
		t.Error("expected PauseStartedAt cleared")
	}
}

func TestProjectedDoesNotMutate(t *testing.T) {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	task := &model.Task{DurationMs: 1_000, ActiveStartAt: &start}

	got := Projected(task, start.Add(5*time.Second))
	if got != 6_000 {
		t.Errorf("expected 6000, got %d", got)
	}
	if task.DurationMs != 1_000 {
		t.Errorf("Projected mutated DurationMs: %d", task.DurationMs)
	}
	if task.ActiveStartAt == nil || !task.ActiveStartAt.Equal(start) {
		t.Error("Projected mutated ActiveStartAt")
	}

	// Grows linearly with the clock.
	later := Projected(task, start.Add(10*time.Second))
	if later != 11_000 {
		t.Errorf("expected 11000, got %d", later)
	}
}

func TestProjectedWithoutOpenRun(t *testing.T) {
	task := &model.Task{DurationMs: 42}
	if got := Projected(task, time.Now()); got != 42 {
		t.Errorf("expected stored counter 42, got %d", got)
	}
}
