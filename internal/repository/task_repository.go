package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"timeclerk/internal/model"
)

// TaskRepository handles persistence for tasks, including the aggregate
// queries backing the statistics rollups.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *TaskRepository) WithTx(tx *gorm.DB) *TaskRepository {
	return &TaskRepository{db: tx}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID, taskID string) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).First(&task).Error; err != nil {
		return nil, err
	}
	if err := checkStatus(&task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Save writes back a loaded task. A write that matches zero rows is a
// failure: the row was deleted underneath us and the transition must
// not appear to have succeeded.
func (r *TaskRepository) Save(ctx context.Context, task *model.Task) error {
	res := r.db.WithContext(ctx).Save(task)
	if res.Error != nil {
		return fmt.Errorf("save task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("save task %s: no rows affected", task.ID)
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, userID, taskID string) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).Delete(&model.Task{})
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListByUser returns a user's tasks, optionally filtered by status set
// and module, newest first.
func (r *TaskRepository) ListByUser(ctx context.Context, userID string, statuses []model.TaskStatus, moduleID string) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if moduleID != "" {
		q = q.Where("module_id = ?", moduleID)
	}
	var tasks []model.Task
	if err := q.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	for i := range tasks {
		if err := checkStatus(&tasks[i]); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

// FindRunning returns every IN_PROGRESS task of the user, excluding the
// given task id when non-empty. The per-user running set should never
// exceed one row, but the caller must not rely on that while enforcing
// it.
func (r *TaskRepository) FindRunning(ctx context.Context, userID, excludeID string) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Where("user_id = ? AND status = ?", userID, model.StatusInProgress)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var tasks []model.Task
	if err := q.Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) CountByModule(ctx context.Context, userID, moduleID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND module_id = ?", userID, moduleID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// StatusCountRow is one bucket of the per-status totals.
type StatusCountRow struct {
	Status string
	Count  int64
}

func (r *TaskRepository) CountByStatus(ctx context.Context, userID string) ([]StatusCountRow, error) {
	var rows []StatusCountRow
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Select("status, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SumDurationStarted sums the stored active duration of tasks whose
// first start falls inside the half-open window. Nil bounds leave that
// side of the window open.
func (r *TaskRepository) SumDurationStarted(ctx context.Context, userID string, windowStart, windowEnd *time.Time) (int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND started_at IS NOT NULL", userID)
	if windowStart != nil {
		q = q.Where("started_at >= ?", *windowStart)
	}
	if windowEnd != nil {
		q = q.Where("started_at < ?", *windowEnd)
	}
	var total int64
	if err := q.Select("COALESCE(SUM(duration_ms), 0)").Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// ModuleRollupRow is the per-module aggregate scanned from the store.
type ModuleRollupRow struct {
	ModuleID       string
	ModuleName     string
	TaskCount      int64
	CompletedCount int64
	DurationMs     int64
}

func (r *TaskRepository) ModuleRollups(ctx context.Context, userID string) ([]ModuleRollupRow, error) {
	var rows []ModuleRollupRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT m.id AS module_id,
		       m.name AS module_name,
		       COUNT(t.id) AS task_count,
		       COALESCE(SUM(CASE WHEN t.status = ? THEN 1 ELSE 0 END), 0) AS completed_count,
		       COALESCE(SUM(t.duration_ms), 0) AS duration_ms
		FROM modules m
		LEFT JOIN tasks t ON t.module_id = m.id AND t.user_id = m.user_id
		WHERE m.user_id = ?
		GROUP BY m.id, m.name
		ORDER BY m.name ASC`,
		model.StatusCompleted, userID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DailyRow is one day of the completed-task timeline.
type DailyRow struct {
	Day            string
	CompletedCount int64
	DurationMs     int64
}

func (r *TaskRepository) DailyTimeline(ctx context.Context, userID string, windowStart, windowEnd *time.Time) ([]DailyRow, error) {
	q := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND status = ? AND ended_at IS NOT NULL", userID, model.StatusCompleted)
	if windowStart != nil {
		q = q.Where("ended_at >= ?", *windowStart)
	}
	if windowEnd != nil {
		q = q.Where("ended_at < ?", *windowEnd)
	}
	var rows []DailyRow
	if err := q.Select("date(ended_at) AS day, COUNT(*) AS completed_count, COALESCE(SUM(duration_ms), 0) AS duration_ms").
		Group("date(ended_at)").
		Order("day ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListUserIDs returns the distinct owners present in the task table,
// used by the reconciliation sweep.
func (r *TaskRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Distinct("user_id").Order("user_id ASC").Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// checkStatus fails loudly on a row whose status column no longer holds
// a known value, instead of silently treating it as PENDING.
func checkStatus(task *model.Task) error {
	if _, err := model.ParseStatus(string(task.Status)); err != nil {
		return fmt.Errorf("task %s: %w", task.ID, err)
	}
	return nil
}
