package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"timeclerk/internal/model"
)

// ImportItem is one row of a bulk import. Priority and due date are raw
// strings parsed leniently; the module is referenced by name and
// created on demand.
type ImportItem struct {
	Title       string
	Description string
	Module      string
	Priority    string
	DueDate     string
	Tags        []string
}

// ImportReport summarizes a bulk import. Row numbers in Errors are
// 1-based.
type ImportReport struct {
	Total          int      `json:"total"`
	Success        int      `json:"success"`
	Failed         int      `json:"failed"`
	CreatedModules int      `json:"createdModules"`
	Errors         []string `json:"errors,omitempty"`
}

// ImportTasks bulk-creates tasks, auto-creating missing modules by name
// and continuing past per-row failures.
func (e *Engine) ImportTasks(ctx context.Context, userID string, items []ImportItem) (*ImportReport, error) {
	report := &ImportReport{Total: len(items)}
	mutated := false

	for i, item := range items {
		row := i + 1
		if err := e.importOne(ctx, userID, item, report); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("row %d: %v", row, err))
			continue
		}
		report.Success++
		mutated = true
	}

	if mutated {
		e.invalidate(ctx, userID)
	}
	return report, nil
}

func (e *Engine) importOne(ctx context.Context, userID string, item ImportItem, report *ImportReport) error {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return ErrTitleRequired
	}
	moduleName := strings.TrimSpace(item.Module)
	if moduleName == "" {
		return ErrModuleRequired
	}

	module, created, err := e.modules.GetOrCreate(ctx, userID, moduleName)
	if err != nil {
		return err
	}
	if created {
		report.CreatedModules++
	}

	now := e.now()
	task := &model.Task{
		ID:          uuid.New().String(),
		UserID:      userID,
		ModuleID:    module.ID,
		Title:       title,
		Description: item.Description,
		Priority:    model.ParsePriority(item.Priority),
		Tags:        model.EncodeTags(item.Tags),
		DueDate:     ParseDueDate(item.DueDate),
		Status:      model.StatusPending,
		LastEventAt: &now,
	}
	if err := e.tasks.Create(ctx, task); err != nil {
		return err
	}

	e.appendEvents(ctx, model.Event{
		TaskID: task.ID, UserID: userID, Type: model.EventCreate,
		OccurredAt: now, Payload: "import",
	})
	return nil
}
