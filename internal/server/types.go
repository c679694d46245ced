package server

import (
	"time"

	"timeclerk/internal/engine"
	"timeclerk/internal/model"
)

// CreateTaskRequest is the request body for creating a task.
type CreateTaskRequest struct {
	ModuleID    string   `json:"moduleId"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	DueDate     string   `json:"dueDate,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// UpdateTaskRequest merges fields; absent fields stay untouched. An
// empty dueDate string clears the due date.
type UpdateTaskRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Priority    *string  `json:"priority"`
	ModuleID    *string  `json:"moduleId"`
	Tags        []string `json:"tags"`
	DueDate     *string  `json:"dueDate"`
}

// InterruptRequest carries the optional reason for an interrupt.
type InterruptRequest struct {
	Reason string `json:"reason,omitempty"`
	System bool   `json:"system,omitempty"`
}

// BatchDeleteRequest lists the task ids to delete.
type BatchDeleteRequest struct {
	IDs []string `json:"ids"`
}

// BatchDeleteResponse reports how many rows were removed.
type BatchDeleteResponse struct {
	Deleted int      `json:"deleted"`
	Errors  []string `json:"errors,omitempty"`
}

// ImportRequest is the bulk-import body.
type ImportRequest struct {
	Items []ImportItemRequest `json:"items"`
}

// ImportItemRequest is one row of a bulk import.
type ImportItemRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Module      string   `json:"module"`
	Priority    string   `json:"priority,omitempty"`
	DueDate     string   `json:"dueDate,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// CreateModuleRequest names a new module.
type CreateModuleRequest struct {
	Name string `json:"name"`
}

// TaskResponse is the wire form of a task.
type TaskResponse struct {
	ID                  string     `json:"id"`
	ModuleID            string     `json:"moduleId"`
	Title               string     `json:"title"`
	Description         string     `json:"description,omitempty"`
	Priority            string     `json:"priority"`
	Tags                []string   `json:"tags,omitempty"`
	DueDate             *time.Time `json:"dueDate,omitempty"`
	Status              string     `json:"status"`
	StartedAt           *time.Time `json:"startedAt,omitempty"`
	EndedAt             *time.Time `json:"endedAt,omitempty"`
	DurationMs          int64      `json:"durationMs"`
	PausedDurationMs    int64      `json:"pausedDurationMs"`
	ProjectedDurationMs int64      `json:"projectedDurationMs"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// EventResponse is the wire form of an audit event.
type EventResponse struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"taskId"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    string    `json:"payload,omitempty"`
}

// ModuleResponse is the wire form of a module.
type ModuleResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// ErrorResponse is the response for errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func toTaskResponse(t *model.Task) TaskResponse {
	return TaskResponse{
		ID:                  t.ID,
		ModuleID:            t.ModuleID,
		Title:               t.Title,
		Description:         t.Description,
		Priority:            string(t.Priority),
		Tags:                model.DecodeTags(t.Tags),
		DueDate:             t.DueDate,
		Status:              string(t.Status),
		StartedAt:           t.StartedAt,
		EndedAt:             t.EndedAt,
		DurationMs:          t.DurationMs,
		PausedDurationMs:    t.PausedDurationMs,
		ProjectedDurationMs: t.ProjectedDurationMs,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
}

func toEventResponse(ev *model.Event) EventResponse {
	return EventResponse{
		ID:         ev.ID,
		TaskID:     ev.TaskID,
		Type:       string(ev.Type),
		OccurredAt: ev.OccurredAt,
		Payload:    ev.Payload,
	}
}

func toModuleResponse(m *model.Module) ModuleResponse {
	return ModuleResponse{ID: m.ID, Name: m.Name, CreatedAt: m.CreatedAt}
}

func toUpdateInput(req UpdateTaskRequest) engine.UpdateTaskInput {
	in := engine.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		ModuleID:    req.ModuleID,
		Tags:        req.Tags,
	}
	if req.Priority != nil {
		p := model.Priority(*req.Priority)
		in.Priority = &p
	}
	if req.DueDate != nil {
		if *req.DueDate == "" {
			in.ClearDueDate = true
		} else {
			in.DueDate = engine.ParseDueDate(*req.DueDate)
		}
	}
	return in
}
