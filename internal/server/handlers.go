// Package server exposes the lifecycle engine and stats aggregator over
// HTTP. Handlers stay thin: validation and state rules live in the
// engine, user resolution in whatever sits in front of this service.
package server

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"timeclerk/internal/engine"
	"timeclerk/internal/model"
	"timeclerk/internal/stats"
)

const userHeader = "X-User-ID"

// Handler handles HTTP requests for task tracking.
type Handler struct {
	engine     *engine.Engine
	aggregator *stats.Aggregator
}

func NewHandler(eng *engine.Engine, agg *stats.Aggregator) *Handler {
	return &Handler{engine: eng, aggregator: agg}
}

// RegisterRoutes registers the API routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/v1", requireUser)

	api.Post("/tasks", h.CreateTask)
	api.Get("/tasks", h.ListTasks)
	api.Get("/tasks/active", h.GetActiveTask)
	api.Post("/tasks/batch-delete", h.BatchDeleteTasks)
	api.Post("/tasks/import", h.ImportTasks)
	api.Get("/tasks/:id", h.GetTask)
	api.Patch("/tasks/:id", h.UpdateTask)
	api.Delete("/tasks/:id", h.DeleteTask)
	api.Post("/tasks/:id/start", h.StartTask)
	api.Post("/tasks/:id/pause", h.PauseTask)
	api.Post("/tasks/:id/resume", h.StartTask)
	api.Post("/tasks/:id/complete", h.CompleteTask)
	api.Post("/tasks/:id/interrupt", h.InterruptTask)
	api.Get("/tasks/:id/events", h.ListEvents)

	api.Get("/modules", h.ListModules)
	api.Post("/modules", h.CreateModule)
	api.Delete("/modules/:id", h.DeleteModule)

	api.Get("/stats", h.GetStats)
}

func (h *Handler) CreateTask(c *fiber.Ctx) error {
	userID := currentUser(c)
	var req CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_request", "Invalid request body")
	}

	task, err := h.engine.CreateTask(c.Context(), userID, engine.CreateTaskInput{
		ModuleID:    req.ModuleID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    model.Priority(req.Priority),
		DueDate:     engine.ParseDueDate(req.DueDate),
		Tags:        req.Tags,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toTaskResponse(task))
}

func (h *Handler) ListTasks(c *fiber.Ctx) error {
	userID := currentUser(c)
	statuses, err := parseStatuses(c.Query("status"))
	if err != nil {
		return badRequest(c, "bad_status", err.Error())
	}

	tasks, err := h.engine.ListTasks(c.Context(), userID, statuses, c.Query("module"))
	if err != nil {
		return writeError(c, err)
	}
	out := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, toTaskResponse(&tasks[i]))
	}
	return c.JSON(out)
}

func (h *Handler) GetTask(c *fiber.Ctx) error {
	userID := currentUser(c)
	task, err := h.engine.GetTask(c.Context(), userID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toTaskResponse(task))
}

func (h *Handler) GetActiveTask(c *fiber.Ctx) error {
	userID := currentUser(c)
	task, err := h.engine.GetActiveTask(c.Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	if task == nil {
		return c.Status(fiber.StatusNoContent).Send(nil)
	}
	return c.JSON(toTaskResponse(task))
}

func (h *Handler) UpdateTask(c *fiber.Ctx) error {
	userID := currentUser(c)
	var req UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_request", "Invalid request body")
	}

	task, err := h.engine.UpdateTask(c.Context(), userID, c.Params("id"), toUpdateInput(req))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toTaskResponse(task))
}

func (h *Handler) DeleteTask(c *fiber.Ctx) error {
	userID := currentUser(c)
	if err := h.engine.DeleteTask(c.Context(), userID, c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusNoContent).Send(nil)
}

func (h *Handler) BatchDeleteTasks(c *fiber.Ctx) error {
	userID := currentUser(c)
	var req BatchDeleteRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_request", "Invalid request body")
	}

	deleted, err := h.engine.BatchDeleteTasks(c.Context(), userID, req.IDs)
	resp := BatchDeleteResponse{Deleted: deleted}
	if err != nil {
		resp.Errors = splitJoined(err)
	}
	return c.JSON(resp)
}

func (h *Handler) StartTask(c *fiber.Ctx) error {
	userID := currentUser(c)
	task, err := h.engine.StartTask(c.Context(), userID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toTaskResponse(task))
}

func (h *Handler) PauseTask(c *fiber.Ctx) error {
	userID := currentUser(c)
	task, err := h.engine.PauseTask(c.Context(), userID, c.Params("id"), c.QueryBool("system"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toTaskResponse(task))
}

func (h *Handler) CompleteTask(c *fiber.Ctx) error {
	userID := currentUser(c)
	task, err := h.engine.CompleteTask(c.Context(), userID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toTaskResponse(task))
}

func (h *Handler) InterruptTask(c *fiber.Ctx) error {
	userID := currentUser(c)
	var req InterruptRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid_request", "Invalid request body")
		}
	}
	task, err := h.engine.InterruptTask(c.Context(), userID, c.Params("id"), req.Reason, req.System)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toTaskResponse(task))
}

func (h *Handler) ListEvents(c *fiber.Ctx) error {
	userID := currentUser(c)
	events, err := h.engine.ListEvents(c.Context(), userID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	out := make([]EventResponse, 0, len(events))
	for i := range events {
		out = append(out, toEventResponse(&events[i]))
	}
	return c.JSON(out)
}

func (h *Handler) ImportTasks(c *fiber.Ctx) error {
	userID := currentUser(c)
	var req ImportRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_request", "Invalid request body")
	}

	items := make([]engine.ImportItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, engine.ImportItem{
			Title:       item.Title,
			Description: item.Description,
			Module:      item.Module,
			Priority:    item.Priority,
			DueDate:     item.DueDate,
			Tags:        item.Tags,
		})
	}
	report, err := h.engine.ImportTasks(c.Context(), userID, items)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(report)
}

func (h *Handler) ListModules(c *fiber.Ctx) error {
	userID := currentUser(c)
	modules, err := h.engine.ListModules(c.Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]ModuleResponse, 0, len(modules))
	for i := range modules {
		out = append(out, toModuleResponse(&modules[i]))
	}
	return c.JSON(out)
}

func (h *Handler) CreateModule(c *fiber.Ctx) error {
	userID := currentUser(c)
	var req CreateModuleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_request", "Invalid request body")
	}
	module, err := h.engine.CreateModule(c.Context(), userID, req.Name)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toModuleResponse(module))
}

func (h *Handler) DeleteModule(c *fiber.Ctx) error {
	userID := currentUser(c)
	if err := h.engine.DeleteModule(c.Context(), userID, c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusNoContent).Send(nil)
}

func (h *Handler) GetStats(c *fiber.Ctx) error {
	userID := currentUser(c)
	windowStart, err := parseWindowBound(c.Query("from"))
	if err != nil {
		return badRequest(c, "bad_window", err.Error())
	}
	windowEnd, err := parseWindowBound(c.Query("to"))
	if err != nil {
		return badRequest(c, "bad_window", err.Error())
	}

	report, err := h.aggregator.Report(c.Context(), userID, windowStart, windowEnd)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(report)
}

// requireUser resolves the caller identity set by the auth layer in
// front of this service and stashes it for handlers.
func requireUser(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Get(userHeader))
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "user_required",
			Message: "Missing " + userHeader + " header",
		})
	}
	c.Locals("userID", userID)
	return c.Next()
}

func currentUser(c *fiber.Ctx) string {
	userID, _ := c.Locals("userID").(string)
	return userID
}

func badRequest(c *fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: code, Message: message})
}

// writeError maps business errors onto HTTP statuses; anything else is
// a generic persistence failure.
func writeError(c *fiber.Ctx, err error) error {
	var be *engine.BusinessError
	if errors.As(err, &be) {
		status := fiber.StatusBadRequest
		switch be.Kind {
		case engine.KindState:
			status = fiber.StatusConflict
		case engine.KindNotFound:
			status = fiber.StatusNotFound
		}
		return c.Status(status).JSON(ErrorResponse{Error: be.Code, Message: be.Message})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "internal_error",
		Message: "Internal server error",
	})
}

func parseStatuses(raw string) ([]model.TaskStatus, error) {
	if raw == "" {
		return nil, nil
	}
	var statuses []model.TaskStatus
	for _, part := range strings.Split(raw, ",") {
		status, err := model.ParseStatus(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func parseWindowBound(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New("window bound must be RFC3339 or YYYY-MM-DD")
}

func splitJoined(err error) []string {
	var out []string
	for _, line := range strings.Split(err.Error(), "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
