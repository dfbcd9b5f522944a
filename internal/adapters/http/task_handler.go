package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/tasklist/internal/domain/entities"
	"github.com/taskmaster/tasklist/internal/infrastructure/logger"
	"github.com/taskmaster/tasklist/internal/ports"
)

// TaskHandler exposes a user's ordered task list
type TaskHandler struct {
	taskService ports.TaskService
	logger      *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService ports.TaskService, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logger.WithComponent("task_handler"),
	}
}

// ListTasks returns the ordered list, optionally narrowed to doing or done
//
// @Summary List tasks in display order
// @Tags tasks
// @Produce json
// @Param filter query string false "all, doing or done"
// @Success 200 {object} TaskListResponse
// @Router /tasks [get]
func (h *TaskHandler) ListTasks(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	filter, err := entities.ParseFilter(c.QueryParam("filter"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	snap, err := h.taskService.FetchTasks(c.Request().Context(), userID)
	if err != nil {
		return toHTTPError(err)
	}

	tasks := make([]*entities.Task, 0, len(snap.Tasks))
	for _, t := range snap.Tasks {
		if filter.Match(t) {
			tasks = append(tasks, t)
		}
	}

	setVersion(c, snap.Version)
	return c.JSON(http.StatusOK, TaskListResponse{Tasks: tasks, Version: snap.Version, Filter: filter})
}

// CreateTask handles task creation
//
// @Summary Create a task at the top of the unpinned block
// @Tags tasks
// @Accept json
// @Produce json
// @Param body body ports.CreateTaskRequest true "task"
// @Success 201 {object} ports.WriteResult
// @Failure 409 {object} ErrorResponse
// @Router /tasks [post]
func (h *TaskHandler) CreateTask(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}

	var req ports.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	res, err := h.taskService.PersistCreate(c.Request().Context(), userID, req)
	if err != nil {
		return toHTTPError(err)
	}

	h.logger.LogUserAction(userID, "create_task", map[string]interface{}{
		"task_id":  res.Task.ID,
		"position": res.Position,
	})
	setVersion(c, res.Version)
	return c.JSON(http.StatusCreated, res)
}

// UpdateTask handles data, done and image edits
//
// @Summary Update task content
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "task id"
// @Param body body ports.UpdateTaskRequest true "fields"
// @Success 200 {object} ports.WriteResult
// @Router /tasks/{id} [put]
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	var req ports.UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.write(c, "update_task", func(userID string, base *int64) (*ports.WriteResult, error) {
		return h.taskService.UpdateTask(c.Request().Context(), userID, c.Param("id"), req, base)
	})
}

// DeleteTask removes a task. Remaining positions keep their gaps.
//
// @Summary Delete a task
// @Tags tasks
// @Param id path string true "task id"
// @Success 200 {object} ports.WriteResult
// @Router /tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	return h.write(c, "delete_task", func(userID string, base *int64) (*ports.WriteResult, error) {
		return h.taskService.PersistDelete(c.Request().Context(), userID, c.Param("id"), base)
	})
}

// MoveTask moves a task to a 1-based slot
//
// @Summary Move a task to a new slot
// @Tags tasks
// @Param id path string true "task id"
// @Param newPosition path int true "1-based slot"
// @Success 200 {object} ports.WriteResult
// @Router /tasks/{id}/move/{newPosition} [put]
func (h *TaskHandler) MoveTask(c echo.Context) error {
	newPosition, err := intParam(c, "newPosition")
	if err != nil {
		return err
	}
	return h.write(c, "move_task", func(userID string, base *int64) (*ports.WriteResult, error) {
		return h.taskService.PersistMove(c.Request().Context(), userID, c.Param("id"), newPosition, base)
	})
}

// MoveTaskBy shifts a task by a signed step
//
// @Summary Move a task up or down
// @Tags tasks
// @Param id path string true "task id"
// @Param step path int true "signed step"
// @Success 200 {object} ports.WriteResult
// @Router /tasks/{id}/move-by/{step} [put]
func (h *TaskHandler) MoveTaskBy(c echo.Context) error {
	step, err := intParam(c, "step")
	if err != nil {
		return err
	}
	return h.write(c, "move_task_by", func(userID string, base *int64) (*ports.WriteResult, error) {
		return h.taskService.PersistMoveBy(c.Request().Context(), userID, c.Param("id"), step, base)
	})
}

// TogglePin pins or unpins a task
//
// @Summary Toggle a task's pin
// @Tags tasks
// @Param id path string true "task id"
// @Success 200 {object} ports.WriteResult
// @Router /tasks/{id}/pin [put]
func (h *TaskHandler) TogglePin(c echo.Context) error {
	return h.write(c, "toggle_pin", func(userID string, base *int64) (*ports.WriteResult, error) {
		return h.taskService.PersistPinToggle(c.Request().Context(), userID, c.Param("id"), base)
	})
}

// WriteChecklist replaces a task's checklist
//
// @Summary Replace a checklist
// @Tags checklist
// @Accept json
// @Param id path string true "task id"
// @Param body body ports.ChecklistWriteRequest true "items"
// @Success 200 {object} ports.WriteResult
// @Router /tasks/{id}/checklist [put]
func (h *TaskHandler) WriteChecklist(c echo.Context) error {
	var req ports.ChecklistWriteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.write(c, "write_checklist", func(userID string, base *int64) (*ports.WriteResult, error) {
		return h.taskService.PersistChecklistWrite(c.Request().Context(), userID, c.Param("id"), req.Items, base)
	})
}

// SetChecklistMode converts between text and checklist
//
// @Summary Switch checklist mode
// @Tags checklist
// @Accept json
// @Param id path string true "task id"
// @Param body body ports.ChecklistModeRequest true "mode"
// @Success 200 {object} ports.WriteResult
// @Router /tasks/{id}/checklist/mode [put]
func (h *TaskHandler) SetChecklistMode(c echo.Context) error {
	var req ports.ChecklistModeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	return h.write(c, "checklist_mode", func(userID string, base *int64) (*ports.WriteResult, error) {
		return h.taskService.SetChecklistMode(c.Request().Context(), userID, c.Param("id"), req.Checklist, base)
	})
}

// ToggleItemDone completes or restores a checklist item
//
// @Summary Toggle a checklist item
// @Tags checklist
// @Param id path string true "task id"
// @Param itemId path string true "item id"
// @Success 200 {object} ports.WriteResult
// @Router /tasks/{id}/items/{itemId}/done [put]
func (h *TaskHandler) ToggleItemDone(c echo.Context) error {
	return h.write(c, "toggle_item", func(userID string, base *int64) (*ports.WriteResult, error) {
		return h.taskService.ToggleItemDone(c.Request().Context(), userID, c.Param("id"), c.Param("itemId"), base)
	})
}

// InsertItemAfter adds an empty item after the anchor
//
// @Summary Insert a checklist item
// @Tags checklist
// @Param id path string true "task id"
// @Param itemId path string true "anchor item id"
// @Success 200 {object} ports.WriteResult
// @Router /tasks/{id}/items/{itemId}/after [post]
func (h *TaskHandler) InsertItemAfter(c echo.Context) error {
	return h.write(c, "insert_item", func(userID string, base *int64) (*ports.WriteResult, error) {
		return h.taskService.InsertItemAfter(c.Request().Context(), userID, c.Param("id"), c.Param("itemId"), base)
	})
}

// EditItem changes one item's text
//
// @Summary Edit a checklist item
// @Tags checklist
// @Accept json
// @Param id path string true "task id"
// @Param itemId path string true "item id"
// @Param body body ports.ItemTextRequest true "text"
// @Success 200 {object} ports.WriteResult
// @Router /tasks/{id}/items/{itemId} [put]
func (h *TaskHandler) EditItem(c echo.Context) error {
	var req ports.ItemTextRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.write(c, "edit_item", func(userID string, base *int64) (*ports.WriteResult, error) {
		return h.taskService.SetItemText(c.Request().Context(), userID, c.Param("id"), c.Param("itemId"), req.Data, base)
	})
}

// MoveItem moves a checklist item to a 0-based index
//
// @Summary Move a checklist item
// @Tags checklist
// @Param id path string true "task id"
// @Param itemId path string true "item id"
// @Param newIndex path int true "0-based index"
// @Success 200 {object} ports.WriteResult
// @Router /tasks/{id}/items/{itemId}/move/{newIndex} [put]
func (h *TaskHandler) MoveItem(c echo.Context) error {
	newIndex, err := intParam(c, "newIndex")
	if err != nil {
		return err
	}
	return h.write(c, "move_item", func(userID string, base *int64) (*ports.WriteResult, error) {
		return h.taskService.MoveItem(c.Request().Context(), userID, c.Param("id"), c.Param("itemId"), newIndex, base)
	})
}

// DeleteItem removes a checklist item
//
// @Summary Delete a checklist item
// @Tags checklist
// @Param id path string true "task id"
// @Param itemId path string true "item id"
// @Success 200 {object} ports.WriteResult
// @Router /tasks/{id}/items/{itemId} [delete]
func (h *TaskHandler) DeleteItem(c echo.Context) error {
	return h.write(c, "delete_item", func(userID string, base *int64) (*ports.WriteResult, error) {
		return h.taskService.DeleteItem(c.Request().Context(), userID, c.Param("id"), c.Param("itemId"), base)
	})
}

// Resequence closes the gaps deletes leave behind
//
// @Summary Renumber the list to 1..n
// @Tags tasks
// @Success 200 {object} ports.WriteResult
// @Router /tasks/resequence [post]
func (h *TaskHandler) Resequence(c echo.Context) error {
	return h.write(c, "resequence", func(userID string, _ *int64) (*ports.WriteResult, error) {
		return h.taskService.Resequence(c.Request().Context(), userID)
	})
}

// write resolves the caller and If-Match, runs fn and renders the result.
func (h *TaskHandler) write(c echo.Context, action string, fn func(userID string, base *int64) (*ports.WriteResult, error)) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return err
	}
	base, err := baseVersion(c)
	if err != nil {
		return err
	}

	res, err := fn(userID, base)
	if err != nil {
		return toHTTPError(err)
	}

	if res.Changed {
		h.logger.LogUserAction(userID, action, map[string]interface{}{
			"task_id": c.Param("id"),
			"version": res.Version,
		})
	}
	setVersion(c, res.Version)
	return c.JSON(http.StatusOK, res)
}
