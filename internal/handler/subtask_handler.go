package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"todolist/internal/model"
	"todolist/internal/service"
)

// SubtaskHandler handles subtask endpoints.
type SubtaskHandler struct {
	subtaskService service.SubtaskService
}

// NewSubtaskHandler creates a new subtask handler.
func NewSubtaskHandler(subtaskService service.SubtaskService) *SubtaskHandler {
	return &SubtaskHandler{subtaskService: subtaskService}
}

// CreateSubtaskRequest represents a new subtask. Without order it is appended.
type CreateSubtaskRequest struct {
	Title string `json:"title" validate:"required"`
	Order *int   `json:"order"`
}

// UpdateSubtaskRequest changes a subtask.
type UpdateSubtaskRequest struct {
	Title     model.Optional[string] `json:"title" swaggertype:"string"`
	Completed model.Optional[bool]   `json:"completed" swaggertype:"boolean"`
	Order     model.Optional[int]    `json:"order" swaggertype:"integer"`
}

// ReorderRequest assigns new positions to subtasks of one todo.
type ReorderRequest struct {
	Subtasks []service.SubtaskOrder `json:"subtasks" validate:"required,dive"`
}

// ListSubtasks godoc
// @Summary Subtasks of a todo
// @Tags subtasks
// @Produce json
// @Param id path string true "Todo ID"
// @Success 200 {array} model.Subtask
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /todos/{id}/subtasks [get]
func (h *SubtaskHandler) ListSubtasks(c echo.Context) error {
	todoID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	subtasks, err := h.subtaskService.ListByTodoID(c.Request().Context(), userFrom(c).ID, todoID)
	if err != nil {
		return respondError(err)
	}
	if subtasks == nil {
		subtasks = []model.Subtask{}
	}
	return c.JSON(http.StatusOK, subtasks)
}

// CreateSubtask godoc
// @Summary Add a subtask
// @Tags subtasks
// @Accept json
// @Produce json
// @Param id path string true "Todo ID"
// @Param request body CreateSubtaskRequest true "Subtask"
// @Success 201 {object} model.Subtask
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /todos/{id}/subtasks [post]
func (h *SubtaskHandler) CreateSubtask(c echo.Context) error {
	todoID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req CreateSubtaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	subtask, err := h.subtaskService.CreateSubtask(c.Request().Context(), userFrom(c).ID, todoID, req.Title, req.Order)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusCreated, subtask)
}

// ReorderSubtasks godoc
// @Summary Reorder subtasks
// @Description The batch is applied atomically and rejected whole if any id repeats or belongs elsewhere.
// @Tags subtasks
// @Accept json
// @Param id path string true "Todo ID"
// @Param request body ReorderRequest true "New orders"
// @Success 204
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /todos/{id}/subtasks/order [put]
func (h *SubtaskHandler) ReorderSubtasks(c echo.Context) error {
	todoID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req ReorderRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.subtaskService.ReorderSubtasks(c.Request().Context(), userFrom(c).ID, todoID, req.Subtasks); err != nil {
		return respondError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UpdateSubtask godoc
// @Summary Update a subtask
// @Tags subtasks
// @Accept json
// @Produce json
// @Param id path string true "Subtask ID"
// @Param request body UpdateSubtaskRequest true "Fields to change"
// @Success 200 {object} model.Subtask
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /subtasks/{id} [patch]
func (h *SubtaskHandler) UpdateSubtask(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req UpdateSubtaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	subtask, err := h.subtaskService.UpdateSubtask(c.Request().Context(), userFrom(c).ID, id, service.UpdateSubtaskInput{
		Title:     req.Title,
		Completed: req.Completed,
		Order:     req.Order,
	})
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, subtask)
}

// ToggleSubtask godoc
// @Summary Check or uncheck a subtask
// @Tags subtasks
// @Accept json
// @Produce json
// @Param id path string true "Subtask ID"
// @Param request body FlagRequest true "Completed"
// @Success 200 {object} model.Subtask
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /subtasks/{id}/toggle [post]
func (h *SubtaskHandler) ToggleSubtask(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req FlagRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	subtask, err := h.subtaskService.ToggleSubtask(c.Request().Context(), userFrom(c).ID, id, *req.Value)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, subtask)
}

// DeleteSubtask godoc
// @Summary Delete a subtask
// @Tags subtasks
// @Param id path string true "Subtask ID"
// @Success 204
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /subtasks/{id} [delete]
func (h *SubtaskHandler) DeleteSubtask(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.subtaskService.DeleteSubtask(c.Request().Context(), userFrom(c).ID, id); err != nil {
		return respondError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
