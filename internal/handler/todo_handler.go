package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"todolist/internal/model"
	"todolist/internal/service"
)

// TodoHandler handles todo endpoints.
type TodoHandler struct {
	todoService service.TodoService
	tagService  service.TagService
}

// NewTodoHandler creates a new todo handler.
func NewTodoHandler(todoService service.TodoService, tagService service.TagService) *TodoHandler {
	return &TodoHandler{todoService: todoService, tagService: tagService}
}

// CreateTodoRequest represents a new todo.
type CreateTodoRequest struct {
	Title                 string             `json:"title" validate:"required"`
	Description           *string            `json:"description"`
	Important             bool               `json:"important"`
	DueDate               *time.Time         `json:"due_date"`
	ReminderMinutesBefore *float64           `json:"reminder_minutes_before"`
	Attachments           []model.Attachment `json:"attachments"`
	TagIDs                []uuid.UUID        `json:"tag_ids"`
}

// UpdateTodoRequest is a partial update. Omitted fields are unchanged and
// null clears a nullable field.
type UpdateTodoRequest struct {
	Title                 model.Optional[string]             `json:"title" swaggertype:"string"`
	Description           model.Optional[string]             `json:"description" swaggertype:"string"`
	Completed             model.Optional[bool]               `json:"completed" swaggertype:"boolean"`
	Important             model.Optional[bool]               `json:"important" swaggertype:"boolean"`
	DueDate               model.Optional[time.Time]          `json:"due_date" swaggertype:"string" format:"date-time"`
	ReminderMinutesBefore model.Optional[float64]            `json:"reminder_minutes_before" swaggertype:"number"`
	Attachments           model.Optional[[]model.Attachment] `json:"attachments" swaggertype:"array,object"`
	TagIDs                model.Optional[[]uuid.UUID]        `json:"tag_ids" swaggertype:"array,string"`
}

// FlagRequest sets a boolean flag.
type FlagRequest struct {
	Value *bool `json:"value" validate:"required"`
}

// TagIDsRequest replaces the tags on a todo.
type TagIDsRequest struct {
	TagIDs []uuid.UUID `json:"tag_ids"`
}

// ListTodos godoc
// @Summary List todos
// @Description Important first, then newest first. limit is capped at 200; omit it for all.
// @Tags todos
// @Produce json
// @Param q query string false "Case-insensitive title search"
// @Param list query string false "my-day, important, planned or tasks" default(my-day)
// @Param tag_id query string false "Only todos with this tag"
// @Param offset query int false "Matches to skip"
// @Param limit query int false "Maximum matches to return"
// @Success 200 {array} service.TodoItem
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /todos [get]
func (h *TodoHandler) ListTodos(c echo.Context) error {
	in := service.ListTodosInput{
		Search: c.QueryParam("q"),
		List:   service.ListType(c.QueryParam("list")),
	}
	if raw := c.QueryParam("tag_id"); raw != "" {
		tagID, err := uuid.Parse(raw)
		if err != nil {
			return badRequest("invalid tag_id", "INVALID_UUID")
		}
		in.TagID = &tagID
	}
	offset, err := intQuery(c, "offset")
	if err != nil {
		return err
	}
	if offset != nil {
		in.Offset = *offset
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		return err
	}
	if limit != nil {
		in.Limit = *limit
	}

	items, err := h.todoService.ListTodos(c.Request().Context(), userFrom(c).ID, in)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, items)
}

// Counts godoc
// @Summary Sidebar counts per list
// @Tags todos
// @Produce json
// @Success 200 {object} model.ListCounts
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /todos/counts [get]
func (h *TodoHandler) Counts(c echo.Context) error {
	counts, err := h.todoService.GetListCounts(c.Request().Context(), userFrom(c).ID)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, counts)
}

// Reminders godoc
// @Summary Reminders due within the lookback window
// @Tags todos
// @Produce json
// @Param lookback query int false "Window in seconds, clamped to [60, 3600]" default(300)
// @Success 200 {array} service.TodoReminder
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /todos/reminders [get]
func (h *TodoHandler) Reminders(c echo.Context) error {
	lookback, err := intQuery(c, "lookback")
	if err != nil {
		return err
	}
	reminders, err := h.todoService.GetDueTodoReminders(c.Request().Context(), userFrom(c).ID, lookback)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, reminders)
}

// PageData godoc
// @Summary Initial page payload
// @Tags todos
// @Produce json
// @Success 200 {object} service.PageData
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /todos/page [get]
func (h *TodoHandler) PageData(c echo.Context) error {
	data, err := h.todoService.GetPageData(c.Request().Context(), userFrom(c))
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, data)
}

// GetTodo godoc
// @Summary Get a todo
// @Tags todos
// @Produce json
// @Param id path string true "Todo ID"
// @Success 200 {object} service.TodoItem
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /todos/{id} [get]
func (h *TodoHandler) GetTodo(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	item, err := h.todoService.GetTodo(c.Request().Context(), userFrom(c).ID, id)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, item)
}

// CreateTodo godoc
// @Summary Create a todo
// @Tags todos
// @Accept json
// @Produce json
// @Param request body CreateTodoRequest true "Todo"
// @Success 201 {object} service.TodoItem
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /todos [post]
func (h *TodoHandler) CreateTodo(c echo.Context) error {
	var req CreateTodoRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	item, err := h.todoService.CreateTodo(c.Request().Context(), userFrom(c).ID, service.CreateTodoInput{
		Title:                 req.Title,
		Description:           req.Description,
		Important:             req.Important,
		DueDate:               req.DueDate,
		ReminderMinutesBefore: req.ReminderMinutesBefore,
		Attachments:           req.Attachments,
		TagIDs:                req.TagIDs,
	})
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusCreated, item)
}

// UpdateTodo godoc
// @Summary Update a todo
// @Tags todos
// @Accept json
// @Produce json
// @Param id path string true "Todo ID"
// @Param request body UpdateTodoRequest true "Fields to change"
// @Success 200 {object} service.TodoItem
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /todos/{id} [patch]
func (h *TodoHandler) UpdateTodo(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req UpdateTodoRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	item, err := h.todoService.UpdateTodo(c.Request().Context(), userFrom(c).ID, id, service.UpdateTodoInput{
		Title:                 req.Title,
		Description:           req.Description,
		Completed:             req.Completed,
		Important:             req.Important,
		DueDate:               req.DueDate,
		ReminderMinutesBefore: req.ReminderMinutesBefore,
		Attachments:           req.Attachments,
		TagIDs:                req.TagIDs,
	})
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, item)
}

// SetCompleted godoc
// @Summary Mark a todo completed or not
// @Tags todos
// @Accept json
// @Produce json
// @Param id path string true "Todo ID"
// @Param request body FlagRequest true "Completed"
// @Success 200 {object} service.TodoItem
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /todos/{id}/completed [post]
func (h *TodoHandler) SetCompleted(c echo.Context) error {
	return h.setFlag(c, h.todoService.SetCompleted)
}

// SetImportant godoc
// @Summary Mark a todo important or not
// @Tags todos
// @Accept json
// @Produce json
// @Param id path string true "Todo ID"
// @Param request body FlagRequest true "Important"
// @Success 200 {object} service.TodoItem
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /todos/{id}/important [post]
func (h *TodoHandler) SetImportant(c echo.Context) error {
	return h.setFlag(c, h.todoService.SetImportant)
}

type flagSetter func(ctx context.Context, userID, id uuid.UUID, value bool) (*service.TodoItem, error)

func (h *TodoHandler) setFlag(c echo.Context, set flagSetter) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req FlagRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	item, err := set(c.Request().Context(), userFrom(c).ID, id, *req.Value)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, item)
}

// DeleteTodo godoc
// @Summary Delete a todo with its tag links, subtasks and attachments
// @Description Deleting a todo that does not exist succeeds.
// @Tags todos
// @Param id path string true "Todo ID"
// @Success 204
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /todos/{id} [delete]
func (h *TodoHandler) DeleteTodo(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.todoService.DeleteTodo(c.Request().Context(), userFrom(c).ID, id); err != nil {
		return respondError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetTodoTags godoc
// @Summary Tags on a todo
// @Tags todos
// @Produce json
// @Param id path string true "Todo ID"
// @Success 200 {array} model.Tag
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /todos/{id}/tags [get]
func (h *TodoHandler) GetTodoTags(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	tags, err := h.tagService.GetTodoTags(c.Request().Context(), userFrom(c).ID, id)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, tags)
}

// SyncTodoTags godoc
// @Summary Replace the tags on a todo
// @Description Unknown or foreign tag ids are ignored.
// @Tags todos
// @Accept json
// @Produce json
// @Param id path string true "Todo ID"
// @Param request body TagIDsRequest true "Tag ids"
// @Success 200 {array} model.Tag
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /todos/{id}/tags [put]
func (h *TodoHandler) SyncTodoTags(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req TagIDsRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	userID := userFrom(c).ID
	if err := h.tagService.SyncTodoTags(ctx, userID, id, req.TagIDs); err != nil {
		return respondError(err)
	}
	tags, err := h.tagService.GetTodoTags(ctx, userID, id)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, tags)
}

// AddTag godoc
// @Summary Add one tag to a todo
// @Tags todos
// @Param id path string true "Todo ID"
// @Param tag_id path string true "Tag ID"
// @Success 204
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /todos/{id}/tags/{tag_id} [post]
func (h *TodoHandler) AddTag(c echo.Context) error {
	id, tagID, err := todoAndTag(c)
	if err != nil {
		return err
	}
	if err := h.tagService.AddTagToTodo(c.Request().Context(), userFrom(c).ID, id, tagID); err != nil {
		return respondError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RemoveTag godoc
// @Summary Remove one tag from a todo
// @Tags todos
// @Param id path string true "Todo ID"
// @Param tag_id path string true "Tag ID"
// @Success 204
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /todos/{id}/tags/{tag_id} [delete]
func (h *TodoHandler) RemoveTag(c echo.Context) error {
	id, tagID, err := todoAndTag(c)
	if err != nil {
		return err
	}
	if err := h.tagService.RemoveTagFromTodo(c.Request().Context(), userFrom(c).ID, id, tagID); err != nil {
		return respondError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func todoAndTag(c echo.Context) (uuid.UUID, uuid.UUID, error) {
	id, err := uuidParam(c, "id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	tagID, err := uuidParam(c, "tag_id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return id, tagID, nil
}
