package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"todolist/internal/model"
	"todolist/internal/service"
)

// TagHandler handles tag endpoints.
type TagHandler struct {
	tagService service.TagService
}

// NewTagHandler creates a new tag handler.
func NewTagHandler(tagService service.TagService) *TagHandler {
	return &TagHandler{tagService: tagService}
}

// CreateTagRequest represents a new tag. Color defaults to #3b82f6.
type CreateTagRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

// UpdateTagRequest changes a tag's name or color.
type UpdateTagRequest struct {
	Name  model.Optional[string] `json:"name" swaggertype:"string"`
	Color model.Optional[string] `json:"color" swaggertype:"string"`
}

// ListTags godoc
// @Summary List tags
// @Tags tags
// @Produce json
// @Param counts query bool false "Include todo_count per tag"
// @Success 200 {array} model.TagWithCount
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /tags [get]
func (h *TagHandler) ListTags(c echo.Context) error {
	ctx := c.Request().Context()
	userID := userFrom(c).ID

	if c.QueryParam("counts") == "true" {
		tags, err := h.tagService.ListTagsWithCounts(ctx, userID)
		if err != nil {
			return respondError(err)
		}
		return c.JSON(http.StatusOK, tags)
	}

	tags, err := h.tagService.ListTags(ctx, userID)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, tags)
}

// CreateTag godoc
// @Summary Create a tag
// @Tags tags
// @Accept json
// @Produce json
// @Param request body CreateTagRequest true "Tag"
// @Success 201 {object} model.Tag
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /tags [post]
func (h *TagHandler) CreateTag(c echo.Context) error {
	var req CreateTagRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	tag, err := h.tagService.CreateTag(c.Request().Context(), userFrom(c).ID, req.Name, req.Color)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusCreated, tag)
}

// UpdateTag godoc
// @Summary Rename or recolor a tag
// @Tags tags
// @Accept json
// @Produce json
// @Param id path string true "Tag ID"
// @Param request body UpdateTagRequest true "Fields to change"
// @Success 200 {object} model.Tag
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /tags/{id} [patch]
func (h *TagHandler) UpdateTag(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req UpdateTagRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	tag, err := h.tagService.UpdateTag(c.Request().Context(), userFrom(c).ID, id, service.UpdateTagInput{
		Name:  req.Name,
		Color: req.Color,
	})
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, tag)
}

// DeleteTag godoc
// @Summary Delete a tag and unlink it from every todo
// @Tags tags
// @Param id path string true "Tag ID"
// @Success 204
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tags/{id} [delete]
func (h *TagHandler) DeleteTag(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.tagService.DeleteTag(c.Request().Context(), userFrom(c).ID, id); err != nil {
		return respondError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
