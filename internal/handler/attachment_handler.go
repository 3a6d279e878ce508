package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"todolist/internal/auth"
	"todolist/internal/errors"
	"todolist/internal/service"
)

// UploadClaimsContextKey is where the upload guard stores validated ticket claims.
const UploadClaimsContextKey = "upload_claims"

// AttachmentHandler handles upload endpoints.
type AttachmentHandler struct {
	attachmentService service.AttachmentService
}

// NewAttachmentHandler creates a new attachment handler.
func NewAttachmentHandler(attachmentService service.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{attachmentService: attachmentService}
}

// IssueUploadURL godoc
// @Summary Get a one-time upload URL
// @Tags attachments
// @Produce json
// @Success 200 {object} service.UploadTarget
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /attachments/upload-url [post]
func (h *AttachmentHandler) IssueUploadURL(c echo.Context) error {
	target, err := h.attachmentService.IssueUploadURL(c.Request().Context(), userFrom(c).ID)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, target)
}

// Upload godoc
// @Summary Upload one file with a one-time token
// @Description The returned attachment is then passed to todo create or update.
// @Tags attachments
// @Accept multipart/form-data
// @Produce json
// @Param token query string true "Upload ticket"
// @Param file formData file true "File"
// @Success 201 {object} model.Attachment
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /uploads [post]
func (h *AttachmentHandler) Upload(c echo.Context) error {
	claims, ok := c.Get(UploadClaimsContextKey).(*auth.UploadClaims)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
			Error: "invalid upload token",
			Code:  "INVALID_UPLOAD_TOKEN",
		})
	}

	file, err := c.FormFile("file")
	if err != nil {
		return badRequest("file is required", "VALIDATION_FAILED")
	}
	src, err := file.Open()
	if err != nil {
		return badRequest("unreadable file", "VALIDATION_FAILED")
	}
	defer src.Close()

	attachment, err := h.attachmentService.Upload(c.Request().Context(), claims, file.Filename, file.Header.Get(echo.HeaderContentType), src)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusCreated, attachment)
}
