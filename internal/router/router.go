package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
	"gorm.io/gorm"

	"todolist/internal/auth"
	"todolist/internal/db"
	"todolist/internal/errors"
	"todolist/internal/handler"
)

// maxUploadSize bounds a single attachment upload.
const maxUploadSize = "25M"

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Sessions    *handler.Sessions
	Auth        *handler.AuthHandler
	Todos       *handler.TodoHandler
	Tags        *handler.TagHandler
	Subtasks    *handler.SubtaskHandler
	Attachments *handler.AttachmentHandler
}

// Options configures the non-API surfaces.
type Options struct {
	DB          *gorm.DB
	Tickets     *auth.TicketService
	BlobDir     string
	EnableDocs  bool
	RequestLogs bool
}

// Register wires routes and middleware.
func Register(e *echo.Echo, h Handlers, opts Options) {
	e.Use(middleware.RequestID())
	if opts.RequestLogs {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		if opts.DB != nil {
			if err := db.Ping(c.Request().Context(), opts.DB); err != nil {
				return c.String(http.StatusServiceUnavailable, "database unavailable")
			}
		}
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	if opts.EnableDocs {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}
	if opts.BlobDir != "" {
		e.Static("/files", opts.BlobDir)
	}

	api := e.Group("/api")

	// Public routes
	api.POST("/auth/signup", h.Auth.SignUp)
	api.POST("/auth/signin", h.Auth.SignIn)
	api.POST("/auth/signout", h.Auth.SignOut)
	api.GET("/auth/me", h.Auth.Me)

	// Upload ticket routes (one-time token in the query string)
	api.POST("/uploads", h.Attachments.Upload,
		middleware.BodyLimit(maxUploadSize),
		echojwt.WithConfig(echojwt.Config{
			TokenLookup: "query:token",
			ContextKey:  handler.UploadClaimsContextKey,
			ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
				return opts.Tickets.Validate(token)
			},
			ErrorHandler: func(c echo.Context, err error) error {
				return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
					Error: "invalid upload token",
					Code:  "INVALID_UPLOAD_TOKEN",
				})
			},
		}),
	)

	// Secured routes (require a session cookie)
	secured := api.Group("", h.Sessions.Require)

	secured.POST("/auth/password", h.Auth.ChangePassword)

	// Todo routes
	secured.GET("/todos", h.Todos.ListTodos)
	secured.POST("/todos", h.Todos.CreateTodo)
	secured.GET("/todos/counts", h.Todos.Counts)
	secured.GET("/todos/reminders", h.Todos.Reminders)
	secured.GET("/todos/page", h.Todos.PageData)
	secured.GET("/todos/:id", h.Todos.GetTodo)
	secured.PATCH("/todos/:id", h.Todos.UpdateTodo)
	secured.DELETE("/todos/:id", h.Todos.DeleteTodo)
	secured.POST("/todos/:id/completed", h.Todos.SetCompleted)
	secured.POST("/todos/:id/important", h.Todos.SetImportant)
	secured.GET("/todos/:id/tags", h.Todos.GetTodoTags)
	secured.PUT("/todos/:id/tags", h.Todos.SyncTodoTags)
	secured.POST("/todos/:id/tags/:tag_id", h.Todos.AddTag)
	secured.DELETE("/todos/:id/tags/:tag_id", h.Todos.RemoveTag)

	// Subtask routes
	secured.GET("/todos/:id/subtasks", h.Subtasks.ListSubtasks)
	secured.POST("/todos/:id/subtasks", h.Subtasks.CreateSubtask)
	secured.PUT("/todos/:id/subtasks/order", h.Subtasks.ReorderSubtasks)
	secured.PATCH("/subtasks/:id", h.Subtasks.UpdateSubtask)
	secured.POST("/subtasks/:id/toggle", h.Subtasks.ToggleSubtask)
	secured.DELETE("/subtasks/:id", h.Subtasks.DeleteSubtask)

	// Tag routes
	secured.GET("/tags", h.Tags.ListTags)
	secured.POST("/tags", h.Tags.CreateTag)
	secured.PATCH("/tags/:id", h.Tags.UpdateTag)
	secured.DELETE("/tags/:id", h.Tags.DeleteTag)

	// Attachment routes
	secured.POST("/attachments/upload-url", h.Attachments.IssueUploadURL)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
