package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "todolist/docs" // swagger docs

	"github.com/labstack/echo/v4"

	"todolist/internal/auth"
	"todolist/internal/blob"
	"todolist/internal/cache"
	"todolist/internal/config"
	"todolist/internal/db"
	"todolist/internal/handler"
	"todolist/internal/repository"
	"todolist/internal/router"
	"todolist/internal/service"
)

// @title Todo List API
// @version 1.0
// @description Personal todo list backend with cookie sessions, lists, tags, subtasks and attachments.
// @host localhost:8080
// @BasePath /api
// @schemes http
func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		logger.Error("database init", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := db.Migrate(gormDB); err != nil {
		logger.Error("database migrate", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()

	blobs, err := blob.NewFSStore(cfg.BlobDir, "/files")
	if err != nil {
		logger.Error("blob store init", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	sessionRepo := repository.NewSessionRepository(gormDB)
	todoRepo := repository.NewTodoRepository(gormDB)
	tagRepo := repository.NewTagRepository(gormDB)
	todoTagRepo := repository.NewTodoTagRepository(gormDB)
	subtaskRepo := repository.NewSubtaskRepository(gormDB)
	uploadRepo := repository.NewUploadRepository(gormDB)

	// Initialize auth components
	ticketService := auth.NewTicketService(cfg.UploadSecret, nil)
	ticketStore := auth.NewTicketStore(cacheClient)

	// Initialize services
	userService := service.NewUserService(userRepo, cacheClient)
	authService := service.NewAuthService(userRepo, sessionRepo, userService, nil, logger)
	tagService := service.NewTagService(tagRepo, todoTagRepo, todoRepo, nil, logger)
	todoService := service.NewTodoService(todoRepo, todoTagRepo, subtaskRepo, tagService, blobs, uploadRepo, cacheClient, nil, logger)
	subtaskService := service.NewSubtaskService(subtaskRepo, todoRepo, nil, logger)
	attachmentService := service.NewAttachmentService(ticketService, ticketStore, blobs, uploadRepo, userService, logger)

	// Initialize handlers
	sessions := handler.NewSessions(authService, cfg.Production())
	handlers := router.Handlers{
		Sessions:    sessions,
		Auth:        handler.NewAuthHandler(authService, sessions),
		Todos:       handler.NewTodoHandler(todoService, tagService),
		Tags:        handler.NewTagHandler(tagService),
		Subtasks:    handler.NewSubtaskHandler(subtaskService),
		Attachments: handler.NewAttachmentHandler(attachmentService),
	}

	e := echo.New()
	e.HideBanner = true
	router.Register(e, handlers, router.Options{
		DB:          gormDB,
		Tickets:     ticketService,
		BlobDir:     cfg.BlobDir,
		EnableDocs:  !cfg.Production(),
		RequestLogs: true,
	})

	if !cfg.Production() {
		host := cfg.SwaggerHost
		if host == "" {
			host = "localhost:" + cfg.ServerPort
		}
		logger.Info("swagger documentation available", slog.String("url", "http://"+host+"/swagger/index.html"))
	}

	go func() {
		addr := ":" + cfg.ServerPort
		logger.Info("starting server", slog.String("addr", addr), slog.String("db_driver", cfg.DBDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info("server stopped")
}

func logLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}
