package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"todolist/internal/auth"
	"todolist/internal/config"
	"todolist/internal/db"
	apperrors "todolist/internal/errors"
	"todolist/internal/model"
	"todolist/internal/repository"
	"todolist/internal/service"
)

// SeedTodo is one entry of the seed file.
type SeedTodo struct {
	Title                 string   `json:"title"`
	Description           *string  `json:"description"`
	Important             bool     `json:"important"`
	Completed             bool     `json:"completed"`
	DueInHours            *float64 `json:"due_in_hours"`
	ReminderMinutesBefore *float64 `json:"reminder_minutes_before"`
	Tags                  []string `json:"tags"`
	Subtasks              []string `json:"subtasks"`
}

func main() {
	email := flag.String("email", "demo@example.com", "demo user email")
	password := flag.String("password", "demo1234", "demo user password (used only when creating the user)")
	file := flag.String("file", "seed/todos.json", "JSON file with an array of todos")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	logger.Info("starting seed script")

	cfg := config.Load()

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := db.Migrate(gormDB); err != nil {
		logger.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	todos, err := loadTodos(*file)
	if err != nil {
		logger.Error("failed to load seed file", slog.String("file", *file), slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("loaded seed file", slog.Int("todos", len(todos)))

	userRepo := repository.NewUserRepository(gormDB)
	todoRepo := repository.NewTodoRepository(gormDB)
	tagRepo := repository.NewTagRepository(gormDB)
	todoTagRepo := repository.NewTodoTagRepository(gormDB)
	subtaskRepo := repository.NewSubtaskRepository(gormDB)
	uploadRepo := repository.NewUploadRepository(gormDB)

	tagService := service.NewTagService(tagRepo, todoTagRepo, todoRepo, nil, logger)
	todoService := service.NewTodoService(todoRepo, todoTagRepo, subtaskRepo, tagService, nil, uploadRepo, nil, nil, logger)
	subtaskService := service.NewSubtaskService(subtaskRepo, todoRepo, nil, logger)

	ctx := context.Background()
	user, created, err := ensureUser(ctx, userRepo, *email, *password)
	if err != nil {
		logger.Error("failed to prepare demo user", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("demo user ready", slog.String("email", user.Email), slog.Bool("created", created))

	seeded, err := seedTodos(ctx, user.ID, todos, tagService, todoService, subtaskService)
	if err != nil {
		logger.Error("failed to seed todos", slog.Int("seeded", seeded), slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("seed completed", slog.Int("todos", seeded))
}

func loadTodos(path string) ([]SeedTodo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var todos []SeedTodo
	if err := json.Unmarshal(data, &todos); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return todos, nil
}

// ensureUser returns the user with email, creating it with password if missing.
func ensureUser(ctx context.Context, repo repository.UserRepository, email, password string) (*model.User, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	existing, err := repo.FindByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, false, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, false, err
	}
	now := time.Now().UTC()
	user := &model.User{Email: email, PasswordHash: hash, CreatedAt: now, UpdatedAt: now}
	if err := repo.Create(ctx, user); err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// seedTodos creates every todo, creating referenced tags by name on first use.
func seedTodos(
	ctx context.Context,
	userID uuid.UUID,
	todos []SeedTodo,
	tagService service.TagService,
	todoService service.TodoService,
	subtaskService service.SubtaskService,
) (int, error) {
	existing, err := tagService.ListTags(ctx, userID)
	if err != nil {
		return 0, err
	}
	tagIDs := make(map[string]uuid.UUID, len(existing))
	for _, tag := range existing {
		tagIDs[tag.Name] = tag.ID
	}

	now := time.Now().UTC()
	seeded := 0
	for _, item := range todos {
		in := service.CreateTodoInput{
			Title:                 item.Title,
			Description:           item.Description,
			Important:             item.Important,
			ReminderMinutesBefore: item.ReminderMinutesBefore,
		}
		if item.DueInHours != nil {
			due := now.Add(time.Duration(*item.DueInHours * float64(time.Hour)))
			in.DueDate = &due
		}
		for _, name := range item.Tags {
			id, ok := tagIDs[name]
			if !ok {
				tag, err := tagService.CreateTag(ctx, userID, name, "")
				if err != nil {
					return seeded, fmt.Errorf("create tag %q: %w", name, err)
				}
				id = tag.ID
				tagIDs[tag.Name] = id
			}
			in.TagIDs = append(in.TagIDs, id)
		}

		todo, err := todoService.CreateTodo(ctx, userID, in)
		if err != nil {
			return seeded, fmt.Errorf("create todo %q: %w", item.Title, err)
		}
		for _, title := range item.Subtasks {
			if _, err := subtaskService.CreateSubtask(ctx, userID, todo.ID, title, nil); err != nil {
				return seeded, fmt.Errorf("create subtask %q: %w", title, err)
			}
		}
		if item.Completed {
			if _, err := todoService.SetCompleted(ctx, userID, todo.ID, true); err != nil {
				return seeded, fmt.Errorf("complete todo %q: %w", item.Title, err)
			}
		}
		seeded++
	}
	return seeded, nil
}
