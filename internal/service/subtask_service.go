package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"todolist/internal/clock"
	apperrors "todolist/internal/errors"
	"todolist/internal/model"
	"todolist/internal/repository"
)

// SubtaskOrder assigns a manual sort key to one subtask.
type SubtaskOrder struct {
	ID    uuid.UUID `json:"id" validate:"required"`
	Order int       `json:"order"`
}

// UpdateSubtaskInput carries the subtask fields to change.
type UpdateSubtaskInput struct {
	Title     model.Optional[string]
	Completed model.Optional[bool]
	Order     model.Optional[int]
}

// SubtaskService manages the checklist under a todo.
type SubtaskService interface {
	ListByTodoID(ctx context.Context, userID, todoID uuid.UUID) ([]model.Subtask, error)
	CreateSubtask(ctx context.Context, userID, todoID uuid.UUID, title string, order *int) (*model.Subtask, error)
	UpdateSubtask(ctx context.Context, userID, id uuid.UUID, in UpdateSubtaskInput) (*model.Subtask, error)
	ToggleSubtask(ctx context.Context, userID, id uuid.UUID, completed bool) (*model.Subtask, error)
	DeleteSubtask(ctx context.Context, userID, id uuid.UUID) error
	ReorderSubtasks(ctx context.Context, userID, todoID uuid.UUID, orders []SubtaskOrder) error
}

type subtaskService struct {
	subtasks repository.SubtaskRepository
	todos    repository.TodoRepository
	clock    clock.Clock
	logger   *slog.Logger
}

// NewSubtaskService creates a new subtask service.
func NewSubtaskService(subtasks repository.SubtaskRepository, todos repository.TodoRepository, clk clock.Clock, logger *slog.Logger) SubtaskService {
	if clk == nil {
		clk = clock.System
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &subtaskService{subtasks: subtasks, todos: todos, clock: clk, logger: logger}
}

// ListByTodoID returns the subtasks of a todo; an unknown todo has none.
func (s *subtaskService) ListByTodoID(ctx context.Context, userID, todoID uuid.UUID) ([]model.Subtask, error) {
	return s.subtasks.ListByTodo(ctx, userID, todoID)
}

// CreateSubtask appends a subtask. Without an explicit order it goes last.
func (s *subtaskService) CreateSubtask(ctx context.Context, userID, todoID uuid.UUID, title string, order *int) (*model.Subtask, error) {
	if _, err := s.todos.FindByID(ctx, userID, todoID); err != nil {
		return nil, err
	}
	title, err := validTitle(title)
	if err != nil {
		return nil, err
	}

	position := 0
	if order != nil {
		position = *order
	} else {
		n, err := s.subtasks.CountByTodo(ctx, userID, todoID)
		if err != nil {
			return nil, err
		}
		position = int(n)
	}

	now := s.clock.Now()
	subtask := &model.Subtask{
		UserID:    userID,
		TodoID:    todoID,
		Title:     title,
		Order:     position,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.subtasks.Create(ctx, subtask); err != nil {
		return nil, err
	}
	todoMutationsTotal.WithLabelValues("subtask_create").Inc()
	return subtask, nil
}

func (s *subtaskService) UpdateSubtask(ctx context.Context, userID, id uuid.UUID, in UpdateSubtaskInput) (*model.Subtask, error) {
	subtask, err := s.subtasks.FindByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if in.Title.Set {
		if !in.Title.Valid {
			return nil, apperrors.Validation("title", "title is required")
		}
		title, err := validTitle(in.Title.Value)
		if err != nil {
			return nil, err
		}
		fields["title"] = title
	}
	if in.Completed.Set {
		if !in.Completed.Valid {
			return nil, apperrors.Validation("completed", "completed must be true or false")
		}
		fields["completed"] = in.Completed.Value
	}
	if in.Order.Set {
		if !in.Order.Valid {
			return nil, apperrors.Validation("order", "order must be a number")
		}
		fields["sort_order"] = in.Order.Value
	}
	fields["updated_at"] = s.clock.Now()

	if err := s.subtasks.Update(ctx, subtask, fields); err != nil {
		return nil, err
	}
	todoMutationsTotal.WithLabelValues("subtask_update").Inc()
	return s.subtasks.FindByID(ctx, userID, id)
}

func (s *subtaskService) ToggleSubtask(ctx context.Context, userID, id uuid.UUID, completed bool) (*model.Subtask, error) {
	return s.UpdateSubtask(ctx, userID, id, UpdateSubtaskInput{Completed: model.Some(completed)})
}

func (s *subtaskService) DeleteSubtask(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.subtasks.FindByID(ctx, userID, id); err != nil {
		return err
	}
	if err := s.subtasks.Delete(ctx, userID, id); err != nil {
		return err
	}
	todoMutationsTotal.WithLabelValues("subtask_delete").Inc()
	return nil
}

// ReorderSubtasks applies every order in one transaction. The batch is
// rejected whole if any id repeats or is not a subtask of this todo.
func (s *subtaskService) ReorderSubtasks(ctx context.Context, userID, todoID uuid.UUID, orders []SubtaskOrder) error {
	if _, err := s.todos.FindByID(ctx, userID, todoID); err != nil {
		return err
	}

	seen := make(map[uuid.UUID]struct{}, len(orders))
	for _, item := range orders {
		if _, dup := seen[item.ID]; dup {
			return apperrors.Validation("subtasks", "subtask "+item.ID.String()+" listed more than once")
		}
		seen[item.ID] = struct{}{}
	}

	now := s.clock.Now()
	err := s.subtasks.WithTransaction(ctx, func(ctx context.Context, repo repository.SubtaskRepository) error {
		current, err := repo.ListByTodo(ctx, userID, todoID)
		if err != nil {
			return err
		}
		owned := make(map[uuid.UUID]struct{}, len(current))
		for _, subtask := range current {
			owned[subtask.ID] = struct{}{}
		}
		for _, item := range orders {
			if _, ok := owned[item.ID]; !ok {
				return apperrors.Validation("subtasks", "subtask "+item.ID.String()+" does not belong to this todo")
			}
		}

		for _, item := range orders {
			if err := repo.SetOrder(ctx, userID, item.ID, item.Order, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	todoMutationsTotal.WithLabelValues("subtask_reorder").Inc()
	s.logger.DebugContext(ctx, "reordered subtasks",
		slog.String("todo_id", todoID.String()),
		slog.Int("count", len(orders)))
	return nil
}
