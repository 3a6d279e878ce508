package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"todolist/internal/model"
)

// SubtaskCounts are per-todo checklist totals.
type SubtaskCounts struct {
	Total     int64
	Completed int64
}

// SubtaskRepository defines subtask persistence operations.
type SubtaskRepository interface {
	Create(ctx context.Context, subtask *model.Subtask) error
	FindByID(ctx context.Context, userID, id uuid.UUID) (*model.Subtask, error)
	ListByTodo(ctx context.Context, userID, todoID uuid.UUID) ([]model.Subtask, error)
	CountByTodo(ctx context.Context, userID, todoID uuid.UUID) (int64, error)
	CountsByTodos(ctx context.Context, userID uuid.UUID, todoIDs []uuid.UUID) (map[uuid.UUID]SubtaskCounts, error)
	Update(ctx context.Context, subtask *model.Subtask, fields map[string]any) error
	SetOrder(ctx context.Context, userID, id uuid.UUID, order int, now time.Time) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
	DeleteByTodo(ctx context.Context, userID, todoID uuid.UUID) error
	// Transaction methods
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repo SubtaskRepository) error) error
}

type subtaskRepository struct {
	db *gorm.DB
}

// NewSubtaskRepository creates a new subtask repository.
func NewSubtaskRepository(db *gorm.DB) SubtaskRepository {
	return &subtaskRepository{db: db}
}

func (r *subtaskRepository) Create(ctx context.Context, subtask *model.Subtask) error {
	return translate(r.db.WithContext(ctx).Create(subtask).Error, "create subtask")
}

func (r *subtaskRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*model.Subtask, error) {
	var subtask model.Subtask
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&subtask).Error; err != nil {
		return nil, translate(err, "find subtask")
	}
	return &subtask, nil
}

// ListByTodo returns a todo's subtasks by manual order, oldest first on ties.
func (r *subtaskRepository) ListByTodo(ctx context.Context, userID, todoID uuid.UUID) ([]model.Subtask, error) {
	subtasks := []model.Subtask{}
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND todo_id = ?", userID, todoID).
		Order("sort_order ASC").Order("created_at ASC").Order("id ASC").
		Find(&subtasks).Error
	if err != nil {
		return nil, translate(err, "list subtasks")
	}
	return subtasks, nil
}

func (r *subtaskRepository) CountByTodo(ctx context.Context, userID, todoID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Subtask{}).
		Where("user_id = ? AND todo_id = ?", userID, todoID).
		Count(&n).Error
	return n, translate(err, "count subtasks")
}

type subtaskCountRow struct {
	TodoID    string
	Total     int64
	Completed int64
}

// CountsByTodos aggregates subtask totals for many todos in one query. Todos
// without subtasks are absent from the result.
func (r *subtaskRepository) CountsByTodos(ctx context.Context, userID uuid.UUID, todoIDs []uuid.UUID) (map[uuid.UUID]SubtaskCounts, error) {
	out := make(map[uuid.UUID]SubtaskCounts, len(todoIDs))
	if len(todoIDs) == 0 {
		return out, nil
	}

	var rows []subtaskCountRow
	err := r.db.WithContext(ctx).Model(&model.Subtask{}).
		Select("todo_id, COUNT(*) AS total, COALESCE(SUM(CASE WHEN completed = ? THEN 1 ELSE 0 END), 0) AS completed", true).
		Where("user_id = ? AND todo_id IN ?", userID, todoIDs).
		Group("todo_id").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err, "count subtasks")
	}
	for _, row := range rows {
		id, err := uuid.Parse(row.TodoID)
		if err != nil {
			continue
		}
		out[id] = SubtaskCounts{Total: row.Total, Completed: row.Completed}
	}
	return out, nil
}

func (r *subtaskRepository) Update(ctx context.Context, subtask *model.Subtask, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Model(&model.Subtask{}).
		Where("id = ? AND user_id = ?", subtask.ID, subtask.UserID).
		Updates(fields).Error
	return translate(err, "update subtask")
}

func (r *subtaskRepository) SetOrder(ctx context.Context, userID, id uuid.UUID, order int, now time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.Subtask{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"sort_order": order, "updated_at": now}).Error
	return translate(err, "reorder subtask")
}

func (r *subtaskRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.Subtask{}).Error
	return translate(err, "delete subtask")
}

func (r *subtaskRepository) DeleteByTodo(ctx context.Context, userID, todoID uuid.UUID) error {
	err := r.db.WithContext(ctx).Where("user_id = ? AND todo_id = ?", userID, todoID).Delete(&model.Subtask{}).Error
	return translate(err, "delete todo subtasks")
}

// WithTransaction executes a function within a database transaction.
func (r *subtaskRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo SubtaskRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &subtaskRepository{db: tx}
		return fn(ctx, txRepo)
	})
}
