package repository

import (
	"context"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"todolist/internal/model"
)

// TodoFilter narrows a user's todo scan. Results are always ordered
// important first, then newest first, with id as the final tie-break.
type TodoFilter struct {
	Completed     *bool
	ImportantOnly bool
	PlannedOnly   bool
	// IDs restricts the scan to these todos when non-nil. An empty non-nil
	// slice matches nothing.
	IDs    []uuid.UUID
	Offset int
	// Limit <= 0 means unbounded.
	Limit int
}

// TodoRepository defines todo persistence operations.
type TodoRepository interface {
	Create(ctx context.Context, todo *model.Todo) error
	FindByID(ctx context.Context, userID, id uuid.UUID) (*model.Todo, error)
	Update(ctx context.Context, todo *model.Todo, fields map[string]any) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID, filter TodoFilter) ([]model.Todo, error)
	Each(ctx context.Context, userID uuid.UUID, filter TodoFilter, fn func(*model.Todo) bool) error
	Counts(ctx context.Context, userID uuid.UUID) (*model.ListCounts, error)
	ReminderCandidates(ctx context.Context, userID uuid.UUID) ([]model.Todo, error)
}

type todoRepository struct {
	db *gorm.DB
}

// NewTodoRepository creates a new todo repository.
func NewTodoRepository(db *gorm.DB) TodoRepository {
	return &todoRepository{db: db}
}

func (r *todoRepository) Create(ctx context.Context, todo *model.Todo) error {
	return translate(r.db.WithContext(ctx).Create(todo).Error, "create todo")
}

// FindByID returns the todo only if userID owns it.
func (r *todoRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*model.Todo, error) {
	var todo model.Todo
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&todo).Error; err != nil {
		return nil, translate(err, "find todo")
	}
	return &todo, nil
}

// Update applies a partial column update to an owned todo.
func (r *todoRepository) Update(ctx context.Context, todo *model.Todo, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Model(&model.Todo{}).
		Where("id = ? AND user_id = ?", todo.ID, todo.UserID).
		Updates(fields).Error
	return translate(err, "update todo")
}

func (r *todoRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.Todo{}).Error
	return translate(err, "delete todo")
}

func (r *todoRepository) List(ctx context.Context, userID uuid.UUID, filter TodoFilter) ([]model.Todo, error) {
	var todos []model.Todo
	if err := r.scan(ctx, userID, filter).Find(&todos).Error; err != nil {
		return nil, translate(err, "list todos")
	}
	return todos, nil
}

// Each streams matching todos in scan order until fn returns false. fn must
// not use the database: SQLite runs on a single connection.
func (r *todoRepository) Each(ctx context.Context, userID uuid.UUID, filter TodoFilter, fn func(*model.Todo) bool) error {
	rows, err := r.scan(ctx, userID, filter).Rows()
	if err != nil {
		return translate(err, "scan todos")
	}
	defer rows.Close()

	for rows.Next() {
		var todo model.Todo
		if err := r.db.ScanRows(rows, &todo); err != nil {
			return translate(err, "scan todo row")
		}
		if !fn(&todo) {
			break
		}
	}
	return translate(rows.Err(), "scan todos")
}

// Counts computes every sidebar total in a single pass over incomplete todos.
func (r *todoRepository) Counts(ctx context.Context, userID uuid.UUID) (*model.ListCounts, error) {
	var counts model.ListCounts
	err := r.db.WithContext(ctx).Model(&model.Todo{}).
		Select(`COUNT(*) AS tasks,
			COALESCE(SUM(CASE WHEN important = ? THEN 1 ELSE 0 END), 0) AS important,
			COALESCE(SUM(CASE WHEN due_date IS NOT NULL THEN 1 ELSE 0 END), 0) AS planned`, true).
		Where("user_id = ? AND completed = ?", userID, false).
		Scan(&counts).Error
	if err != nil {
		return nil, translate(err, "count todos")
	}
	counts.MyDay = counts.Tasks
	return &counts, nil
}

// ReminderCandidates returns incomplete todos that carry both a due date and
// a reminder offset.
func (r *todoRepository) ReminderCandidates(ctx context.Context, userID uuid.UUID) ([]model.Todo, error) {
	var todos []model.Todo
	err := r.db.WithContext(ctx).
		Select("id", "user_id", "title", "due_date", "reminder_minutes_before").
		Where("user_id = ? AND completed = ?", userID, false).
		Where("due_date IS NOT NULL AND reminder_minutes_before IS NOT NULL").
		Order("created_at DESC").Order("id DESC").
		Find(&todos).Error
	if err != nil {
		return nil, translate(err, "list reminder candidates")
	}
	return todos, nil
}

func (r *todoRepository) scan(ctx context.Context, userID uuid.UUID, f TodoFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.Todo{}).Where("user_id = ?", userID)
	if f.Completed != nil {
		q = q.Where("completed = ?", *f.Completed)
	}
	if f.ImportantOnly {
		q = q.Where("important = ?", true)
	}
	if f.PlannedOnly {
		q = q.Where("due_date IS NOT NULL")
	}
	if f.IDs != nil {
		q = q.Where("id IN ?", f.IDs)
	}
	q = q.Order("important DESC").Order("created_at DESC").Order("id DESC")

	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	switch {
	case f.Limit > 0:
		q = q.Limit(f.Limit)
	case f.Offset > 0:
		// OFFSET is only valid after a LIMIT in both dialects.
		q = q.Limit(math.MaxInt32)
	}
	return q
}
