package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"todolist/internal/model"
)

// TodoTagRepository manages todo↔tag link rows.
type TodoTagRepository interface {
	ListByTodo(ctx context.Context, userID, todoID uuid.UUID) ([]model.TodoTag, error)
	TodoIDsByTag(ctx context.Context, userID, tagID uuid.UUID) ([]uuid.UUID, error)
	Create(ctx context.Context, links []model.TodoTag) error
	DeleteByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error
	DeleteLink(ctx context.Context, userID, todoID, tagID uuid.UUID) error
	DeleteByTodo(ctx context.Context, userID, todoID uuid.UUID) error
	DeleteByTag(ctx context.Context, userID, tagID uuid.UUID) error
}

type todoTagRepository struct {
	db *gorm.DB
}

// NewTodoTagRepository creates a new link repository.
func NewTodoTagRepository(db *gorm.DB) TodoTagRepository {
	return &todoTagRepository{db: db}
}

func (r *todoTagRepository) ListByTodo(ctx context.Context, userID, todoID uuid.UUID) ([]model.TodoTag, error) {
	var links []model.TodoTag
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND todo_id = ?", userID, todoID).
		Order("created_at ASC").
		Find(&links).Error
	if err != nil {
		return nil, translate(err, "list todo links")
	}
	return links, nil
}

// TodoIDsByTag resolves the todos userID has linked to tagID. The tag must
// belong to userID as well.
func (r *todoTagRepository) TodoIDsByTag(ctx context.Context, userID, tagID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := pluckIDs(r.db.WithContext(ctx).Model(&model.TodoTag{}).
		Joins("JOIN tags ON tags.id = todo_tags.tag_id").
		Where("todo_tags.user_id = ? AND todo_tags.tag_id = ? AND tags.user_id = ?", userID, tagID, userID),
		"todo_tags.todo_id")
	if err != nil {
		return nil, translate(err, "list tagged todos")
	}
	return ids, nil
}

func (r *todoTagRepository) Create(ctx context.Context, links []model.TodoTag) error {
	if len(links) == 0 {
		return nil
	}
	return translate(r.db.WithContext(ctx).Create(&links).Error, "link tags")
}

func (r *todoTagRepository) DeleteByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Where("user_id = ? AND id IN ?", userID, ids).Delete(&model.TodoTag{}).Error
	return translate(err, "unlink tags")
}

func (r *todoTagRepository) DeleteLink(ctx context.Context, userID, todoID, tagID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND todo_id = ? AND tag_id = ?", userID, todoID, tagID).
		Delete(&model.TodoTag{}).Error
	return translate(err, "unlink tag")
}

func (r *todoTagRepository) DeleteByTodo(ctx context.Context, userID, todoID uuid.UUID) error {
	err := r.db.WithContext(ctx).Where("user_id = ? AND todo_id = ?", userID, todoID).Delete(&model.TodoTag{}).Error
	return translate(err, "unlink todo")
}

func (r *todoTagRepository) DeleteByTag(ctx context.Context, userID, tagID uuid.UUID) error {
	err := r.db.WithContext(ctx).Where("user_id = ? AND tag_id = ?", userID, tagID).Delete(&model.TodoTag{}).Error
	return translate(err, "unlink tag")
}
