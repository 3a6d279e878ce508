package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"todolist/internal/model"
)

// TagRepository defines tag persistence operations.
type TagRepository interface {
	Create(ctx context.Context, tag *model.Tag) error
	FindByID(ctx context.Context, userID, id uuid.UUID) (*model.Tag, error)
	FindByName(ctx context.Context, userID uuid.UUID, name string) (*model.Tag, error)
	List(ctx context.Context, userID uuid.UUID) ([]model.Tag, error)
	ListWithCounts(ctx context.Context, userID uuid.UUID) ([]model.TagWithCount, error)
	Update(ctx context.Context, tag *model.Tag, fields map[string]any) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
	OwnedIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
	ForTodos(ctx context.Context, userID uuid.UUID, todoIDs []uuid.UUID) (map[uuid.UUID][]model.Tag, error)
}

type tagRepository struct {
	db *gorm.DB
}

// NewTagRepository creates a new tag repository.
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

func (r *tagRepository) Create(ctx context.Context, tag *model.Tag) error {
	return translate(r.db.WithContext(ctx).Create(tag).Error, "create tag")
}

func (r *tagRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*model.Tag, error) {
	var tag model.Tag
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&tag).Error; err != nil {
		return nil, translate(err, "find tag")
	}
	return &tag, nil
}

func (r *tagRepository) FindByName(ctx context.Context, userID uuid.UUID, name string) (*model.Tag, error) {
	var tag model.Tag
	if err := r.db.WithContext(ctx).Where("user_id = ? AND name = ?", userID, name).First(&tag).Error; err != nil {
		return nil, translate(err, "find tag by name")
	}
	return &tag, nil
}

// List returns the user's tags in storage order; callers sort for display.
func (r *tagRepository) List(ctx context.Context, userID uuid.UUID) ([]model.Tag, error) {
	var tags []model.Tag
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&tags).Error; err != nil {
		return nil, translate(err, "list tags")
	}
	return tags, nil
}

// ListWithCounts returns each tag with the number of the user's todos it labels.
func (r *tagRepository) ListWithCounts(ctx context.Context, userID uuid.UUID) ([]model.TagWithCount, error) {
	var tags []model.TagWithCount
	err := r.db.WithContext(ctx).Table("tags").
		Select("tags.*, COUNT(todos.id) AS todo_count").
		Joins("LEFT JOIN todo_tags ON todo_tags.tag_id = tags.id AND todo_tags.user_id = tags.user_id").
		Joins("LEFT JOIN todos ON todos.id = todo_tags.todo_id AND todos.user_id = tags.user_id").
		Where("tags.user_id = ?", userID).
		Group("tags.id").
		Scan(&tags).Error
	if err != nil {
		return nil, translate(err, "list tags with counts")
	}
	return tags, nil
}

func (r *tagRepository) Update(ctx context.Context, tag *model.Tag, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Model(&model.Tag{}).
		Where("id = ? AND user_id = ?", tag.ID, tag.UserID).
		Updates(fields).Error
	return translate(err, "update tag")
}

func (r *tagRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.Tag{}).Error
	return translate(err, "delete tag")
}

// OwnedIDs filters ids down to the tags userID owns.
func (r *tagRepository) OwnedIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return []uuid.UUID{}, nil
	}
	owned, err := pluckIDs(r.db.WithContext(ctx).Model(&model.Tag{}).
		Where("user_id = ? AND id IN ?", userID, ids), "id")
	if err != nil {
		return nil, translate(err, "resolve owned tags")
	}
	return owned, nil
}

type todoTagRow struct {
	model.Tag
	TodoID uuid.UUID
}

// ForTodos groups the tags linked to each todo. Links, todos and tags must all
// belong to userID; anything else is ignored.
func (r *tagRepository) ForTodos(ctx context.Context, userID uuid.UUID, todoIDs []uuid.UUID) (map[uuid.UUID][]model.Tag, error) {
	out := make(map[uuid.UUID][]model.Tag, len(todoIDs))
	if len(todoIDs) == 0 {
		return out, nil
	}

	var rows []todoTagRow
	err := r.db.WithContext(ctx).Table("tags").
		Select("tags.*, todo_tags.todo_id AS todo_id").
		Joins("JOIN todo_tags ON todo_tags.tag_id = tags.id").
		Joins("JOIN todos ON todos.id = todo_tags.todo_id").
		Where("todo_tags.user_id = ? AND tags.user_id = ? AND todos.user_id = ?", userID, userID, userID).
		Where("todo_tags.todo_id IN ?", todoIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err, "list todo tags")
	}
	for _, row := range rows {
		out[row.TodoID] = append(out[row.TodoID], row.Tag)
	}
	return out, nil
}
