package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultTagColor is applied when a tag is created without a color.
const DefaultTagColor = "#3b82f6"

// Tag is a user-scoped label. Names are unique per user.
type Tag struct {
	ID        uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:char(36);not null;uniqueIndex:idx_tags_user_name,priority:1"`
	Name      string    `json:"name" gorm:"size:100;not null;uniqueIndex:idx_tags_user_name,priority:2"`
	Color     string    `json:"color" gorm:"size:16;not null;default:'#3b82f6'"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TagWithCount is a tag with the number of todos it labels.
type TagWithCount struct {
	Tag
	TodoCount int64 `json:"todo_count"`
}

// TodoTag links a todo to a tag. Both must belong to UserID.
type TodoTag struct {
	ID        uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:char(36);not null;index"`
	TodoID    uuid.UUID `json:"todo_id" gorm:"type:char(36);not null;uniqueIndex:idx_todo_tags_todo_tag,priority:1"`
	TagID     uuid.UUID `json:"tag_id" gorm:"type:char(36);not null;index;uniqueIndex:idx_todo_tags_todo_tag,priority:2"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate sets UUID before creating the record.
func (t *TodoTag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
