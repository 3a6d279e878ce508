package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Subtask is a checklist item under a todo, ordered manually.
type Subtask struct {
	ID        uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	UserID    uuid.UUID `json:"-" gorm:"type:char(36);not null;index:idx_subtasks_user_todo,priority:1"`
	TodoID    uuid.UUID `json:"todo_id" gorm:"type:char(36);not null;index:idx_subtasks_user_todo,priority:2;index:idx_subtasks_todo_order,priority:1"`
	Title     string    `json:"title" gorm:"size:500;not null"`
	Completed bool      `json:"completed" gorm:"not null;default:false"`
	Order     int       `json:"order" gorm:"column:sort_order;not null;default:0;index:idx_subtasks_todo_order,priority:2"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (s *Subtask) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
