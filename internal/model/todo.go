package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Todo is a single task owned by one user.
type Todo struct {
	ID                    uuid.UUID   `json:"id" gorm:"type:char(36);primaryKey"`
	UserID                uuid.UUID   `json:"user_id" gorm:"type:char(36);not null;index;index:idx_todos_user_important_created,priority:1;index:idx_todos_user_created,priority:1"`
	Title                 string      `json:"title" gorm:"size:500;not null"`
	Description           *string     `json:"description" gorm:"type:text"`
	Completed             bool        `json:"completed" gorm:"not null;default:false"`
	Important             bool        `json:"important" gorm:"not null;default:false;index:idx_todos_user_important_created,priority:2"`
	DueDate               *time.Time  `json:"due_date"`
	ReminderMinutesBefore *int        `json:"reminder_minutes_before"`
	Attachments           Attachments `json:"attachments" gorm:"type:text"`
	CreatedAt             time.Time   `json:"created_at" gorm:"index:idx_todos_user_important_created,priority:3;index:idx_todos_user_created,priority:2"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (t *Todo) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Attachment references a blob stored outside the record store.
type Attachment struct {
	StorageID   string  `json:"storage_id"`
	Name        string  `json:"name"`
	ContentType *string `json:"content_type"`
	Size        int64   `json:"size"`
}

// Attachments is persisted as a JSON array in a single column.
type Attachments []Attachment

// Value implements driver.Valuer.
func (a Attachments) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal attachments: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (a *Attachments) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = Attachments{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("scan attachments: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*a = Attachments{}
		return nil
	}
	var out Attachments
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("unmarshal attachments: %w", err)
	}
	if out == nil {
		out = Attachments{}
	}
	*a = out
	return nil
}

// ListCounts are the sidebar totals for each list type.
type ListCounts struct {
	MyDay     int64 `json:"my_day"`
	Important int64 `json:"important"`
	Planned   int64 `json:"planned"`
	Tasks     int64 `json:"tasks"`
}
