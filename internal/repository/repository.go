// Package repository holds the GORM-backed persistence layer. Every query is
// scoped by owning user id; a record owned by someone else reads as missing.
package repository

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "todolist/internal/errors"
)

// translate maps GORM sentinel errors onto the service error taxonomy.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, apperrors.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", what, apperrors.ErrDuplicate)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

// pluckIDs reads a single uuid column. Values are scanned as strings so the
// same code works for MySQL char(36) and SQLite text.
func pluckIDs(q *gorm.DB, column string) ([]uuid.UUID, error) {
	var raw []string
	if err := q.Pluck(column, &raw).Error; err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", column, s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
