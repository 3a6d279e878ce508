package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"todolist/internal/model"
)

// UploadRepository tracks blob ownership.
type UploadRepository interface {
	Create(ctx context.Context, upload *model.Upload) error
	OwnedRefs(ctx context.Context, userID uuid.UUID, refs []string) ([]string, error)
	Delete(ctx context.Context, userID uuid.UUID, refs []string) error
}

type uploadRepository struct {
	db *gorm.DB
}

// NewUploadRepository creates a new upload repository.
func NewUploadRepository(db *gorm.DB) UploadRepository {
	return &uploadRepository{db: db}
}

func (r *uploadRepository) Create(ctx context.Context, upload *model.Upload) error {
	return translate(r.db.WithContext(ctx).Create(upload).Error, "record upload")
}

// OwnedRefs returns the subset of refs uploaded by userID.
func (r *uploadRepository) OwnedRefs(ctx context.Context, userID uuid.UUID, refs []string) ([]string, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	var owned []string
	err := r.db.WithContext(ctx).Model(&model.Upload{}).
		Where("user_id = ? AND storage_id IN ?", userID, refs).
		Pluck("storage_id", &owned).Error
	if err != nil {
		return nil, translate(err, "list uploads")
	}
	return owned, nil
}

func (r *uploadRepository) Delete(ctx context.Context, userID uuid.UUID, refs []string) error {
	if len(refs) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Where("user_id = ? AND storage_id IN ?", userID, refs).Delete(&model.Upload{}).Error
	return translate(err, "forget uploads")
}
