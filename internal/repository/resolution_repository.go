package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"everyday/internal/model"
)

// ResolutionRepository handles the task resolution audit records.
type ResolutionRepository struct {
	db *gorm.DB
}

func NewResolutionRepository(db *gorm.DB) *ResolutionRepository {
	return &ResolutionRepository{db: db}
}

func (r *ResolutionRepository) Create(ctx context.Context, resolution *model.TaskResolution) error {
	if err := r.db.WithContext(ctx).Create(resolution).Error; err != nil {
		return fmt.Errorf("create resolution: %w", err)
	}
	return nil
}

// Delete removes one resolution record. Scoping by task id keeps a
// stale undo request from deleting another task's history.
func (r *ResolutionRepository) Delete(ctx context.Context, taskID, resolutionID string) error {
	if err := r.db.WithContext(ctx).Where("id = ? AND task_id = ?", resolutionID, taskID).
		Delete(&model.TaskResolution{}).Error; err != nil {
		return fmt.Errorf("delete resolution: %w", err)
	}
	return nil
}

// ListByTask returns a task's resolution history, newest first.
func (r *ResolutionRepository) ListByTask(ctx context.Context, taskID string) ([]model.TaskResolution, error) {
	var resolutions []model.TaskResolution
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).
		Order("resolved_at DESC").
		Find(&resolutions).Error; err != nil {
		return nil, err
	}
	return resolutions, nil
}
