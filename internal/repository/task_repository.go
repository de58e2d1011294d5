package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"everyday/internal/model"
)

// TaskRepository handles persistence for tasks. Every lookup and write
// that acts on behalf of a user is scoped by the owner id.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID uint, taskID string) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// ListOpen returns the user's unresolved tasks ordered by scheduled
// date. Visibility classification happens above this layer.
func (r *TaskRepository) ListOpen(ctx context.Context, userID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND resolved_at IS NULL", userID).
		Order("scheduled_date ASC, created_at ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// Update overwrites the given columns of a task owned by the user.
// Nil pointer values clear their columns. Reports gorm.ErrRecordNotFound
// when no owned row matches.
func (r *TaskRepository) Update(ctx context.Context, userID uint, taskID string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND id = ?", userID, taskID).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkResolved stamps the task resolved. The caller is responsible for
// running this inside the same transaction as the already-resolved
// check.
func (r *TaskRepository) MarkResolved(ctx context.Context, taskID string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", taskID).
		Updates(map[string]interface{}{"resolved_at": at, "updated_at": at}).Error
	if err != nil {
		return fmt.Errorf("mark task resolved: %w", err)
	}
	return nil
}

// ClearResolved reopens a resolved task.
func (r *TaskRepository) ClearResolved(ctx context.Context, userID uint, taskID string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.Task{}).Where("user_id = ? AND id = ?", userID, taskID).
		Updates(map[string]interface{}{"resolved_at": nil, "updated_at": at}).Error
	if err != nil {
		return fmt.Errorf("clear task resolution: %w", err)
	}
	return nil
}

// Delete removes a task for the given user.
func (r *TaskRepository) Delete(ctx context.Context, userID uint, taskID string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).
		Delete(&model.Task{}).Error; err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
