package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"everyday/internal/calendar"
	"everyday/internal/model"
	"everyday/internal/repository"
)

var (
	// ErrNotFound means the task does not exist or belongs to someone
	// else; the two cases are indistinguishable on purpose.
	ErrNotFound = errors.New("task not found")

	// ErrAlreadyResolved rejects a second resolve of the same task,
	// typically a duplicate submission.
	ErrAlreadyResolved = errors.New("task is already resolved")
)

// TaskInput represents data required to create a task.
type TaskInput struct {
	Name            string
	Note            string
	ScheduledDate   calendar.Date
	PreviewLeadTime *int
	PreviewUnit     *calendar.Unit
	RescheduleEvery *int
	RescheduleUnit  *calendar.Unit
	RescheduleFrom  *calendar.Anchor
}

// TaskStatus is the visibility classification of a task for a target
// day. It is computed per query and never stored.
type TaskStatus string

const (
	StatusActive   TaskStatus = "active"
	StatusUpcoming TaskStatus = "upcoming"
)

// ClassifiedTask pairs a task with its status for a target day.
type ClassifiedTask struct {
	Task         model.Task
	Status       TaskStatus
	PreviewStart calendar.Date
}

// ResolveResult is what a successful resolve hands back to the caller:
// the id of the audit record and the successor task, if one was
// created. Both are needed to undo.
type ResolveResult struct {
	ResolutionID string
	NextTask     *model.Task
}

// TaskService wraps task business logic: creation, the per-day
// visibility classification and the resolve/undo protocol.
type TaskService struct {
	taskRepo *repository.TaskRepository
	uow      *repository.UnitOfWork
	now      func() time.Time
}

func NewTaskService(taskRepo *repository.TaskRepository, uow *repository.UnitOfWork) *TaskService {
	return &TaskService{taskRepo: taskRepo, uow: uow, now: time.Now}
}

// validateTaskInput guards both create and update. Units and anchors
// are checked here so an unknown unit fails loudly instead of being
// carried through the interval math.
func validateTaskInput(input TaskInput) error {
	if input.Name == "" {
		return fmt.Errorf("name is required")
	}
	if input.ScheduledDate.IsZero() {
		return fmt.Errorf("scheduled date is required")
	}
	if input.PreviewLeadTime != nil && *input.PreviewLeadTime <= 0 {
		return fmt.Errorf("preview lead time must be positive")
	}
	if input.PreviewUnit != nil && !input.PreviewUnit.Valid() {
		return fmt.Errorf("unknown preview unit %q", *input.PreviewUnit)
	}
	if input.RescheduleEvery != nil && *input.RescheduleEvery <= 0 {
		return calendar.ErrInvalidRecurrence
	}
	if input.RescheduleUnit != nil && !input.RescheduleUnit.Valid() {
		return fmt.Errorf("unknown reschedule unit %q", *input.RescheduleUnit)
	}
	if input.RescheduleFrom != nil && !input.RescheduleFrom.Valid() {
		return fmt.Errorf("unknown reschedule anchor %q", *input.RescheduleFrom)
	}
	return nil
}

// CreateTask validates the input and stores a new open task. An
// unusable cadence is rejected here, before anything is written.
func (s *TaskService) CreateTask(ctx context.Context, user *model.User, input TaskInput) (*model.Task, error) {
	if err := validateTaskInput(input); err != nil {
		return nil, err
	}

	task := model.Task{
		ID:              uuid.NewString(),
		UserID:          user.ID,
		Name:            input.Name,
		Note:            input.Note,
		ScheduledDate:   input.ScheduledDate,
		PreviewLeadTime: input.PreviewLeadTime,
		PreviewUnit:     input.PreviewUnit,
		RescheduleEvery: input.RescheduleEvery,
		RescheduleUnit:  input.RescheduleUnit,
		RescheduleFrom:  input.RescheduleFrom,
	}

	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TaskService) GetTask(ctx context.Context, user *model.User, taskID string) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, user.ID, taskID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return task, err
}

// UpdateTask replaces a task's content with the input: name, note,
// scheduled date and both optional rules. Absent optional fields are
// cleared, not kept, so dropping a repeat rule is a plain edit. The
// resolution history is untouched; its rows snapshot their own dates.
func (s *TaskService) UpdateTask(ctx context.Context, user *model.User, taskID string, input TaskInput) (*model.Task, error) {
	if err := validateTaskInput(input); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"name":              input.Name,
		"note":              input.Note,
		"scheduled_date":    input.ScheduledDate,
		"preview_lead_time": input.PreviewLeadTime,
		"preview_unit":      input.PreviewUnit,
		"reschedule_every":  input.RescheduleEvery,
		"reschedule_unit":   input.RescheduleUnit,
		"reschedule_from":   input.RescheduleFrom,
		"updated_at":        s.now().UTC(),
	}
	if err := s.taskRepo.Update(ctx, user.ID, taskID, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.GetTask(ctx, user, taskID)
}

// DeleteTask removes a task completely.
func (s *TaskService) DeleteTask(ctx context.Context, user *model.User, taskID string) error {
	return s.taskRepo.Delete(ctx, user.ID, taskID)
}

// TasksForDate classifies the user's open tasks against the target
// civil day, which must come from the caller's local clock. Tasks whose
// preview window has not started yet are omitted; the rest are active
// when due (scheduled on or before the target) and upcoming otherwise.
func (s *TaskService) TasksForDate(ctx context.Context, user *model.User, target calendar.Date) ([]ClassifiedTask, error) {
	tasks, err := s.taskRepo.ListOpen(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	var classified []ClassifiedTask
	for _, task := range tasks {
		previewStart := task.PreviewStart()
		if previewStart.After(target) {
			continue
		}
		status := StatusUpcoming
		if !task.ScheduledDate.After(target) {
			status = StatusActive
		}
		classified = append(classified, ClassifiedTask{
			Task:         task,
			Status:       status,
			PreviewStart: previewStart,
		})
	}
	return classified, nil
}

// Resolve marks a task completed or skipped as of resolvedDate (the
// caller's local day) and, for tasks with a reschedule rule, creates
// the successor. Everything happens in one transaction: the resolution
// insert, the task update and the successor insert land together or not
// at all, and the already-resolved check runs inside the same
// transaction so two concurrent resolves cannot both succeed.
func (s *TaskService) Resolve(ctx context.Context, user *model.User, taskID string, resolutionType model.ResolutionType, resolvedDate calendar.Date) (*ResolveResult, error) {
	if !resolutionType.Valid() {
		return nil, fmt.Errorf("unknown resolution type %q", resolutionType)
	}

	var result ResolveResult
	err := s.uow.Do(ctx, func(r repository.TxRepos) error {
		task, err := r.Tasks.FindByID(ctx, user.ID, taskID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if task.ResolvedAt != nil {
			return ErrAlreadyResolved
		}

		plan, err := BuildResolutionPlan(task, resolutionType, resolvedDate, s.now().UTC())
		if err != nil {
			return err
		}

		plan.Resolution.ID = uuid.NewString()
		if err := r.Resolutions.Create(ctx, &plan.Resolution); err != nil {
			return err
		}
		if err := r.Tasks.MarkResolved(ctx, task.ID, plan.ResolvedAt); err != nil {
			return err
		}
		if plan.NextTask != nil {
			plan.NextTask.ID = uuid.NewString()
			if err := r.Tasks.Create(ctx, plan.NextTask); err != nil {
				return err
			}
		}

		result = ResolveResult{ResolutionID: plan.Resolution.ID, NextTask: plan.NextTask}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// UndoResolution reverses one resolve: it deletes the audit record,
// reopens the task and deletes the successor when one was created. It
// is a compensating action meant to run shortly after the resolve, not
// a point-in-time rollback: if the successor was itself resolved in the
// meantime it is deleted anyway, discarding that branch.
func (s *TaskService) UndoResolution(ctx context.Context, user *model.User, taskID, resolutionID, nextTaskID string) error {
	return s.uow.Do(ctx, func(r repository.TxRepos) error {
		if _, err := r.Tasks.FindByID(ctx, user.ID, taskID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if err := r.Resolutions.Delete(ctx, taskID, resolutionID); err != nil {
			return err
		}
		if err := r.Tasks.ClearResolved(ctx, user.ID, taskID, s.now().UTC()); err != nil {
			return err
		}
		if nextTaskID != "" {
			if err := r.Tasks.Delete(ctx, user.ID, nextTaskID); err != nil {
				return err
			}
		}
		return nil
	})
}
