package service

import (
	"time"

	"everyday/internal/calendar"
	"everyday/internal/model"
)

// ResolutionPlan describes every write one resolve performs: the audit
// record to insert, the timestamp to stamp the task with, and the
// optional successor task. The plan is the single source of truth for
// what a resolve changes; undo reverses exactly these writes.
type ResolutionPlan struct {
	Resolution model.TaskResolution
	ResolvedAt time.Time
	NextTask   *model.Task
}

// BuildResolutionPlan is a pure function over its inputs: no I/O, no
// clock reads. The same task, resolution type, resolved date and now
// always yield the same plan, which keeps it testable without a
// database and makes a post-rollback retry safe.
//
// The successor exists only when the task carries a complete reschedule
// rule. It inherits the name, note, preview rule and reschedule rule,
// with a freshly computed scheduled date; ids are assigned at insert
// time, not here. Completed and skipped feed the same successor math.
func BuildResolutionPlan(task *model.Task, resolutionType model.ResolutionType, resolvedDate calendar.Date, now time.Time) (ResolutionPlan, error) {
	plan := ResolutionPlan{
		Resolution: model.TaskResolution{
			TaskID:         task.ID,
			ResolutionType: resolutionType,
			ResolvedAt:     now,
			ResolvedDate:   resolvedDate,
			ScheduledDate:  task.ScheduledDate,
		},
		ResolvedAt: now,
	}

	rule, ok := task.RescheduleRule()
	if !ok {
		return plan, nil
	}

	next, err := calendar.NextOccurrence(task.ScheduledDate, resolvedDate, rule)
	if err != nil {
		return ResolutionPlan{}, err
	}

	plan.NextTask = &model.Task{
		UserID:          task.UserID,
		Name:            task.Name,
		Note:            task.Note,
		ScheduledDate:   next,
		PreviewLeadTime: task.PreviewLeadTime,
		PreviewUnit:     task.PreviewUnit,
		RescheduleEvery: task.RescheduleEvery,
		RescheduleUnit:  task.RescheduleUnit,
		RescheduleFrom:  task.RescheduleFrom,
	}
	return plan, nil
}
