package model

import (
	"time"

	"everyday/internal/calendar"
)

// Task is a single schedulable item. A task with a non-nil ResolvedAt
// is terminal: nothing mutates it again except the undo path, which
// reverses the resolution completely.
type Task struct {
	ID     string `gorm:"primaryKey;size:36"`
	UserID uint   `gorm:"index"`
	Name   string
	Note   string

	ScheduledDate calendar.Date `gorm:"index"`

	// Preview window: how long before ScheduledDate the task shows up
	// as upcoming. Both fields set, or neither.
	PreviewLeadTime *int
	PreviewUnit     *calendar.Unit

	// Reschedule rule governing successor creation. The rule only
	// applies when all three fields are set.
	RescheduleEvery *int
	RescheduleUnit  *calendar.Unit
	RescheduleFrom  *calendar.Anchor

	CreatedAt  time.Time
	UpdatedAt  time.Time
	ResolvedAt *time.Time
}

// RescheduleRule returns the task's reschedule rule. A partially
// specified rule counts as absent.
func (t Task) RescheduleRule() (calendar.RescheduleRule, bool) {
	if t.RescheduleEvery == nil || t.RescheduleUnit == nil || t.RescheduleFrom == nil {
		return calendar.RescheduleRule{}, false
	}
	return calendar.RescheduleRule{
		Every:  *t.RescheduleEvery,
		Unit:   *t.RescheduleUnit,
		Anchor: *t.RescheduleFrom,
	}, true
}

// PreviewStart returns the first day the task is visible. Without a
// preview rule that is the scheduled date itself.
func (t Task) PreviewStart() calendar.Date {
	if t.PreviewLeadTime == nil || t.PreviewUnit == nil {
		return t.ScheduledDate
	}
	return calendar.AddInterval(t.ScheduledDate, *t.PreviewUnit, *t.PreviewLeadTime, -1)
}
