package model

import (
	"time"

	"everyday/internal/calendar"
)

// ResolutionType records how a task was resolved. The type never
// changes the rescheduling math; it exists for history display.
type ResolutionType string

const (
	ResolutionCompleted ResolutionType = "completed"
	ResolutionSkipped   ResolutionType = "skipped"
)

// Valid reports whether rt is a known resolution type.
func (rt ResolutionType) Valid() bool {
	return rt == ResolutionCompleted || rt == ResolutionSkipped
}

// TaskResolution is an immutable audit record of one resolve event.
// ScheduledDate snapshots the task's scheduled date at the moment of
// resolution, so history stays intact even if the task row is deleted
// later. Only the undo operation deletes a resolution.
type TaskResolution struct {
	ID             string `gorm:"primaryKey;size:36"`
	TaskID         string `gorm:"index;size:36"`
	ResolutionType ResolutionType

	// ResolvedAt is the absolute instant of the resolve, in UTC.
	// ResolvedDate is the caller's local civil day, supplied by the
	// client and never inferred on the server.
	ResolvedAt    time.Time
	ResolvedDate  calendar.Date
	ScheduledDate calendar.Date
}
