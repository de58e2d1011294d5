package calendar

import "errors"

// ErrInvalidRecurrence rejects reschedule rules with a zero or negative
// cadence. A cadence like that is meaningless and is never defaulted.
var ErrInvalidRecurrence = errors.New("recurrence cadence must be greater than zero")

// Anchor selects the reference date the next occurrence is measured
// from.
type Anchor string

const (
	// AnchorScheduled measures from the originally scheduled date.
	AnchorScheduled Anchor = "scheduled"
	// AnchorCompletion measures from the date the task was resolved.
	AnchorCompletion Anchor = "completion"
)

// Valid reports whether a is a known anchor.
func (a Anchor) Valid() bool {
	return a == AnchorScheduled || a == AnchorCompletion
}

// RescheduleRule describes the cadence of a recurring task: one
// occurrence every Every Units, measured from the Anchor.
type RescheduleRule struct {
	Every  int
	Unit   Unit
	Anchor Anchor
}

// NextOccurrence returns the smallest date strictly after completed
// that lies on the cadence anchor + k*Every units for integer k >= 1.
//
// The task may have been completed years after (or before) its
// scheduled date, so the cadence offset is estimated from the calendar
// difference in rule units first and then fine-tuned one interval at a
// time. The estimate never overshoots the answer, so the fine-tune loop
// runs a small constant number of iterations regardless of drift span.
func NextOccurrence(scheduled, completed Date, rule RescheduleRule) (Date, error) {
	if rule.Every <= 0 {
		return Date{}, ErrInvalidRecurrence
	}

	anchor := scheduled
	if rule.Anchor == AnchorCompletion {
		anchor = completed
	}

	diff := unitsBetween(anchor, completed, rule.Unit)
	jumps := ceilDiv(diff, rule.Every)
	if jumps < 1 {
		jumps = 1
	}

	next := AddInterval(anchor, rule.Unit, rule.Every, jumps)
	for !next.After(completed) {
		next = AddInterval(next, rule.Unit, rule.Every, 1)
	}
	return next, nil
}

// unitsBetween approximates b - a in the given unit. Week, month and
// year differences may under-count by a partial unit; the caller's
// fine-tune loop absorbs that.
func unitsBetween(a, b Date, unit Unit) int {
	switch unit {
	case UnitWeek:
		return DaysBetween(a, b) / 7
	case UnitMonth:
		return (b.Year-a.Year)*12 + int(b.Month) - int(a.Month)
	case UnitYear:
		return b.Year - a.Year
	default:
		return DaysBetween(a, b)
	}
}

// ceilDiv rounds the quotient toward positive infinity. Divisor must be
// positive.
func ceilDiv(a, b int) int {
	q := a / b
	if a%b > 0 {
		q++
	}
	return q
}
