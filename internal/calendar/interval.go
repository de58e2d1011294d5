package calendar

import "time"

// Unit is a calendar-based interval unit. Units are applied with
// calendar math, not fixed durations: one month after Jan 31 is the
// last day of February, not 30 days later.
type Unit string

const (
	UnitDay   Unit = "day"
	UnitWeek  Unit = "week"
	UnitMonth Unit = "month"
	UnitYear  Unit = "year"
)

// Units lists every valid interval unit.
var Units = []Unit{UnitDay, UnitWeek, UnitMonth, UnitYear}

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	switch u {
	case UnitDay, UnitWeek, UnitMonth, UnitYear:
		return true
	}
	return false
}

// AddInterval adds every*multiplier units to d. A zero amount returns d
// unchanged; a negative amount steps backwards (the preview window is
// computed that way). Month and year additions clamp the day-of-month
// to the length of the target month, so Jan 31 plus one month is Feb 29
// in a leap year and Feb 28 otherwise.
func AddInterval(d Date, unit Unit, every, multiplier int) Date {
	amount := every * multiplier
	if amount == 0 {
		return d
	}
	switch unit {
	case UnitWeek:
		return d.AddDays(amount * 7)
	case UnitMonth:
		return addMonths(d, amount)
	case UnitYear:
		return addMonths(d, amount*12)
	default:
		return d.AddDays(amount)
	}
}

func addMonths(d Date, months int) Date {
	total := int(d.Month) - 1 + months
	year := d.Year + total/12
	rem := total % 12
	if rem < 0 {
		rem += 12
		year--
	}
	month := time.Month(rem + 1)

	day := d.Day
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return Date{Year: year, Month: month, Day: day}
}
