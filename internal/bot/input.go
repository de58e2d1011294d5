package bot

import (
	"fmt"
	"strconv"
	"strings"

	"everyday/internal/calendar"
)

// parseDateInput understands ISO dates plus the two shortcuts people
// actually type. Relative words resolve against the caller's today.
func parseDateInput(text string, today calendar.Date) (calendar.Date, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "today":
		return today, nil
	case "tomorrow":
		return today.AddDays(1), nil
	}
	return calendar.ParseDate(strings.TrimSpace(text))
}

// parseIntervalInput parses spans like "3 days", "1 month" or "week".
func parseIntervalInput(text string) (int, calendar.Unit, error) {
	fields := strings.Fields(strings.ToLower(text))
	switch len(fields) {
	case 1:
		unit, ok := unitFromWord(fields[0])
		if !ok {
			return 0, "", fmt.Errorf("unknown unit %q", fields[0])
		}
		return 1, unit, nil
	case 2:
		n, err := strconv.Atoi(fields[0])
		if err != nil || n <= 0 {
			return 0, "", fmt.Errorf("amount must be a positive number, got %q", fields[0])
		}
		unit, ok := unitFromWord(fields[1])
		if !ok {
			return 0, "", fmt.Errorf("unknown unit %q", fields[1])
		}
		return n, unit, nil
	default:
		return 0, "", fmt.Errorf("expected something like %q", "3 days")
	}
}

// parseRepeatInput parses cadences like "every 2 weeks from completion"
// or "every month". The anchor defaults to the scheduled date.
func parseRepeatInput(text string) (calendar.RescheduleRule, error) {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 || fields[0] != "every" {
		return calendar.RescheduleRule{}, fmt.Errorf("expected something like %q", "every 2 weeks")
	}
	fields = fields[1:]

	rule := calendar.RescheduleRule{Every: 1, Anchor: calendar.AnchorScheduled}

	// Optional trailing "from scheduled" / "from completion".
	if len(fields) >= 2 && fields[len(fields)-2] == "from" {
		switch fields[len(fields)-1] {
		case "scheduled":
			rule.Anchor = calendar.AnchorScheduled
		case "completion":
			rule.Anchor = calendar.AnchorCompletion
		default:
			return calendar.RescheduleRule{}, fmt.Errorf("anchor must be %q or %q", "scheduled", "completion")
		}
		fields = fields[:len(fields)-2]
	}

	switch len(fields) {
	case 1:
		unit, ok := unitFromWord(fields[0])
		if !ok {
			return calendar.RescheduleRule{}, fmt.Errorf("unknown unit %q", fields[0])
		}
		rule.Unit = unit
	case 2:
		n, err := strconv.Atoi(fields[0])
		if err != nil || n <= 0 {
			return calendar.RescheduleRule{}, fmt.Errorf("cadence must be a positive number, got %q", fields[0])
		}
		unit, ok := unitFromWord(fields[1])
		if !ok {
			return calendar.RescheduleRule{}, fmt.Errorf("unknown unit %q", fields[1])
		}
		rule.Every = n
		rule.Unit = unit
	default:
		return calendar.RescheduleRule{}, fmt.Errorf("expected something like %q", "every 2 weeks from completion")
	}
	return rule, nil
}

func unitFromWord(word string) (calendar.Unit, bool) {
	switch strings.TrimSuffix(word, "s") {
	case "day":
		return calendar.UnitDay, true
	case "week":
		return calendar.UnitWeek, true
	case "month":
		return calendar.UnitMonth, true
	case "year":
		return calendar.UnitYear, true
	}
	return "", false
}
