package discovery

import (
	"fmt"
	"strconv"
	"strings"
)

// Schedule is the semantic reading of a 5-field cron expression.
type Schedule struct {
	Frequency       string
	Description     string
	IntervalMinutes *int
}

func interval(m int) *int { return &m }

// ParseCronSchedule classifies a 5-field cron expression into a recurring
// shape and its implied interval. It is a heuristic recognizer of common
// patterns, not a cron evaluator: comma lists and ranges fall through to
// "custom". Malformed input yields "unknown" and never an error.
func ParseCronSchedule(expr string) Schedule {
	fields := strings.Fields(strings.TrimSpace(expr))
	if len(fields) != 5 {
		return Schedule{Frequency: "unknown", Description: expr}
	}
	minute, hour, day, month, weekday := fields[0], fields[1], fields[2], fields[3], fields[4]

	if strings.HasPrefix(minute, "*/") {
		if n, err := strconv.Atoi(minute[2:]); err == nil && n > 0 {
			return Schedule{
				Frequency:       fmt.Sprintf("every_%d_minutes", n),
				Description:     fmt.Sprintf("Every %d minutes", n),
				IntervalMinutes: interval(n),
			}
		}
	}
	if hour == "*" && day == "*" && month == "*" && weekday == "*" {
		return Schedule{Frequency: "hourly", Description: fmt.Sprintf("Hourly at minute %s", minute), IntervalMinutes: interval(60)}
	}
	if day == "*" && month == "*" && weekday == "*" {
		return Schedule{Frequency: "daily", Description: fmt.Sprintf("Daily at %s:%s", hour, minute), IntervalMinutes: interval(1440)}
	}
	if day == "*" && month == "*" {
		return Schedule{Frequency: "weekly", Description: fmt.Sprintf("Weekly on day %s at %s:%s", weekday, hour, minute), IntervalMinutes: interval(10080)}
	}
	if month == "*" && weekday == "*" {
		return Schedule{Frequency: "monthly", Description: fmt.Sprintf("Monthly on day %s at %s:%s", day, hour, minute), IntervalMinutes: interval(43200)}
	}
	return Schedule{Frequency: "custom", Description: expr}
}
