package retrieval

import (
	"strings"
	"time"
)

// ContextProvider supplies the temporal context snapshot attached to each
// retrieval and fed into query enhancement.
type ContextProvider interface {
	Current(now time.Time) map[string]string
}

// ClockContext derives temporal context purely from the wall clock.
type ClockContext struct{}

var _ ContextProvider = ClockContext{}

// Current returns time-of-day, day-of-week, weekend flag and season for the
// given instant.
func (ClockContext) Current(now time.Time) map[string]string {
	return map[string]string{
		"time_of_day": timeOfDay(now.Hour()),
		"day_of_week": strings.ToLower(now.Weekday().String()),
		"is_weekend":  weekendFlag(now.Weekday()),
		"season":      season(now.Month()),
	}
}

func timeOfDay(hour int) string {
	switch {
	case hour < 5:
		return "night"
	case hour < 12:
		return "morning"
	case hour < 17:
		return "afternoon"
	case hour < 22:
		return "evening"
	}
	return "night"
}

func weekendFlag(day time.Weekday) string {
	if day == time.Saturday || day == time.Sunday {
		return "true"
	}
	return "false"
}

// season maps months to northern-hemisphere seasons.
func season(month time.Month) string {
	switch month {
	case time.December, time.January, time.February:
		return "winter"
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	}
	return "autumn"
}
