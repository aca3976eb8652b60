package domain

import (
	"fmt"
	"strings"
	"time"
)

type Unit string

const (
	UnitFile  Unit = "file"
	UnitWafer Unit = "wafer"
)

func ParseUnit(s string) (Unit, error) {
	switch Unit(strings.ToLower(strings.TrimSpace(s))) {
	case UnitFile:
		return UnitFile, nil
	case UnitWafer:
		return UnitWafer, nil
	default:
		return "", fmt.Errorf("%w: %q (want wafer or file)", ErrInvalidUnit, s)
	}
}

// TimeFunction truncates a timestamp to the start of its reporting period.
// The zero value truncates to the day.
type TimeFunction string

const (
	TimeDay   TimeFunction = "day"
	TimeWeek  TimeFunction = "week"
	TimeMonth TimeFunction = "month"
)

func ParseTimeFunction(s string) (TimeFunction, error) {
	switch TimeFunction(strings.ToLower(strings.TrimSpace(s))) {
	case "", TimeDay:
		return TimeDay, nil
	case TimeWeek:
		return TimeWeek, nil
	case TimeMonth:
		return TimeMonth, nil
	default:
		return "", fmt.Errorf("%w: time function %q (want day, week or month)", ErrInvalidRequest, s)
	}
}

func (f TimeFunction) Truncate(t time.Time) time.Time {
	switch f {
	case TimeWeek:
		monday, _ := WeekRangeAt(t)
		return monday
	case TimeMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
}

// WeekRangeAt returns Monday 00:00:00 and the following Monday for the week containing now.
func WeekRangeAt(now time.Time) (time.Time, time.Time) {
	weekday := now.Weekday()
	if weekday == time.Sunday {
		weekday = 7
	}
	daysFromMonday := int(weekday) - int(time.Monday)
	monday := time.Date(now.Year(), now.Month(), now.Day()-daysFromMonday, 0, 0, 0, 0, now.Location())
	return monday, monday.AddDate(0, 0, 7)
}
