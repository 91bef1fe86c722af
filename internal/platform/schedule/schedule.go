// Package schedule computes daily run times for the digest in a configured
// timezone.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	// Embed tzdata for environments without zoneinfo.
	_ "time/tzdata"
)

const (
	minutesPerHour = 60
	maxHour        = 23
)

// Static errors for schedule validation.
var (
	ErrTimeFormat     = errors.New("time must be HH:MM")
	ErrInvalidHour    = errors.New("invalid hour")
	ErrInvalidMinute  = errors.New("invalid minute")
	ErrHourOutOfRange = errors.New("hour out of range")
)

// ParseTimeOfDay parses an HH:MM (or H:MM) string into minutes since midnight.
func ParseTimeOfDay(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, ErrTimeFormat
	}

	parts := strings.Split(value, ":")
	if len(parts) != 2 || len(parts[1]) != 2 {
		return 0, ErrTimeFormat
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, ErrInvalidHour
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, ErrInvalidMinute
	}

	if hour < 0 || hour > maxHour {
		return 0, ErrHourOutOfRange
	}

	if minute < 0 || minute >= minutesPerHour {
		return 0, ErrInvalidMinute
	}

	return hour*minutesPerHour + minute, nil
}

// NextDailyRun returns the next occurrence of the given HH:MM time-of-day in
// loc, strictly after now.
func NextDailyRun(now time.Time, timeOfDay string, loc *time.Location) (time.Time, error) {
	minutes, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse digest time: %w", err)
	}

	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), minutes/minutesPerHour, minutes%minutesPerHour, 0, 0, loc)

	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}

	return next, nil
}
