package models

import (
	"fmt"
	"math"
	"time"
)

// FormatHour renders a fractional hour as HH:MM (14.5 -> "14:30").
func FormatHour(h float64) string {
	minutes := int(math.Round(h * 60))
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Weekday maps a date to 0=Monday..6=Sunday.
func Weekday(date time.Time) int {
	return (int(date.Weekday()) + 6) % 7
}

// DateOnly truncates t to midnight in loc.
func DateOnly(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// ParseDate parses a DateLayout string as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout, s, loc)
}

// SlotInstant combines a booking date with a fractional start hour.
func SlotInstant(date time.Time, hour float64) time.Time {
	minutes := int(math.Round(hour * 60))
	return time.Date(date.Year(), date.Month(), date.Day(), 0, minutes, 0, 0, date.Location())
}
