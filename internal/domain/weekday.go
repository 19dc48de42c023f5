package domain

import (
	"fmt"
	"time"
)

// Weekday is the closed set of day tags a template child may carry.
// Untagged children (nil pointer) belong to a single day-agnostic session.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// weekdayOffsets maps each weekday to its offset from Monday.
// The table is injective: one calendar slot per tag, no locale coupling.
var weekdayOffsets = map[Weekday]int{
	Monday:    0,
	Tuesday:   1,
	Wednesday: 2,
	Thursday:  3,
	Friday:    4,
	Saturday:  5,
	Sunday:    6,
}

// Offset returns the number of days from Monday (Monday=0 ... Sunday=6).
func (w Weekday) Offset() (int, bool) {
	off, ok := weekdayOffsets[w]
	return off, ok
}

// Valid reports whether w is one of the seven known tags.
func (w Weekday) Valid() bool {
	_, ok := weekdayOffsets[w]
	return ok
}

// ParseWeekday converts a raw string into a Weekday.
func ParseWeekday(s string) (Weekday, error) {
	w := Weekday(s)
	if !w.Valid() {
		return "", fmt.Errorf("unknown weekday %q", s)
	}
	return w, nil
}

// ISOWeekday returns the ISO-8601 day number for t (Monday=1 ... Sunday=7).
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 { // time.Sunday
		return 7
	}
	return wd
}

// WeekAnchor returns the Monday of the calendar week containing today,
// truncated to midnight in today's location. A Sunday anchors six days
// back, never one day forward.
func WeekAnchor(today time.Time) time.Time {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	return day.AddDate(0, 0, -(ISOWeekday(today) - 1))
}
