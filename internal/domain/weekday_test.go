package domain_test

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"coachfit/platform/internal/domain"
)

func TestParseWeekday(t *testing.T) {
	c := qt.New(t)

	for _, raw := range []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"} {
		wd, err := domain.ParseWeekday(raw)
		c.Assert(err, qt.IsNil)
		c.Assert(wd.Valid(), qt.IsTrue)
	}

	_, err := domain.ParseWeekday("Monday")
	c.Assert(err, qt.IsNotNil)
	_, err = domain.ParseWeekday("someday")
	c.Assert(err, qt.IsNotNil)
}

func TestWeekdayOffsets(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		day    domain.Weekday
		offset int
	}{
		{domain.Monday, 0},
		{domain.Tuesday, 1},
		{domain.Wednesday, 2},
		{domain.Thursday, 3},
		{domain.Friday, 4},
		{domain.Saturday, 5},
		{domain.Sunday, 6},
	}
	for _, tt := range tests {
		off, ok := tt.day.Offset()
		c.Assert(ok, qt.IsTrue)
		c.Assert(off, qt.Equals, tt.offset)
	}

	_, ok := domain.Weekday("noday").Offset()
	c.Assert(ok, qt.IsFalse)
}

func TestISOWeekday(t *testing.T) {
	c := qt.New(t)

	// 2025-06-02 is a Monday.
	monday := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		day := monday.AddDate(0, 0, i)
		c.Assert(domain.ISOWeekday(day), qt.Equals, i+1)
	}
}

func TestWeekAnchor(t *testing.T) {
	c := qt.New(t)

	monday := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	// Every day of that week anchors back to the same Monday midnight,
	// including Sunday (six days back, never forward).
	for i := 0; i < 7; i++ {
		today := monday.AddDate(0, 0, i).Add(15 * time.Hour)
		c.Assert(domain.WeekAnchor(today), qt.Equals, monday,
			qt.Commentf("day offset %d", i))
	}
}

func TestWeekAnchorKeepsLocation(t *testing.T) {
	c := qt.New(t)

	loc := time.FixedZone("BRT", -3*60*60)
	today := time.Date(2025, 6, 5, 23, 30, 0, 0, loc) // Thursday
	anchor := domain.WeekAnchor(today)

	c.Assert(anchor.Location(), qt.Equals, loc)
	c.Assert(anchor.Hour(), qt.Equals, 0)
	c.Assert(anchor.Weekday(), qt.Equals, time.Monday)
}
