package dateutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, LoadLocation(""))
	assert.Equal(t, time.UTC, LoadLocation("Not/AZone"))

	sofia := LoadLocation("Europe/Sofia")
	assert.Equal(t, "Europe/Sofia", sofia.String())
}

func TestDayStartIn(t *testing.T) {
	loc := LoadLocation("America/New_York")

	// 01:30 UTC on Jan 2 is still Jan 1 in New York.
	instant := time.Date(2025, 1, 2, 1, 30, 0, 0, time.UTC)
	start := DayStartIn(instant, loc)

	assert.Equal(t, 2025, start.Year())
	assert.Equal(t, time.January, start.Month())
	assert.Equal(t, 1, start.Day())
	assert.Equal(t, 0, start.Hour())
	assert.Equal(t, loc, start.Location())
}

func TestYesterdayIn(t *testing.T) {
	loc := time.UTC
	instant := time.Date(2025, 3, 1, 10, 0, 0, 0, loc)

	y := YesterdayIn(instant, loc)
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, loc), y)
}

func TestDaysBetween(t *testing.T) {
	d := func(y int, m time.Month, day int) time.Time {
		return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	}

	assert.Equal(t, 0, DaysBetween(d(2025, 1, 1), d(2025, 1, 1)))
	assert.Equal(t, 1, DaysBetween(d(2025, 1, 1), d(2025, 1, 2)))
	assert.Equal(t, -1, DaysBetween(d(2025, 1, 2), d(2025, 1, 1)))
	assert.Equal(t, 31, DaysBetween(d(2025, 1, 1), d(2025, 2, 1)))
	// Across a leap day.
	assert.Equal(t, 2, DaysBetween(d(2024, 2, 28), d(2024, 3, 1)))
}

func TestDaysBetweenIgnoresTimeOfDay(t *testing.T) {
	a := time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)
	b := time.Date(2025, 6, 2, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysBetween(a, b))
}

func TestDaysBetweenAcrossDSTChange(t *testing.T) {
	loc := LoadLocation("America/New_York")
	// US spring forward 2025-03-09: the day is only 23 hours long.
	a := DayStartIn(time.Date(2025, 3, 8, 12, 0, 0, 0, loc), loc)
	b := DayStartIn(time.Date(2025, 3, 10, 12, 0, 0, 0, loc), loc)
	assert.Equal(t, 2, DaysBetween(a, b))
}
