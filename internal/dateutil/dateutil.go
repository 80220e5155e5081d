// Package dateutil is the single home for calendar-day arithmetic. Streak
// and belt math everywhere else must go through these helpers so that the
// engine and all scheduled jobs agree on where a "day" starts for a user.
package dateutil

import "time"

// LoadLocation resolves an IANA timezone name, falling back to UTC when the
// name is empty or unknown. Users store their timezone as free text coming
// from the mobile client, so bad values must not take a request down.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DayStartIn returns midnight of t's calendar day in loc.
func DayStartIn(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// YesterdayIn returns midnight of the calendar day before t's day in loc.
func YesterdayIn(t time.Time, loc *time.Location) time.Time {
	return DayStartIn(t, loc).AddDate(0, 0, -1)
}

// DaysBetween returns the whole calendar days from a to b (b after a gives a
// positive result). Each time is read in its own location, so callers pass
// values already expressed in the user's timezone. DST shifts do not skew
// the count because the diff is taken on date components, not durations.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua) / (24 * time.Hour))
}
