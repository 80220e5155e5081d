// Package progression holds the streak/belt state machine. It is pure: the
// service layer loads state and the belt ladder, calls Advance, and persists
// whatever comes back. All streak transitions must go through Advance; there
// is no second copy of the reset policy anywhere else.
package progression

import (
	"time"

	"github.com/google/uuid"

	"digitalDojoAPI/internal/dateutil"
	"digitalDojoAPI/internal/types/belt"
)

// State is the persisted per-user progression record.
type State struct {
	Streak             int
	BeltProgress       int
	CurrentBeltID      *uuid.UUID
	LastCompletionDate *time.Time
}

// Outcome describes what a single Advance call decided, so the caller knows
// which writes to perform.
type Outcome struct {
	// SameDay means the user already completed something today; state is
	// returned unchanged and nothing should be written.
	SameDay bool
	// NoBelts means the ladder is empty; there is nothing to progress
	// against and the operation yields no result.
	NoBelts bool
	// BeltAssigned means the user had no current belt and was put on the
	// lowest-duration one.
	BeltAssigned bool
	// BeltAchieved means BeltProgress reached the current belt's duration.
	// EarnedBeltID is the belt that was just completed; the state's
	// CurrentBeltID already points at the next target (or stays on the
	// highest belt when there is no next one).
	BeltAchieved bool
	EarnedBeltID *uuid.UUID
}

// Advance computes the next progression state for a completion happening at
// "today". The ladder must be sorted by duration ascending. Streak policy:
// first-ever completion starts at 1, a consecutive day increments, a gap of
// more than one day resets streak and belt progress to 0.
func Advance(st State, ladder []belt.Belt, today time.Time, loc *time.Location) (State, Outcome) {
	var out Outcome

	if len(ladder) == 0 {
		out.NoBelts = true
		return st, out
	}

	day := dateutil.DayStartIn(today, loc)
	next := st

	if st.LastCompletionDate == nil {
		next.Streak = 1
		next.BeltProgress = 1
	} else {
		// LastCompletionDate comes out of a DATE column as midnight UTC of
		// the stored day. Converting it into loc would shift the day for
		// any timezone west of UTC, so the diff reads each operand's own
		// date components instead.
		gap := dateutil.DaysBetween(*st.LastCompletionDate, day)
		switch {
		case gap <= 0:
			// gap == 0 is the same-day idempotence guarantee; negative
			// gaps only happen on clock skew and get the same treatment.
			out.SameDay = true
			return st, out
		case gap == 1:
			next.Streak++
			next.BeltProgress++
		default:
			next.Streak = 0
			next.BeltProgress = 0
		}
	}
	next.LastCompletionDate = &day

	cur := findBelt(ladder, st.CurrentBeltID)
	if cur == nil {
		if st.CurrentBeltID == nil {
			// Fresh progression: target the lowest belt.
			first := ladder[0]
			next.CurrentBeltID = &first.ID
			out.BeltAssigned = true
			return next, out
		}
		// Stale reference (current belt no longer in the ladder): restart
		// progress against the lowest belt.
		first := ladder[0]
		next.CurrentBeltID = &first.ID
		next.BeltProgress = 1
		return next, out
	}

	if next.BeltProgress >= cur.Duration {
		out.BeltAchieved = true
		earned := cur.ID
		out.EarnedBeltID = &earned
		next.BeltProgress = 0
		if nb := nextBelt(ladder, cur.Duration); nb != nil {
			next.CurrentBeltID = &nb.ID
		}
		// No higher belt: stay on the current (highest) one.
	}

	return next, out
}

func findBelt(ladder []belt.Belt, id *uuid.UUID) *belt.Belt {
	if id == nil {
		return nil
	}
	for i := range ladder {
		if ladder[i].ID == *id {
			return &ladder[i]
		}
	}
	return nil
}

func nextBelt(ladder []belt.Belt, duration int) *belt.Belt {
	for i := range ladder {
		if ladder[i].Duration > duration {
			return &ladder[i]
		}
	}
	return nil
}
