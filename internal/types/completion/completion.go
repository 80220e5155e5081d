package completion

import (
	"time"

	"github.com/google/uuid"
)

// Completion records that a user finished a habit or a challenge on a given
// calendar day. Exactly one of HabitID/ChallengeID is set. At most one row
// exists per (user, habit-or-challenge, day); the unique indexes in the
// schema back this up.
type Completion struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	UserID      uuid.UUID  `json:"user_id" db:"user_id"`
	HabitID     *uuid.UUID `json:"habit_id,omitempty" db:"habit_id"`
	ChallengeID *uuid.UUID `json:"challenge_id,omitempty" db:"challenge_id"`
	Date        time.Time  `json:"date" db:"date"`
	DayOfWeek   string     `json:"day_of_week" db:"day_of_week"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// WeeklyChallengeCompletion marks a day inside a weekly sub-challenge.
// Skip=true rows are backfilled absence markers created only by the
// scheduled skip job.
type WeeklyChallengeCompletion struct {
	ID                uuid.UUID `json:"id" db:"id"`
	ChallengeID       uuid.UUID `json:"challenge_id" db:"challenge_id"`
	WeeklyChallengeID uuid.UUID `json:"weekly_challenge_id" db:"weekly_challenge_id"`
	UserID            uuid.UUID `json:"user_id" db:"user_id"`
	Date              time.Time `json:"date" db:"date"`
	Skip              bool      `json:"skip" db:"skip"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}
