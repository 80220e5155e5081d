package challenge

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusUpcoming Status = "UPCOMING"
	StatusRunning  Status = "RUNNING"
	StatusEnded    Status = "ENDED"
)

type Challenge struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Status      Status    `json:"status" db:"status"`
	StartTime   time.Time `json:"start_time" db:"start_time"`
	EndTime     time.Time `json:"end_time" db:"end_time"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// WeeklyChallenge is a time-boxed sub-challenge inside a Challenge. Users
// either complete it within [StartTime, EndTime) or the skip job backfills
// a skip marker for each missed local day.
type WeeklyChallenge struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ChallengeID uuid.UUID `json:"challenge_id" db:"challenge_id"`
	Title       string    `json:"title" db:"title"`
	StartTime   time.Time `json:"start_time" db:"start_time"`
	EndTime     time.Time `json:"end_time" db:"end_time"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type CreateChallengeRequest struct {
	Name        string                       `json:"name"`
	Description string                       `json:"description"`
	StartTime   time.Time                    `json:"start_time"`
	EndTime     time.Time                    `json:"end_time"`
	Weeklies    []CreateWeeklyChallengeEntry `json:"weeklies"`
}

type CreateWeeklyChallengeEntry struct {
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}
