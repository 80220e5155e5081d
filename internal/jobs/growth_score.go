package jobs

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"digitalDojoAPI/internal/dateutil"
	"digitalDojoAPI/internal/types/user"
)

const (
	growthBatchSize  = 500
	growthWindowDays = 14
	growthWriteChunk = 100
)

// GrowthUpdate is one pending score write.
type GrowthUpdate struct {
	UserID uuid.UUID
	Score  float64
}

// GrowthStore is the slice of storage the growth-score job needs.
type GrowthStore interface {
	// ListUsersAfter pages through all users, cursored by id ascending.
	ListUsersAfter(ctx context.Context, cursor uuid.UUID, limit int) ([]user.User, error)
	// CountCompletionDays counts distinct completion dates for a user in
	// [from, to].
	CountCompletionDays(ctx context.Context, userID uuid.UUID, from, to time.Time) (int, error)
	// UpdateGrowthScores applies score writes in small transactions.
	UpdateGrowthScores(ctx context.Context, updates []GrowthUpdate) error
}

// GrowthScoreJob recomputes each user's rolling engagement score: the
// percentage of local calendar days with at least one completion inside a
// trailing window of up to 14 days, bounded by days since signup. Only
// changed scores are written.
type GrowthScoreJob struct {
	store GrowthStore
	now   func() time.Time
}

func NewGrowthScoreJob(store GrowthStore) *GrowthScoreJob {
	return &GrowthScoreJob{store: store, now: time.Now}
}

func (j *GrowthScoreJob) Run(ctx context.Context) error {
	now := j.now()
	cursor := uuid.Nil
	scanned, changed, failed := 0, 0, 0

	var pending []GrowthUpdate

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := j.store.UpdateGrowthScores(ctx, pending); err != nil {
			return fmt.Errorf("growth score: failed to write batch: %w", err)
		}
		changed += len(pending)
		pending = pending[:0]
		return nil
	}

	for {
		users, err := j.store.ListUsersAfter(ctx, cursor, growthBatchSize)
		if err != nil {
			return fmt.Errorf("growth score: failed to list users: %w", err)
		}
		if len(users) == 0 {
			break
		}

		for _, u := range users {
			scanned++

			loc := dateutil.LoadLocation(u.Timezone)
			today := dateutil.DayStartIn(now, loc)
			available := availableDays(u.CreatedAt, today, loc)
			from := today.AddDate(0, 0, -(available - 1))

			completedDays, err := j.store.CountCompletionDays(ctx, u.ID, from, today)
			if err != nil {
				log.Printf("Growth score: failed to count days for user %s: %v", u.ID, err)
				failed++
				continue
			}

			score := Score(completedDays, available)
			if score == roundScore(u.GrowthScore) {
				continue
			}

			pending = append(pending, GrowthUpdate{UserID: u.ID, Score: score})
			if len(pending) >= growthWriteChunk {
				if err := flush(); err != nil {
					return err
				}
			}
		}

		cursor = users[len(users)-1].ID
		if len(users) < growthBatchSize {
			break
		}
	}

	if err := flush(); err != nil {
		return err
	}

	log.Printf("Growth score: scanned=%d changed=%d failed=%d", scanned, changed, failed)
	return nil
}

// availableDays bounds the scoring window by how long the account has
// existed: a user who signed up 5 days ago is scored out of 5, not 14.
// Never less than 1 (the signup day itself counts).
func availableDays(signup, today time.Time, loc *time.Location) int {
	since := dateutil.DaysBetween(dateutil.DayStartIn(signup, loc), today) + 1
	if since < 1 {
		since = 1
	}
	if since > growthWindowDays {
		return growthWindowDays
	}
	return since
}

// Score is the engagement percentage with one decimal place.
func Score(completedDays, availableDays int) float64 {
	if availableDays <= 0 {
		return 0
	}
	if completedDays > availableDays {
		completedDays = availableDays
	}
	if completedDays < 0 {
		completedDays = 0
	}
	return math.Round(float64(completedDays)/float64(availableDays)*1000) / 10
}

func roundScore(s float64) float64 {
	return math.Round(s*10) / 10
}
