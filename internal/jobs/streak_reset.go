package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"digitalDojoAPI/internal/dateutil"
	"digitalDojoAPI/internal/types/user"
)

const resetBatchSize = 500

// StreakStore is the slice of storage the reset job needs.
type StreakStore interface {
	// ListStreakUsers pages through users with a live streak and a known
	// last completion date, cursored by id ascending.
	ListStreakUsers(ctx context.Context, cursor uuid.UUID, limit int) ([]user.User, error)
	// ResetProgress zeroes streak and belt progress for one user. Must be
	// a no-op when the streak is already zero.
	ResetProgress(ctx context.Context, userID uuid.UUID) error
}

// StreakResetJob zeroes out streaks for users who have been silent longer
// than the grace threshold. Runs nightly; re-running is harmless because
// already-reset users fall out of the listing.
type StreakResetJob struct {
	store     StreakStore
	graceDays int
	now       func() time.Time
}

func NewStreakResetJob(store StreakStore, graceDays int) *StreakResetJob {
	if graceDays <= 0 {
		graceDays = 3
	}
	return &StreakResetJob{store: store, graceDays: graceDays, now: time.Now}
}

func (j *StreakResetJob) Run(ctx context.Context) error {
	now := j.now()
	cursor := uuid.Nil
	scanned, reset, failed := 0, 0, 0

	for {
		users, err := j.store.ListStreakUsers(ctx, cursor, resetBatchSize)
		if err != nil {
			return fmt.Errorf("streak reset: failed to list users: %w", err)
		}
		if len(users) == 0 {
			break
		}

		for _, u := range users {
			scanned++
			if u.LastCompletionDate == nil || u.Streak == 0 {
				continue
			}

			// last_completion_date scans back as midnight UTC of the stored
			// day; its date components are the calendar day as-is, so only
			// "now" gets localized.
			loc := dateutil.LoadLocation(u.Timezone)
			gap := dateutil.DaysBetween(*u.LastCompletionDate, dateutil.DayStartIn(now, loc))
			if gap <= j.graceDays {
				continue
			}

			if err := j.store.ResetProgress(ctx, u.ID); err != nil {
				log.Printf("Streak reset: failed for user %s: %v", u.ID, err)
				failed++
				continue
			}
			reset++
		}

		cursor = users[len(users)-1].ID
		if len(users) < resetBatchSize {
			break
		}
	}

	log.Printf("Streak reset: scanned=%d reset=%d failed=%d grace=%dd", scanned, reset, failed, j.graceDays)
	return nil
}
