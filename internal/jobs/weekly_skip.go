package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"digitalDojoAPI/internal/dateutil"
	"digitalDojoAPI/internal/types/challenge"
	"digitalDojoAPI/internal/types/user"
)

const skipInsertChunk = 200

// minLocalHour guards against marking a day as missed while users in that
// timezone could still plausibly be logging late completions around the
// job's physical run time.
const minLocalHour = 2

// UserDay identifies a genuine completion of a weekly sub-challenge on a
// local calendar day.
type UserDay struct {
	UserID uuid.UUID
	Date   time.Time
}

// WeeklySkip is one backfilled absence marker to insert.
type WeeklySkip struct {
	ChallengeID       uuid.UUID
	WeeklyChallengeID uuid.UUID
	UserID            uuid.UUID
	Date              time.Time
}

// SkipStore is the slice of storage the skip job needs.
type SkipStore interface {
	// ListRunningWeeklies returns every weekly sub-challenge whose parent
	// challenge is RUNNING.
	ListRunningWeeklies(ctx context.Context) ([]challenge.WeeklyChallenge, error)
	// ListParticipants returns id and timezone for everyone in a challenge.
	ListParticipants(ctx context.Context, challengeID uuid.UUID) ([]user.User, error)
	// ListWeeklyCompletionDates returns genuine (skip=false) completion
	// days for a weekly within [from, to].
	ListWeeklyCompletionDates(ctx context.Context, weeklyID uuid.UUID, from, to time.Time) ([]UserDay, error)
	// InsertSkips bulk-inserts skip markers, silently dropping duplicates.
	InsertSkips(ctx context.Context, skips []WeeklySkip) (int64, error)
}

// WeeklySkipJob backfills skip=true markers for weekly sub-challenges that
// users ignored "yesterday", where yesterday is computed in each user's own
// timezone. The trigger fires hourly; users still before minLocalHour are
// deferred and picked up by a later run of the same UTC day. Duplicate-safe
// end to end: the existence scan filters genuine completions and the insert
// skips conflicts.
type WeeklySkipJob struct {
	store SkipStore
	now   func() time.Time
}

func NewWeeklySkipJob(store SkipStore) *WeeklySkipJob {
	return &WeeklySkipJob{store: store, now: time.Now}
}

func (j *WeeklySkipJob) Run(ctx context.Context) error {
	now := j.now()

	weeklies, err := j.store.ListRunningWeeklies(ctx)
	if err != nil {
		return fmt.Errorf("weekly skip: failed to list running weeklies: %w", err)
	}

	var pending []WeeklySkip
	inserted := int64(0)
	deferred := 0

	for _, w := range weeklies {
		participants, err := j.store.ListParticipants(ctx, w.ChallengeID)
		if err != nil {
			log.Printf("Weekly skip: failed to list participants for challenge %s: %v", w.ChallengeID, err)
			continue
		}
		if len(participants) == 0 {
			continue
		}

		// Local yesterdays differ per timezone; fetch completions for the
		// widest possible range once per weekly instead of per user.
		from := dateutil.YesterdayIn(now, time.UTC).AddDate(0, 0, -1)
		to := dateutil.DayStartIn(now, time.UTC).AddDate(0, 0, 1)
		completed, err := j.store.ListWeeklyCompletionDates(ctx, w.ID, from, to)
		if err != nil {
			log.Printf("Weekly skip: failed to list completions for weekly %s: %v", w.ID, err)
			continue
		}
		done := make(map[string]bool, len(completed))
		for _, c := range completed {
			done[completionKey(c.UserID, c.Date)] = true
		}

		for _, p := range participants {
			loc := dateutil.LoadLocation(p.Timezone)
			localNow := now.In(loc)
			if localNow.Hour() < minLocalHour {
				deferred++
				continue
			}

			todayStart := dateutil.DayStartIn(localNow, loc)
			yesterdayStart := todayStart.AddDate(0, 0, -1)

			if !windowActive(w.StartTime, w.EndTime, yesterdayStart) {
				continue
			}
			if done[completionKey(p.ID, yesterdayStart)] {
				continue
			}

			pending = append(pending, WeeklySkip{
				ChallengeID:       w.ChallengeID,
				WeeklyChallengeID: w.ID,
				UserID:            p.ID,
				Date:              yesterdayStart,
			})

			if len(pending) >= skipInsertChunk {
				n, err := j.store.InsertSkips(ctx, pending)
				if err != nil {
					return fmt.Errorf("weekly skip: bulk insert failed: %w", err)
				}
				inserted += n
				pending = pending[:0]
			}
		}
	}

	if len(pending) > 0 {
		n, err := j.store.InsertSkips(ctx, pending)
		if err != nil {
			return fmt.Errorf("weekly skip: bulk insert failed: %w", err)
		}
		inserted += n
	}

	log.Printf("Weekly skip: weeklies=%d inserted=%d deferred=%d", len(weeklies), inserted, deferred)
	return nil
}

// windowActive reports whether yesterday (local) fell inside the weekly's
// [start, end) window. A weekly that only started today cannot have been
// skipped yesterday.
func windowActive(start, end, yesterdayStart time.Time) bool {
	return !start.After(yesterdayStart) && end.After(yesterdayStart)
}

func completionKey(userID uuid.UUID, day time.Time) string {
	return userID.String() + "|" + day.Format("2006-01-02")
}
