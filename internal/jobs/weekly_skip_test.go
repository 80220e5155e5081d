package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digitalDojoAPI/internal/types/challenge"
	"digitalDojoAPI/internal/types/user"
)

type fakeSkipStore struct {
	weeklies     []challenge.WeeklyChallenge
	participants map[uuid.UUID][]user.User
	completed    map[string]bool
	stored       map[string]WeeklySkip
}

func newFakeSkipStore() *fakeSkipStore {
	return &fakeSkipStore{
		participants: make(map[uuid.UUID][]user.User),
		completed:    make(map[string]bool),
		stored:       make(map[string]WeeklySkip),
	}
}

func (f *fakeSkipStore) ListRunningWeeklies(_ context.Context) ([]challenge.WeeklyChallenge, error) {
	return f.weeklies, nil
}

func (f *fakeSkipStore) ListParticipants(_ context.Context, challengeID uuid.UUID) ([]user.User, error) {
	return f.participants[challengeID], nil
}

func (f *fakeSkipStore) ListWeeklyCompletionDates(_ context.Context, weeklyID uuid.UUID, from, to time.Time) ([]UserDay, error) {
	var out []UserDay
	for key := range f.completed {
		var userID uuid.UUID
		var day time.Time
		userID, day = parseFakeKey(key)
		if !day.Before(from) && !day.After(to) {
			out = append(out, UserDay{UserID: userID, Date: day})
		}
	}
	return out, nil
}

func (f *fakeSkipStore) InsertSkips(_ context.Context, skips []WeeklySkip) (int64, error) {
	var inserted int64
	for _, s := range skips {
		key := s.UserID.String() + "|" + s.WeeklyChallengeID.String() + "|" + s.Date.Format("2006-01-02")
		if _, dup := f.stored[key]; dup {
			continue
		}
		f.stored[key] = s
		inserted++
	}
	return inserted, nil
}

func (f *fakeSkipStore) markCompleted(userID uuid.UUID, day time.Time) {
	f.completed[userID.String()+"|"+day.Format("2006-01-02")] = true
}

func parseFakeKey(key string) (uuid.UUID, time.Time) {
	userID := uuid.MustParse(key[:36])
	day, _ := time.Parse("2006-01-02", key[37:])
	return userID, day
}

func skipFixture(tz string) (*fakeSkipStore, challenge.WeeklyChallenge, user.User) {
	store := newFakeSkipStore()

	weekly := challenge.WeeklyChallenge{
		ID:          uuid.New(),
		ChallengeID: uuid.New(),
		Title:       "Cold showers",
		StartTime:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
	}
	store.weeklies = []challenge.WeeklyChallenge{weekly}

	participant := user.User{ID: uuid.New(), Timezone: tz}
	store.participants[weekly.ChallengeID] = []user.User{participant}

	return store, weekly, participant
}

func TestWeeklySkipBackfillsMissedDay(t *testing.T) {
	store, weekly, participant := skipFixture("UTC")
	now := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)

	job := NewWeeklySkipJob(store)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))

	require.Len(t, store.stored, 1)
	for _, s := range store.stored {
		assert.Equal(t, participant.ID, s.UserID)
		assert.Equal(t, weekly.ID, s.WeeklyChallengeID)
		assert.Equal(t, weekly.ChallengeID, s.ChallengeID)
		assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), s.Date.UTC())
	}
}

func TestWeeklySkipHonorsGenuineCompletion(t *testing.T) {
	store, _, participant := skipFixture("UTC")
	now := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	store.markCompleted(participant.ID, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC))

	job := NewWeeklySkipJob(store)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, store.stored)
}

func TestWeeklySkipRerunInsertsNothingNew(t *testing.T) {
	store, _, _ := skipFixture("UTC")
	now := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)

	job := NewWeeklySkipJob(store)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, store.stored, 1)
}

func TestWeeklySkipDefersEarlyLocalMorning(t *testing.T) {
	// 06:30 UTC is 01:30 in New York: too early to judge yesterday.
	store, _, _ := skipFixture("America/New_York")
	now := time.Date(2026, 1, 15, 6, 30, 0, 0, time.UTC)

	job := NewWeeklySkipJob(store)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, store.stored)
}

func TestWeeklySkipHourlyRunsReachDeferredTimezones(t *testing.T) {
	// Cape Verde is UTC-1 year round: at 02:30 UTC the local clock reads
	// 01:30 and the user is deferred. The next hourly run lands at 02:30
	// local and must backfill the missed day.
	store, weekly, participant := skipFixture("Atlantic/Cape_Verde")

	job := NewWeeklySkipJob(store)
	job.now = func() time.Time { return time.Date(2026, 3, 10, 2, 30, 0, 0, time.UTC) }
	require.NoError(t, job.Run(context.Background()))
	require.Empty(t, store.stored)

	job.now = func() time.Time { return time.Date(2026, 3, 10, 3, 30, 0, 0, time.UTC) }
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, store.stored, 1)
	for _, s := range store.stored {
		assert.Equal(t, participant.ID, s.UserID)
		assert.Equal(t, weekly.ID, s.WeeklyChallengeID)
		assert.Equal(t, "2026-03-09", s.Date.Format("2006-01-02"))
		_, offset := s.Date.Zone()
		assert.Equal(t, -3600, offset, "skip day is the user's local midnight")
	}
}

func TestWeeklySkipIgnoresEndedWindow(t *testing.T) {
	store, _, _ := skipFixture("UTC")
	// Two days after the weekly's end: yesterday is outside the window.
	now := time.Date(2026, 3, 18, 3, 0, 0, 0, time.UTC)

	job := NewWeeklySkipJob(store)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, store.stored)
}

func TestWeeklySkipIgnoresNotYetStartedWindow(t *testing.T) {
	store, _, _ := skipFixture("UTC")
	// Yesterday predates the weekly's start.
	now := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)

	job := NewWeeklySkipJob(store)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, store.stored)
}

func TestWindowActive(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)

	assert.True(t, windowActive(start, end, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)))

	// The first day of the window counts.
	assert.True(t, windowActive(start, end, start))

	// Yesterday exactly at the end boundary is no longer inside.
	assert.False(t, windowActive(start, end, end))

	// The weekly starting today means yesterday was before the window.
	assert.False(t, windowActive(start, end, start.AddDate(0, 0, -1)))
}
