package jobs

import (
	"bytes"
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digitalDojoAPI/internal/types/user"
)

type fakeStreakStore struct {
	users []user.User
	reset map[uuid.UUID]int
}

func newFakeStreakStore(users []user.User) *fakeStreakStore {
	sort.Slice(users, func(i, j int) bool {
		return bytes.Compare(users[i].ID[:], users[j].ID[:]) < 0
	})
	return &fakeStreakStore{users: users, reset: make(map[uuid.UUID]int)}
}

func (f *fakeStreakStore) ListStreakUsers(_ context.Context, cursor uuid.UUID, limit int) ([]user.User, error) {
	var out []user.User
	for _, u := range f.users {
		if bytes.Compare(u.ID[:], cursor[:]) <= 0 {
			continue
		}
		if u.LastCompletionDate == nil || u.Streak == 0 || f.reset[u.ID] > 0 {
			continue
		}
		out = append(out, u)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStreakStore) ResetProgress(_ context.Context, userID uuid.UUID) error {
	f.reset[userID]++
	return nil
}

func streakUser(tz string, streak int, lastCompletion time.Time) user.User {
	return user.User{
		ID:                 uuid.New(),
		Timezone:           tz,
		Streak:             streak,
		BeltProgress:       2,
		LastCompletionDate: &lastCompletion,
	}
}

func TestStreakResetPastGrace(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 5, 0, 0, time.UTC)
	stale := streakUser("UTC", 12, now.AddDate(0, 0, -5))

	store := newFakeStreakStore([]user.User{stale})
	job := NewStreakResetJob(store, 3)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, store.reset[stale.ID])
}

func TestStreakResetWithinGrace(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 5, 0, 0, time.UTC)
	recent := streakUser("UTC", 12, now.AddDate(0, 0, -2))
	boundary := streakUser("UTC", 4, now.AddDate(0, 0, -3))

	store := newFakeStreakStore([]user.User{recent, boundary})
	job := NewStreakResetJob(store, 3)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, store.reset, "users at or inside the grace window must be untouched")
}

func TestStreakResetUsesLocalDays(t *testing.T) {
	// 2026-03-10 01:00 UTC is still 2026-03-09 in New York, so a completion
	// on 2026-03-06 local is a gap of 3, inside the default grace.
	now := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	u := streakUser("America/New_York", 7, time.Date(2026, 3, 6, 20, 0, 0, 0, ny))

	store := newFakeStreakStore([]user.User{u})
	job := NewStreakResetJob(store, 3)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, store.reset)
}

func TestStreakResetKeepsStoredDateShapeWestOfUTC(t *testing.T) {
	// 23:00 UTC on Mar 10 is still Mar 10 in New York. The last completion
	// is midnight UTC of Mar 7, the shape a DATE column scans back as: a
	// gap of exactly 3 local days, which the default grace still covers.
	now := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	u := streakUser("America/New_York", 7, time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC))

	store := newFakeStreakStore([]user.User{u})
	job := NewStreakResetJob(store, 3)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, store.reset, "stored day must not shift back a day for negative-offset timezones")
}

func TestStreakResetPagesThroughAllUsers(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 5, 0, 0, time.UTC)

	var users []user.User
	for i := 0; i < resetBatchSize+7; i++ {
		users = append(users, streakUser("UTC", 5, now.AddDate(0, 0, -10)))
	}

	store := newFakeStreakStore(users)
	job := NewStreakResetJob(store, 3)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, store.reset, resetBatchSize+7)
}

func TestStreakResetRerunIsHarmless(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 5, 0, 0, time.UTC)
	stale := streakUser("UTC", 12, now.AddDate(0, 0, -5))

	store := newFakeStreakStore([]user.User{stale})
	job := NewStreakResetJob(store, 3)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, store.reset[stale.ID], "already-reset users fall out of the listing")
}
