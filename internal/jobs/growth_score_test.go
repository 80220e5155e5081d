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

type fakeGrowthStore struct {
	users         []user.User
	completedDays map[uuid.UUID]int
	written       map[uuid.UUID]float64
	writeCalls    int
}

func newFakeGrowthStore(users []user.User) *fakeGrowthStore {
	sort.Slice(users, func(i, j int) bool {
		return bytes.Compare(users[i].ID[:], users[j].ID[:]) < 0
	})
	return &fakeGrowthStore{
		users:         users,
		completedDays: make(map[uuid.UUID]int),
		written:       make(map[uuid.UUID]float64),
	}
}

func (f *fakeGrowthStore) ListUsersAfter(_ context.Context, cursor uuid.UUID, limit int) ([]user.User, error) {
	var out []user.User
	for _, u := range f.users {
		if bytes.Compare(u.ID[:], cursor[:]) <= 0 {
			continue
		}
		out = append(out, u)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeGrowthStore) CountCompletionDays(_ context.Context, userID uuid.UUID, _, _ time.Time) (int, error) {
	return f.completedDays[userID], nil
}

func (f *fakeGrowthStore) UpdateGrowthScores(_ context.Context, updates []GrowthUpdate) error {
	f.writeCalls++
	for _, u := range updates {
		f.written[u.UserID] = u.Score
	}
	return nil
}

func growthUser(created time.Time, storedScore float64) user.User {
	return user.User{
		ID:          uuid.New(),
		Timezone:    "UTC",
		GrowthScore: storedScore,
		CreatedAt:   created,
	}
}

func TestGrowthScoreFullWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	u := growthUser(now.AddDate(0, 0, -30), 0)

	store := newFakeGrowthStore([]user.User{u})
	store.completedDays[u.ID] = 7

	job := NewGrowthScoreJob(store)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.InDelta(t, 50.0, store.written[u.ID], 0.001)
}

func TestGrowthScoreYoungAccountUsesShorterWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	// Signed up 4 days ago: 5 scorable days including the signup day.
	u := growthUser(now.AddDate(0, 0, -4), 0)

	store := newFakeGrowthStore([]user.User{u})
	store.completedDays[u.ID] = 2

	job := NewGrowthScoreJob(store)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.InDelta(t, 40.0, store.written[u.ID], 0.001)
}

func TestGrowthScoreSkipsUnchangedScores(t *testing.T) {
	now := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	u := growthUser(now.AddDate(0, 0, -30), 50.0)

	store := newFakeGrowthStore([]user.User{u})
	store.completedDays[u.ID] = 7

	job := NewGrowthScoreJob(store)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Zero(t, store.writeCalls, "unchanged scores must not be rewritten")
}

func TestGrowthScorePagesAndChunksWrites(t *testing.T) {
	now := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)

	var users []user.User
	for i := 0; i < growthBatchSize+3; i++ {
		users = append(users, growthUser(now.AddDate(0, 0, -30), 0))
	}

	store := newFakeGrowthStore(users)
	for _, u := range store.users {
		store.completedDays[u.ID] = 14
	}

	job := NewGrowthScoreJob(store)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, store.written, growthBatchSize+3)
	assert.GreaterOrEqual(t, store.writeCalls, (growthBatchSize+3)/growthWriteChunk)
}

func TestAvailableDaysBounds(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, availableDays(today, today, time.UTC))
	assert.Equal(t, 5, availableDays(today.AddDate(0, 0, -4), today, time.UTC))
	assert.Equal(t, growthWindowDays, availableDays(today.AddDate(0, 0, -100), today, time.UTC))

	// A signup timestamp slightly in the future (clock skew) still yields
	// a valid one-day window.
	assert.Equal(t, 1, availableDays(today.AddDate(0, 0, 1), today, time.UTC))
}

func TestScore(t *testing.T) {
	assert.Equal(t, 0.0, Score(0, 14))
	assert.Equal(t, 100.0, Score(14, 14))
	assert.Equal(t, 50.0, Score(7, 14))
	assert.InDelta(t, 35.7, Score(5, 14), 0.001)

	// Clamping: more completions than scorable days caps at 100, and a
	// degenerate denominator scores zero.
	assert.Equal(t, 100.0, Score(20, 14))
	assert.Equal(t, 0.0, Score(3, 0))
	assert.Equal(t, 0.0, Score(-1, 14))
}
