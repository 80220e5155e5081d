package progression

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digitalDojoAPI/internal/types/belt"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ladder(durations ...int) []belt.Belt {
	var belts []belt.Belt
	for _, d := range durations {
		belts = append(belts, belt.Belt{ID: uuid.New(), Duration: d})
	}
	return belts
}

func TestFirstCompletionAssignsLowestBelt(t *testing.T) {
	belts := ladder(3, 5)

	next, out := Advance(State{}, belts, day(2025, 4, 1), time.UTC)

	assert.True(t, out.BeltAssigned)
	assert.False(t, out.BeltAchieved)
	assert.Equal(t, 1, next.Streak)
	assert.Equal(t, 1, next.BeltProgress)
	require.NotNil(t, next.CurrentBeltID)
	assert.Equal(t, belts[0].ID, *next.CurrentBeltID)
	require.NotNil(t, next.LastCompletionDate)
	assert.Equal(t, day(2025, 4, 1), *next.LastCompletionDate)
}

func TestEmptyLadderYieldsNoResult(t *testing.T) {
	st := State{Streak: 4, BeltProgress: 2}

	next, out := Advance(st, nil, day(2025, 4, 1), time.UTC)

	assert.True(t, out.NoBelts)
	assert.Equal(t, st, next)
}

func TestSameDayIsIdempotent(t *testing.T) {
	belts := ladder(3)
	today := day(2025, 4, 1)

	first, out1 := Advance(State{}, belts, today, time.UTC)
	require.False(t, out1.SameDay)

	second, out2 := Advance(first, belts, today.Add(5*time.Hour), time.UTC)

	assert.True(t, out2.SameDay)
	assert.False(t, out2.BeltAchieved)
	assert.Equal(t, first, second)
}

func TestConsecutiveDaysGrowStreakMonotonically(t *testing.T) {
	belts := ladder(100)
	st := State{}

	for i := 0; i <= 20; i++ {
		var out Outcome
		st, out = Advance(st, belts, day(2025, 4, 1).AddDate(0, 0, i), time.UTC)
		require.False(t, out.SameDay)
		assert.Equal(t, i+1, st.Streak, "after day %d", i)
	}
}

func TestGapResetsStreakAndProgress(t *testing.T) {
	belts := ladder(30)
	last := day(2025, 4, 1)
	st := State{Streak: 9, BeltProgress: 9, CurrentBeltID: &belts[0].ID, LastCompletionDate: &last}

	next, out := Advance(st, belts, day(2025, 4, 3), time.UTC)

	assert.False(t, out.SameDay)
	assert.False(t, out.BeltAchieved)
	assert.Equal(t, 0, next.Streak)
	assert.Equal(t, 0, next.BeltProgress)
	assert.Equal(t, day(2025, 4, 3), *next.LastCompletionDate)
}

func TestBeltAchievementAdvancesToNextBelt(t *testing.T) {
	belts := ladder(3, 5)
	last := day(2025, 4, 2)
	st := State{Streak: 2, BeltProgress: 2, CurrentBeltID: &belts[0].ID, LastCompletionDate: &last}

	next, out := Advance(st, belts, day(2025, 4, 3), time.UTC)

	assert.True(t, out.BeltAchieved)
	require.NotNil(t, out.EarnedBeltID)
	assert.Equal(t, belts[0].ID, *out.EarnedBeltID)
	assert.Equal(t, 3, next.Streak)
	assert.Equal(t, 0, next.BeltProgress)
	assert.Equal(t, belts[1].ID, *next.CurrentBeltID)
}

func TestHighestBeltStaysCurrentWhenNoNextExists(t *testing.T) {
	belts := ladder(3)
	last := day(2025, 4, 2)
	st := State{Streak: 2, BeltProgress: 2, CurrentBeltID: &belts[0].ID, LastCompletionDate: &last}

	next, out := Advance(st, belts, day(2025, 4, 3), time.UTC)

	assert.True(t, out.BeltAchieved)
	assert.Equal(t, 0, next.BeltProgress)
	assert.Equal(t, belts[0].ID, *next.CurrentBeltID)

	// The day after, progress starts climbing the same belt again.
	after, out2 := Advance(next, belts, day(2025, 4, 4), time.UTC)
	assert.False(t, out2.BeltAchieved)
	assert.Equal(t, 1, after.BeltProgress)
	assert.Equal(t, belts[0].ID, *after.CurrentBeltID)
}

func TestStaleBeltReferenceRestartsOnLowestBelt(t *testing.T) {
	belts := ladder(3, 5)
	gone := uuid.New()
	last := day(2025, 4, 2)
	st := State{Streak: 6, BeltProgress: 6, CurrentBeltID: &gone, LastCompletionDate: &last}

	next, out := Advance(st, belts, day(2025, 4, 3), time.UTC)

	assert.False(t, out.BeltAchieved)
	assert.Equal(t, 1, next.BeltProgress)
	assert.Equal(t, belts[0].ID, *next.CurrentBeltID)
	assert.Equal(t, 7, next.Streak)
}

func TestTimezoneDecidesDayBoundary(t *testing.T) {
	belts := ladder(10)
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 23:00 New York on Apr 1 and 01:00 New York on Apr 2 are consecutive
	// local days even though less than 3 hours apart.
	last := time.Date(2025, 4, 1, 23, 0, 0, 0, ny)
	st := State{Streak: 1, BeltProgress: 1, CurrentBeltID: &belts[0].ID, LastCompletionDate: &last}

	next, out := Advance(st, belts, time.Date(2025, 4, 2, 1, 0, 0, 0, ny), ny)

	assert.False(t, out.SameDay)
	assert.Equal(t, 2, next.Streak)
	assert.Equal(t, 2, next.BeltProgress)
}

func TestSameDayWithStoredDateWestOfUTC(t *testing.T) {
	belts := ladder(10)
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// A DATE column scans back as midnight UTC of the stored day. A second
	// completion later that same New York day must short-circuit, not read
	// the stored day as one earlier and increment.
	last := day(2026, 8, 28)
	st := State{Streak: 5, BeltProgress: 5, CurrentBeltID: &belts[0].ID, LastCompletionDate: &last}

	next, out := Advance(st, belts, time.Date(2026, 8, 28, 15, 0, 0, 0, ny), ny)

	assert.True(t, out.SameDay)
	assert.Equal(t, 5, next.Streak)
	assert.Equal(t, st, next)
}

func TestClockSkewTreatedAsSameDay(t *testing.T) {
	belts := ladder(10)
	last := day(2025, 4, 5)
	st := State{Streak: 3, BeltProgress: 3, CurrentBeltID: &belts[0].ID, LastCompletionDate: &last}

	next, out := Advance(st, belts, day(2025, 4, 4), time.UTC)

	assert.True(t, out.SameDay)
	assert.Equal(t, st, next)
}
