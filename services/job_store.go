package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"digitalDojoAPI/internal/jobs"
	"digitalDojoAPI/internal/types/challenge"
	"digitalDojoAPI/internal/types/user"
)

// JobStore implements the storage interfaces consumed by internal/jobs.
// Kept apart from the request-path services because the jobs page through
// whole tables and bulk-write, which no handler should ever do.
type JobStore struct {
	db *pgxpool.Pool
}

func NewJobStore(db *pgxpool.Pool) *JobStore {
	return &JobStore{db: db}
}

func (s *JobStore) ListStreakUsers(ctx context.Context, cursor uuid.UUID, limit int) ([]user.User, error) {
	query := `
	SELECT id, timezone, streak, belt_progress, last_completion_date, growth_score, created_at
	FROM users
	WHERE id > $1
		AND last_completion_date IS NOT NULL
		AND streak > 0
	ORDER BY id
	LIMIT $2
	`
	return s.scanUsers(ctx, query, cursor, limit)
}

func (s *JobStore) ResetProgress(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
	UPDATE users
	SET streak = 0, belt_progress = 0, updated_at = NOW()
	WHERE id = $1 AND streak > 0
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to reset progress: %w", err)
	}
	return nil
}

func (s *JobStore) ListUsersAfter(ctx context.Context, cursor uuid.UUID, limit int) ([]user.User, error) {
	query := `
	SELECT id, timezone, streak, belt_progress, last_completion_date, growth_score, created_at
	FROM users
	WHERE id > $1
	ORDER BY id
	LIMIT $2
	`
	return s.scanUsers(ctx, query, cursor, limit)
}

func (s *JobStore) scanUsers(ctx context.Context, query string, cursor uuid.UUID, limit int) ([]user.User, error) {
	rows, err := s.db.Query(ctx, query, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Timezone, &u.Streak, &u.BeltProgress, &u.LastCompletionDate, &u.GrowthScore, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func (s *JobStore) CountCompletionDays(ctx context.Context, userID uuid.UUID, from, to time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
	SELECT COUNT(DISTINCT date)
	FROM completions
	WHERE user_id = $1 AND date >= $2 AND date <= $3
	`, userID, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count completion days: %w", err)
	}
	return count, nil
}

func (s *JobStore) UpdateGrowthScores(ctx context.Context, updates []jobs.GrowthUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin growth score batch: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(`UPDATE users SET growth_score = $2, updated_at = NOW() WHERE id = $1`, u.UserID, u.Score)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to apply growth score batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit growth score batch: %w", err)
	}

	return nil
}

func (s *JobStore) ListRunningWeeklies(ctx context.Context) ([]challenge.WeeklyChallenge, error) {
	query := `
	SELECT w.id, w.challenge_id, w.title, w.start_time, w.end_time, w.created_at
	FROM weekly_challenges w
	JOIN challenges c ON c.id = w.challenge_id
	WHERE c.status = 'RUNNING'
	ORDER BY w.start_time
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list running weeklies: %w", err)
	}
	defer rows.Close()

	var weeklies []challenge.WeeklyChallenge
	for rows.Next() {
		var w challenge.WeeklyChallenge
		if err := rows.Scan(&w.ID, &w.ChallengeID, &w.Title, &w.StartTime, &w.EndTime, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan weekly: %w", err)
		}
		weeklies = append(weeklies, w)
	}

	return weeklies, rows.Err()
}

func (s *JobStore) ListParticipants(ctx context.Context, challengeID uuid.UUID) ([]user.User, error) {
	query := `
	SELECT u.id, u.timezone, u.streak, u.belt_progress, u.last_completion_date, u.growth_score, u.created_at
	FROM users u
	JOIN challenge_participants cp ON cp.user_id = u.id
	WHERE cp.challenge_id = $1
	ORDER BY u.id
	`

	rows, err := s.db.Query(ctx, query, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Timezone, &u.Streak, &u.BeltProgress, &u.LastCompletionDate, &u.GrowthScore, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func (s *JobStore) ListWeeklyCompletionDates(ctx context.Context, weeklyID uuid.UUID, from, to time.Time) ([]jobs.UserDay, error) {
	query := `
	SELECT user_id, date
	FROM weekly_challenge_completions
	WHERE weekly_challenge_id = $1 AND skip = false AND date >= $2 AND date <= $3
	`

	rows, err := s.db.Query(ctx, query, weeklyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list weekly completions: %w", err)
	}
	defer rows.Close()

	var days []jobs.UserDay
	for rows.Next() {
		var d jobs.UserDay
		if err := rows.Scan(&d.UserID, &d.Date); err != nil {
			return nil, fmt.Errorf("failed to scan completion day: %w", err)
		}
		days = append(days, d)
	}

	return days, rows.Err()
}

func (s *JobStore) InsertSkips(ctx context.Context, skips []jobs.WeeklySkip) (int64, error) {
	if len(skips) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	query := `
	INSERT INTO weekly_challenge_completions (id, challenge_id, weekly_challenge_id, user_id, date, skip, created_at)
	VALUES ($1, $2, $3, $4, $5, true, NOW())
	ON CONFLICT (user_id, weekly_challenge_id, date) DO NOTHING
	`

	for _, sk := range skips {
		batch.Queue(query, uuid.New(), sk.ChallengeID, sk.WeeklyChallengeID, sk.UserID, sk.Date)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	var inserted int64
	for range skips {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("failed to insert skip: %w", err)
		}
		inserted += tag.RowsAffected()
	}

	return inserted, nil
}
