package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"digitalDojoAPI/internal/dateutil"
	"digitalDojoAPI/internal/types/challenge"
	"digitalDojoAPI/internal/types/completion"
)

type ChallengeService struct {
	db          *pgxpool.Pool
	progression *ProgressionService
}

func NewChallengeService(db *pgxpool.Pool, progression *ProgressionService) *ChallengeService {
	return &ChallengeService{db: db, progression: progression}
}

func (s *ChallengeService) CreateChallenge(ctx context.Context, req *challenge.CreateChallengeRequest) (*challenge.Challenge, error) {
	if !req.EndTime.After(req.StartTime) {
		return nil, fmt.Errorf("challenge end time must be after start time")
	}

	c := &challenge.Challenge{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		Status:      challenge.StatusUpcoming,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		CreatedAt:   time.Now(),
	}
	if !c.StartTime.After(time.Now()) {
		c.Status = challenge.StatusRunning
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin challenge create: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
	INSERT INTO challenges (id, name, description, status, start_time, end_time, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := tx.Exec(ctx, query, c.ID, c.Name, c.Description, c.Status, c.StartTime, c.EndTime, c.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	weeklyQuery := `
	INSERT INTO weekly_challenges (id, challenge_id, title, start_time, end_time, created_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
	`
	for _, w := range req.Weeklies {
		if _, err := tx.Exec(ctx, weeklyQuery, uuid.New(), c.ID, w.Title, w.StartTime, w.EndTime); err != nil {
			return nil, fmt.Errorf("failed to create weekly challenge: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit challenge create: %w", err)
	}

	return c, nil
}

func (s *ChallengeService) ListChallenges(ctx context.Context, status challenge.Status) ([]*challenge.Challenge, error) {
	query := `
	SELECT id, name, description, status, start_time, end_time, created_at
	FROM challenges
	WHERE ($1 = '' OR status = $1)
	ORDER BY start_time DESC
	`

	rows, err := s.db.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch challenges: %w", err)
	}
	defer rows.Close()

	var challenges []*challenge.Challenge
	for rows.Next() {
		c := &challenge.Challenge{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Status, &c.StartTime, &c.EndTime, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		challenges = append(challenges, c)
	}

	if challenges == nil {
		challenges = []*challenge.Challenge{}
	}

	return challenges, rows.Err()
}

func (s *ChallengeService) ListWeeklies(ctx context.Context, challengeID uuid.UUID) ([]*challenge.WeeklyChallenge, error) {
	query := `
	SELECT id, challenge_id, title, start_time, end_time, created_at
	FROM weekly_challenges
	WHERE challenge_id = $1
	ORDER BY start_time
	`

	rows, err := s.db.Query(ctx, query, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch weekly challenges: %w", err)
	}
	defer rows.Close()

	var weeklies []*challenge.WeeklyChallenge
	for rows.Next() {
		w := &challenge.WeeklyChallenge{}
		if err := rows.Scan(&w.ID, &w.ChallengeID, &w.Title, &w.StartTime, &w.EndTime, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan weekly challenge: %w", err)
		}
		weeklies = append(weeklies, w)
	}

	if weeklies == nil {
		weeklies = []*challenge.WeeklyChallenge{}
	}

	return weeklies, rows.Err()
}

func (s *ChallengeService) JoinChallenge(ctx context.Context, userID, challengeID uuid.UUID) error {
	var status challenge.Status
	err := s.db.QueryRow(ctx, `SELECT status FROM challenges WHERE id = $1`, challengeID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("challenge not found")
		}
		return fmt.Errorf("failed to load challenge: %w", err)
	}
	if status == challenge.StatusEnded {
		return fmt.Errorf("challenge has already ended")
	}

	query := `
	INSERT INTO challenge_participants (id, challenge_id, user_id, joined_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (challenge_id, user_id) DO NOTHING
	`

	if _, err := s.db.Exec(ctx, query, uuid.New(), challengeID, userID); err != nil {
		return fmt.Errorf("failed to join challenge: %w", err)
	}

	return nil
}

// RecordWeeklyCompletion logs today's completion of a weekly sub-challenge
// for a participant and runs the progression engine. The weekly must be
// inside its active window in the user's timezone.
func (s *ChallengeService) RecordWeeklyCompletion(ctx context.Context, userID, challengeID, weeklyID uuid.UUID, now time.Time) (*ProgressionResult, error) {
	var w challenge.WeeklyChallenge
	err := s.db.QueryRow(ctx,
		`SELECT id, challenge_id, start_time, end_time FROM weekly_challenges WHERE id = $1 AND challenge_id = $2`,
		weeklyID, challengeID,
	).Scan(&w.ID, &w.ChallengeID, &w.StartTime, &w.EndTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("weekly challenge not found")
		}
		return nil, fmt.Errorf("failed to load weekly challenge: %w", err)
	}

	var joined bool
	err = s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM challenge_participants WHERE challenge_id = $1 AND user_id = $2)`,
		challengeID, userID,
	).Scan(&joined)
	if err != nil {
		return nil, fmt.Errorf("failed to check participation: %w", err)
	}
	if !joined {
		return nil, fmt.Errorf("user has not joined this challenge")
	}

	var timezone string
	if err := s.db.QueryRow(ctx, `SELECT timezone FROM users WHERE id = $1`, userID).Scan(&timezone); err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	loc := dateutil.LoadLocation(timezone)
	day := dateutil.DayStartIn(now, loc)

	if now.Before(w.StartTime) || !now.Before(w.EndTime) {
		return nil, fmt.Errorf("weekly challenge is not active")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin weekly completion: %w", err)
	}
	defer tx.Rollback(ctx)

	weeklyInsert := `
	INSERT INTO weekly_challenge_completions (id, challenge_id, weekly_challenge_id, user_id, date, skip, created_at)
	VALUES ($1, $2, $3, $4, $5, false, NOW())
	ON CONFLICT (user_id, weekly_challenge_id, date) DO NOTHING
	`
	if _, err := tx.Exec(ctx, weeklyInsert, uuid.New(), challengeID, weeklyID, userID, day); err != nil {
		return nil, fmt.Errorf("failed to record weekly completion: %w", err)
	}

	completionInsert := `
	INSERT INTO completions (id, user_id, challenge_id, date, day_of_week, created_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
	ON CONFLICT (user_id, challenge_id, date) WHERE challenge_id IS NOT NULL DO NOTHING
	`
	if _, err := tx.Exec(ctx, completionInsert, uuid.New(), userID, challengeID, day, day.Weekday().String()); err != nil {
		return nil, fmt.Errorf("failed to record completion: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit weekly completion: %w", err)
	}

	return s.progression.ProcessCompletion(ctx, userID, now)
}

// ListWeeklyCompletions returns the user's per-day record for one weekly,
// including the skip markers backfilled by the nightly job.
func (s *ChallengeService) ListWeeklyCompletions(ctx context.Context, userID, weeklyID uuid.UUID) ([]*completion.WeeklyChallengeCompletion, error) {
	query := `
	SELECT id, challenge_id, weekly_challenge_id, user_id, date, skip, created_at
	FROM weekly_challenge_completions
	WHERE user_id = $1 AND weekly_challenge_id = $2
	ORDER BY date
	`

	rows, err := s.db.Query(ctx, query, userID, weeklyID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch weekly completions: %w", err)
	}
	defer rows.Close()

	var completions []*completion.WeeklyChallengeCompletion
	for rows.Next() {
		c := &completion.WeeklyChallengeCompletion{}
		if err := rows.Scan(&c.ID, &c.ChallengeID, &c.WeeklyChallengeID, &c.UserID, &c.Date, &c.Skip, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan weekly completion: %w", err)
		}
		completions = append(completions, c)
	}

	if completions == nil {
		completions = []*completion.WeeklyChallengeCompletion{}
	}

	return completions, rows.Err()
}

// RefreshStatuses moves challenges between UPCOMING/RUNNING/ENDED based on
// their windows. Called opportunistically; cheap enough to run often.
func (s *ChallengeService) RefreshStatuses(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
	UPDATE challenges
	SET status = CASE
		WHEN NOW() >= end_time THEN 'ENDED'
		WHEN NOW() >= start_time THEN 'RUNNING'
		ELSE 'UPCOMING'
	END
	WHERE status != CASE
		WHEN NOW() >= end_time THEN 'ENDED'
		WHEN NOW() >= start_time THEN 'RUNNING'
		ELSE 'UPCOMING'
	END
	`)
	if err != nil {
		return fmt.Errorf("failed to refresh challenge statuses: %w", err)
	}
	return nil
}
