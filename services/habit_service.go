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
	"digitalDojoAPI/internal/types/completion"
	"digitalDojoAPI/internal/types/habit"
)

type HabitService struct {
	db          *pgxpool.Pool
	progression *ProgressionService
}

func NewHabitService(db *pgxpool.Pool, progression *ProgressionService) *HabitService {
	return &HabitService{db: db, progression: progression}
}

func (s *HabitService) CreateHabit(ctx context.Context, userID uuid.UUID, req *habit.CreateHabitRequest) (*habit.Habit, error) {
	h := &habit.Habit{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   time.Now(),
	}

	query := `
	INSERT INTO habits (id, user_id, name, description, created_at)
	VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := s.db.Exec(ctx, query, h.ID, h.UserID, h.Name, h.Description, h.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create habit: %w", err)
	}

	return h, nil
}

func (s *HabitService) ListHabits(ctx context.Context, userID uuid.UUID) ([]*habit.Habit, error) {
	query := `
	SELECT id, user_id, name, description, created_at
	FROM habits
	WHERE user_id = $1
	ORDER BY created_at
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch habits: %w", err)
	}
	defer rows.Close()

	var habits []*habit.Habit
	for rows.Next() {
		h := &habit.Habit{}
		if err := rows.Scan(&h.ID, &h.UserID, &h.Name, &h.Description, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan habit: %w", err)
		}
		habits = append(habits, h)
	}

	if habits == nil {
		habits = []*habit.Habit{}
	}

	return habits, rows.Err()
}

func (s *HabitService) DeleteHabit(ctx context.Context, userID, habitID uuid.UUID) error {
	result, err := s.db.Exec(ctx, `DELETE FROM habits WHERE id = $1 AND user_id = $2`, habitID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete habit: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("habit not found")
	}
	return nil
}

// RecordCompletion logs a habit completion for today (in the user's
// timezone) and runs the progression engine. Logging the same habit twice
// on one day inserts nothing and the engine's same-day short-circuit keeps
// the streak untouched.
func (s *HabitService) RecordCompletion(ctx context.Context, userID, habitID uuid.UUID, now time.Time) (*ProgressionResult, error) {
	var ownerID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT user_id FROM habits WHERE id = $1`, habitID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("habit not found")
		}
		return nil, fmt.Errorf("failed to load habit: %w", err)
	}
	if ownerID != userID {
		return nil, fmt.Errorf("habit not found")
	}

	var timezone string
	if err := s.db.QueryRow(ctx, `SELECT timezone FROM users WHERE id = $1`, userID).Scan(&timezone); err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	loc := dateutil.LoadLocation(timezone)
	day := dateutil.DayStartIn(now, loc)

	insertQuery := `
	INSERT INTO completions (id, user_id, habit_id, date, day_of_week, created_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
	ON CONFLICT (user_id, habit_id, date) WHERE habit_id IS NOT NULL DO NOTHING
	`

	_, err = s.db.Exec(ctx, insertQuery, uuid.New(), userID, habitID, day, day.Weekday().String())
	if err != nil {
		return nil, fmt.Errorf("failed to record completion: %w", err)
	}

	result, err := s.progression.ProcessCompletion(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if result == nil {
		// No belts configured yet; the completion itself still counts.
		return nil, nil
	}

	return result, nil
}

// GetCalendar returns the user's completions for one month, backing the
// calendar screen. Month boundaries are taken in the user's timezone.
func (s *HabitService) GetCalendar(ctx context.Context, userID uuid.UUID, year int, month time.Month) ([]*completion.Completion, error) {
	var timezone string
	if err := s.db.QueryRow(ctx, `SELECT timezone FROM users WHERE id = $1`, userID).Scan(&timezone); err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	loc := dateutil.LoadLocation(timezone)
	from := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	to := from.AddDate(0, 1, 0)

	query := `
	SELECT id, user_id, habit_id, challenge_id, date, day_of_week, created_at
	FROM completions
	WHERE user_id = $1 AND date >= $2 AND date < $3
	ORDER BY date
	`

	rows, err := s.db.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch calendar: %w", err)
	}
	defer rows.Close()

	var completions []*completion.Completion
	for rows.Next() {
		c := &completion.Completion{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.HabitID, &c.ChallengeID, &c.Date, &c.DayOfWeek, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		completions = append(completions, c)
	}

	if completions == nil {
		completions = []*completion.Completion{}
	}

	return completions, rows.Err()
}
