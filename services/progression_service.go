package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"digitalDojoAPI/internal/dateutil"
	"digitalDojoAPI/internal/progression"
	"digitalDojoAPI/internal/types/belt"
	"digitalDojoAPI/internal/types/notification"
)

// ProgressionResult is what the completion-recording flow hands back to the
// client: the updated streak, progress toward the current belt and whether a
// belt was just earned.
type ProgressionResult struct {
	Streak             int        `json:"streak"`
	BeltProgress       int        `json:"belt_progress"`
	LastCompletionDate time.Time  `json:"last_completion_date"`
	CurrentBelt        *belt.Belt `json:"current_belt"`
	BeltAchieved       bool       `json:"belt_achieved"`
}

type ProgressionService struct {
	db            *pgxpool.Pool
	notifications *NotificationService
}

func NewProgressionService(db *pgxpool.Pool, notifications *NotificationService) *ProgressionService {
	return &ProgressionService{db: db, notifications: notifications}
}

// ProcessCompletion advances the user's streak/belt state for a completion
// happening at "today". Returns (nil, nil) when the user does not exist or
// no belts are configured; both mean "nothing to do", not an error. All
// writes for one invocation are committed together, so callers never
// observe a half-applied transition.
func (s *ProgressionService) ProcessCompletion(ctx context.Context, userID uuid.UUID, today time.Time) (*ProgressionResult, error) {
	var (
		st       progression.State
		timezone string
	)

	query := `
	SELECT timezone, streak, belt_progress, current_belt_id, last_completion_date
	FROM users
	WHERE id = $1
	`

	err := s.db.QueryRow(ctx, query, userID).Scan(
		&timezone,
		&st.Streak,
		&st.BeltProgress,
		&st.CurrentBeltID,
		&st.LastCompletionDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load user progression: %w", err)
	}

	ladder, err := s.loadLadder(ctx)
	if err != nil {
		return nil, err
	}

	loc := dateutil.LoadLocation(timezone)
	next, out := progression.Advance(st, ladder, today, loc)

	if out.NoBelts {
		return nil, nil
	}

	currentBelt := beltByID(ladder, next.CurrentBeltID)

	if out.SameDay {
		return &ProgressionResult{
			Streak:             st.Streak,
			BeltProgress:       st.BeltProgress,
			LastCompletionDate: *st.LastCompletionDate,
			CurrentBelt:        currentBelt,
			BeltAchieved:       false,
		}, nil
	}

	if err := s.persist(ctx, userID, next, out); err != nil {
		return nil, err
	}

	if out.BeltAchieved && out.EarnedBeltID != nil {
		s.notifyBeltEarned(userID, beltByID(ladder, out.EarnedBeltID))
	}

	return &ProgressionResult{
		Streak:             next.Streak,
		BeltProgress:       next.BeltProgress,
		LastCompletionDate: *next.LastCompletionDate,
		CurrentBelt:        currentBelt,
		BeltAchieved:       out.BeltAchieved,
	}, nil
}

// persist applies the state transition and the earned-belt record in a
// single transaction. The unique index on (user_id, belt_id) makes the
// earned-belt insert safe under concurrent same-user requests.
func (s *ProgressionService) persist(ctx context.Context, userID uuid.UUID, next progression.State, out progression.Outcome) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin progression update: %w", err)
	}
	defer tx.Rollback(ctx)

	if out.BeltAchieved && out.EarnedBeltID != nil {
		earnQuery := `
		INSERT INTO earned_belts (id, user_id, belt_id, earned_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, belt_id) DO NOTHING
		`
		if _, err := tx.Exec(ctx, earnQuery, uuid.New(), userID, *out.EarnedBeltID); err != nil {
			return fmt.Errorf("failed to record earned belt: %w", err)
		}
	}

	updateQuery := `
	UPDATE users
	SET streak = $2,
		belt_progress = $3,
		current_belt_id = $4,
		last_completion_date = $5,
		updated_at = NOW()
	WHERE id = $1
	`
	if _, err := tx.Exec(ctx, updateQuery, userID, next.Streak, next.BeltProgress, next.CurrentBeltID, next.LastCompletionDate); err != nil {
		return fmt.Errorf("failed to update progression: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit progression update: %w", err)
	}

	return nil
}

func (s *ProgressionService) notifyBeltEarned(userID uuid.UUID, earned *belt.Belt) {
	if s.notifications == nil || earned == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req := &notification.CreateNotificationRequest{
		UserID: userID,
		Type:   notification.TypeBeltEarned,
		Title:  "New belt earned!",
		Body:   fmt.Sprintf("You reached the %s belt. Keep the streak going!", earned.Name),
		Data: map[string]any{
			"belt_id":   earned.ID.String(),
			"belt_name": earned.Name,
		},
	}

	if _, err := s.notifications.CreateNotification(ctx, req); err != nil {
		log.Printf("ProcessCompletion: failed to create belt notification for user %s: %v", userID, err)
	}
}

// GetProgression is the read side for the mobile client's streak screen.
func (s *ProgressionService) GetProgression(ctx context.Context, userID uuid.UUID) (*ProgressionResult, error) {
	var (
		st       progression.State
		timezone string
	)

	query := `
	SELECT timezone, streak, belt_progress, current_belt_id, last_completion_date
	FROM users
	WHERE id = $1
	`

	err := s.db.QueryRow(ctx, query, userID).Scan(
		&timezone,
		&st.Streak,
		&st.BeltProgress,
		&st.CurrentBeltID,
		&st.LastCompletionDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to load progression: %w", err)
	}

	result := &ProgressionResult{
		Streak:       st.Streak,
		BeltProgress: st.BeltProgress,
	}
	if st.LastCompletionDate != nil {
		result.LastCompletionDate = *st.LastCompletionDate
	}

	if st.CurrentBeltID != nil {
		b := &belt.Belt{}
		beltQuery := `SELECT id, name, duration, image_url, created_at FROM belts WHERE id = $1`
		err = s.db.QueryRow(ctx, beltQuery, *st.CurrentBeltID).Scan(&b.ID, &b.Name, &b.Duration, &b.ImageURL, &b.CreatedAt)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to load current belt: %w", err)
		}
		if err == nil {
			result.CurrentBelt = b
		}
	}

	return result, nil
}

func (s *ProgressionService) loadLadder(ctx context.Context) ([]belt.Belt, error) {
	query := `SELECT id, name, duration, image_url, created_at FROM belts ORDER BY duration ASC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load belt ladder: %w", err)
	}
	defer rows.Close()

	var ladder []belt.Belt
	for rows.Next() {
		var b belt.Belt
		if err := rows.Scan(&b.ID, &b.Name, &b.Duration, &b.ImageURL, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan belt: %w", err)
		}
		ladder = append(ladder, b)
	}

	return ladder, rows.Err()
}

func beltByID(ladder []belt.Belt, id *uuid.UUID) *belt.Belt {
	if id == nil {
		return nil
	}
	for i := range ladder {
		if ladder[i].ID == *id {
			return &ladder[i]
		}
	}
	return nil
}
