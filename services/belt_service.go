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

	"digitalDojoAPI/internal/types/belt"
)

type BeltService struct {
	db *pgxpool.Pool
}

func NewBeltService(db *pgxpool.Pool) *BeltService {
	return &BeltService{db: db}
}

// CreateBelt inserts a new tier into the ladder, then advances every user
// whose current belt is one they have already earned onto the new belt as
// their next target. The cascade is per-user: a failed update is logged and
// skipped so one bad row cannot corrupt the rest of the scan.
func (s *BeltService) CreateBelt(ctx context.Context, req *belt.CreateBeltRequest) (*belt.Belt, error) {
	if req.Duration <= 0 {
		return nil, fmt.Errorf("belt duration must be positive")
	}

	b := &belt.Belt{
		ID:        uuid.New(),
		Name:      req.Name,
		Duration:  req.Duration,
		ImageURL:  req.ImageURL,
		CreatedAt: time.Now(),
	}

	query := `
	INSERT INTO belts (id, name, duration, image_url, created_at)
	VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := s.db.Exec(ctx, query, b.ID, b.Name, b.Duration, b.ImageURL, b.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create belt: %w", err)
	}

	s.retargetCompletedUsers(ctx, b.ID)

	return b, nil
}

func (s *BeltService) retargetCompletedUsers(ctx context.Context, newBeltID uuid.UUID) {
	query := `
	SELECT u.id
	FROM users u
	JOIN earned_belts eb ON eb.user_id = u.id AND eb.belt_id = u.current_belt_id
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		log.Printf("CreateBelt: failed to scan users for retarget: %v", err)
		return
	}
	defer rows.Close()

	var userIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			continue
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		log.Printf("CreateBelt: retarget scan ended early: %v", err)
	}

	retargeted := 0
	for _, id := range userIDs {
		_, err := s.db.Exec(ctx, `UPDATE users SET current_belt_id = $2, updated_at = NOW() WHERE id = $1`, id, newBeltID)
		if err != nil {
			log.Printf("CreateBelt: failed to retarget user %s: %v", id, err)
			continue
		}
		retargeted++
	}

	log.Printf("CreateBelt: retargeted %d of %d users to belt %s", retargeted, len(userIDs), newBeltID)
}

func (s *BeltService) ListBelts(ctx context.Context) ([]*belt.Belt, error) {
	query := `SELECT id, name, duration, image_url, created_at FROM belts ORDER BY duration ASC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch belts: %w", err)
	}
	defer rows.Close()

	var belts []*belt.Belt
	for rows.Next() {
		b := &belt.Belt{}
		if err := rows.Scan(&b.ID, &b.Name, &b.Duration, &b.ImageURL, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan belt: %w", err)
		}
		belts = append(belts, b)
	}

	if belts == nil {
		belts = []*belt.Belt{}
	}

	return belts, rows.Err()
}

func (s *BeltService) UpdateBelt(ctx context.Context, beltID uuid.UUID, req *belt.UpdateBeltRequest) (*belt.Belt, error) {
	query := `
	UPDATE belts
	SET name = COALESCE(NULLIF($2, ''), name),
		image_url = COALESCE(NULLIF($3, ''), image_url)
	WHERE id = $1
	RETURNING id, name, duration, image_url, created_at
	`

	b := &belt.Belt{}
	err := s.db.QueryRow(ctx, query, beltID, req.Name, req.ImageURL).Scan(&b.ID, &b.Name, &b.Duration, &b.ImageURL, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("belt not found")
		}
		return nil, fmt.Errorf("failed to update belt: %w", err)
	}

	return b, nil
}

// GetUserBelts returns the belts a user has earned, newest first.
func (s *BeltService) GetUserBelts(ctx context.Context, userID uuid.UUID) ([]*belt.EarnedBeltWithDetails, error) {
	query := `
	SELECT eb.id, eb.user_id, eb.belt_id, eb.earned_at, b.name, b.duration, b.image_url
	FROM earned_belts eb
	JOIN belts b ON b.id = eb.belt_id
	WHERE eb.user_id = $1
	ORDER BY eb.earned_at DESC
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch earned belts: %w", err)
	}
	defer rows.Close()

	var earned []*belt.EarnedBeltWithDetails
	for rows.Next() {
		e := &belt.EarnedBeltWithDetails{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.BeltID, &e.EarnedAt, &e.Name, &e.Duration, &e.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan earned belt: %w", err)
		}
		earned = append(earned, e)
	}

	if earned == nil {
		earned = []*belt.EarnedBeltWithDetails{}
	}

	return earned, rows.Err()
}
