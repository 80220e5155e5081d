package belt

import (
	"time"

	"github.com/google/uuid"
)

// Belt is a tier in the progression ladder. Belts are strictly ordered by
// Duration (consecutive qualifying days required to earn them); the belt
// with the smallest duration is handed to brand-new progressions.
type Belt struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Duration  int       `json:"duration" db:"duration"`
	ImageURL  string    `json:"image_url" db:"image_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EarnedBelt struct {
	ID       uuid.UUID `json:"id" db:"id"`
	UserID   uuid.UUID `json:"user_id" db:"user_id"`
	BeltID   uuid.UUID `json:"belt_id" db:"belt_id"`
	EarnedAt time.Time `json:"earned_at" db:"earned_at"`
}

type EarnedBeltWithDetails struct {
	EarnedBelt
	Name     string `json:"name"`
	Duration int    `json:"duration"`
	ImageURL string `json:"image_url"`
}

type CreateBeltRequest struct {
	Name     string `json:"name"`
	Duration int    `json:"duration"`
	ImageURL string `json:"image_url"`
}

type UpdateBeltRequest struct {
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}
