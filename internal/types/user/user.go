package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	Email              string     `json:"email" db:"email"`
	Username           string     `json:"username" db:"username"`
	ImageURL           string     `json:"image_url,omitempty" db:"image_url"`
	Timezone           string     `json:"timezone" db:"timezone"`
	Streak             int        `json:"streak" db:"streak"`
	BeltProgress       int        `json:"belt_progress" db:"belt_progress"`
	CurrentBeltID      *uuid.UUID `json:"current_belt_id,omitempty" db:"current_belt_id"`
	LastCompletionDate *time.Time `json:"last_completion_date,omitempty" db:"last_completion_date"`
	GrowthScore        float64    `json:"growth_score" db:"growth_score"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

type CreateUserRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Timezone string `json:"timezone"`
	ImageURL string `json:"image_url"`
}

type UpdateProfileRequest struct {
	Username string `json:"username"`
	ImageURL string `json:"image_url"`
	Timezone string `json:"timezone"`
}
