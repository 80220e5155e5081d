package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"digitalDojoAPI/internal/dateutil"
	"digitalDojoAPI/internal/types/user"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
)

const tokenTTL = 72 * time.Hour

type UserService struct {
	db        *pgxpool.Pool
	jwtSecret []byte
}

func NewUserService(db *pgxpool.Pool) *UserService {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-do-not-use"
	}
	return &UserService{db: db, jwtSecret: []byte(secret)}
}

// Register creates an account and returns the new user plus a signed token,
// so the mobile client is logged in straight away.
func (s *UserService) Register(ctx context.Context, req *user.CreateUserRequest) (*user.User, string, error) {
	if req.Email == "" || req.Username == "" || len(req.Password) < 8 {
		return nil, "", fmt.Errorf("email, username and a password of at least 8 characters are required")
	}

	// Normalize unknown timezones up front so every later day calculation
	// agrees on the same location.
	tz := req.Timezone
	if tz == "" || dateutil.LoadLocation(tz) == time.UTC && tz != "UTC" {
		tz = "UTC"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	u := &user.User{}
	query := `
	INSERT INTO users (id, email, username, password_hash, image_url, timezone, streak, belt_progress, growth_score, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, 0, 0, 0, NOW(), NOW())
	RETURNING id, email, username, image_url, timezone, streak, belt_progress, current_belt_id, last_completion_date, growth_score, created_at, updated_at
	`

	err = s.db.QueryRow(ctx, query, uuid.New(), req.Email, req.Username, string(hash), req.ImageURL, tz).Scan(
		&u.ID, &u.Email, &u.Username, &u.ImageURL, &u.Timezone,
		&u.Streak, &u.BeltProgress, &u.CurrentBeltID, &u.LastCompletionDate,
		&u.GrowthScore, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, "", ErrEmailTaken
		}
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.issueToken(u.ID, false)
	if err != nil {
		return nil, "", err
	}

	return u, token, nil
}

// Login verifies credentials and issues a token. The same error comes back
// for unknown email and wrong password.
func (s *UserService) Login(ctx context.Context, email, password string) (*user.User, string, error) {
	u := &user.User{}
	var passwordHash string
	var isAdmin bool

	query := `
	SELECT id, email, username, image_url, timezone, streak, belt_progress, current_belt_id, last_completion_date, growth_score, password_hash, is_admin, created_at, updated_at
	FROM users
	WHERE email = $1
	`

	err := s.db.QueryRow(ctx, query, email).Scan(
		&u.ID, &u.Email, &u.Username, &u.ImageURL, &u.Timezone,
		&u.Streak, &u.BeltProgress, &u.CurrentBeltID, &u.LastCompletionDate,
		&u.GrowthScore, &passwordHash, &isAdmin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to load user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(u.ID, isAdmin)
	if err != nil {
		return nil, "", err
	}

	return u, token, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	u := &user.User{}

	query := `
	SELECT id, email, username, image_url, timezone, streak, belt_progress, current_belt_id, last_completion_date, growth_score, created_at, updated_at
	FROM users
	WHERE id = $1
	`

	err := s.db.QueryRow(ctx, query, userID).Scan(
		&u.ID, &u.Email, &u.Username, &u.ImageURL, &u.Timezone,
		&u.Streak, &u.BeltProgress, &u.CurrentBeltID, &u.LastCompletionDate,
		&u.GrowthScore, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	return u, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, req *user.UpdateProfileRequest) (*user.User, error) {
	tz := req.Timezone
	if tz != "" && dateutil.LoadLocation(tz) == time.UTC && tz != "UTC" {
		return nil, fmt.Errorf("unknown timezone %q", tz)
	}

	u := &user.User{}
	query := `
	UPDATE users
	SET username = COALESCE(NULLIF($2, ''), username),
		image_url = COALESCE(NULLIF($3, ''), image_url),
		timezone = COALESCE(NULLIF($4, ''), timezone),
		updated_at = NOW()
	WHERE id = $1
	RETURNING id, email, username, image_url, timezone, streak, belt_progress, current_belt_id, last_completion_date, growth_score, created_at, updated_at
	`

	err := s.db.QueryRow(ctx, query, userID, req.Username, req.ImageURL, tz).Scan(
		&u.ID, &u.Email, &u.Username, &u.ImageURL, &u.Timezone,
		&u.Streak, &u.BeltProgress, &u.CurrentBeltID, &u.LastCompletionDate,
		&u.GrowthScore, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return u, nil
}

func (s *UserService) issueToken(userID uuid.UUID, isAdmin bool) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID.String(),
		"admin": isAdmin,
		"iat":   now.Unix(),
		"exp":   now.Add(tokenTTL).Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return token, nil
}

// JWTSecret exposes the signing key for the auth middleware.
func (s *UserService) JWTSecret() []byte {
	return s.jwtSecret
}
