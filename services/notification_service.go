package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"digitalDojoAPI/internal/types/notification"
)

// PushProvider is implemented by internal/notification.FCMService and
// injected from main.go so the service never imports the firebase SDK.
type PushProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

const (
	pushWorkers   = 5
	pushQueueSize = 100
)

// NotificationService persists notifications and fans pushes out through a
// fixed worker pool, so a burst of belt achievements cannot spawn an
// unbounded number of in-flight sends.
type NotificationService struct {
	db    *pgxpool.Pool
	push  PushProvider
	queue chan *notification.Notification
	stop  chan struct{}
	wg    sync.WaitGroup
}

func NewNotificationService(db *pgxpool.Pool) *NotificationService {
	s := &NotificationService{
		db:    db,
		queue: make(chan *notification.Notification, pushQueueSize),
		stop:  make(chan struct{}),
	}

	for i := 0; i < pushWorkers; i++ {
		s.wg.Add(1)
		go s.pushWorker()
	}

	return s
}

func (s *NotificationService) pushWorker() {
	defer s.wg.Done()
	for {
		select {
		case notif := <-s.queue:
			s.dispatchPush(notif)
		case <-s.stop:
			return
		}
	}
}

// Stop halts the push workers after any in-flight sends finish. Queued but
// unsent pushes are dropped; the notifications themselves are already
// persisted.
func (s *NotificationService) Stop() {
	close(s.stop)
	s.wg.Wait()
}

// SetPushProvider wires the real push provider. The service stays usable
// without one; notifications are then persisted but not pushed.
func (s *NotificationService) SetPushProvider(provider PushProvider) {
	s.push = provider
}

func (s *NotificationService) CreateNotification(ctx context.Context, req *notification.CreateNotificationRequest) (*notification.Notification, error) {
	notif := &notification.Notification{
		ID:        uuid.New(),
		UserID:    req.UserID,
		Type:      req.Type,
		Title:     req.Title,
		Body:      req.Body,
		Data:      req.Data,
		CreatedAt: time.Now(),
	}

	query := `
	INSERT INTO notifications (id, user_id, type, title, body, data, read, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, false, $7)
	`

	_, err := s.db.Exec(ctx, query, notif.ID, notif.UserID, notif.Type, notif.Title, notif.Body, notif.Data, notif.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	s.enqueuePush(notif)

	return notif, nil
}

// enqueuePush hands the notification to the worker pool without blocking
// the request path. A full queue drops the push, never the stored row.
func (s *NotificationService) enqueuePush(notif *notification.Notification) {
	select {
	case s.queue <- notif:
	default:
		log.Printf("Push dispatch: queue full, dropping push for notification %s", notif.ID)
	}
}

// dispatchPush sends the notification to the user's registered devices.
// Runs on a pool worker; failures are logged, never surfaced.
func (s *NotificationService) dispatchPush(notif *notification.Notification) {
	if s.push == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tokens, err := s.getDeviceTokens(ctx, notif.UserID)
	if err != nil {
		log.Printf("Push dispatch: failed to load tokens for user %s: %v", notif.UserID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	if err := s.push.SendPush(ctx, tokens, notif.Title, notif.Body, notif.Data); err != nil {
		log.Printf("Push dispatch: failed for user %s: %v", notif.UserID, err)
	}
}

func (s *NotificationService) getDeviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	query := `SELECT id, user_id, token, platform, created_at FROM device_tokens WHERE user_id = $1`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []notification.DeviceToken
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.Token, &t.Platform, &t.CreatedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}

	return tokens, rows.Err()
}

func (s *NotificationService) GetNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]*notification.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `
	SELECT id, user_id, type, title, body, data, read, created_at
	FROM notifications
	WHERE user_id = $1
	ORDER BY created_at DESC
	LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	defer rows.Close()

	var notifs []*notification.Notification
	for rows.Next() {
		n := &notification.Notification{}
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.Data, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifs = append(notifs, n)
	}

	if notifs == nil {
		notifs = []*notification.Notification{}
	}

	return notifs, rows.Err()
}

func (s *NotificationService) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = false`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE notifications SET read = true WHERE user_id = $1 AND read = false`, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

func (s *NotificationService) RegisterDevice(ctx context.Context, userID uuid.UUID, token, platform string) error {
	query := `
	INSERT INTO device_tokens (id, user_id, token, platform, created_at)
	VALUES ($1, $2, $3, $4, NOW())
	ON CONFLICT (token)
	DO UPDATE SET user_id = $2, platform = $4
	`

	_, err := s.db.Exec(ctx, query, uuid.New(), userID, token, platform)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}
