package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"digitalDojoAPI/internal/types/notification"
)

func TestPushQueueDropsWhenFull(t *testing.T) {
	s := NewNotificationService(nil)
	s.Stop()

	// With the workers stopped nothing drains; pushes past the queue
	// capacity must be dropped, not block the caller.
	for i := 0; i < pushQueueSize+10; i++ {
		s.enqueuePush(&notification.Notification{ID: uuid.New()})
	}

	assert.Len(t, s.queue, pushQueueSize)
}

func TestPushWorkersDrainQueue(t *testing.T) {
	// No provider configured: workers consume and discard immediately.
	s := NewNotificationService(nil)
	defer s.Stop()

	for i := 0; i < 20; i++ {
		s.enqueuePush(&notification.Notification{ID: uuid.New()})
	}

	assert.Eventually(t, func() bool {
		return len(s.queue) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
