package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunJobRetriesUntilSuccess(t *testing.T) {
	s := NewScheduler()
	s.backoff = time.Millisecond

	attempts := 0
	s.runJob(queuedJob{
		name: "flaky",
		run: func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("transient")
			}
			return nil
		},
	})

	assert.Equal(t, 3, attempts)
}

func TestRunJobGivesUpAfterMaxRetries(t *testing.T) {
	s := NewScheduler()
	s.backoff = time.Millisecond
	s.maxRetries = 2

	attempts := 0
	s.runJob(queuedJob{
		name: "doomed",
		run: func(ctx context.Context) error {
			attempts++
			return errors.New("persistent")
		},
	})

	// Initial attempt plus two retries.
	assert.Equal(t, 3, attempts)
}

func TestTriggerNowRunsThroughWorker(t *testing.T) {
	s := NewScheduler()
	s.Start()
	defer s.Stop()

	done := make(chan struct{})
	s.TriggerNow("manual", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("manual trigger never ran")
	}
}

func TestWorkerSerializesJobs(t *testing.T) {
	s := NewScheduler()
	s.Start()
	defer s.Stop()

	running := make(chan struct{}, 2)
	finished := make(chan struct{}, 2)
	overlap := false

	run := func(ctx context.Context) error {
		select {
		case running <- struct{}{}:
		default:
		}
		if len(running) > 1 {
			overlap = true
		}
		time.Sleep(20 * time.Millisecond)
		<-running
		finished <- struct{}{}
		return nil
	}

	s.TriggerNow("first", run)
	s.TriggerNow("second", run)

	for i := 0; i < 2; i++ {
		select {
		case <-finished:
		case <-time.After(2 * time.Second):
			t.Fatal("queued jobs did not finish")
		}
	}

	assert.False(t, overlap, "a single worker must never run two jobs at once")
}
