// Package jobs holds the scheduled consistency work that keeps streak and
// belt state honest: the nightly streak reset, the weekly-challenge skip
// backfill and the growth-score recalculation. Triggers come from an
// in-process cron; each trigger enqueues one job onto a buffered queue
// drained by a single worker, so job types never run concurrently with
// themselves. Handlers are idempotent, which makes the retry policy
// (exponential backoff, capped attempts) safe.
package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sethvargo/go-retry"
)

// Trigger names are the public contract between the scheduler and the
// handlers registered in main.go.
const (
	TriggerDailyStreakReset  = "dailyStreakReset"
	TriggerWeeklySkipCheck   = "weeklySkipCheck"
	TriggerGrowthScoreRecalc = "growthScoreRecalc"
)

const (
	defaultMaxRetries = 4
	defaultJobTimeout = 30 * time.Minute
)

type queuedJob struct {
	name string
	run  func(ctx context.Context) error
}

type Scheduler struct {
	cron       *cron.Cron
	queue      chan queuedJob
	stop       chan struct{}
	wg         sync.WaitGroup
	maxRetries uint64
	backoff    time.Duration
	jobTimeout time.Duration
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		queue:      make(chan queuedJob, 16),
		stop:       make(chan struct{}),
		maxRetries: defaultMaxRetries,
		backoff:    30 * time.Second,
		jobTimeout: defaultJobTimeout,
	}
}

// Register wires a named trigger to a handler on a cron schedule (standard
// 5-field spec, evaluated in UTC).
func (s *Scheduler) Register(name, spec string, run func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		select {
		case s.queue <- queuedJob{name: name, run: run}:
			log.Printf("Scheduler: enqueued %s", name)
		default:
			// A full queue means the worker is badly behind; dropping the
			// trigger is safe because every job re-derives its work from
			// the store on the next run.
			log.Printf("Scheduler: queue full, dropping trigger %s", name)
		}
	})
	if err != nil {
		return err
	}
	return nil
}

// TriggerNow enqueues a job outside its schedule (admin endpoint, tests).
func (s *Scheduler) TriggerNow(name string, run func(ctx context.Context) error) {
	select {
	case s.queue <- queuedJob{name: name, run: run}:
	default:
		log.Printf("Scheduler: queue full, dropping manual trigger %s", name)
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.wg.Add(1)
	go s.worker()
	log.Println("Scheduler: started")
}

// Stop halts the cron, waits for an in-flight job to finish and drains
// nothing further.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	close(s.stop)
	s.wg.Wait()
	log.Println("Scheduler: stopped")
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for {
		select {
		case job := <-s.queue:
			s.runJob(job)
		case <-s.stop:
			return
		}
	}
}

func (s *Scheduler) runJob(job queuedJob) {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	start := time.Now()
	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.backoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := job.run(ctx); err != nil {
			log.Printf("Job %s: attempt failed: %v", job.name, err)
			return retry.RetryableError(err)
		}
		return nil
	})

	if err != nil {
		log.Printf("Job %s: gave up after retries: %v", job.name, err)
		return
	}

	log.Printf("Job %s: finished in %s", job.name, time.Since(start).Round(time.Millisecond))
}
