package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ViviZhou160916/medicine-inventory/internal/util"

	"go.uber.org/zap"
)

var (
	// ErrUnknownJob is returned when triggering a job that was never registered.
	ErrUnknownJob = errors.New("unknown job")

	// ErrAlreadyRunning is returned when a job is triggered while a previous
	// run of the same job has not finished.
	ErrAlreadyRunning = errors.New("job already running")
)

// JobFunc is one run of a scheduled job
type JobFunc func(ctx context.Context) error

// JobLocker provides cross-instance run serialization. The Redis client
// satisfies it; a nil locker falls back to in-process serialization only.
type JobLocker interface {
	AcquireJobLock(ctx context.Context, job string, ttl time.Duration) (bool, error)
	ReleaseJobLock(ctx context.Context, job string) error
}

type job struct {
	name    string
	fn      JobFunc
	nextRun func(after time.Time) time.Time
	running int32
}

// Scheduler drives registered jobs on their cadence. Runs of the same job
// never overlap; different jobs run independently.
type Scheduler struct {
	mu      sync.Mutex
	jobs    map[string]*job
	locker  JobLocker
	timeout time.Duration
	logger  *zap.Logger
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a scheduler. Each run is bounded by timeout.
func New(locker JobLocker, timeout time.Duration) *Scheduler {
	return &Scheduler{
		jobs:    make(map[string]*job),
		locker:  locker,
		timeout: timeout,
		logger:  util.GetLogger(),
	}
}

// RegisterDaily registers a job that runs every day at the given wall-clock time
func (s *Scheduler) RegisterDaily(name string, hour, minute int, fn JobFunc) {
	s.register(&job{
		name: name,
		fn:   fn,
		nextRun: func(after time.Time) time.Time {
			next := time.Date(after.Year(), after.Month(), after.Day(), hour, minute, 0, 0, after.Location())
			if !next.After(after) {
				next = next.AddDate(0, 0, 1)
			}
			return next
		},
	})
}

// RegisterWeekly registers a job that runs once a week at the given weekday
// and wall-clock time
func (s *Scheduler) RegisterWeekly(name string, weekday time.Weekday, hour, minute int, fn JobFunc) {
	s.register(&job{
		name: name,
		fn:   fn,
		nextRun: func(after time.Time) time.Time {
			next := time.Date(after.Year(), after.Month(), after.Day(), hour, minute, 0, 0, after.Location())
			days := (int(weekday) - int(next.Weekday()) + 7) % 7
			next = next.AddDate(0, 0, days)
			if !next.After(after) {
				next = next.AddDate(0, 0, 7)
			}
			return next
		},
	})
}

func (s *Scheduler) register(j *job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.name] = j
}

// Start launches the timer loops. Returns immediately; Stop shuts them down.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, j)
	}
	s.logger.Info("Scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop cancels all timer loops and waits for in-flight runs to return
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// TriggerNow runs a job immediately, bypassing its cadence. Used by the
// operational endpoint and tests. Serialization still applies.
func (s *Scheduler) TriggerNow(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrUnknownJob)
	}
	return s.run(ctx, j)
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	defer s.wg.Done()

	for {
		next := j.nextRun(time.Now())
		timer := time.NewTimer(time.Until(next))
		s.logger.Info("Job scheduled",
			zap.String("job", j.name),
			zap.Time("next_run", next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := s.run(ctx, j); err != nil {
				// A failed run is logged and reported; the next tick retries
				// naturally.
				s.logger.Error("Job run failed",
					zap.String("job", j.name),
					zap.Error(err))
			}
		}
	}
}

func (s *Scheduler) run(ctx context.Context, j *job) error {
	if !atomic.CompareAndSwapInt32(&j.running, 0, 1) {
		util.JobRunsTotal.WithLabelValues(j.name, "skipped").Inc()
		return fmt.Errorf("%q: %w", j.name, ErrAlreadyRunning)
	}
	defer atomic.StoreInt32(&j.running, 0)

	if s.locker != nil {
		acquired, err := s.locker.AcquireJobLock(ctx, j.name, s.timeout+time.Minute)
		if err != nil {
			s.logger.Warn("Job lock unavailable, running with in-process serialization only",
				zap.String("job", j.name), zap.Error(err))
		} else if !acquired {
			util.JobRunsTotal.WithLabelValues(j.name, "skipped").Inc()
			s.logger.Info("Job held by another instance, skipping",
				zap.String("job", j.name))
			return nil
		} else {
			defer func() {
				if err := s.locker.ReleaseJobLock(context.Background(), j.name); err != nil {
					s.logger.Warn("Failed to release job lock",
						zap.String("job", j.name), zap.Error(err))
				}
			}()
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := j.fn(runCtx)
	if err != nil {
		util.JobRunsTotal.WithLabelValues(j.name, "failed").Inc()
		return err
	}

	util.JobRunsTotal.WithLabelValues(j.name, "success").Inc()
	s.logger.Info("Job run completed",
		zap.String("job", j.name),
		zap.Duration("duration", time.Since(start)))
	return nil
}
