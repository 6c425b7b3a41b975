package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocker struct {
	mu       sync.Mutex
	acquired bool
	err      error
	acquires int
	releases int
}

func (f *fakeLocker) AcquireJobLock(ctx context.Context, job string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquires++
	return f.acquired, f.err
}

func (f *fakeLocker) ReleaseJobLock(ctx context.Context, job string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	return nil
}

func TestTriggerNowRunsJob(t *testing.T) {
	s := New(nil, time.Minute)

	ran := 0
	s.RegisterDaily("sweep", 8, 0, func(ctx context.Context) error {
		ran++
		return nil
	})

	err := s.TriggerNow(context.Background(), "sweep")
	require.NoError(t, err)
	assert.Equal(t, 1, ran)
}

func TestTriggerNowPropagatesJobError(t *testing.T) {
	s := New(nil, time.Minute)

	jobErr := errors.New("sweep blew up")
	s.RegisterDaily("sweep", 8, 0, func(ctx context.Context) error {
		return jobErr
	})

	err := s.TriggerNow(context.Background(), "sweep")
	assert.ErrorIs(t, err, jobErr)
}

func TestTriggerNowUnknownJob(t *testing.T) {
	s := New(nil, time.Minute)

	err := s.TriggerNow(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownJob)
}

// A second trigger while the first run is still in flight is rejected; runs
// of the same job never overlap.
func TestTriggerNowRejectsOverlap(t *testing.T) {
	s := New(nil, time.Minute)

	started := make(chan struct{})
	release := make(chan struct{})
	s.RegisterDaily("sweep", 8, 0, func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.TriggerNow(context.Background(), "sweep")
	}()
	<-started

	err := s.TriggerNow(context.Background(), "sweep")
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(release)
	require.NoError(t, <-firstDone)

	// The slot frees up once the first run returns.
	require.NoError(t, s.TriggerNow(context.Background(), "sweep"))
}

// Different jobs serialize independently of each other.
func TestJobsDoNotBlockEachOther(t *testing.T) {
	s := New(nil, time.Minute)

	release := make(chan struct{})
	s.RegisterDaily("sweep", 8, 0, func(ctx context.Context) error {
		<-release
		return nil
	})
	cleanupRan := false
	s.RegisterWeekly("cleanup", time.Sunday, 2, 0, func(ctx context.Context) error {
		cleanupRan = true
		return nil
	})

	sweepDone := make(chan error, 1)
	go func() {
		sweepDone <- s.TriggerNow(context.Background(), "sweep")
	}()

	require.NoError(t, s.TriggerNow(context.Background(), "cleanup"))
	assert.True(t, cleanupRan)

	close(release)
	require.NoError(t, <-sweepDone)
}

// Lock held elsewhere: the run is skipped without invoking the job and
// without error.
func TestLockHeldByAnotherInstanceSkipsRun(t *testing.T) {
	locker := &fakeLocker{acquired: false}
	s := New(locker, time.Minute)

	ran := false
	s.RegisterDaily("sweep", 8, 0, func(ctx context.Context) error {
		ran = true
		return nil
	})

	err := s.TriggerNow(context.Background(), "sweep")
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, 1, locker.acquires)
	assert.Zero(t, locker.releases)
}

func TestLockAcquiredRunsAndReleases(t *testing.T) {
	locker := &fakeLocker{acquired: true}
	s := New(locker, time.Minute)

	ran := false
	s.RegisterDaily("sweep", 8, 0, func(ctx context.Context) error {
		ran = true
		return nil
	})

	require.NoError(t, s.TriggerNow(context.Background(), "sweep"))
	assert.True(t, ran)
	assert.Equal(t, 1, locker.releases)
}

// Lock backend failure degrades to in-process serialization instead of
// blocking the job.
func TestLockErrorFallsBackToLocalRun(t *testing.T) {
	locker := &fakeLocker{err: errors.New("redis down")}
	s := New(locker, time.Minute)

	ran := false
	s.RegisterDaily("sweep", 8, 0, func(ctx context.Context) error {
		ran = true
		return nil
	})

	require.NoError(t, s.TriggerNow(context.Background(), "sweep"))
	assert.True(t, ran)
	assert.Zero(t, locker.releases)
}

func TestJobRunBoundedByTimeout(t *testing.T) {
	s := New(nil, 20*time.Millisecond)

	s.RegisterDaily("sweep", 8, 0, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := s.TriggerNow(context.Background(), "sweep")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDailyNextRun(t *testing.T) {
	s := New(nil, time.Minute)
	s.RegisterDaily("sweep", 8, 0, func(ctx context.Context) error { return nil })
	j := s.jobs["sweep"]

	// Before 08:00 the run lands the same day.
	after := time.Date(2024, 3, 14, 6, 30, 0, 0, time.UTC)
	next := j.nextRun(after)
	assert.Equal(t, time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC), next)

	// At or past 08:00 it rolls to tomorrow.
	after = time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC)
	next = j.nextRun(after)
	assert.Equal(t, time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC), next)

	after = time.Date(2024, 3, 14, 23, 59, 0, 0, time.UTC)
	next = j.nextRun(after)
	assert.Equal(t, time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC), next)
}

func TestWeeklyNextRun(t *testing.T) {
	s := New(nil, time.Minute)
	s.RegisterWeekly("cleanup", time.Sunday, 2, 0, func(ctx context.Context) error { return nil })
	j := s.jobs["cleanup"]

	// Thursday: the run lands on the coming Sunday.
	after := time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)
	next := j.nextRun(after)
	assert.Equal(t, time.Date(2024, 3, 17, 2, 0, 0, 0, time.UTC), next)
	assert.Equal(t, time.Sunday, next.Weekday())

	// Sunday just past the run time rolls a full week.
	after = time.Date(2024, 3, 17, 3, 0, 0, 0, time.UTC)
	next = j.nextRun(after)
	assert.Equal(t, time.Date(2024, 3, 24, 2, 0, 0, 0, time.UTC), next)

	// Sunday before the run time stays the same day.
	after = time.Date(2024, 3, 17, 1, 0, 0, 0, time.UTC)
	next = j.nextRun(after)
	assert.Equal(t, time.Date(2024, 3, 17, 2, 0, 0, 0, time.UTC), next)
}

func TestStartStop(t *testing.T) {
	s := New(nil, time.Minute)
	s.RegisterDaily("sweep", 8, 0, func(ctx context.Context) error { return nil })

	s.Start(context.Background())
	s.Stop()
}
