/*
scheduler.go - Automated accrual scheduler

PURPOSE:
  Periodically runs the accrual catch-up so monthly accruals and yearly
  resets are applied without an operator.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Runs once immediately on start, then on every tick
  - CatchUp itself is watermark driven, so a tick with nothing due is a no-op
  - With a Locker configured, only the replica holding the lease runs a tick

CONFIGURATION:
  - Interval: How often to check (default: 1 hour)
  - Enabled: Whether the scheduler is active (default: true)
  - LockTTL: Lease length when a Locker is set (default: 5 minutes)

USAGE:
  scheduler := NewAccrualScheduler(leave.NewAccrualJob(store, logger), nil, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunAccrual endpoint (manual run)
  - leave/accrual.go: CatchUp
  - store/redislock: Locker implementation
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/redislock"
	"go.uber.org/zap"
)

const accrualLockName = "accrual"

// ErrAccrualLocked is returned by RunNow when another replica holds the lease.
var ErrAccrualLocked = errors.New("accrual lock held elsewhere")

// Locker hands out a named lease. store/redislock implements it.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (redislock.Release, bool, error)
}

// AccrualScheduler runs leave.AccrualJob.CatchUp on a ticker.
type AccrualScheduler struct {
	Job      *leave.AccrualJob
	Locker   Locker
	Interval time.Duration
	LockTTL  time.Duration
	Enabled  bool
	Logger   *zap.Logger

	ticker *time.Ticker
	stop   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAccrualScheduler creates a scheduler. locker may be nil for a single
// replica deployment.
func NewAccrualScheduler(job *leave.AccrualJob, locker Locker, logger *zap.Logger) *AccrualScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccrualScheduler{
		Job:      job,
		Locker:   locker,
		Interval: time.Hour,
		LockTTL:  5 * time.Minute,
		Enabled:  true,
		Logger:   logger.Named("api.scheduler"),
	}
}

// Start begins the scheduler.
func (s *AccrualScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stop = make(chan struct{})
	s.ticker = time.NewTicker(s.Interval)
	s.wg.Add(1)

	go s.run(ctx)

	s.Logger.Info("scheduler started", zap.Duration("interval", s.Interval))
}

// Stop stops the scheduler and waits for a running tick to finish.
func (s *AccrualScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.cancel()
	s.wg.Wait()
	s.ticker = nil
	s.Logger.Info("scheduler stopped")
}

func (s *AccrualScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	s.tick(ctx)

	for {
		select {
		case <-s.ticker.C:
			s.tick(ctx)
		case <-s.stop:
			return
		}
	}
}

func (s *AccrualScheduler) tick(ctx context.Context) {
	runs, err := s.RunNow(ctx)
	switch {
	case errors.Is(err, ErrAccrualLocked):
		s.Logger.Debug("accrual skipped, lease held elsewhere")
	case err != nil:
		s.Logger.Error("accrual catch-up failed", zap.Error(err))
	case len(runs) > 0:
		s.Logger.Info("accrual catch-up completed", zap.Int("periods", len(runs)))
	}
}

// RunNow runs one catch-up immediately (for testing/admin).
func (s *AccrualScheduler) RunNow(ctx context.Context) ([]leave.PeriodRun, error) {
	if s.Locker != nil {
		release, ok, err := s.Locker.TryLock(ctx, accrualLockName, s.LockTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrAccrualLocked
		}
		defer func() {
			if err := release(context.Background()); err != nil {
				s.Logger.Warn("accrual lock release failed", zap.Error(err))
			}
		}()
	}
	return s.Job.CatchUp(ctx)
}
