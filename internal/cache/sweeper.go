package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"
)

// DefaultSweepCron runs the retention sweep every ten minutes.
const DefaultSweepCron = "*/10 * * * *"

// SweepObserver receives the outcome of every sweep (metrics hook).
type SweepObserver func(evicted, remaining int)

// Sweeper evicts expired snapshots on a cron schedule.
type Sweeper struct {
	cache   *Cache
	observe SweepObserver

	mu   sync.Mutex
	expr string
	wake chan struct{}
}

// NewSweeper validates expr and returns a sweeper for c. An empty expression
// selects DefaultSweepCron.
func NewSweeper(c *Cache, expr string, observe SweepObserver) (*Sweeper, error) {
	if expr == "" {
		expr = DefaultSweepCron
	}
	if !gronx.IsValid(expr) {
		return nil, fmt.Errorf("cache: invalid sweep cron %q", expr)
	}
	return &Sweeper{cache: c, observe: observe, expr: expr, wake: make(chan struct{}, 1)}, nil
}

// SetSchedule swaps the cron expression; the running loop picks it up before
// its next sleep.
func (s *Sweeper) SetSchedule(expr string) error {
	if expr == "" {
		expr = DefaultSweepCron
	}
	if !gronx.IsValid(expr) {
		return fmt.Errorf("cache: invalid sweep cron %q", expr)
	}
	s.mu.Lock()
	changed := s.expr != expr
	s.expr = expr
	s.mu.Unlock()
	if changed {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
	return nil
}

func (s *Sweeper) schedule() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expr
}

// RunOnce performs a single sweep immediately.
func (s *Sweeper) RunOnce(now time.Time) int {
	evicted := s.cache.Sweep(now)
	remaining := s.cache.Len()
	if evicted > 0 {
		slog.Info("cache: sweep", "evicted", evicted, "remaining", remaining)
	}
	if s.observe != nil {
		s.observe(evicted, remaining)
	}
	return evicted
}

// Run blocks until ctx is done, sweeping at every cron tick.
func (s *Sweeper) Run(ctx context.Context) {
	for {
		expr := s.schedule()
		next, err := gronx.NextTickAfter(expr, time.Now(), false)
		if err != nil {
			slog.Error("cache: next sweep tick", "cron", expr, "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(30 * time.Second):
			}
			continue
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
			continue
		case now := <-timer.C:
			s.RunOnce(now)
		}
	}
}
