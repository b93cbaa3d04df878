package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"noot/internal/logging"
)

// SweepFunc runs one full sync sweep. The scheduler does not interpret the
// error beyond logging it; sweeps are retried on the next tick regardless.
type SweepFunc func(ctx context.Context) error

// Scheduler triggers recurring sync sweeps on a fixed interval. Only one
// sweep runs at a time: a tick that arrives while a sweep is still in flight
// is dropped, not queued, so a slow remote cannot pile up overlapping sweeps.
type Scheduler struct {
	sweep    SweepFunc
	logger   *logging.Logger
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	running  bool
	inFlight bool
}

// New creates a scheduler. The interval must be positive.
func New(sweep SweepFunc, interval time.Duration, logger *logging.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive, got %v", interval)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		sweep:    sweep,
		logger:   logger,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins the tick loop. The first sweep runs immediately rather than
// after one full interval.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Starting sync scheduler", map[string]interface{}{
		"interval": s.interval.String(),
	})

	s.wg.Add(1)
	go s.run()
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to finish, up to
// the given timeout.
func (s *Scheduler) Stop(timeout time.Duration) error {
	s.logger.Info("Stopping sync scheduler", nil)
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped", nil)
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("scheduler shutdown timed out after %v", timeout)
	}
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Trigger()

	for {
		select {
		case <-ticker.C:
			s.Trigger()
		case <-s.ctx.Done():
			return
		}
	}
}

// Trigger runs one sweep now, unless a sweep is already in flight, in which
// case it reports false and does nothing. Manual syncs share this gate with
// the tick loop.
func (s *Scheduler) Trigger() bool {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		s.logger.Debug("Sweep already in flight, skipping tick", nil)
		return false
	}
	s.inFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	start := time.Now()
	err := s.sweep(s.ctx)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("Scheduled sweep failed", map[string]interface{}{
			"error":    err.Error(),
			"duration": duration.String(),
		})
		return true
	}

	s.logger.Debug("Scheduled sweep completed", map[string]interface{}{
		"duration": duration.String(),
	})
	return true
}
