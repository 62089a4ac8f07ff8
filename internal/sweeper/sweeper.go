// Package sweeper deactivates tutors whose daily cutoff has passed.
package sweeper

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"tutorrelay/internal/metrics"
)

const defaultInterval = time.Minute

var (
	ErrAlreadyRunning = errors.New("sweeper is already running")
	ErrNotRunning     = errors.New("sweeper is not running")
)

// Target is the state a sweep runs against.
type Target interface {
	Sweep(now time.Time) []string
}

// Sweeper runs Target.Sweep on a fixed interval.
type Sweeper struct {
	target   Target
	interval time.Duration
	clock    func() time.Time
	metrics  *metrics.Metrics
	logger   *zap.Logger

	mu       sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a sweeper. A non-positive interval sweeps once a minute.
func New(target Target, interval time.Duration, m *metrics.Metrics, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		target:   target,
		interval: interval,
		clock:    time.Now,
		metrics:  m,
		logger:   logger,
	}
}

// SetClock overrides the time source. Call before Start.
func (s *Sweeper) SetClock(clock func() time.Time) {
	if clock != nil {
		s.clock = clock
	}
}

// Start sweeps immediately and then on every tick until Stop or ctx ends.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopChan != nil {
		return ErrAlreadyRunning
	}
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	s.logger.Info("Starting cutoff sweeper", zap.Duration("interval", s.interval))
	go s.run(ctx, s.stopChan, s.done)
	return nil
}

// Stop ends the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	if s.stopChan == nil {
		s.mu.Unlock()
		return ErrNotRunning
	}
	close(s.stopChan)
	done := s.done
	s.stopChan = nil
	s.done = nil
	s.mu.Unlock()

	s.logger.Info("Stopping cutoff sweeper")
	<-done
	return nil
}

// RunOnce performs a single sweep and returns the deactivated tutor names.
func (s *Sweeper) RunOnce() []string {
	deactivated := s.target.Sweep(s.clock())
	if len(deactivated) > 0 {
		s.metrics.TutorsDeactivated(len(deactivated))
		s.logger.Info("Sweep deactivated tutors", zap.Strings("tutors", deactivated))
	}
	return deactivated
}

func (s *Sweeper) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	s.RunOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce()
		case <-stop:
			s.logger.Info("Cutoff sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Cutoff sweeper cancelled")
			return
		}
	}
}
