// Package sweeper periodically purges expired login records.
package sweeper

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Purger removes expired login records and reports how many went
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Sweeper runs a Purger on a fixed interval
type Sweeper struct {
	purger   Purger
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a sweeper. An interval of zero or less disables it.
func New(purger Purger, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		purger:   purger,
		interval: interval,
		timeout:  time.Minute,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Enabled reports whether Start will run anything
func (s *Sweeper) Enabled() bool {
	return s.interval > 0
}

// Start begins the background sweep
func (s *Sweeper) Start() {
	if !s.Enabled() {
		s.logger.Info("Login record sweeper disabled")
		return
	}
	s.wg.Add(1)
	go s.loop()
	s.logger.Info("Login record sweeper started", zap.Duration("interval", s.interval))
}

// Stop ends the sweep and waits for a running purge to finish
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

func (s *Sweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			s.logger.Info("Login record sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep runs one purge
func (s *Sweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	removed, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error("Failed to purge expired login records", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("Purged expired login records", zap.Int64("removed", removed))
	}
}
