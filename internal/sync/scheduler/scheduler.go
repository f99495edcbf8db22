// Package scheduler provides background scheduling for reconciliation and
// queue draining.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/chronicle-app/chronicle/internal/logging"
)

// Syncer runs one reconciliation pass. The engine drops overlapping calls
// itself; the scheduler just triggers.
type Syncer interface {
	Sync(ctx context.Context) error
}

// Drainer pushes journaled remote operations. Implemented by the mutation
// gateway.
type Drainer interface {
	DrainQueue(ctx context.Context) error
}

// Scheduler runs periodic reconciliation plus queue draining in the
// background.
type Scheduler struct {
	engine  Syncer
	drainer Drainer

	syncInterval  time.Duration
	queueInterval time.Duration

	stopCh    chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// Config holds scheduler configuration.
type Config struct {
	SyncInterval  time.Duration // how often to reconcile (default: 15 minutes)
	QueueInterval time.Duration // how often to drain the retry queue (default: 1 minute)
}

// DefaultConfig returns default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval:  15 * time.Minute,
		QueueInterval: time.Minute,
	}
}

// New creates a Scheduler.
func New(engine Syncer, drainer Drainer, config *Config) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	return &Scheduler{
		engine:        engine,
		drainer:       drainer,
		syncInterval:  config.SyncInterval,
		queueInterval: config.QueueInterval,
		stopCh:        make(chan struct{}),
	}
}

// Start starts the background loops.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	s.wg.Add(2)
	go s.syncLoop(ctx)
	go s.drainLoop(ctx)

	logging.Info("Background sync scheduler started", map[string]interface{}{
		"sync_interval":  s.syncInterval.String(),
		"queue_interval": s.queueInterval.String(),
	})
}

// Stop stops the background loops gracefully.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	logging.Info("Background sync scheduler stopped", nil)
}

// syncLoop triggers periodic reconciliation.
func (s *Scheduler) syncLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			syncCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			if err := s.engine.Sync(syncCtx); err != nil {
				logging.Warn("Periodic sync failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
			cancel()
		}
	}
}

// drainLoop triggers periodic queue draining.
func (s *Scheduler) drainLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.queueInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			drainCtx, cancel := context.WithTimeout(ctx, time.Minute)
			if err := s.drainer.DrainQueue(drainCtx); err != nil {
				logging.Debug("Queue drain incomplete", map[string]interface{}{
					"error": err.Error(),
				})
			}
			cancel()
		}
	}
}
