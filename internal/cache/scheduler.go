package cache

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Scheduler periodically forces a cache refresh so the snapshot stays warm
// between reads. Failures are logged and retried on the next tick; the
// refresh cadence is the only retry policy.
type Scheduler struct {
	cache    *Cache
	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewScheduler creates a scheduler refreshing the cache every interval.
func NewScheduler(c *Cache, interval time.Duration) *Scheduler {
	return &Scheduler{cache: c, interval: interval}
}

// Start begins the background refresh loop. Non-blocking.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if s.interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", s.interval)
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.done = make(chan struct{})

	go s.run(ctx)
	log.Printf("Refresh scheduler started (interval: %s)", s.interval)
	return nil
}

// Stop halts the refresh loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.running = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(s.done)
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := s.cache.ForceRefresh(ctx)
			if err != nil {
				log.Printf("Scheduled refresh failed: %v", err)
				continue
			}
			if len(snap.Records) == 0 {
				log.Printf("Scheduled refresh returned zero rows; the source page shape may have changed")
			}
		}
	}
}
