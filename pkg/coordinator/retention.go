package coordinator

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper evicts terminal Requests from the registry after a retention
// window. Snapshots already delivered to subscribers stay valid — they are
// immutable values; eviction only forgets the registry entry.
type Sweeper struct {
	coordinator *Coordinator
	retention   time.Duration
	interval    time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a sweeper over the coordinator's registry.
func NewSweeper(c *Coordinator, retention, interval time.Duration) *Sweeper {
	return &Sweeper{coordinator: c, retention: retention, interval: interval}
}

// Start launches the background sweep loop: one immediate sweep, then one
// per interval. Calling Start twice is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Retention sweeper started",
		"retention", s.retention, "interval", s.interval)
}

// Stop signals the loop to exit and waits for it.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Retention sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	if count := s.coordinator.evictExpired(time.Now(), s.retention); count > 0 {
		slog.Info("Retention: evicted terminal requests", "count", count)
	}
}
