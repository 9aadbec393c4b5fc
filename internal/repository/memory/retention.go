package memory

import (
	"log/slog"
	"time"
)

// RetentionSweeper periodically drops events older than the retention
// window, mirroring the ~30 day expiry the production event stores apply.
//
// Go Learning Note — Channels for Signaling:
// The `stop` field is a `chan struct{}` used purely for signaling.
// close(stop) wakes every goroutine receiving on it, so Stop() needs no
// knowledge of how many loops are running.
type RetentionSweeper struct {
	repo      *EventRepository
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	stop      chan struct{}
}

// NewRetentionSweeper creates a sweeper; call Start to run it.
func NewRetentionSweeper(repo *EventRepository, retention, interval time.Duration) *RetentionSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RetentionSweeper{
		repo:      repo,
		retention: retention,
		interval:  interval,
		now:       time.Now,
		stop:      make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *RetentionSweeper) Start() {
	go s.run()
}

// Sweep removes expired events once and returns how many were dropped.
func (s *RetentionSweeper) Sweep() int {
	removed := s.repo.DeleteBefore(s.now().Add(-s.retention))
	if removed > 0 {
		slog.Debug("expired events removed", "count", removed, "retention", s.retention)
	}
	return removed
}

// run sweeps on every tick until Stop is called.
//
// Go Learning Note — time.NewTicker:
// A ticker repeats until stopped. Always call ticker.Stop() (via defer) to
// release its timer.
func (s *RetentionSweeper) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stop:
			return
		}
	}
}

// Stop signals the sweep loop to exit. Call it at most once.
func (s *RetentionSweeper) Stop() {
	close(s.stop)
}
