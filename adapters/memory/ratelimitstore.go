// Package memory provides in-memory implementations of storage ports.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/artpar/speechgate/domain/ratelimit"
	"github.com/artpar/speechgate/ports"
)

// RateLimitStore is an in-memory implementation of ports.RateLimitStore.
//
// Each client's window is read, checked, and written back under the lock,
// so per-client updates never interleave. A background sweep removes
// expired windows on its own interval, independent of the window length,
// bounding memory for a large number of distinct clients.
type RateLimitStore struct {
	mu    sync.Mutex
	state map[string]ratelimit.WindowState

	now     func() time.Time
	sweep   *time.Ticker
	done    chan struct{}
	stopped sync.Once
}

// RateLimitStoreConfig configures the store.
type RateLimitStoreConfig struct {
	SweepInterval time.Duration    // How often to drop expired windows (default: 5m)
	Now           func() time.Time // Time source for the sweep (default: time.Now)
}

// NewRateLimitStore creates the store and starts its sweep loop.
// Callers own the lifecycle and must Close it at shutdown.
func NewRateLimitStore(cfg RateLimitStoreConfig) *RateLimitStore {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &RateLimitStore{
		state: make(map[string]ratelimit.WindowState),
		now:   cfg.Now,
		sweep: time.NewTicker(cfg.SweepInterval),
		done:  make(chan struct{}),
	}

	go s.sweepLoop()

	return s
}

// Admit applies the fixed-window check for clientKey as one atomic step.
func (s *RateLimitStore) Admit(ctx context.Context, clientKey string, cfg ratelimit.Config, now time.Time) (ratelimit.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	decision, newState := ratelimit.Check(s.state[clientKey], cfg, now)
	s.state[clientKey] = newState
	return decision, nil
}

// Close stops the sweep loop.
func (s *RateLimitStore) Close() error {
	s.stopped.Do(func() {
		s.sweep.Stop()
		close(s.done)
	})
	return nil
}

// Len returns the number of tracked clients (for tests).
func (s *RateLimitStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state)
}

// SweepNow removes expired windows immediately (for tests).
func (s *RateLimitStore) SweepNow() {
	s.removeExpired(s.now())
}

func (s *RateLimitStore) sweepLoop() {
	for {
		select {
		case <-s.sweep.C:
			s.removeExpired(s.now())
		case <-s.done:
			return
		}
	}
}

func (s *RateLimitStore) removeExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, state := range s.state {
		if state.Expired(now) {
			delete(s.state, key)
		}
	}
}

// Ensure interface compliance.
var _ ports.RateLimitStore = (*RateLimitStore)(nil)
