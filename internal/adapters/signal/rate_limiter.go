package signal

import (
	"sync"
	"time"

	"github.com/studyhive/realtime/internal/core"
)

// frameLimiter bounds inbound frames per connection with a sliding
// window, so one noisy client cannot monopolize the hub lock.
type frameLimiter struct {
	mu       sync.Mutex
	history  map[core.ConnID][]time.Time
	limit    int
	interval time.Duration
}

func newFrameLimiter(limit int, interval time.Duration) *frameLimiter {
	return &frameLimiter{
		history:  make(map[core.ConnID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

// Allow reports whether conn may process another frame now. A limit of
// zero disables limiting.
func (l *frameLimiter) Allow(id core.ConnID) bool {
	if l.limit <= 0 {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.interval)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.history[id][:0]
	for _, t := range l.history[id] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= l.limit {
		l.history[id] = kept
		return false
	}
	l.history[id] = append(kept, now)
	return true
}

// Forget drops a disconnected connection's window.
func (l *frameLimiter) Forget(id core.ConnID) {
	l.mu.Lock()
	delete(l.history, id)
	l.mu.Unlock()
}
