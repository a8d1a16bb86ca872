// Package ratelimit implements a per-user sliding-window limiter for
// message sends. The window keeps actual send timestamps rather than a
// bucket counter, so fairness is exact within the window at the cost of a
// little memory per active sender.
package ratelimit

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Limiter tracks recent send timestamps per user id. Entries are pruned on
// every check and by a periodic background sweep so abandoned senders do
// not accumulate.
type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int
	entries map[string][]time.Time

	sweepEvery time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup

	now func() time.Time

	log zerolog.Logger
}

// New creates a limiter allowing limit sends per window per user. The
// background sweep does not run until Start is called.
func New(window time.Duration, limit int, sweepEvery time.Duration, log zerolog.Logger) *Limiter {
	return &Limiter{
		window:     window,
		limit:      limit,
		entries:    make(map[string][]time.Time),
		sweepEvery: sweepEvery,
		stop:       make(chan struct{}),
		now:        time.Now,
		log:        log.With().Str("component", "ratelimit").Logger(),
	}
}

// Allow reports whether userID may send now. A rejected call records
// nothing, so hammering a full window does not extend it.
func (l *Limiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := prune(l.entries[userID], now.Add(-l.window))

	if len(recent) >= l.limit {
		l.entries[userID] = recent
		return false
	}

	l.entries[userID] = append(recent, now)
	return true
}

// Start launches the periodic sweep goroutine.
func (l *Limiter) Start() {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(l.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.sweep()
			case <-l.stop:
				return
			}
		}
	}()
}

// Stop terminates the sweep goroutine. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	l.wg.Wait()
}

// TrackedUsers returns the number of users currently holding window state.
func (l *Limiter) TrackedUsers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// sweep prunes stale timestamps for every tracked user and drops entries
// left empty.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	removed := 0
	for userID, stamps := range l.entries {
		recent := prune(stamps, cutoff)
		if len(recent) == 0 {
			delete(l.entries, userID)
			removed++
			continue
		}
		l.entries[userID] = recent
	}
	if removed > 0 {
		l.log.Debug().Int("removed", removed).Msg("swept idle rate limit entries")
	}
}

// prune drops timestamps at or before cutoff. Timestamps are appended in
// order, so the first retained index bounds the slice.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	return stamps[i:]
}
