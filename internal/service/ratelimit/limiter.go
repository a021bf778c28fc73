package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	lim  *rate.Limiter
	last time.Time
}

// Limiter keeps one token bucket per key. Every key shares one capacity and refill rate.
type Limiter struct {
	mu    sync.Mutex
	m     map[string]*entry
	limit rate.Limit
	burst int
	now   func() time.Time
}

// New allows capacity requests at once per key, refilled at refillPerSec.
// A non-positive refill rate never refills.
func New(capacity, refillPerSec float64) *Limiter {
	burst := int(math.Floor(capacity))
	if burst < 1 {
		burst = 1
	}
	if refillPerSec < 0 {
		refillPerSec = 0
	}
	return &Limiter{
		m:     make(map[string]*entry),
		limit: rate.Limit(refillPerSec),
		burst: burst,
		now:   time.Now,
	}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	e, ok := l.m[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.m[key] = e
	}
	e.last = now
	l.mu.Unlock()

	return e.lim.AllowN(now, 1)
}

// Sweep drops keys untouched for longer than idle and returns how many were removed.
func (l *Limiter) Sweep(idle time.Duration) int {
	cutoff := l.now().Add(-idle)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, e := range l.m {
		if e.last.Before(cutoff) {
			delete(l.m, k)
			removed++
		}
	}
	return removed
}
