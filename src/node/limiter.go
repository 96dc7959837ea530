package node

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// limiterSweepEvery is the interval between two sweeps of refilled
	// buckets.
	limiterSweepEvery = time.Second

	// limiterMaxSources forces a sweep before the next interval once this
	// many sources are tracked.
	limiterMaxSources = 1 << 16
)

// sourceLimiter keeps one token bucket per source address. A bucket that has
// refilled to its burst behaves exactly like a new one, so sweeps drop those
// and only sources that sent recently stay in memory.
type sourceLimiter struct {
	sync.Mutex

	limit     rate.Limit
	burst     int
	buckets   map[string]*rate.Limiter
	lastSweep time.Time
}

func newSourceLimiter(perSecond float64, burst int) *sourceLimiter {
	if burst < 1 {
		burst = 1
	}
	return &sourceLimiter{
		limit:     rate.Limit(perSecond),
		burst:     burst,
		buckets:   make(map[string]*rate.Limiter),
		lastSweep: time.Now(),
	}
}

// allow reports whether a datagram from source may be processed now.
func (l *sourceLimiter) allow(source string) bool {
	return l.allowAt(source, time.Now())
}

func (l *sourceLimiter) allowAt(source string, now time.Time) bool {
	l.Lock()
	defer l.Unlock()

	if now.Sub(l.lastSweep) >= limiterSweepEvery || len(l.buckets) >= limiterMaxSources {
		l.sweep(now)
	}

	b, ok := l.buckets[source]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[source] = b
	}

	return b.AllowN(now, 1)
}

// sweep removes the buckets that are full again at now.
func (l *sourceLimiter) sweep(now time.Time) {
	for source, b := range l.buckets {
		if b.TokensAt(now) >= float64(l.burst) {
			delete(l.buckets, source)
		}
	}
	l.lastSweep = now
}

// sources returns the number of tracked source addresses.
func (l *sourceLimiter) sources() int {
	l.Lock()
	defer l.Unlock()
	return len(l.buckets)
}
