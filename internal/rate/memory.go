package rate

import (
	"context"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter is the single-instance fallback. Counters live in go-cache
// and expire with their window.
type MemoryLimiter struct {
	mu     sync.Mutex
	c      *gocache.Cache
	max    int64
	window time.Duration
	now    func() time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		c:      gocache.New(window, 2*window),
		max:    int64(max),
		window: window,
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now().UTC()
	winStart := now.Truncate(l.window)
	k := strings.ReplaceAll(key, " ", "_") + ":" + winStart.Format(time.RFC3339Nano)

	l.mu.Lock()
	var hits int64
	if v, ok := l.c.Get(k); ok {
		hits = v.(int64)
	}
	hits++
	l.c.Set(k, hits, l.window)
	l.mu.Unlock()

	res := Result{Allowed: hits <= l.max, Limit: l.max, Hits: hits, Remaining: max(l.max-hits, 0)}
	if !res.Allowed {
		res.RetryAfter = winStart.Add(l.window).Sub(now)
	}
	return res, nil
}
