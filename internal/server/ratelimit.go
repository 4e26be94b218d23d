package server

import (
	"sync"
	"time"
)

// retryLimiter is a fixed-window per-key counter. It only bounds how
// often this process accepts retry requests; it is not a distributed
// limit and does not need to be.
type retryLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*retryWindow
}

type retryWindow struct {
	start time.Time
	count int
}

func newRetryLimiter(limit int, window time.Duration) *retryLimiter {
	return &retryLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string]*retryWindow),
	}
}

// allow consumes one slot for key. When the window is exhausted it
// returns false and how long until the window resets.
func (l *retryLimiter) allow(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.window {
		l.windows[key] = &retryWindow{start: now, count: 1}
		return true, 0
	}
	if w.count >= l.limit {
		return false, w.start.Add(l.window).Sub(now)
	}
	w.count++
	return true, 0
}
