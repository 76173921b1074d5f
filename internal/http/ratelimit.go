package http

import (
	"sync"
	"sync/atomic"
	"time"
)

// Only mutating requests are rate limited (see withSecurity). Each client IP
// gets a fixed budget per window; counters for idle clients are evicted in
// the background.
const (
	rateLimitBudget   = 60
	rateLimitWindow   = time.Minute
	rateLimitEvictAge = 10 * time.Minute
)

type rateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientWindow
	rejected atomic.Int64
	quit     chan struct{}
	quitOnce sync.Once
}

type clientWindow struct {
	start time.Time
	count int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients: make(map[string]*clientWindow),
		quit:    make(chan struct{}),
	}
	go rl.evictLoop()
	return rl
}

func (rl *rateLimiter) evictLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictIdle()
		case <-rl.quit:
			return
		}
	}
}

func (rl *rateLimiter) evictIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rateLimitEvictAge)
	for ip, window := range rl.clients {
		if window.start.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

// stop terminates the eviction goroutine.
func (rl *rateLimiter) stop() {
	rl.quitOnce.Do(func() { close(rl.quit) })
}

// allow reports whether a mutation from clientIP still fits its current
// window. Rejections are counted for the shutdown summary.
func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	window, ok := rl.clients[clientIP]
	if !ok || now.Sub(window.start) > rateLimitWindow {
		rl.clients[clientIP] = &clientWindow{start: now, count: 1}
		return true
	}

	window.count++
	if window.count > rateLimitBudget {
		rl.rejected.Add(1)
		return false
	}
	return true
}

// rejectedCount returns how many mutations were turned away so far.
func (rl *rateLimiter) rejectedCount() int64 {
	return rl.rejected.Load()
}
