package core

import (
	"sync"
	"time"
)

// RateLimitCounter is a fixed-window counter keyed by an arbitrary string
// (agent name, or agent:senderDomain). Increments for the same key are
// strictly serialized so no two concurrent requests observe the same
// pre-increment count.
type RateLimitCounter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	now     func() time.Time
}

type rateWindow struct {
	count int
	start time.Time
}

// NewRateLimitCounter creates an empty counter.
func NewRateLimitCounter() *RateLimitCounter {
	return &RateLimitCounter{
		windows: make(map[string]*rateWindow),
		now:     time.Now,
	}
}

// Increment atomically increments the counter for key and returns the new
// count. When the previous window has elapsed the count resets to 1.
func (c *RateLimitCounter) Increment(key string, window time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	w, ok := c.windows[key]
	if !ok || now.Sub(w.start) >= window {
		c.windows[key] = &rateWindow{count: 1, start: now}
		return 1
	}

	w.count++
	return w.count
}

// Current returns the count for key within its window without incrementing.
// An elapsed or unknown window reports zero.
func (c *RateLimitCounter) Current(key string, window time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.windows[key]
	if !ok || c.now().Sub(w.start) >= window {
		return 0
	}
	return w.count
}
