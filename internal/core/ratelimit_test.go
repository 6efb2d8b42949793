package core

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitCounterIncrement(t *testing.T) {
	c := NewRateLimitCounter()

	assert.Equal(t, 1, c.Increment("task", time.Hour))
	assert.Equal(t, 2, c.Increment("task", time.Hour))
	assert.Equal(t, 3, c.Increment("task", time.Hour))

	// Keys are independent.
	assert.Equal(t, 1, c.Increment("intelligence", time.Hour))
	assert.Equal(t, 4, c.Increment("task", time.Hour))
}

func TestRateLimitCounterCurrent(t *testing.T) {
	c := NewRateLimitCounter()

	assert.Equal(t, 0, c.Current("task", time.Hour))

	c.Increment("task", time.Hour)
	c.Increment("task", time.Hour)
	assert.Equal(t, 2, c.Current("task", time.Hour))

	// Peeking never increments.
	assert.Equal(t, 2, c.Current("task", time.Hour))
}

func TestRateLimitCounterWindowReset(t *testing.T) {
	c := NewRateLimitCounter()

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	assert.Equal(t, 1, c.Increment("task", time.Hour))
	assert.Equal(t, 2, c.Increment("task", time.Hour))

	// Within the window the count accumulates.
	current = current.Add(59 * time.Minute)
	assert.Equal(t, 3, c.Increment("task", time.Hour))

	// Once the window has elapsed the count resets to 1.
	current = current.Add(2 * time.Minute)
	assert.Equal(t, 1, c.Increment("task", time.Hour))

	// An elapsed window reads as zero.
	current = current.Add(time.Hour)
	assert.Equal(t, 0, c.Current("task", time.Hour))
}

func TestRateLimitCounterConcurrentIncrements(t *testing.T) {
	c := NewRateLimitCounter()

	const goroutines = 50
	const perGoroutine = 20

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				c.Increment("task", time.Hour)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines*perGoroutine, c.Current("task", time.Hour))
}
