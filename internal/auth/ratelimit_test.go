package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsBurst(t *testing.T) {
	rl := NewRateLimiter(1, 5)
	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow("key-a"), "request %d within burst", i)
	}
	assert.False(t, rl.Allow("key-a"), "burst exhausted")
}

func TestRateLimiterIsolatesKeys(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	assert.True(t, rl.Allow("key-a"))
	assert.True(t, rl.Allow("key-a"))
	assert.False(t, rl.Allow("key-a"))
	assert.True(t, rl.Allow("key-b"), "a separate key has its own bucket")
}

func TestRateLimiterRefills(t *testing.T) {
	rl := NewRateLimiter(100, 1)
	assert.True(t, rl.Allow("key-a"))
	assert.False(t, rl.Allow("key-a"))
	time.Sleep(25 * time.Millisecond) // 100/s refills within a few ms
	assert.True(t, rl.Allow("key-a"))
}

func TestRateLimiterPrune(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.Allow("stale")
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, rl.Prune(time.Millisecond))
	assert.Equal(t, 0, rl.Prune(time.Minute))
}

func TestHashKeyStable(t *testing.T) {
	assert.Equal(t, HashKey("rp_abc"), HashKey("rp_abc"))
	assert.NotEqual(t, HashKey("rp_abc"), HashKey("rp_abd"))
	assert.Len(t, HashKey("rp_abc"), 64)
}
