package ratelimiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketLimiter_Allow(t *testing.T) {
	rl := NewTokenBucketLimiter(2, time.Minute, 2)
	defer rl.Stop()

	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	ok, _ := rl.Allow("1.1.1.1")
	assert.True(t, ok)
	ok, _ = rl.Allow("1.1.1.1")
	assert.True(t, ok)

	ok, wait := rl.Allow("1.1.1.1")
	require.False(t, ok)
	assert.InDelta(t, 30*time.Second, wait, float64(time.Second))

	ok, _ = rl.Allow("2.2.2.2")
	assert.True(t, ok, "keys are limited independently")

	now = now.Add(31 * time.Second)
	ok, _ = rl.Allow("1.1.1.1")
	assert.True(t, ok)
}

func TestTokenBucketLimiter_Cleanup(t *testing.T) {
	rl := NewTokenBucketLimiter(10, time.Second, 0)
	defer rl.Stop()

	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	rl.Allow("b")
	assert.Equal(t, 2, rl.size())

	now = now.Add(2 * time.Minute)
	rl.Allow("b")
	rl.cleanup()
	assert.Equal(t, 1, rl.size())
}
