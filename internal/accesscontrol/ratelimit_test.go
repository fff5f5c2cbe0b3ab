package accesscontrol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsWithinQuota(t *testing.T) {
	rl := NewRateLimiter()
	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow("tok-a", 5, 60), "request %d within a 5-per-60s quota should pass", i)
	}
}

func TestRateLimiterRejectsOverQuota(t *testing.T) {
	rl := NewRateLimiter()
	for i := 0; i < 2; i++ {
		assert.True(t, rl.Allow("tok-b", 2, 60))
	}
	assert.False(t, rl.Allow("tok-b", 2, 60), "third request should exceed the burst of 2")
}

func TestRateLimiterTracksTokensIndependently(t *testing.T) {
	rl := NewRateLimiter()
	assert.True(t, rl.Allow("tok-c", 1, 60))
	assert.False(t, rl.Allow("tok-c", 1, 60))
	assert.True(t, rl.Allow("tok-d", 1, 60), "a distinct token must not share tok-c's bucket")
}

func TestRateLimiterReconfiguresOnQuotaChange(t *testing.T) {
	rl := NewRateLimiter()
	assert.True(t, rl.Allow("tok-e", 1, 60))
	assert.False(t, rl.Allow("tok-e", 1, 60))

	// Raising the quota for the same token should replace its limiter
	// wholesale rather than stay pinned to the exhausted bucket.
	assert.True(t, rl.Allow("tok-e", 5, 60))
}

func TestIPAllowedBareAddress(t *testing.T) {
	assert.True(t, ipAllowed("203.0.113.5", []string{"203.0.113.5"}))
	assert.False(t, ipAllowed("203.0.113.6", []string{"203.0.113.5"}))
}

func TestIPAllowedCIDR(t *testing.T) {
	assert.True(t, ipAllowed("10.0.0.42", []string{"10.0.0.0/24"}))
	assert.False(t, ipAllowed("10.0.1.42", []string{"10.0.0.0/24"}))
}

func TestIPAllowedMalformedRemote(t *testing.T) {
	assert.False(t, ipAllowed("not-an-ip", []string{"10.0.0.0/24"}))
}
