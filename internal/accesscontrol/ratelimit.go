package accesscontrol

import (
	"net/netip"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter holds one golang.org/x/time/rate.Limiter per token, stored in
// a sync.Map keyed by token string and swapped wholesale when a token's
// quota/interval configuration changes — directly grounded on
// original_source/src/modules/utils/rate_limit/mod.rs's dashmap-of-limiters
// shape, adapted to Go's equivalent concurrent map.
type RateLimiter struct {
	limiters sync.Map // token string -> *tokenLimiter
}

type tokenLimiter struct {
	limiter  *rate.Limiter
	quota    uint32
	interval uint32
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{}
}

// Allow reports whether token may proceed under a quota-per-interval leaky
// bucket, atomically replacing the stored limiter if quota/interval has
// changed since the last call.
func (r *RateLimiter) Allow(token string, quota, intervalS uint32) bool {
	if intervalS == 0 {
		intervalS = 1
	}
	ratePerSec := float64(quota) / float64(intervalS)

	val, _ := r.limiters.LoadOrStore(token, &tokenLimiter{
		limiter:  rate.NewLimiter(rate.Limit(ratePerSec), int(quota)),
		quota:    quota,
		interval: intervalS,
	})
	tl := val.(*tokenLimiter)

	if tl.quota != quota || tl.interval != intervalS {
		fresh := &tokenLimiter{
			limiter:  rate.NewLimiter(rate.Limit(ratePerSec), int(quota)),
			quota:    quota,
			interval: intervalS,
		}
		r.limiters.Store(token, fresh)
		tl = fresh
	}

	return tl.limiter.Allow()
}

// RetryAfter returns the duration a 429 response should advertise in its
// Retry-After header for token, based on its current limiter's reservation.
func (r *RateLimiter) RetryAfter(token string) time.Duration {
	val, ok := r.limiters.Load(token)
	if !ok {
		return time.Second
	}
	tl := val.(*tokenLimiter)
	reservation := tl.limiter.Reserve()
	defer reservation.Cancel()
	return reservation.Delay()
}

// ipAllowed reports whether remoteIP matches any of allowed, which may be
// bare addresses or CIDR prefixes.
func ipAllowed(remoteIP string, allowed []string) bool {
	addr, err := netip.ParseAddr(remoteIP)
	if err != nil {
		return false
	}
	for _, a := range allowed {
		if prefix, err := netip.ParsePrefix(a); err == nil {
			if prefix.Contains(addr) {
				return true
			}
			continue
		}
		if other, err := netip.ParseAddr(a); err == nil && other == addr {
			return true
		}
	}
	return false
}
