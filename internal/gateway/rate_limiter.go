package gateway

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter caps RPC calls per client at a configured requests-per-minute
// rate with a small burst allowance, same token-bucket-per-key shape as
// tools.ToolRateLimiter.
type RateLimiter struct {
	rpm   int
	burst int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewRateLimiter builds a limiter allowing rpm requests per minute per
// client id, with burst extra requests absorbed immediately. rpm <= 0
// disables limiting.
func NewRateLimiter(rpm, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{rpm: rpm, burst: burst, buckets: make(map[string]*rate.Limiter)}
}

// Allow reports whether clientID may make another RPC call right now.
func (rl *RateLimiter) Allow(clientID string) bool {
	if rl == nil || rl.rpm <= 0 {
		return true
	}
	rl.mu.Lock()
	lim, ok := rl.buckets[clientID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(rl.rpm)/60.0), rl.burst)
		rl.buckets[clientID] = lim
	}
	rl.mu.Unlock()
	return lim.Allow()
}

// Forget drops clientID's bucket, freeing memory once a client disconnects.
func (rl *RateLimiter) Forget(clientID string) {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	delete(rl.buckets, clientID)
	rl.mu.Unlock()
}
