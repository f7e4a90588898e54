package service

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiterRegistry manages one token bucket per key (connection id).
type RateLimiterRegistry struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewRateLimiterRegistry creates a registry handing out limiters of
// perSecond events with the given burst. perSecond <= 0 disables limiting.
func NewRateLimiterRegistry(perSecond float64, burst int) *RateLimiterRegistry {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiterRegistry{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Allow reports whether key may perform one more event now.
func (r *RateLimiterRegistry) Allow(key string) bool {
	return r.GetOrCreate(key).Allow()
}

// GetOrCreate retrieves an existing rate limiter or creates a new one.
func (r *RateLimiterRegistry) GetOrCreate(key string) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[key]
	r.mu.RUnlock()
	if exists {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if limiter, exists := r.limiters[key]; exists {
		return limiter
	}
	limiter = rate.NewLimiter(r.limit, r.burst)
	r.limiters[key] = limiter
	return limiter
}

// Delete removes the limiter for key.
func (r *RateLimiterRegistry) Delete(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.limiters, key)
}

// Len returns the number of tracked keys.
func (r *RateLimiterRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.limiters)
}
