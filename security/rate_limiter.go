package security

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per key (participant id). Buckets are
// dropped wholesale on a timer rather than tracked individually.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	cleanup  *time.Ticker
	done     chan struct{}
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

func CreateRateLimiter() *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		cleanup:  time.NewTicker(10 * time.Minute),
		done:     make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) limiterFor(key string, config RateLimitConfig) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

func (rl *RateLimiter) Allow(key string, config RateLimitConfig) bool {
	return rl.limiterFor(key, config).Allow()
}

func (rl *RateLimiter) Wait(ctx context.Context, key string, config RateLimitConfig) error {
	return rl.limiterFor(key, config).Wait(ctx)
}

func (rl *RateLimiter) cleanupLoop() {
	for {
		select {
		case <-rl.cleanup.C:
			rl.mu.Lock()
			rl.limiters = make(map[string]*rate.Limiter)
			rl.mu.Unlock()
		case <-rl.done:
			return
		}
	}
}

func (rl *RateLimiter) Stop() {
	rl.cleanup.Stop()
	close(rl.done)
}

// TieredRateLimiter maps a TPP's access tier to its limits.
type TieredRateLimiter struct {
	limiter *RateLimiter
	tiers   map[string]RateLimitConfig
	def     RateLimitConfig
}

func CreateTieredRateLimiter(tiers map[string]RateLimitConfig, def RateLimitConfig) *TieredRateLimiter {
	return &TieredRateLimiter{
		limiter: CreateRateLimiter(),
		tiers:   tiers,
		def:     def,
	}
}

func (t *TieredRateLimiter) Allow(key, tier string) bool {
	config, ok := t.tiers[tier]
	if !ok {
		config = t.def
	}
	return t.limiter.Allow(key, config)
}

func (t *TieredRateLimiter) Stop() {
	t.limiter.Stop()
}
