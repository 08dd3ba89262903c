package security

import "testing"

func TestRateLimiter_Allow(t *testing.T) {
	limiter := CreateRateLimiter()
	defer limiter.Stop()

	config := RateLimitConfig{RequestsPerSecond: 1, Burst: 3}

	t.Run("Burst is honored then exhausted", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			if !limiter.Allow("tpp-1", config) {
				t.Fatalf("request %d within burst must be allowed", i+1)
			}
		}
		if limiter.Allow("tpp-1", config) {
			t.Error("request beyond burst must be denied")
		}
	})

	t.Run("Keys have independent buckets", func(t *testing.T) {
		if !limiter.Allow("tpp-2", config) {
			t.Error("a fresh key must start with a full bucket")
		}
	})
}

func TestTieredRateLimiter(t *testing.T) {
	limiter := CreateTieredRateLimiter(map[string]RateLimitConfig{
		"premium": {RequestsPerSecond: 100, Burst: 5},
	}, RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	defer limiter.Stop()

	t.Run("Known tier uses its own limits", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			if !limiter.Allow("tpp-premium", "premium") {
				t.Fatalf("premium request %d must be allowed", i+1)
			}
		}
	})

	t.Run("Unknown tier falls back to the default", func(t *testing.T) {
		if !limiter.Allow("tpp-unknown", "mystery") {
			t.Fatal("first default request must be allowed")
		}
		if limiter.Allow("tpp-unknown", "mystery") {
			t.Error("second default request must be denied")
		}
	})
}
