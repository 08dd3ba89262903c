package models

import "time"

// CacheSignal is the value surfaced in X-OF-Cache and X-OF-Idempotency
// response headers.
type CacheSignal string

const (
	CacheHit  CacheSignal = "HIT"
	CacheMiss CacheSignal = "MISS"
)

// CacheEntry holds one cached read result. Hit is set on retrieval only,
// never on population, so callers can thread it straight into the
// response header.
type CacheEntry struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	ExpiresAt time.Time   `json:"expires_at"`
	Hit       bool        `json:"hit"`
}

func (e *CacheEntry) IsExpired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}
