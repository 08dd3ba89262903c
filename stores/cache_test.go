package stores

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type cachedReport struct {
	FileID   string `json:"file_id"`
	Accepted int    `json:"accepted"`
}

func TestResultCache_GetPut(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	cache := CreateResultCache(10, func() time.Time { return now })
	ctx := context.Background()

	t.Run("Unknown key misses", func(t *testing.T) {
		var out cachedReport
		hit, err := cache.Get(ctx, "missing", now, &out)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if hit {
			t.Error("expected miss for unknown key")
		}
	})

	t.Run("Stored value is returned intact", func(t *testing.T) {
		in := cachedReport{FileID: "FILE-1", Accepted: 3}
		if err := cache.Put(ctx, "report:FILE-1", in, time.Minute); err != nil {
			t.Fatalf("put failed: %v", err)
		}

		var out cachedReport
		hit, err := cache.Get(ctx, "report:FILE-1", now, &out)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if !hit {
			t.Fatal("expected hit")
		}
		if out != in {
			t.Errorf("expected %+v, got %+v", in, out)
		}
	})

	t.Run("Keys are independent", func(t *testing.T) {
		var out cachedReport
		hit, _ := cache.Get(ctx, "report:FILE-2", now, &out)
		if hit {
			t.Error("different key must not hit")
		}
	})
}

func TestResultCache_TTLExpiry(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	cache := CreateResultCache(10, func() time.Time { return now })
	ctx := context.Background()

	if err := cache.Put(ctx, "key", cachedReport{FileID: "FILE-1"}, 30*time.Second); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	var out cachedReport
	if hit, _ := cache.Get(ctx, "key", now.Add(29*time.Second), &out); !hit {
		t.Error("entry inside TTL must hit")
	}
	if hit, _ := cache.Get(ctx, "key", now.Add(30*time.Second), &out); hit {
		t.Error("entry at exact TTL boundary must miss")
	}
	if cache.Len() != 0 {
		t.Errorf("expired entry not removed, len=%d", cache.Len())
	}
}

func TestResultCache_Delete(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	cache := CreateResultCache(10, func() time.Time { return now })
	ctx := context.Background()

	cache.Put(ctx, "key", cachedReport{FileID: "FILE-1"}, time.Minute)
	if err := cache.Delete(ctx, "key"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	var out cachedReport
	if hit, _ := cache.Get(ctx, "key", now, &out); hit {
		t.Error("deleted entry must miss")
	}
}

func TestResultCache_CapacityEviction(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	cache := CreateResultCache(3, func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		cache.Put(ctx, fmt.Sprintf("key-%d", i), cachedReport{Accepted: i}, time.Minute)
	}

	if cache.Len() != 3 {
		t.Fatalf("cache exceeded capacity: len=%d", cache.Len())
	}

	var out cachedReport
	if hit, _ := cache.Get(ctx, "key-3", now, &out); !hit {
		t.Error("newest entry must survive the eviction")
	}
}
