package stores

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/obfin/openfinance/models"
)

func record(key, participant string, expiresAt time.Time) *models.IdempotencyRecord {
	return &models.IdempotencyRecord{
		Key:           key,
		ParticipantID: participant,
		RequestHash:   "hash-" + key,
		ResultID:      "result-" + key,
		ExpiresAt:     expiresAt,
	}
}

func TestIdempotencyStore_FindAndSave(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	store := CreateIdempotencyStore(10)

	t.Run("Missing key returns nil", func(t *testing.T) {
		if got := store.Find("unknown", "tpp-1", now); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("Saved record is found for its participant only", func(t *testing.T) {
		store.Save(record("key-1", "tpp-1", now.Add(time.Hour)))

		if got := store.Find("key-1", "tpp-1", now); got == nil || got.ResultID != "result-key-1" {
			t.Errorf("expected record, got %+v", got)
		}
		if got := store.Find("key-1", "tpp-2", now); got != nil {
			t.Errorf("record leaked across participants: %+v", got)
		}
	})

	t.Run("Expired record is treated as absent and removed", func(t *testing.T) {
		store.Save(record("key-2", "tpp-1", now.Add(time.Minute)))

		if got := store.Find("key-2", "tpp-1", now.Add(time.Minute)); got != nil {
			t.Errorf("record at exact expiry should be absent, got %+v", got)
		}
		if store.Len() != 1 {
			t.Errorf("expired record not removed, len=%d", store.Len())
		}
	})
}

func TestIdempotencyStore_CapacityEviction(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	store := CreateIdempotencyStore(3)

	for i := 0; i < 3; i++ {
		store.Save(record(fmt.Sprintf("key-%d", i), "tpp-1", now.Add(time.Hour)))
	}
	store.Save(record("key-overflow", "tpp-1", now.Add(time.Hour)))

	if store.Len() != 3 {
		t.Fatalf("store exceeded capacity: len=%d", store.Len())
	}
	if got := store.Find("key-overflow", "tpp-1", now); got == nil {
		t.Error("newest record must survive the eviction")
	}
}

func TestIdempotencyStore_OverwriteDoesNotEvict(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	store := CreateIdempotencyStore(2)

	store.Save(record("key-a", "tpp-1", now.Add(time.Hour)))
	store.Save(record("key-b", "tpp-1", now.Add(time.Hour)))
	store.Save(record("key-a", "tpp-1", now.Add(2*time.Hour)))

	if store.Len() != 2 {
		t.Fatalf("overwrite changed store size: len=%d", store.Len())
	}
	if got := store.Find("key-b", "tpp-1", now); got == nil {
		t.Error("overwriting an existing key must not evict a neighbour")
	}
}

func TestIdempotencyStore_ConcurrentAccess(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	store := CreateIdempotencyStore(100)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", i%10)
			store.Save(record(key, "tpp-1", now.Add(time.Hour)))
			store.Find(key, "tpp-1", now)
		}(i)
	}
	wg.Wait()

	if store.Len() != 10 {
		t.Errorf("expected 10 distinct records, got %d", store.Len())
	}
}
