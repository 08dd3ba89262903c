package stores

import (
	"sync"
	"time"

	"github.com/obfin/openfinance/models"
)

const DefaultIdempotencyCapacity = 10000

// IdempotencyStore is the bounded in-memory exactly-once store. Records are
// keyed by (idempotency key, participant); expired records are removed
// lazily on lookup. When the store is full, one arbitrary entry is evicted
// to make room - capacity is a memory bound, not a recency guarantee.
type IdempotencyStore struct {
	mu       sync.Mutex
	records  map[string]*models.IdempotencyRecord
	capacity int
}

func CreateIdempotencyStore(capacity int) *IdempotencyStore {
	if capacity <= 0 {
		capacity = DefaultIdempotencyCapacity
	}
	return &IdempotencyStore{
		records:  make(map[string]*models.IdempotencyRecord),
		capacity: capacity,
	}
}

func recordKey(key, participantID string) string {
	return key + "|" + participantID
}

// Find returns the unexpired record for (key, participant), or nil. An
// expired record is deleted and reported as absent, never as an error.
func (s *IdempotencyStore) Find(key, participantID string, now time.Time) *models.IdempotencyRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	composite := recordKey(key, participantID)
	record, ok := s.records[composite]
	if !ok {
		return nil
	}
	if record.IsExpired(now) {
		delete(s.records, composite)
		return nil
	}
	return record
}

// Save inserts or replaces the record for its composite key, evicting one
// arbitrary existing entry first if the store is at capacity.
func (s *IdempotencyStore) Save(record *models.IdempotencyRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	composite := recordKey(record.Key, record.ParticipantID)
	if _, exists := s.records[composite]; !exists && len(s.records) >= s.capacity {
		for victim := range s.records {
			delete(s.records, victim)
			break
		}
	}
	s.records[composite] = record
}

func (s *IdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
