package models

import (
	"time"
)

// IdempotencyRecord pins one processed write per (key, participant). The
// stored request hash decides replay versus conflict on retry; ResultID
// points at whatever the write produced (file id, payment id, deal id).
type IdempotencyRecord struct {
	Key            string    `json:"key"`
	ParticipantID  string    `json:"participant_id"`
	RequestHash    string    `json:"request_hash"`
	ResultID       string    `json:"result_id"`
	StatusSnapshot string    `json:"status_snapshot"`
	ExpiresAt      time.Time `json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
}

func (r *IdempotencyRecord) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

func (r *IdempotencyRecord) Matches(requestHash string) bool {
	return r.RequestHash == requestHash
}
