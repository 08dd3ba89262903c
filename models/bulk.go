package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type BulkFileStatus string

const (
	BulkStatusProcessing        BulkFileStatus = "PROCESSING"
	BulkStatusCompleted         BulkFileStatus = "COMPLETED"
	BulkStatusPartiallyAccepted BulkFileStatus = "PARTIALLY_ACCEPTED"
	BulkStatusRejected          BulkFileStatus = "REJECTED"
)

type BulkIntegrityMode string

const (
	IntegrityPartialRejection BulkIntegrityMode = "PARTIAL_REJECTION"
	IntegrityFullRejection    BulkIntegrityMode = "FULL_REJECTION"
)

type BulkItemStatus string

const (
	BulkItemAccepted BulkItemStatus = "ACCEPTED"
	BulkItemRejected BulkItemStatus = "REJECTED"
)

// BulkFile is the aggregate for one uploaded payment file. TargetStatus is
// fixed at upload from per-item validation; PollCount drives the simulated
// settlement advance. Once terminal the row never changes again.
type BulkFile struct {
	ID            string            `json:"id" gorm:"primaryKey"`
	ConsentID     string            `json:"consent_id" gorm:"not null;index"`
	ParticipantID string            `json:"participant_id" gorm:"not null;index"`
	IdempotencyKey string           `json:"idempotency_key" gorm:"not null"`
	ContentHash   string            `json:"content_hash" gorm:"not null"`
	FileName      string            `json:"file_name"`
	IntegrityMode BulkIntegrityMode `json:"integrity_mode" gorm:"not null"`
	Status        BulkFileStatus    `json:"status" gorm:"not null;default:'PROCESSING'"`
	TargetStatus  BulkFileStatus    `json:"target_status" gorm:"not null"`
	PollCount     int               `json:"poll_count" gorm:"default:0"`
	TotalCount    int               `json:"total_count"`
	AcceptedCount int               `json:"accepted_count"`
	RejectedCount int               `json:"rejected_count"`
	TotalAmount   decimal.Decimal   `json:"total_amount" gorm:"type:numeric(18,4)"`
	CreatedAt     time.Time         `json:"created_at" gorm:"autoCreateTime"`
	ProcessedAt   *time.Time        `json:"processed_at"`
}

func (f *BulkFile) IsTerminal() bool {
	return f.Status != BulkStatusProcessing
}

func (f *BulkFile) BelongsTo(participantID string) bool {
	return f.ParticipantID == participantID
}

// AdvanceProcessing increments the poll counter and snaps the file to its
// target status once the configured number of polls is reached. Returns
// true when the file changed.
func (f *BulkFile) AdvanceProcessing(requiredPolls int, now time.Time) bool {
	if f.IsTerminal() {
		return false
	}
	f.PollCount++
	if f.PollCount >= requiredPolls {
		f.Status = f.TargetStatus
		f.ProcessedAt = &now
	}
	return true
}

// BulkItemResult records the outcome for a single file row. ErrorMessage is
// set iff the item was rejected.
type BulkItemResult struct {
	LineNumber    int             `json:"line_number"`
	InstructionID string          `json:"instruction_id"`
	PayeeIBAN     string          `json:"payee_iban"`
	Amount        decimal.Decimal `json:"amount"`
	Status        BulkItemStatus  `json:"status"`
	ErrorMessage  string          `json:"error_message,omitempty"`
}

// BulkItemResults is stored as a jsonb column on the report row.
type BulkItemResults []BulkItemResult

func (r BulkItemResults) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (r *BulkItemResults) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*r = nil
		return nil
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return fmt.Errorf("unsupported type for BulkItemResults: %T", value)
	}
}

// BulkFileReport is the deterministic per-item outcome of an upload. It is
// computed once from the file content and re-rendered unchanged on every
// read.
type BulkFileReport struct {
	FileID         string          `json:"file_id" gorm:"primaryKey"`
	Status         BulkFileStatus  `json:"status" gorm:"not null"`
	TotalCount     int             `json:"total_count"`
	AcceptedCount  int             `json:"accepted_count"`
	RejectedCount  int             `json:"rejected_count"`
	AcceptedAmount decimal.Decimal `json:"accepted_amount" gorm:"type:numeric(18,4)"`
	Items          BulkItemResults `json:"items" gorm:"type:jsonb"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// BulkUploadResult is what the upload operation returns, both fresh and on
// idempotent replay.
type BulkUploadResult struct {
	FileID        string         `json:"file_id"`
	Status        BulkFileStatus `json:"status"`
	AcceptedCount int            `json:"accepted_count"`
	RejectedCount int            `json:"rejected_count"`
	CreatedAt     time.Time      `json:"created_at"`
	Replayed      bool           `json:"-"`
}
