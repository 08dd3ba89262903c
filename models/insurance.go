package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InsuranceQuote is a motor insurance premium offer. It shares the quote
// lifecycle with FxQuote: QUOTED until accepted or past ValidUntil. The
// vehicle and driver facts presented at creation are pinned via ParamsHash;
// an accept with different facts is rejected as manipulation.
type InsuranceQuote struct {
	ID            string          `json:"id" gorm:"primaryKey"`
	ConsentID     string          `json:"consent_id" gorm:"not null;index"`
	ParticipantID string          `json:"participant_id" gorm:"not null;index"`
	VehicleValue  decimal.Decimal `json:"vehicle_value" gorm:"type:numeric(18,4)"`
	VehicleYear   int             `json:"vehicle_year"`
	DriverAge     int             `json:"driver_age"`
	ClaimFree     bool            `json:"claim_free"`
	Premium       decimal.Decimal `json:"premium" gorm:"type:numeric(18,4)"`
	Currency      string          `json:"currency" gorm:"not null"`
	Status        QuoteStatus     `json:"status" gorm:"not null;default:'QUOTED'"`
	ParamsHash    string          `json:"params_hash" gorm:"not null"`
	ValidUntil    time.Time       `json:"valid_until" gorm:"not null"`
	CreatedAt     time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (q *InsuranceQuote) BelongsTo(participantID string) bool {
	return q.ParticipantID == participantID
}

func (q *InsuranceQuote) IsExpired(now time.Time) bool {
	return !q.ValidUntil.After(now)
}

func (q *InsuranceQuote) IsTerminal() bool {
	return q.Status != QuoteStatusQuoted
}

// InsurancePolicy is issued from an accepted quote and immutable once
// bound.
type InsurancePolicy struct {
	ID            string          `json:"id" gorm:"primaryKey"`
	QuoteID       string          `json:"quote_id" gorm:"not null;uniqueIndex"`
	ConsentID     string          `json:"consent_id" gorm:"not null;index"`
	ParticipantID string          `json:"participant_id" gorm:"not null;index"`
	Premium       decimal.Decimal `json:"premium" gorm:"type:numeric(18,4)"`
	Currency      string          `json:"currency" gorm:"not null"`
	BoundAt       time.Time       `json:"bound_at"`
}
