package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type QuoteStatus string

const (
	QuoteStatusQuoted   QuoteStatus = "QUOTED"
	QuoteStatusAccepted QuoteStatus = "ACCEPTED"
	QuoteStatusExpired  QuoteStatus = "EXPIRED"
)

// FxQuote is a time-boxed rate offer. QUOTED is the only non-terminal
// state; once ACCEPTED or EXPIRED the quote never moves again.
type FxQuote struct {
	ID             string          `json:"id" gorm:"primaryKey"`
	ConsentID      string          `json:"consent_id" gorm:"not null;index"`
	ParticipantID  string          `json:"participant_id" gorm:"not null;index"`
	SourceCurrency string          `json:"source_currency" gorm:"not null"`
	TargetCurrency string          `json:"target_currency" gorm:"not null"`
	SourceAmount   decimal.Decimal `json:"source_amount" gorm:"type:numeric(18,4)"`
	TargetAmount   decimal.Decimal `json:"target_amount" gorm:"type:numeric(18,4)"`
	Rate           decimal.Decimal `json:"rate" gorm:"type:numeric(18,8)"`
	Status         QuoteStatus     `json:"status" gorm:"not null;default:'QUOTED'"`
	ParamsHash     string          `json:"params_hash" gorm:"not null"`
	ValidUntil     time.Time       `json:"valid_until" gorm:"not null"`
	CreatedAt      time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (q *FxQuote) BelongsTo(participantID string) bool {
	return q.ParticipantID == participantID
}

func (q *FxQuote) IsExpired(now time.Time) bool {
	return !q.ValidUntil.After(now)
}

func (q *FxQuote) IsTerminal() bool {
	return q.Status != QuoteStatusQuoted
}

// FxDeal is the booked outcome of an accepted quote, immutable once
// created.
type FxDeal struct {
	ID             string          `json:"id" gorm:"primaryKey"`
	QuoteID        string          `json:"quote_id" gorm:"not null;uniqueIndex"`
	ConsentID      string          `json:"consent_id" gorm:"not null;index"`
	ParticipantID  string          `json:"participant_id" gorm:"not null;index"`
	SourceCurrency string          `json:"source_currency" gorm:"not null"`
	TargetCurrency string          `json:"target_currency" gorm:"not null"`
	SourceAmount   decimal.Decimal `json:"source_amount" gorm:"type:numeric(18,4)"`
	TargetAmount   decimal.Decimal `json:"target_amount" gorm:"type:numeric(18,4)"`
	Rate           decimal.Decimal `json:"rate" gorm:"type:numeric(18,8)"`
	BookedAt       time.Time       `json:"booked_at"`
}
