package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type VrpPaymentStatus string

const (
	VrpPaymentAccepted VrpPaymentStatus = "ACCEPTED"
	VrpPaymentRejected VrpPaymentStatus = "REJECTED"
)

// VrpConsent carries the rolling per-period limit a variable recurring
// payment consent was authorised with. The limit and currency never change
// after authorisation.
type VrpConsent struct {
	ID            string          `json:"id" gorm:"primaryKey"`
	ParticipantID string          `json:"participant_id" gorm:"not null;index"`
	Status        ConsentStatus   `json:"status" gorm:"not null;default:'AUTHORISED'"`
	DebtorAccount string          `json:"debtor_account" gorm:"not null"`
	PeriodLimit   decimal.Decimal `json:"period_limit" gorm:"type:numeric(18,4)"`
	Currency      string          `json:"currency" gorm:"not null"`
	ExpiresAt     time.Time       `json:"expires_at" gorm:"not null"`
	CreatedAt     time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (c *VrpConsent) BelongsTo(participantID string) bool {
	return c.ParticipantID == participantID
}

func (c *VrpConsent) IsActive(now time.Time) bool {
	return c.Status == ConsentStatusAuthorised && now.Before(c.ExpiresAt)
}

// VrpPayment is one submission against a VRP consent. PeriodKey buckets the
// payment into the consent's limit window, e.g. "2026-08".
type VrpPayment struct {
	ID             string           `json:"id" gorm:"primaryKey"`
	ConsentID      string           `json:"consent_id" gorm:"not null;index"`
	ParticipantID  string           `json:"participant_id" gorm:"not null;index"`
	IdempotencyKey string           `json:"idempotency_key" gorm:"not null"`
	Amount         decimal.Decimal  `json:"amount" gorm:"type:numeric(18,4)"`
	Currency       string           `json:"currency" gorm:"not null"`
	PayeeIBAN      string           `json:"payee_iban" gorm:"not null"`
	Reference      string           `json:"reference"`
	PeriodKey      string           `json:"period_key" gorm:"not null;index"`
	Status         VrpPaymentStatus `json:"status" gorm:"not null"`
	CreatedAt      time.Time        `json:"created_at" gorm:"autoCreateTime"`
}

// PeriodKeyFor buckets an instant into the calendar-month window used for
// limit accounting.
func PeriodKeyFor(t time.Time) string {
	return t.UTC().Format("2006-01")
}
