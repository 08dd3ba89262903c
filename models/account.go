package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the read-side aggregate served by the account information use
// case. The core never mutates accounts; they arrive from the bank's
// systems of record.
type Account struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	IBAN      string    `json:"iban" gorm:"not null"`
	Nickname  string    `json:"nickname"`
	Currency  string    `json:"currency" gorm:"not null"`
	Type      string    `json:"type"`
	OpenedAt  time.Time `json:"opened_at"`
}

type Balance struct {
	AccountID string          `json:"account_id" gorm:"primaryKey"`
	Available decimal.Decimal `json:"available" gorm:"type:numeric(18,4)"`
	Current   decimal.Decimal `json:"current" gorm:"type:numeric(18,4)"`
	Currency  string          `json:"currency" gorm:"not null"`
	AsOf      time.Time       `json:"as_of"`
}

type Transaction struct {
	ID        string          `json:"id" gorm:"primaryKey"`
	AccountID string          `json:"account_id" gorm:"not null;index"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:numeric(18,4)"`
	Currency  string          `json:"currency" gorm:"not null"`
	Direction string          `json:"direction"`
	Narrative string          `json:"narrative"`
	BookedAt  time.Time       `json:"booked_at" gorm:"index"`
}

// TransactionPage is the cached unit for paged transaction queries; the
// page and filter parameters that produced it are part of the cache key,
// never of the value.
type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	Page         int           `json:"page"`
	PageSize     int           `json:"page_size"`
	Total        int           `json:"total"`
}
