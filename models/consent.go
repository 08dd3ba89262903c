package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type ConsentStatus string

const (
	ConsentStatusAuthorised ConsentStatus = "AUTHORISED"
	ConsentStatusRevoked    ConsentStatus = "REVOKED"
)

const (
	ScopeAccounts        = "accounts"
	ScopePayments        = "payments"
	ScopeBulkPayments    = "bulk-payments"
	ScopeFxQuotes        = "fx-quotes"
	ScopeInsuranceQuotes = "insurance-quotes"
)

// StringList is stored as a jsonb column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *StringList) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported type for StringList: %T", value)
	}
}

func (l StringList) Contains(value string) bool {
	for _, item := range l {
		if item == value {
			return true
		}
	}
	return false
}

// ConsentContext is the read-only view of a consent this core authorizes
// against. Scopes, linked accounts and expiry are fixed at authorisation;
// only the status may change afterwards.
type ConsentContext struct {
	ID            string        `json:"id" gorm:"primaryKey"`
	ParticipantID string        `json:"participant_id" gorm:"not null;index"`
	Status        ConsentStatus `json:"status" gorm:"not null;default:'AUTHORISED'"`
	Scopes        StringList    `json:"scopes" gorm:"type:jsonb"`
	AccountIDs    StringList    `json:"account_ids" gorm:"type:jsonb"`
	ExpiresAt     time.Time     `json:"expires_at" gorm:"not null"`
	CreatedAt     time.Time     `json:"created_at" gorm:"autoCreateTime"`
}

func (c *ConsentContext) BelongsTo(participantID string) bool {
	return c.ParticipantID == participantID
}

func (c *ConsentContext) IsActive(now time.Time) bool {
	return c.Status == ConsentStatusAuthorised && now.Before(c.ExpiresAt)
}

func (c *ConsentContext) HasScope(scope string) bool {
	return c.Scopes.Contains(scope)
}

func (c *ConsentContext) PermitsAccount(accountID string) bool {
	return c.AccountIDs.Contains(accountID)
}
