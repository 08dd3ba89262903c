package services

import (
	"time"

	"github.com/obfin/openfinance/models"
	"github.com/obfin/openfinance/utils"
)

// ConsentPort is the read-mostly consent collaborator. Consents are
// authorised upstream; this core only reads them and flips status on
// revocation.
type ConsentPort interface {
	FindByID(id string) *models.ConsentContext
	UpdateStatus(id string, status models.ConsentStatus) bool
}

// ConsentGate is the shared authorization check in front of every use
// case. It has no side effects; each check fails fast with a distinct
// error kind.
type ConsentGate struct {
	consents ConsentPort
}

func CreateConsentGate(consents ConsentPort) *ConsentGate {
	return &ConsentGate{consents: consents}
}

// Authorize validates existence, ownership, liveness, scope and, when
// resourceID is non-empty, resource linkage - in that order.
func (g *ConsentGate) Authorize(consentID, participantID, scope, resourceID string, now time.Time) (*models.ConsentContext, error) {
	consent := g.consents.FindByID(consentID)
	if consent == nil {
		return nil, utils.ErrConsentNotFound
	}
	if !consent.BelongsTo(participantID) {
		return nil, utils.ErrParticipantMismatch
	}
	if consent.Status == models.ConsentStatusRevoked {
		return nil, utils.ErrConsentRevoked
	}
	if !now.Before(consent.ExpiresAt) {
		return nil, utils.ErrConsentExpired
	}
	if !consent.HasScope(scope) {
		return nil, utils.ErrScopeMissing.WithDetails(scope)
	}
	if resourceID != "" && !consent.PermitsAccount(resourceID) {
		return nil, utils.ErrResourceNotLinked.WithDetails(resourceID)
	}
	return consent, nil
}

// Revoke transitions an owned consent to REVOKED. Scope and expiry are
// immutable; status is the only field a TPP can change.
func (g *ConsentGate) Revoke(consentID, participantID string) error {
	consent := g.consents.FindByID(consentID)
	if consent == nil {
		return utils.ErrConsentNotFound
	}
	if !consent.BelongsTo(participantID) {
		return utils.ErrParticipantMismatch
	}
	g.consents.UpdateStatus(consentID, models.ConsentStatusRevoked)
	return nil
}
