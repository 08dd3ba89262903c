package stores

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/obfin/openfinance/models"
)

type VrpStore struct {
	BaseStore
}

func CreateVrpStore(db *gorm.DB) *VrpStore {
	return &VrpStore{BaseStore: BaseStore{db: db}}
}

func (s *VrpStore) SaveConsent(ctx context.Context, consent *models.VrpConsent) error {
	return s.GetDB(ctx).Save(consent).Error
}

func (s *VrpStore) FindConsentByID(ctx context.Context, id string) (*models.VrpConsent, error) {
	var consent models.VrpConsent
	err := s.GetDB(ctx).First(&consent, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &consent, nil
}

func (s *VrpStore) SavePayment(ctx context.Context, payment *models.VrpPayment) error {
	return s.GetDB(ctx).Save(payment).Error
}

func (s *VrpStore) FindPaymentByID(ctx context.Context, id string) (*models.VrpPayment, error) {
	var payment models.VrpPayment
	err := s.GetDB(ctx).First(&payment, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// SumAcceptedAmount totals the ACCEPTED payments for a consent within one
// limit period. Callers must hold the consent lock for the read to be
// usable in a check-then-act.
func (s *VrpStore) SumAcceptedAmount(ctx context.Context, consentID, periodKey string) (decimal.Decimal, error) {
	var raw *string
	err := s.GetDB(ctx).
		Model(&models.VrpPayment{}).
		Select("SUM(amount)").
		Where("consent_id = ? AND period_key = ? AND status = ?", consentID, periodKey, models.VrpPaymentAccepted).
		Scan(&raw).Error
	if err != nil {
		return decimal.Zero, err
	}
	if raw == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(*raw)
}
