package stores

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/obfin/openfinance/models"
)

type InsuranceStore struct {
	BaseStore
}

func CreateInsuranceStore(db *gorm.DB) *InsuranceStore {
	return &InsuranceStore{BaseStore: BaseStore{db: db}}
}

func (s *InsuranceStore) SaveQuote(ctx context.Context, quote *models.InsuranceQuote) error {
	return s.GetDB(ctx).Save(quote).Error
}

func (s *InsuranceStore) FindQuoteByID(ctx context.Context, id string) (*models.InsuranceQuote, error) {
	var quote models.InsuranceQuote
	err := s.GetDB(ctx).First(&quote, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

func (s *InsuranceStore) SavePolicy(ctx context.Context, policy *models.InsurancePolicy) error {
	return s.GetDB(ctx).Save(policy).Error
}

func (s *InsuranceStore) FindPolicyByQuoteID(ctx context.Context, quoteID string) (*models.InsurancePolicy, error) {
	var policy models.InsurancePolicy
	err := s.GetDB(ctx).First(&policy, "quote_id = ?", quoteID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &policy, nil
}
