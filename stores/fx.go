package stores

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/obfin/openfinance/models"
)

type FxStore struct {
	BaseStore
}

func CreateFxStore(db *gorm.DB) *FxStore {
	return &FxStore{BaseStore: BaseStore{db: db}}
}

func (s *FxStore) SaveQuote(ctx context.Context, quote *models.FxQuote) error {
	return s.GetDB(ctx).Save(quote).Error
}

func (s *FxStore) FindQuoteByID(ctx context.Context, id string) (*models.FxQuote, error) {
	var quote models.FxQuote
	err := s.GetDB(ctx).First(&quote, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

func (s *FxStore) SaveDeal(ctx context.Context, deal *models.FxDeal) error {
	return s.GetDB(ctx).Save(deal).Error
}

func (s *FxStore) FindDealByID(ctx context.Context, id string) (*models.FxDeal, error) {
	var deal models.FxDeal
	err := s.GetDB(ctx).First(&deal, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

func (s *FxStore) FindDealByQuoteID(ctx context.Context, quoteID string) (*models.FxDeal, error) {
	var deal models.FxDeal
	err := s.GetDB(ctx).First(&deal, "quote_id = ?", quoteID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &deal, nil
}
