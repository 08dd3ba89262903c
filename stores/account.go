package stores

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/obfin/openfinance/models"
)

// AccountStore reads the bank's account, balance and transaction records.
// This core never writes them.
type AccountStore struct {
	BaseStore
}

func CreateAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{BaseStore: BaseStore{db: db}}
}

func (s *AccountStore) FindByIDs(ctx context.Context, ids []string) ([]models.Account, error) {
	var accounts []models.Account
	if len(ids) == 0 {
		return accounts, nil
	}
	err := s.GetDB(ctx).Where("id IN ?", ids).Order("id").Find(&accounts).Error
	return accounts, err
}

func (s *AccountStore) FindByID(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	err := s.GetDB(ctx).First(&account, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *AccountStore) FindBalance(ctx context.Context, accountID string) (*models.Balance, error) {
	var balance models.Balance
	err := s.GetDB(ctx).First(&balance, "account_id = ?", accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

func (s *AccountStore) FindTransactions(ctx context.Context, accountID string, from, to time.Time, page, pageSize int) ([]models.Transaction, int64, error) {
	query := s.GetDB(ctx).
		Model(&models.Transaction{}).
		Where("account_id = ?", accountID)
	if !from.IsZero() {
		query = query.Where("booked_at >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("booked_at < ?", to)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var transactions []models.Transaction
	err := query.
		Order("booked_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error
	return transactions, total, err
}
