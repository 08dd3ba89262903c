package services

import (
	"context"
	"strconv"
	"time"

	"github.com/obfin/openfinance/models"
	"github.com/obfin/openfinance/stores"
	"github.com/obfin/openfinance/utils"
)

// AccountPort reads account data from the bank's systems of record.
type AccountPort interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindBalance(ctx context.Context, accountID string) (*models.Balance, error)
	FindTransactions(ctx context.Context, accountID string, from, to time.Time, page, pageSize int) ([]models.Transaction, int64, error)
}

type AccountSettings struct {
	CacheTTL time.Duration
}

// AccountService is the read-side use case: every query goes through the
// consent gate and then the TTL cache, with the full parameter set encoded
// into the cache key.
type AccountService struct {
	gate     *ConsentGate
	accounts AccountPort
	cache    stores.CacheBackend
	clock    utils.Clock
	settings AccountSettings
}

func CreateAccountService(gate *ConsentGate, accounts AccountPort, cache stores.CacheBackend, clock utils.Clock, settings AccountSettings) *AccountService {
	return &AccountService{
		gate:     gate,
		accounts: accounts,
		cache:    cache,
		clock:    clock,
		settings: settings,
	}
}

func (s *AccountService) ListAccounts(ctx context.Context, consentID, participantID string) ([]models.Account, models.CacheSignal, error) {
	now := s.clock.Now()

	consent, err := s.gate.Authorize(consentID, participantID, models.ScopeAccounts, "", now)
	if err != nil {
		return nil, models.CacheMiss, err
	}

	cacheKey := utils.CacheKey("accounts", consentID, participantID)
	var cached []models.Account
	hit, err := s.cache.Get(ctx, cacheKey, now, &cached)
	if err != nil {
		return nil, models.CacheMiss, err
	}
	if hit {
		return cached, models.CacheHit, nil
	}

	accounts, err := s.accounts.FindByIDs(ctx, consent.AccountIDs)
	if err != nil {
		return nil, models.CacheMiss, err
	}
	if err := s.cache.Put(ctx, cacheKey, accounts, s.settings.CacheTTL); err != nil {
		return nil, models.CacheMiss, err
	}
	return accounts, models.CacheMiss, nil
}

// GetAccount also returns the representation's ETag so the transport can
// answer If-None-Match without recomputation.
func (s *AccountService) GetAccount(ctx context.Context, consentID, participantID, accountID string) (*models.Account, models.CacheSignal, string, error) {
	now := s.clock.Now()

	if _, err := s.gate.Authorize(consentID, participantID, models.ScopeAccounts, accountID, now); err != nil {
		return nil, models.CacheMiss, "", err
	}

	cacheKey := utils.CacheKey("account", consentID, accountID)
	signal := models.CacheMiss

	var account models.Account
	hit, err := s.cache.Get(ctx, cacheKey, now, &account)
	if err != nil {
		return nil, models.CacheMiss, "", err
	}
	if hit {
		signal = models.CacheHit
	} else {
		found, err := s.accounts.FindByID(ctx, accountID)
		if err != nil {
			return nil, models.CacheMiss, "", err
		}
		if found == nil {
			return nil, models.CacheMiss, "", utils.ErrResourceNotFound
		}
		account = *found
		if err := s.cache.Put(ctx, cacheKey, account, s.settings.CacheTTL); err != nil {
			return nil, models.CacheMiss, "", err
		}
	}

	return &account, signal, AccountETag(&account), nil
}

// AccountETag hashes the externally significant fields of the served
// representation.
func AccountETag(account *models.Account) string {
	return utils.HashFields(map[string]string{
		"id":       account.ID,
		"iban":     account.IBAN,
		"nickname": account.Nickname,
		"currency": account.Currency,
		"type":     account.Type,
	})
}

func (s *AccountService) GetBalances(ctx context.Context, consentID, participantID, accountID string) (*models.Balance, models.CacheSignal, error) {
	now := s.clock.Now()

	if _, err := s.gate.Authorize(consentID, participantID, models.ScopeAccounts, accountID, now); err != nil {
		return nil, models.CacheMiss, err
	}

	cacheKey := utils.CacheKey("balances", consentID, accountID)
	var cached models.Balance
	hit, err := s.cache.Get(ctx, cacheKey, now, &cached)
	if err != nil {
		return nil, models.CacheMiss, err
	}
	if hit {
		return &cached, models.CacheHit, nil
	}

	balance, err := s.accounts.FindBalance(ctx, accountID)
	if err != nil {
		return nil, models.CacheMiss, err
	}
	if balance == nil {
		return nil, models.CacheMiss, utils.NotFoundError("Balance not found")
	}
	if err := s.cache.Put(ctx, cacheKey, balance, s.settings.CacheTTL); err != nil {
		return nil, models.CacheMiss, err
	}
	return balance, models.CacheMiss, nil
}

type TransactionQuery struct {
	ConsentID     string
	ParticipantID string
	AccountID     string
	From          time.Time
	To            time.Time
	Page          int
	PageSize      int
}

func (q *TransactionQuery) normalize() {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 20
	}
	if q.PageSize > 100 {
		q.PageSize = 100
	}
}

func (q *TransactionQuery) cacheKey() string {
	return utils.CacheKey(
		"transactions",
		q.ConsentID,
		q.AccountID,
		q.From.UTC().Format(time.RFC3339),
		q.To.UTC().Format(time.RFC3339),
		strconv.Itoa(q.Page),
		strconv.Itoa(q.PageSize),
	)
}

func (s *AccountService) ListTransactions(ctx context.Context, query TransactionQuery) (*models.TransactionPage, models.CacheSignal, error) {
	now := s.clock.Now()
	query.normalize()

	if _, err := s.gate.Authorize(query.ConsentID, query.ParticipantID, models.ScopeAccounts, query.AccountID, now); err != nil {
		return nil, models.CacheMiss, err
	}

	cacheKey := query.cacheKey()
	var cached models.TransactionPage
	hit, err := s.cache.Get(ctx, cacheKey, now, &cached)
	if err != nil {
		return nil, models.CacheMiss, err
	}
	if hit {
		return &cached, models.CacheHit, nil
	}

	transactions, total, err := s.accounts.FindTransactions(ctx, query.AccountID, query.From, query.To, query.Page, query.PageSize)
	if err != nil {
		return nil, models.CacheMiss, err
	}

	page := &models.TransactionPage{
		Transactions: transactions,
		Page:         query.Page,
		PageSize:     query.PageSize,
		Total:        int(total),
	}
	if err := s.cache.Put(ctx, cacheKey, page, s.settings.CacheTTL); err != nil {
		return nil, models.CacheMiss, err
	}
	return page, models.CacheMiss, nil
}
