package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/obfin/openfinance/models"
	"github.com/obfin/openfinance/stores"
	"github.com/obfin/openfinance/utils"
)

// FxPort persists quotes and deals.
type FxPort interface {
	SaveQuote(ctx context.Context, quote *models.FxQuote) error
	FindQuoteByID(ctx context.Context, id string) (*models.FxQuote, error)
	SaveDeal(ctx context.Context, deal *models.FxDeal) error
	FindDealByID(ctx context.Context, id string) (*models.FxDeal, error)
	FindDealByQuoteID(ctx context.Context, quoteID string) (*models.FxDeal, error)
}

// RateSource supplies the indicative rate for a currency pair. The
// directory of tradable pairs lives outside this core.
type RateSource interface {
	Rate(source, target string) (decimal.Decimal, bool)
}

// FixedRateTable is the in-process RateSource, keyed "SRC/TGT".
type FixedRateTable map[string]decimal.Decimal

func (t FixedRateTable) Rate(source, target string) (decimal.Decimal, bool) {
	rate, ok := t[source+"/"+target]
	return rate, ok
}

type FxSettings struct {
	IdempotencyTTL time.Duration
	CacheTTL       time.Duration
	QuoteValidity  time.Duration
}

// FxService owns the quote lifecycle: QUOTED is the only live state, and a
// quote moves exactly once, to ACCEPTED via booking or to EXPIRED once its
// validity deadline passes.
type FxService struct {
	gate        *ConsentGate
	fx          FxPort
	rates       RateSource
	idempotency *stores.IdempotencyStore
	cache       stores.CacheBackend
	clock       utils.Clock
	settings    FxSettings
	logger      *utils.Logger
}

func CreateFxService(gate *ConsentGate, fx FxPort, rates RateSource, idempotency *stores.IdempotencyStore, cache stores.CacheBackend, clock utils.Clock, settings FxSettings) *FxService {
	return &FxService{
		gate:        gate,
		fx:          fx,
		rates:       rates,
		idempotency: idempotency,
		cache:       cache,
		clock:       clock,
		settings:    settings,
		logger:      utils.CreateLogger("fx"),
	}
}

type CreateFxQuoteCommand struct {
	ConsentID      string
	ParticipantID  string
	SourceCurrency string
	TargetCurrency string
	SourceAmount   decimal.Decimal
}

func fxParamsHash(sourceCurrency, targetCurrency string, sourceAmount decimal.Decimal) string {
	return utils.HashFields(map[string]string{
		"source_currency": sourceCurrency,
		"target_currency": targetCurrency,
		"source_amount":   sourceAmount.String(),
	})
}

func (s *FxService) CreateQuote(ctx context.Context, cmd CreateFxQuoteCommand) (*models.FxQuote, error) {
	now := s.clock.Now()

	if _, err := s.gate.Authorize(cmd.ConsentID, cmd.ParticipantID, models.ScopeFxQuotes, "", now); err != nil {
		return nil, err
	}
	if !utils.IsValidCurrency(cmd.SourceCurrency) || !utils.IsValidCurrency(cmd.TargetCurrency) {
		return nil, utils.BusinessRuleError("Invalid currency code")
	}
	if cmd.SourceCurrency == cmd.TargetCurrency {
		return nil, utils.BusinessRuleError("Source and target currency must differ")
	}
	if !utils.IsPositiveAmount(cmd.SourceAmount) {
		return nil, utils.BusinessRuleError("Quote amount must be positive")
	}

	rate, ok := s.rates.Rate(cmd.SourceCurrency, cmd.TargetCurrency)
	if !ok {
		return nil, utils.BusinessRuleError("Unsupported currency pair")
	}

	quote := &models.FxQuote{
		ID:             "QUOTE-FX-" + uuid.NewString(),
		ConsentID:      cmd.ConsentID,
		ParticipantID:  cmd.ParticipantID,
		SourceCurrency: cmd.SourceCurrency,
		TargetCurrency: cmd.TargetCurrency,
		SourceAmount:   cmd.SourceAmount,
		TargetAmount:   cmd.SourceAmount.Mul(rate).Round(4),
		Rate:           rate,
		Status:         models.QuoteStatusQuoted,
		ParamsHash:     fxParamsHash(cmd.SourceCurrency, cmd.TargetCurrency, cmd.SourceAmount),
		ValidUntil:     now.Add(s.settings.QuoteValidity),
		CreatedAt:      now,
	}
	if err := s.fx.SaveQuote(ctx, quote); err != nil {
		return nil, err
	}
	return quote, nil
}

// GetQuote returns the quote, marking it EXPIRED first when its deadline
// has passed.
func (s *FxService) GetQuote(ctx context.Context, quoteID, participantID string) (*models.FxQuote, models.CacheSignal, error) {
	now := s.clock.Now()
	cacheKey := utils.CacheKey("fx-quote", quoteID, participantID)

	var cached models.FxQuote
	hit, err := s.cache.Get(ctx, cacheKey, now, &cached)
	if err != nil {
		return nil, models.CacheMiss, err
	}
	if hit {
		return &cached, models.CacheHit, nil
	}

	quote, err := s.fx.FindQuoteByID(ctx, quoteID)
	if err != nil {
		return nil, models.CacheMiss, err
	}
	if quote == nil {
		return nil, models.CacheMiss, utils.ErrResourceNotFound
	}
	if !quote.BelongsTo(participantID) {
		return nil, models.CacheMiss, utils.ErrParticipantMismatch
	}

	if quote.Status == models.QuoteStatusQuoted && quote.IsExpired(now) {
		quote.Status = models.QuoteStatusExpired
		if err := s.fx.SaveQuote(ctx, quote); err != nil {
			return nil, models.CacheMiss, err
		}
	}

	if err := s.cache.Put(ctx, cacheKey, quote, s.settings.CacheTTL); err != nil {
		return nil, models.CacheMiss, err
	}
	return quote, models.CacheMiss, nil
}

type BookFxDealCommand struct {
	QuoteID        string
	ParticipantID  string
	IdempotencyKey string
	SourceCurrency string
	TargetCurrency string
	SourceAmount   decimal.Decimal
}

type FxDealResult struct {
	Deal     *models.FxDeal
	Replayed bool
}

// BookDeal accepts a quote. The quote's pinned parameters are checked
// before the idempotency engine so a manipulated retry is a business-rule
// violation, not a replay or a conflict; booking itself is exactly-once
// per (quote, idempotency key).
func (s *FxService) BookDeal(ctx context.Context, cmd BookFxDealCommand) (*FxDealResult, error) {
	now := s.clock.Now()

	quote, err := s.fx.FindQuoteByID(ctx, cmd.QuoteID)
	if err != nil {
		return nil, err
	}
	if quote == nil {
		return nil, utils.ErrResourceNotFound
	}
	if !quote.BelongsTo(cmd.ParticipantID) {
		return nil, utils.ErrParticipantMismatch
	}
	if fxParamsHash(cmd.SourceCurrency, cmd.TargetCurrency, cmd.SourceAmount) != quote.ParamsHash {
		return nil, utils.ErrQuoteManipulation
	}

	bookingKey := utils.CacheKey("fx-book", cmd.QuoteID, cmd.IdempotencyKey)
	requestHash := quote.ParamsHash

	if record := s.idempotency.Find(bookingKey, cmd.ParticipantID, now); record != nil {
		if !record.Matches(requestHash) {
			return nil, utils.ErrIdempotencyConflict
		}
		deal, err := s.fx.FindDealByID(ctx, record.ResultID)
		if err != nil {
			return nil, err
		}
		if deal == nil {
			return nil, utils.NotFoundError("Deal not found for idempotency record")
		}
		return &FxDealResult{Deal: deal, Replayed: true}, nil
	}

	if quote.IsTerminal() {
		return nil, utils.ErrQuoteNotAcceptable
	}
	if quote.IsExpired(now) {
		quote.Status = models.QuoteStatusExpired
		if err := s.fx.SaveQuote(ctx, quote); err != nil {
			return nil, err
		}
		return nil, utils.ErrQuoteExpired
	}

	deal := &models.FxDeal{
		ID:             "DEAL-FX-" + uuid.NewString(),
		QuoteID:        quote.ID,
		ConsentID:      quote.ConsentID,
		ParticipantID:  quote.ParticipantID,
		SourceCurrency: quote.SourceCurrency,
		TargetCurrency: quote.TargetCurrency,
		SourceAmount:   quote.SourceAmount,
		TargetAmount:   quote.TargetAmount,
		Rate:           quote.Rate,
		BookedAt:       now,
	}
	if err := s.fx.SaveDeal(ctx, deal); err != nil {
		return nil, err
	}

	quote.Status = models.QuoteStatusAccepted
	if err := s.fx.SaveQuote(ctx, quote); err != nil {
		return nil, err
	}
	// The cached QUOTED view is stale the moment the deal books.
	if err := s.cache.Delete(ctx, utils.CacheKey("fx-quote", quote.ID, cmd.ParticipantID)); err != nil {
		return nil, err
	}

	s.idempotency.Save(&models.IdempotencyRecord{
		Key:            bookingKey,
		ParticipantID:  cmd.ParticipantID,
		RequestHash:    requestHash,
		ResultID:       deal.ID,
		StatusSnapshot: string(models.QuoteStatusAccepted),
		ExpiresAt:      now.Add(s.settings.IdempotencyTTL),
		CreatedAt:      now,
	})

	s.logger.Info(ctx, "fx deal booked", map[string]interface{}{
		"deal_id":  deal.ID,
		"quote_id": quote.ID,
	})

	return &FxDealResult{Deal: deal}, nil
}

func (s *FxService) GetDeal(ctx context.Context, dealID, participantID string) (*models.FxDeal, models.CacheSignal, error) {
	now := s.clock.Now()
	cacheKey := utils.CacheKey("fx-deal", dealID, participantID)

	var cached models.FxDeal
	hit, err := s.cache.Get(ctx, cacheKey, now, &cached)
	if err != nil {
		return nil, models.CacheMiss, err
	}
	if hit {
		return &cached, models.CacheHit, nil
	}

	deal, err := s.fx.FindDealByID(ctx, dealID)
	if err != nil {
		return nil, models.CacheMiss, err
	}
	if deal == nil {
		return nil, models.CacheMiss, utils.ErrResourceNotFound
	}
	if deal.ParticipantID != participantID {
		return nil, models.CacheMiss, utils.ErrParticipantMismatch
	}

	if err := s.cache.Put(ctx, cacheKey, deal, s.settings.CacheTTL); err != nil {
		return nil, models.CacheMiss, err
	}
	return deal, models.CacheMiss, nil
}
