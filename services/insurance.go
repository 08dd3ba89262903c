package services

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/obfin/openfinance/models"
	"github.com/obfin/openfinance/stores"
	"github.com/obfin/openfinance/utils"
)

type InsurancePort interface {
	SaveQuote(ctx context.Context, quote *models.InsuranceQuote) error
	FindQuoteByID(ctx context.Context, id string) (*models.InsuranceQuote, error)
	SavePolicy(ctx context.Context, policy *models.InsurancePolicy) error
	FindPolicyByQuoteID(ctx context.Context, quoteID string) (*models.InsurancePolicy, error)
}

type InsuranceSettings struct {
	IdempotencyTTL time.Duration
	QuoteValidity  time.Duration
	Currency       string
}

// InsuranceService runs motor quotes through the same lifecycle as FX:
// the facts presented at quotation are pinned, and acceptance is an
// exactly-once write against the quote.
type InsuranceService struct {
	gate        *ConsentGate
	policies    InsurancePort
	idempotency *stores.IdempotencyStore
	clock       utils.Clock
	settings    InsuranceSettings
	logger      *utils.Logger
}

func CreateInsuranceService(gate *ConsentGate, policies InsurancePort, idempotency *stores.IdempotencyStore, clock utils.Clock, settings InsuranceSettings) *InsuranceService {
	return &InsuranceService{
		gate:        gate,
		policies:    policies,
		idempotency: idempotency,
		clock:       clock,
		settings:    settings,
		logger:      utils.CreateLogger("insurance"),
	}
}

type CreateInsuranceQuoteCommand struct {
	ConsentID     string
	ParticipantID string
	VehicleValue  decimal.Decimal
	VehicleYear   int
	DriverAge     int
	ClaimFree     bool
}

func insuranceParamsHash(cmd CreateInsuranceQuoteCommand) string {
	return utils.HashFields(map[string]string{
		"vehicle_value": cmd.VehicleValue.String(),
		"vehicle_year":  strconv.Itoa(cmd.VehicleYear),
		"driver_age":    strconv.Itoa(cmd.DriverAge),
		"claim_free":    strconv.FormatBool(cmd.ClaimFree),
	})
}

// premiumFor prices the risk: 3.5% of vehicle value, loaded 50% for
// drivers under 25 and 20% for vehicles over ten years old, discounted
// 15% for a claim-free history.
func (s *InsuranceService) premiumFor(cmd CreateInsuranceQuoteCommand, now time.Time) decimal.Decimal {
	premium := cmd.VehicleValue.Mul(decimal.NewFromFloat(0.035))
	if cmd.DriverAge < 25 {
		premium = premium.Mul(decimal.NewFromFloat(1.5))
	}
	if now.Year()-cmd.VehicleYear > 10 {
		premium = premium.Mul(decimal.NewFromFloat(1.2))
	}
	if cmd.ClaimFree {
		premium = premium.Mul(decimal.NewFromFloat(0.85))
	}
	return premium.Round(2)
}

func (s *InsuranceService) CreateQuote(ctx context.Context, cmd CreateInsuranceQuoteCommand) (*models.InsuranceQuote, error) {
	now := s.clock.Now()

	if _, err := s.gate.Authorize(cmd.ConsentID, cmd.ParticipantID, models.ScopeInsuranceQuotes, "", now); err != nil {
		return nil, err
	}
	if !utils.IsPositiveAmount(cmd.VehicleValue) {
		return nil, utils.BusinessRuleError("Vehicle value must be positive")
	}
	if cmd.DriverAge < 18 {
		return nil, utils.BusinessRuleError("Driver must be at least 18")
	}
	if cmd.VehicleYear < 1980 || cmd.VehicleYear > now.Year() {
		return nil, utils.BusinessRuleError("Implausible vehicle year")
	}

	quote := &models.InsuranceQuote{
		ID:            "QUOTE-INS-" + uuid.NewString(),
		ConsentID:     cmd.ConsentID,
		ParticipantID: cmd.ParticipantID,
		VehicleValue:  cmd.VehicleValue,
		VehicleYear:   cmd.VehicleYear,
		DriverAge:     cmd.DriverAge,
		ClaimFree:     cmd.ClaimFree,
		Premium:       s.premiumFor(cmd, now),
		Currency:      s.settings.Currency,
		Status:        models.QuoteStatusQuoted,
		ParamsHash:    insuranceParamsHash(cmd),
		ValidUntil:    now.Add(s.settings.QuoteValidity),
		CreatedAt:     now,
	}
	if err := s.policies.SaveQuote(ctx, quote); err != nil {
		return nil, err
	}
	return quote, nil
}

type AcceptInsuranceQuoteCommand struct {
	QuoteID        string
	ParticipantID  string
	IdempotencyKey string
	VehicleValue   decimal.Decimal
	VehicleYear    int
	DriverAge      int
	ClaimFree      bool
}

type InsurancePolicyResult struct {
	Policy   *models.InsurancePolicy
	Replayed bool
}

// AcceptQuote binds a policy from a live quote. Re-presented facts must
// match the pinned quote exactly; it is the quote that is priced, not the
// retry.
func (s *InsuranceService) AcceptQuote(ctx context.Context, cmd AcceptInsuranceQuoteCommand) (*InsurancePolicyResult, error) {
	now := s.clock.Now()

	quote, err := s.policies.FindQuoteByID(ctx, cmd.QuoteID)
	if err != nil {
		return nil, err
	}
	if quote == nil {
		return nil, utils.ErrResourceNotFound
	}
	if !quote.BelongsTo(cmd.ParticipantID) {
		return nil, utils.ErrParticipantMismatch
	}

	presented := insuranceParamsHash(CreateInsuranceQuoteCommand{
		ConsentID:     quote.ConsentID,
		ParticipantID: cmd.ParticipantID,
		VehicleValue:  cmd.VehicleValue,
		VehicleYear:   cmd.VehicleYear,
		DriverAge:     cmd.DriverAge,
		ClaimFree:     cmd.ClaimFree,
	})
	if presented != quote.ParamsHash {
		return nil, utils.ErrQuoteManipulation
	}

	bookingKey := utils.CacheKey("ins-accept", cmd.QuoteID, cmd.IdempotencyKey)

	if record := s.idempotency.Find(bookingKey, cmd.ParticipantID, now); record != nil {
		if !record.Matches(quote.ParamsHash) {
			return nil, utils.ErrIdempotencyConflict
		}
		policy, err := s.policies.FindPolicyByQuoteID(ctx, cmd.QuoteID)
		if err != nil {
			return nil, err
		}
		if policy == nil {
			return nil, utils.NotFoundError("Policy not found for idempotency record")
		}
		return &InsurancePolicyResult{Policy: policy, Replayed: true}, nil
	}

	if quote.IsTerminal() {
		return nil, utils.ErrQuoteNotAcceptable
	}
	if quote.IsExpired(now) {
		quote.Status = models.QuoteStatusExpired
		if err := s.policies.SaveQuote(ctx, quote); err != nil {
			return nil, err
		}
		return nil, utils.ErrQuoteExpired
	}

	policy := &models.InsurancePolicy{
		ID:            "POLICY-INS-" + uuid.NewString(),
		QuoteID:       quote.ID,
		ConsentID:     quote.ConsentID,
		ParticipantID: quote.ParticipantID,
		Premium:       quote.Premium,
		Currency:      quote.Currency,
		BoundAt:       now,
	}
	if err := s.policies.SavePolicy(ctx, policy); err != nil {
		return nil, err
	}

	quote.Status = models.QuoteStatusAccepted
	if err := s.policies.SaveQuote(ctx, quote); err != nil {
		return nil, err
	}

	s.idempotency.Save(&models.IdempotencyRecord{
		Key:            bookingKey,
		ParticipantID:  cmd.ParticipantID,
		RequestHash:    quote.ParamsHash,
		ResultID:       policy.ID,
		StatusSnapshot: string(models.QuoteStatusAccepted),
		ExpiresAt:      now.Add(s.settings.IdempotencyTTL),
		CreatedAt:      now,
	})

	s.logger.Info(ctx, "insurance policy bound", map[string]interface{}{
		"policy_id": policy.ID,
		"quote_id":  quote.ID,
	})

	return &InsurancePolicyResult{Policy: policy}, nil
}
