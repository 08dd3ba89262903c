package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/obfin/openfinance/models"
	"github.com/obfin/openfinance/stores"
	"github.com/obfin/openfinance/utils"
)

// VrpPort persists VRP consents and payments. SumAcceptedAmount must
// reflect every previously saved ACCEPTED payment; the service only calls
// it while holding the consent lock.
type VrpPort interface {
	SaveConsent(ctx context.Context, consent *models.VrpConsent) error
	FindConsentByID(ctx context.Context, id string) (*models.VrpConsent, error)
	SavePayment(ctx context.Context, payment *models.VrpPayment) error
	FindPaymentByID(ctx context.Context, id string) (*models.VrpPayment, error)
	SumAcceptedAmount(ctx context.Context, consentID, periodKey string) (decimal.Decimal, error)
}

// ScreeningPort is the external sanctions/compliance collaborator. A hit
// comes back as a COMPLIANCE_VIOLATION error and is propagated verbatim.
type ScreeningPort interface {
	ScreenPayee(ctx context.Context, payeeIBAN string) error
}

// AllowAllScreening is the default collaborator when no external screening
// integration is configured.
type AllowAllScreening struct{}

func (AllowAllScreening) ScreenPayee(context.Context, string) error {
	return nil
}

type VrpSettings struct {
	IdempotencyTTL time.Duration
	CacheTTL       time.Duration
}

// VrpService enforces the rolling per-period consented limit. The limit
// check and the payment write happen inside a per-consent lock so
// concurrent submissions can never jointly breach the cap, while payments
// against different consents proceed unimpeded.
type VrpService struct {
	payments    VrpPort
	screening   ScreeningPort
	idempotency *stores.IdempotencyStore
	cache       stores.CacheBackend
	locks       *utils.KeyedMutex
	clock       utils.Clock
	settings    VrpSettings
	logger      *utils.Logger
}

func CreateVrpService(payments VrpPort, screening ScreeningPort, idempotency *stores.IdempotencyStore, cache stores.CacheBackend, locks *utils.KeyedMutex, clock utils.Clock, settings VrpSettings) *VrpService {
	if screening == nil {
		screening = AllowAllScreening{}
	}
	return &VrpService{
		payments:    payments,
		screening:   screening,
		idempotency: idempotency,
		cache:       cache,
		locks:       locks,
		clock:       clock,
		settings:    settings,
		logger:      utils.CreateLogger("vrp"),
	}
}

type CreateVrpConsentCommand struct {
	ParticipantID  string
	IdempotencyKey string
	DebtorAccount  string
	PeriodLimit    decimal.Decimal
	Currency       string
	ExpiresAt      time.Time
}

func (c *CreateVrpConsentCommand) requestHash() string {
	payload := strings.Join([]string{
		c.DebtorAccount,
		c.PeriodLimit.String(),
		c.Currency,
		c.ExpiresAt.UTC().Format(time.RFC3339),
	}, "\n")
	return utils.HashPayload([]byte(payload))
}

type VrpConsentResult struct {
	Consent  *models.VrpConsent
	Replayed bool
}

func (s *VrpService) CreateConsent(ctx context.Context, cmd CreateVrpConsentCommand) (*VrpConsentResult, error) {
	now := s.clock.Now()
	requestHash := cmd.requestHash()

	if record := s.idempotency.Find(cmd.IdempotencyKey, cmd.ParticipantID, now); record != nil {
		if !record.Matches(requestHash) {
			return nil, utils.ErrIdempotencyConflict
		}
		consent, err := s.payments.FindConsentByID(ctx, record.ResultID)
		if err != nil {
			return nil, err
		}
		if consent == nil {
			return nil, utils.NotFoundError("Consent not found for idempotency record")
		}
		return &VrpConsentResult{Consent: consent, Replayed: true}, nil
	}

	if !utils.IsPositiveAmount(cmd.PeriodLimit) {
		return nil, utils.BusinessRuleError("Consent limit must be positive")
	}
	if !utils.IsValidCurrency(cmd.Currency) {
		return nil, utils.BusinessRuleError("Invalid currency code")
	}
	if !cmd.ExpiresAt.After(now) {
		return nil, utils.BusinessRuleError("Consent expiry must be in the future")
	}

	consent := &models.VrpConsent{
		ID:            "CONSENT-VRP-" + uuid.NewString(),
		ParticipantID: cmd.ParticipantID,
		Status:        models.ConsentStatusAuthorised,
		DebtorAccount: cmd.DebtorAccount,
		PeriodLimit:   cmd.PeriodLimit,
		Currency:      cmd.Currency,
		ExpiresAt:     cmd.ExpiresAt,
		CreatedAt:     now,
	}
	if err := s.payments.SaveConsent(ctx, consent); err != nil {
		return nil, err
	}

	s.idempotency.Save(&models.IdempotencyRecord{
		Key:            cmd.IdempotencyKey,
		ParticipantID:  cmd.ParticipantID,
		RequestHash:    requestHash,
		ResultID:       consent.ID,
		StatusSnapshot: string(consent.Status),
		ExpiresAt:      now.Add(s.settings.IdempotencyTTL),
		CreatedAt:      now,
	})

	return &VrpConsentResult{Consent: consent}, nil
}

func (s *VrpService) GetConsent(ctx context.Context, consentID, participantID string) (*models.VrpConsent, models.CacheSignal, error) {
	now := s.clock.Now()
	cacheKey := utils.CacheKey("vrp-consent", consentID, participantID)

	var cached models.VrpConsent
	hit, err := s.cache.Get(ctx, cacheKey, now, &cached)
	if err != nil {
		return nil, models.CacheMiss, err
	}
	if hit {
		return &cached, models.CacheHit, nil
	}

	consent, err := s.payments.FindConsentByID(ctx, consentID)
	if err != nil {
		return nil, models.CacheMiss, err
	}
	if consent == nil {
		return nil, models.CacheMiss, utils.ErrConsentNotFound
	}
	if !consent.BelongsTo(participantID) {
		return nil, models.CacheMiss, utils.ErrParticipantMismatch
	}

	if err := s.cache.Put(ctx, cacheKey, consent, s.settings.CacheTTL); err != nil {
		return nil, models.CacheMiss, err
	}
	return consent, models.CacheMiss, nil
}

func (s *VrpService) RevokeConsent(ctx context.Context, consentID, participantID string) error {
	consent, err := s.payments.FindConsentByID(ctx, consentID)
	if err != nil {
		return err
	}
	if consent == nil {
		return utils.ErrConsentNotFound
	}
	if !consent.BelongsTo(participantID) {
		return utils.ErrParticipantMismatch
	}

	consent.Status = models.ConsentStatusRevoked
	if err := s.payments.SaveConsent(ctx, consent); err != nil {
		return err
	}
	// Drop the cached consent so the revocation is visible immediately.
	return s.cache.Delete(ctx, utils.CacheKey("vrp-consent", consentID, participantID))
}

type SubmitVrpPaymentCommand struct {
	ConsentID      string
	ParticipantID  string
	IdempotencyKey string
	Amount         decimal.Decimal
	Currency       string
	PayeeIBAN      string
	Reference      string
}

func (c *SubmitVrpPaymentCommand) requestHash() string {
	payload := strings.Join([]string{
		c.ConsentID,
		c.Amount.String(),
		c.Currency,
		c.PayeeIBAN,
		c.Reference,
	}, "\n")
	return utils.HashPayload([]byte(payload))
}

type VrpPaymentResult struct {
	Payment  *models.VrpPayment
	Replayed bool
}

// SubmitPayment is the §4.4 write path: idempotency engine, consent
// checks, compliance screening, then the locked limit check and write.
func (s *VrpService) SubmitPayment(ctx context.Context, cmd SubmitVrpPaymentCommand) (*VrpPaymentResult, error) {
	now := s.clock.Now()
	requestHash := cmd.requestHash()

	if record := s.idempotency.Find(cmd.IdempotencyKey, cmd.ParticipantID, now); record != nil {
		if !record.Matches(requestHash) {
			return nil, utils.ErrIdempotencyConflict
		}
		payment, err := s.payments.FindPaymentByID(ctx, record.ResultID)
		if err != nil {
			return nil, err
		}
		if payment == nil {
			return nil, utils.NotFoundError("Payment not found for idempotency record")
		}
		return &VrpPaymentResult{Payment: payment, Replayed: true}, nil
	}

	consent, err := s.payments.FindConsentByID(ctx, cmd.ConsentID)
	if err != nil {
		return nil, err
	}
	if consent == nil {
		return nil, utils.ErrConsentNotFound
	}
	if !consent.BelongsTo(cmd.ParticipantID) {
		return nil, utils.ErrParticipantMismatch
	}
	if consent.Status == models.ConsentStatusRevoked {
		return nil, utils.ErrConsentRevoked
	}
	if !consent.IsActive(now) {
		return nil, utils.ErrConsentExpired
	}
	if consent.Currency != cmd.Currency {
		return nil, utils.ErrCurrencyMismatch
	}
	if !utils.IsPositiveAmount(cmd.Amount) {
		return nil, utils.BusinessRuleError("Payment amount must be positive")
	}
	if !utils.IsLikelyIBAN(cmd.PayeeIBAN) {
		return nil, utils.BusinessRuleError("Invalid payee IBAN")
	}
	if err := s.screening.ScreenPayee(ctx, cmd.PayeeIBAN); err != nil {
		return nil, err
	}

	periodKey := models.PeriodKeyFor(now)
	var payment *models.VrpPayment

	lockErr := s.locks.WithLock(cmd.ConsentID, func() error {
		accepted, err := s.payments.SumAcceptedAmount(ctx, cmd.ConsentID, periodKey)
		if err != nil {
			return err
		}
		if accepted.Add(cmd.Amount).GreaterThan(consent.PeriodLimit) {
			return utils.ErrLimitExceeded
		}

		payment = &models.VrpPayment{
			ID:             "PAYMENT-VRP-" + uuid.NewString(),
			ConsentID:      cmd.ConsentID,
			ParticipantID:  cmd.ParticipantID,
			IdempotencyKey: cmd.IdempotencyKey,
			Amount:         cmd.Amount,
			Currency:       cmd.Currency,
			PayeeIBAN:      cmd.PayeeIBAN,
			Reference:      cmd.Reference,
			PeriodKey:      periodKey,
			Status:         models.VrpPaymentAccepted,
			CreatedAt:      now,
		}
		return s.payments.SavePayment(ctx, payment)
	})
	if lockErr != nil {
		return nil, lockErr
	}

	s.idempotency.Save(&models.IdempotencyRecord{
		Key:            cmd.IdempotencyKey,
		ParticipantID:  cmd.ParticipantID,
		RequestHash:    requestHash,
		ResultID:       payment.ID,
		StatusSnapshot: string(payment.Status),
		ExpiresAt:      now.Add(s.settings.IdempotencyTTL),
		CreatedAt:      now,
	})

	s.logger.Info(ctx, "vrp payment accepted", map[string]interface{}{
		"payment_id": payment.ID,
		"consent_id": payment.ConsentID,
		"period":     payment.PeriodKey,
	})

	return &VrpPaymentResult{Payment: payment}, nil
}

func (s *VrpService) GetPayment(ctx context.Context, paymentID, participantID string) (*models.VrpPayment, models.CacheSignal, error) {
	now := s.clock.Now()
	cacheKey := utils.CacheKey("vrp-payment", paymentID, participantID)

	var cached models.VrpPayment
	hit, err := s.cache.Get(ctx, cacheKey, now, &cached)
	if err != nil {
		return nil, models.CacheMiss, err
	}
	if hit {
		return &cached, models.CacheHit, nil
	}

	payment, err := s.payments.FindPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, models.CacheMiss, err
	}
	if payment == nil {
		return nil, models.CacheMiss, utils.ErrResourceNotFound
	}
	if payment.ParticipantID != participantID {
		return nil, models.CacheMiss, utils.ErrParticipantMismatch
	}

	if err := s.cache.Put(ctx, cacheKey, payment, s.settings.CacheTTL); err != nil {
		return nil, models.CacheMiss, err
	}
	return payment, models.CacheMiss, nil
}
