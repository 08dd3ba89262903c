package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/obfin/openfinance/models"
	"github.com/obfin/openfinance/stores"
	"github.com/obfin/openfinance/utils"
)

func decimalFromString(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", value, err)
	}
	return d
}

// fakeVrpPort keeps consents and payments in maps. Sums are recomputed from
// the saved payments, same as the SQL aggregate it stands in for.
type fakeVrpPort struct {
	mu       sync.Mutex
	consents map[string]*models.VrpConsent
	payments map[string]*models.VrpPayment
}

func createFakeVrpPort() *fakeVrpPort {
	return &fakeVrpPort{
		consents: make(map[string]*models.VrpConsent),
		payments: make(map[string]*models.VrpPayment),
	}
}

func (p *fakeVrpPort) SaveConsent(_ context.Context, consent *models.VrpConsent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := *consent
	p.consents[consent.ID] = &copied
	return nil
}

func (p *fakeVrpPort) FindConsentByID(_ context.Context, id string) (*models.VrpConsent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	consent, ok := p.consents[id]
	if !ok {
		return nil, nil
	}
	copied := *consent
	return &copied, nil
}

func (p *fakeVrpPort) SavePayment(_ context.Context, payment *models.VrpPayment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := *payment
	p.payments[payment.ID] = &copied
	return nil
}

func (p *fakeVrpPort) FindPaymentByID(_ context.Context, id string) (*models.VrpPayment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	payment, ok := p.payments[id]
	if !ok {
		return nil, nil
	}
	copied := *payment
	return &copied, nil
}

func (p *fakeVrpPort) SumAcceptedAmount(_ context.Context, consentID, periodKey string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sum := decimal.Zero
	for _, payment := range p.payments {
		if payment.ConsentID == consentID && payment.PeriodKey == periodKey && payment.Status == models.VrpPaymentAccepted {
			sum = sum.Add(payment.Amount)
		}
	}
	return sum, nil
}

type blockAllScreening struct{}

func (blockAllScreening) ScreenPayee(context.Context, string) error {
	return utils.ErrScreeningHit
}

type vrpFixture struct {
	service *VrpService
	port    *fakeVrpPort
	clock   *utils.FixedClock
}

func createVrpFixture(t *testing.T, screening ScreeningPort) *vrpFixture {
	t.Helper()
	clock := utils.CreateFixedClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	port := createFakeVrpPort()
	service := CreateVrpService(
		port,
		screening,
		stores.CreateIdempotencyStore(100),
		stores.CreateResultCache(100, clock.Now),
		utils.CreateKeyedMutex(),
		clock,
		VrpSettings{IdempotencyTTL: 24 * time.Hour, CacheTTL: 30 * time.Second},
	)
	return &vrpFixture{service: service, port: port, clock: clock}
}

func (f *vrpFixture) createConsent(t *testing.T, limit string) *models.VrpConsent {
	t.Helper()
	result, err := f.service.CreateConsent(context.Background(), CreateVrpConsentCommand{
		ParticipantID:  "tpp-1",
		IdempotencyKey: "idem-consent-" + limit,
		DebtorAccount:  validIBAN,
		PeriodLimit:    decimalFromString(t, limit),
		Currency:       "AED",
		ExpiresAt:      f.clock.Now().Add(30 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("consent creation failed: %v", err)
	}
	return result.Consent
}

func paymentCommand(consentID, key, amount string) SubmitVrpPaymentCommand {
	return SubmitVrpPaymentCommand{
		ConsentID:      consentID,
		ParticipantID:  "tpp-1",
		IdempotencyKey: key,
		Amount:         decimal.RequireFromString(amount),
		Currency:       "AED",
		PayeeIBAN:      validIBAN,
		Reference:      "rent",
	}
}

func TestVrpService_CreateConsent(t *testing.T) {
	f := createVrpFixture(t, nil)
	ctx := context.Background()

	cmd := CreateVrpConsentCommand{
		ParticipantID:  "tpp-1",
		IdempotencyKey: "idem-c1",
		DebtorAccount:  validIBAN,
		PeriodLimit:    decimalFromString(t, "500.00"),
		Currency:       "AED",
		ExpiresAt:      f.clock.Now().Add(30 * 24 * time.Hour),
	}

	first, err := f.service.CreateConsent(ctx, cmd)
	if err != nil {
		t.Fatalf("consent creation failed: %v", err)
	}
	if first.Consent.Status != models.ConsentStatusAuthorised {
		t.Errorf("new consent must be AUTHORISED, got %s", first.Consent.Status)
	}

	t.Run("Retry replays", func(t *testing.T) {
		second, err := f.service.CreateConsent(ctx, cmd)
		if err != nil {
			t.Fatalf("retry failed: %v", err)
		}
		if !second.Replayed || second.Consent.ID != first.Consent.ID {
			t.Errorf("expected replay of %s, got %+v", first.Consent.ID, second)
		}
	})

	t.Run("Changed payload conflicts", func(t *testing.T) {
		changed := cmd
		changed.PeriodLimit = decimalFromString(t, "900.00")
		if _, err := f.service.CreateConsent(ctx, changed); !errors.Is(err, utils.ErrIdempotencyConflict) {
			t.Errorf("expected conflict, got %v", err)
		}
	})

	t.Run("Rejects non-positive limit", func(t *testing.T) {
		bad := cmd
		bad.IdempotencyKey = "idem-c2"
		bad.PeriodLimit = decimal.Zero
		_, err := f.service.CreateConsent(ctx, bad)
		expectKind(t, err, utils.KindBusinessRule)
	})

	t.Run("Rejects past expiry", func(t *testing.T) {
		bad := cmd
		bad.IdempotencyKey = "idem-c3"
		bad.ExpiresAt = f.clock.Now()
		_, err := f.service.CreateConsent(ctx, bad)
		expectKind(t, err, utils.KindBusinessRule)
	})
}

func TestVrpService_SubmitPayment_LimitEnforcement(t *testing.T) {
	f := createVrpFixture(t, nil)
	ctx := context.Background()
	consent := f.createConsent(t, "100.00")

	if _, err := f.service.SubmitPayment(ctx, paymentCommand(consent.ID, "pay-1", "60.00")); err != nil {
		t.Fatalf("first payment failed: %v", err)
	}

	t.Run("Breaching payment is rejected", func(t *testing.T) {
		_, err := f.service.SubmitPayment(ctx, paymentCommand(consent.ID, "pay-2", "50.00"))
		if !errors.Is(err, utils.ErrLimitExceeded) {
			t.Errorf("expected limit exceeded, got %v", err)
		}
	})

	t.Run("Payment landing exactly on the limit is accepted", func(t *testing.T) {
		result, err := f.service.SubmitPayment(ctx, paymentCommand(consent.ID, "pay-3", "40.00"))
		if err != nil {
			t.Fatalf("boundary payment failed: %v", err)
		}
		if result.Payment.Status != models.VrpPaymentAccepted {
			t.Errorf("expected ACCEPTED, got %s", result.Payment.Status)
		}
	})

	t.Run("Rejected submission leaves no idempotency record", func(t *testing.T) {
		// pay-2 was rejected above; re-submitting a smaller amount under
		// the same key must not conflict or replay. It fails on the limit
		// again only if it would breach.
		_, err := f.service.SubmitPayment(ctx, paymentCommand(consent.ID, "pay-2", "10.00"))
		if !errors.Is(err, utils.ErrLimitExceeded) {
			t.Errorf("expected a fresh limit check, got %v", err)
		}
	})

	t.Run("New period resets the window", func(t *testing.T) {
		f.clock.Advance(31 * 24 * time.Hour)
		// Consent expired with the advance; extend it directly.
		f.port.consents[consent.ID].ExpiresAt = f.clock.Now().Add(30 * 24 * time.Hour)

		result, err := f.service.SubmitPayment(ctx, paymentCommand(consent.ID, "pay-4", "100.00"))
		if err != nil {
			t.Fatalf("new-period payment failed: %v", err)
		}
		if result.Payment.PeriodKey == models.PeriodKeyFor(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)) {
			t.Error("payment must land in the new period bucket")
		}
	})
}

func TestVrpService_SubmitPayment_Idempotency(t *testing.T) {
	f := createVrpFixture(t, nil)
	ctx := context.Background()
	consent := f.createConsent(t, "100.00")

	cmd := paymentCommand(consent.ID, "pay-1", "60.00")
	first, err := f.service.SubmitPayment(ctx, cmd)
	if err != nil {
		t.Fatalf("payment failed: %v", err)
	}

	t.Run("Retry replays without double-spending the limit", func(t *testing.T) {
		second, err := f.service.SubmitPayment(ctx, cmd)
		if err != nil {
			t.Fatalf("retry failed: %v", err)
		}
		if !second.Replayed || second.Payment.ID != first.Payment.ID {
			t.Errorf("expected replay of %s, got %+v", first.Payment.ID, second)
		}
		if len(f.port.payments) != 1 {
			t.Errorf("replay must not create a second payment, got %d", len(f.port.payments))
		}
	})

	t.Run("Changed amount under the same key conflicts", func(t *testing.T) {
		changed := paymentCommand(consent.ID, "pay-1", "10.00")
		if _, err := f.service.SubmitPayment(ctx, changed); !errors.Is(err, utils.ErrIdempotencyConflict) {
			t.Errorf("expected conflict, got %v", err)
		}
	})
}

func TestVrpService_SubmitPayment_ConsentChecks(t *testing.T) {
	f := createVrpFixture(t, nil)
	ctx := context.Background()
	consent := f.createConsent(t, "100.00")

	t.Run("Unknown consent", func(t *testing.T) {
		_, err := f.service.SubmitPayment(ctx, paymentCommand("CONSENT-MISSING", "pay-a", "10.00"))
		expectKind(t, err, utils.KindNotFound)
	})

	t.Run("Foreign participant", func(t *testing.T) {
		cmd := paymentCommand(consent.ID, "pay-b", "10.00")
		cmd.ParticipantID = "tpp-2"
		_, err := f.service.SubmitPayment(ctx, cmd)
		if !errors.Is(err, utils.ErrParticipantMismatch) {
			t.Errorf("expected participant mismatch, got %v", err)
		}
	})

	t.Run("Currency mismatch", func(t *testing.T) {
		cmd := paymentCommand(consent.ID, "pay-c", "10.00")
		cmd.Currency = "USD"
		_, err := f.service.SubmitPayment(ctx, cmd)
		if !errors.Is(err, utils.ErrCurrencyMismatch) {
			t.Errorf("expected currency mismatch, got %v", err)
		}
	})

	t.Run("Revoked consent", func(t *testing.T) {
		if err := f.service.RevokeConsent(ctx, consent.ID, "tpp-1"); err != nil {
			t.Fatalf("revoke failed: %v", err)
		}
		_, err := f.service.SubmitPayment(ctx, paymentCommand(consent.ID, "pay-d", "10.00"))
		if !errors.Is(err, utils.ErrConsentRevoked) {
			t.Errorf("expected revoked, got %v", err)
		}
	})
}

func TestVrpService_SubmitPayment_ScreeningHit(t *testing.T) {
	f := createVrpFixture(t, blockAllScreening{})
	ctx := context.Background()
	consent := f.createConsent(t, "100.00")

	_, err := f.service.SubmitPayment(ctx, paymentCommand(consent.ID, "pay-1", "10.00"))
	expectKind(t, err, utils.KindCompliance)
	if len(f.port.payments) != 0 {
		t.Error("screened payment must not be persisted")
	}
}

func TestVrpService_SubmitPayment_ConcurrentLimit(t *testing.T) {
	f := createVrpFixture(t, nil)
	ctx := context.Background()
	consent := f.createConsent(t, "100.00")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.service.SubmitPayment(ctx, paymentCommand(consent.ID, fmt.Sprintf("pay-%d", i), "10.00"))
		}(i)
	}
	wg.Wait()

	sum, err := f.port.SumAcceptedAmount(ctx, consent.ID, models.PeriodKeyFor(f.clock.Now()))
	if err != nil {
		t.Fatalf("sum failed: %v", err)
	}
	if sum.GreaterThan(consent.PeriodLimit) {
		t.Errorf("concurrent submissions breached the limit: %s > %s", sum, consent.PeriodLimit)
	}
	if len(f.port.payments) != 10 {
		t.Errorf("expected exactly 10 accepted payments, got %d", len(f.port.payments))
	}
}

func TestVrpService_Reads(t *testing.T) {
	f := createVrpFixture(t, nil)
	ctx := context.Background()
	consent := f.createConsent(t, "100.00")

	t.Run("Consent read is cached", func(t *testing.T) {
		_, signal, err := f.service.GetConsent(ctx, consent.ID, "tpp-1")
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if signal != models.CacheMiss {
			t.Errorf("first read must MISS, got %s", signal)
		}

		_, signal, err = f.service.GetConsent(ctx, consent.ID, "tpp-1")
		if err != nil {
			t.Fatalf("second read failed: %v", err)
		}
		if signal != models.CacheHit {
			t.Errorf("second read must HIT, got %s", signal)
		}
	})

	t.Run("Revocation is visible immediately despite the cache", func(t *testing.T) {
		if err := f.service.RevokeConsent(ctx, consent.ID, "tpp-1"); err != nil {
			t.Fatalf("revoke failed: %v", err)
		}
		fresh, _, err := f.service.GetConsent(ctx, consent.ID, "tpp-1")
		if err != nil {
			t.Fatalf("read after revoke failed: %v", err)
		}
		if fresh.Status != models.ConsentStatusRevoked {
			t.Errorf("expected REVOKED, got %s", fresh.Status)
		}
	})

	t.Run("Foreign payment read is forbidden", func(t *testing.T) {
		result, err := f.service.SubmitPayment(ctx, paymentCommand(f.createConsent(t, "50.00").ID, "pay-read", "10.00"))
		if err != nil {
			t.Fatalf("payment failed: %v", err)
		}
		if _, _, err := f.service.GetPayment(ctx, result.Payment.ID, "tpp-2"); !errors.Is(err, utils.ErrParticipantMismatch) {
			t.Errorf("expected participant mismatch, got %v", err)
		}
	})
}
