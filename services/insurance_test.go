package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/obfin/openfinance/models"
	"github.com/obfin/openfinance/stores"
	"github.com/obfin/openfinance/utils"
)

type fakeInsurancePort struct {
	quotes   map[string]*models.InsuranceQuote
	policies map[string]*models.InsurancePolicy
}

func createFakeInsurancePort() *fakeInsurancePort {
	return &fakeInsurancePort{
		quotes:   make(map[string]*models.InsuranceQuote),
		policies: make(map[string]*models.InsurancePolicy),
	}
}

func (p *fakeInsurancePort) SaveQuote(_ context.Context, quote *models.InsuranceQuote) error {
	copied := *quote
	p.quotes[quote.ID] = &copied
	return nil
}

func (p *fakeInsurancePort) FindQuoteByID(_ context.Context, id string) (*models.InsuranceQuote, error) {
	quote, ok := p.quotes[id]
	if !ok {
		return nil, nil
	}
	copied := *quote
	return &copied, nil
}

func (p *fakeInsurancePort) SavePolicy(_ context.Context, policy *models.InsurancePolicy) error {
	copied := *policy
	p.policies[policy.ID] = &copied
	return nil
}

func (p *fakeInsurancePort) FindPolicyByQuoteID(_ context.Context, quoteID string) (*models.InsurancePolicy, error) {
	for _, policy := range p.policies {
		if policy.QuoteID == quoteID {
			copied := *policy
			return &copied, nil
		}
	}
	return nil, nil
}

type insuranceFixture struct {
	service *InsuranceService
	port    *fakeInsurancePort
	clock   *utils.FixedClock
}

func createInsuranceFixture(t *testing.T) *insuranceFixture {
	t.Helper()
	clock := utils.CreateFixedClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	gate := CreateConsentGate(createFakeConsentPort(
		activeConsent("CONSENT-INS", "tpp-1", clock.Now(), models.ScopeInsuranceQuotes),
	))
	port := createFakeInsurancePort()
	service := CreateInsuranceService(
		gate,
		port,
		stores.CreateIdempotencyStore(100),
		clock,
		InsuranceSettings{
			IdempotencyTTL: 24 * time.Hour,
			QuoteValidity:  5 * time.Minute,
			Currency:       "AED",
		},
	)
	return &insuranceFixture{service: service, port: port, clock: clock}
}

func quoteCommand() CreateInsuranceQuoteCommand {
	return CreateInsuranceQuoteCommand{
		ConsentID:     "CONSENT-INS",
		ParticipantID: "tpp-1",
		VehicleValue:  decimal.RequireFromString("100000"),
		VehicleYear:   2020,
		DriverAge:     30,
		ClaimFree:     false,
	}
}

func acceptCommand(quoteID, key string, cmd CreateInsuranceQuoteCommand) AcceptInsuranceQuoteCommand {
	return AcceptInsuranceQuoteCommand{
		QuoteID:        quoteID,
		ParticipantID:  "tpp-1",
		IdempotencyKey: key,
		VehicleValue:   cmd.VehicleValue,
		VehicleYear:    cmd.VehicleYear,
		DriverAge:      cmd.DriverAge,
		ClaimFree:      cmd.ClaimFree,
	}
}

func TestInsuranceService_CreateQuote(t *testing.T) {
	f := createInsuranceFixture(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		mutate  func(*CreateInsuranceQuoteCommand)
		premium string
	}{
		{"Base premium is 3.5 percent", func(*CreateInsuranceQuoteCommand) {}, "3500"},
		{"Young driver loads 50 percent", func(c *CreateInsuranceQuoteCommand) { c.DriverAge = 22 }, "5250"},
		{"Old vehicle loads 20 percent", func(c *CreateInsuranceQuoteCommand) { c.VehicleYear = 2010 }, "4200"},
		{"Claim-free discounts 15 percent", func(c *CreateInsuranceQuoteCommand) { c.ClaimFree = true }, "2975"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := quoteCommand()
			tc.mutate(&cmd)

			quote, err := f.service.CreateQuote(ctx, cmd)
			if err != nil {
				t.Fatalf("quote creation failed: %v", err)
			}
			if !quote.Premium.Equal(decimal.RequireFromString(tc.premium)) {
				t.Errorf("expected premium %s, got %s", tc.premium, quote.Premium)
			}
			if quote.Currency != "AED" {
				t.Errorf("expected AED, got %s", quote.Currency)
			}
		})
	}

	t.Run("Underage driver", func(t *testing.T) {
		cmd := quoteCommand()
		cmd.DriverAge = 17
		_, err := f.service.CreateQuote(ctx, cmd)
		expectKind(t, err, utils.KindBusinessRule)
	})

	t.Run("Implausible vehicle year", func(t *testing.T) {
		cmd := quoteCommand()
		cmd.VehicleYear = f.clock.Now().Year() + 1
		_, err := f.service.CreateQuote(ctx, cmd)
		expectKind(t, err, utils.KindBusinessRule)
	})
}

func TestInsuranceService_AcceptQuote(t *testing.T) {
	f := createInsuranceFixture(t)
	ctx := context.Background()

	t.Run("Acceptance binds a policy at the quoted premium", func(t *testing.T) {
		quote, err := f.service.CreateQuote(ctx, quoteCommand())
		if err != nil {
			t.Fatalf("quote creation failed: %v", err)
		}

		result, err := f.service.AcceptQuote(ctx, acceptCommand(quote.ID, "accept-1", quoteCommand()))
		if err != nil {
			t.Fatalf("acceptance failed: %v", err)
		}
		if !result.Policy.Premium.Equal(quote.Premium) {
			t.Errorf("policy must carry the quoted premium, got %s", result.Policy.Premium)
		}
		if f.port.quotes[quote.ID].Status != models.QuoteStatusAccepted {
			t.Error("accepted quote must transition to ACCEPTED")
		}
	})

	t.Run("Retry replays the original policy", func(t *testing.T) {
		quote, _ := f.service.CreateQuote(ctx, quoteCommand())
		cmd := acceptCommand(quote.ID, "accept-2", quoteCommand())

		first, err := f.service.AcceptQuote(ctx, cmd)
		if err != nil {
			t.Fatalf("acceptance failed: %v", err)
		}
		second, err := f.service.AcceptQuote(ctx, cmd)
		if err != nil {
			t.Fatalf("retry failed: %v", err)
		}
		if !second.Replayed || second.Policy.ID != first.Policy.ID {
			t.Errorf("expected replay of %s, got %+v", first.Policy.ID, second)
		}
	})

	t.Run("Re-presented facts must match the quote", func(t *testing.T) {
		quote, _ := f.service.CreateQuote(ctx, quoteCommand())
		cmd := acceptCommand(quote.ID, "accept-3", quoteCommand())
		cmd.VehicleValue = decimal.RequireFromString("50000")

		_, err := f.service.AcceptQuote(ctx, cmd)
		if !errors.Is(err, utils.ErrQuoteManipulation) {
			t.Errorf("expected manipulation error, got %v", err)
		}
	})

	t.Run("Expired quote cannot be accepted", func(t *testing.T) {
		quote, _ := f.service.CreateQuote(ctx, quoteCommand())
		f.clock.Advance(5 * time.Minute)

		_, err := f.service.AcceptQuote(ctx, acceptCommand(quote.ID, "accept-4", quoteCommand()))
		if !errors.Is(err, utils.ErrQuoteExpired) {
			t.Errorf("expected quote expired, got %v", err)
		}
		if f.port.quotes[quote.ID].Status != models.QuoteStatusExpired {
			t.Error("failed acceptance must persist the EXPIRED transition")
		}
	})

	t.Run("Foreign participant cannot accept", func(t *testing.T) {
		quote, _ := f.service.CreateQuote(ctx, quoteCommand())
		cmd := acceptCommand(quote.ID, "accept-5", quoteCommand())
		cmd.ParticipantID = "tpp-2"

		_, err := f.service.AcceptQuote(ctx, cmd)
		if !errors.Is(err, utils.ErrParticipantMismatch) {
			t.Errorf("expected participant mismatch, got %v", err)
		}
	})
}
