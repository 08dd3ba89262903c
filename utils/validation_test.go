package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestIsLikelyIBAN(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  bool
	}{
		{"German IBAN", "DE89370400440532013000", true},
		{"UAE IBAN", "AE070331234567890123456", true},
		{"Lowercase is normalized", "de89370400440532013000", true},
		{"Surrounding whitespace is trimmed", " DE89370400440532013000 ", true},
		{"Too short", "DE8937040044", false},
		{"Too long", "DE893704004405320130001234567890123", false},
		{"Digits where letters belong", "1289370400440532013000", false},
		{"Letters where digits belong", "DEXX370400440532013000", false},
		{"Punctuation", "DE89-3704-0044-0532-0130", false},
		{"Empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsLikelyIBAN(tc.value); got != tc.want {
				t.Errorf("IsLikelyIBAN(%q) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}

func TestIsPositiveAmount(t *testing.T) {
	if !IsPositiveAmount(decimal.RequireFromString("0.01")) {
		t.Error("0.01 must be positive")
	}
	if IsPositiveAmount(decimal.Zero) {
		t.Error("zero is not positive")
	}
	if IsPositiveAmount(decimal.RequireFromString("-5")) {
		t.Error("negative is not positive")
	}
}

func TestIsValidCurrency(t *testing.T) {
	for _, code := range []string{"AED", "USD", "EUR"} {
		if !IsValidCurrency(code) {
			t.Errorf("%s must be valid", code)
		}
	}
	for _, code := range []string{"", "US", "usd", "US1", "USDC"} {
		if IsValidCurrency(code) {
			t.Errorf("%s must be invalid", code)
		}
	}
}
