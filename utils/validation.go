package utils

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// IsLikelyIBAN applies the structural checks used at bulk-item level: two
// letters, two digits, alphanumeric, 15-34 characters. Full mod-97 checksum
// validation belongs to the downstream scheme validator, not this core.
func IsLikelyIBAN(value string) bool {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	if len(normalized) < 15 || len(normalized) > 34 {
		return false
	}
	runes := []rune(normalized)
	if !unicode.IsLetter(runes[0]) || !unicode.IsLetter(runes[1]) {
		return false
	}
	if !unicode.IsDigit(runes[2]) || !unicode.IsDigit(runes[3]) {
		return false
	}
	for _, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func IsPositiveAmount(amount decimal.Decimal) bool {
	return amount.Sign() > 0
}

// IsValidCurrency accepts ISO 4217 style alpha-3 codes.
func IsValidCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
