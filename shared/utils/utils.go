package utils

import (
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits a balance carries.
const MoneyScale = 2

// MaxBalance is the largest balance the accounts table can hold (NUMERIC(20,2)).
var MaxBalance = decimal.New(1, 18).Sub(decimal.New(1, -MoneyScale))

// GenerateAccountID returns a new random account identifier.
func GenerateAccountID() string {
	return uuid.NewString()
}

// ValidateAccountID reports whether id has the shape of an account identifier.
func ValidateAccountID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// CanonicalAccountID returns id in the lower-case hyphenated form accounts are
// stored under. Upper-case, braced, urn and unhyphenated spellings of the same
// UUID all map to one string; ok is false when id is not a UUID at all.
func CanonicalAccountID(id string) (canonical string, ok bool) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return u.String(), true
}

// ParseAmount converts a JSON number into a decimal amount. ok is false for
// NaN, infinities and values with more than two fractional digits.
func ParseAmount(v float64) (amount decimal.Decimal, ok bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, false
	}
	d := decimal.NewFromFloat(v)
	if !d.Equal(d.Truncate(MoneyScale)) {
		return decimal.Zero, false
	}
	return d, true
}

// FormatBalance renders a balance as a fixed two-decimal string, e.g. "1000.00".
func FormatBalance(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}

// BalanceNumber renders a balance as a JSON number.
func BalanceNumber(d decimal.Decimal) float64 {
	return d.Round(MoneyScale).InexactFloat64()
}
