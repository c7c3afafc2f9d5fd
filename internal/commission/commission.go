// Package commission holds the pure money math of the partner program.
// Amounts are int64 minor units (cents); rates are decimal percentages.
package commission

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidRate   = errors.New("invalid_commission_rate")
	ErrInvalidAmount = errors.New("invalid_amount")
)

var (
	hundred  = decimal.NewFromInt(100)
	maxRate  = decimal.NewFromInt(100)
	zeroRate = decimal.Zero
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// Compute returns serviceValue × ratePercent / 100 rounded half-up to the
// minor unit. Non-positive service values yield zero.
func Compute(serviceValue int64, ratePercent decimal.Decimal) int64 {
	if serviceValue <= 0 || ratePercent.Sign() <= 0 {
		return 0
	}
	return decimal.NewFromInt(serviceValue).
		Mul(ratePercent).
		Div(hundred).
		Round(0).
		IntPart()
}

// ParseRate parses a percentage in [0, 100].
func ParseRate(raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, ErrInvalidRate
	}
	if rate.LessThan(zeroRate) || rate.GreaterThan(maxRate) {
		return decimal.Decimal{}, ErrInvalidRate
	}
	return rate, nil
}

// ParseAmount converts a major-unit decimal string ("5000", "49.99") to
// minor units, rounding half-up at the third decimal.
func ParseAmount(raw string) (int64, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return ToMinor(value)
}

// ToMinor converts major units to minor units. Values that do not fit in
// int64 after rounding are ErrInvalidAmount.
func ToMinor(value decimal.Decimal) (int64, error) {
	minor := value.Shift(2).Round(0)
	if minor.GreaterThan(maxMinor) || minor.LessThan(minMinor) {
		return 0, ErrInvalidAmount
	}
	return minor.IntPart(), nil
}

// FormatMinor renders minor units as a fixed two-decimal string.
func FormatMinor(amount int64) string {
	return decimal.New(amount, -2).StringFixed(2)
}
