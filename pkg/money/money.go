// Package money holds monetary amounts as integer minor units tagged with a
// currency. Amounts are never negative.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrNegative is returned when constructing a negative amount.
	ErrNegative = errors.New("money: negative amount")
	// ErrCurrencyMismatch is returned when combining amounts of different currencies.
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
	// ErrInvalidAmount is returned for unparsable or over-precise input.
	ErrInvalidAmount = errors.New("money: invalid amount")
	// ErrOverflow is returned when a result leaves the int64 minor-unit range.
	ErrOverflow = errors.New("money: amount out of range")
)

var maxMinor = decimal.NewFromInt(math.MaxInt64)

var zeroExponentCurrencies = map[string]bool{
	"JPY": true,
	"KRW": true,
	"IDR": true,
}

// Money is an immutable non-negative amount.
type Money struct {
	minor    int64
	currency string
}

// Exponent returns the number of minor-unit digits for a currency.
func Exponent(currency string) int32 {
	if zeroExponentCurrencies[NormalizeCurrency(currency)] {
		return 0
	}
	return 2
}

// NormalizeCurrency upper-cases and trims an ISO code.
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// New builds an amount from minor units.
func New(minor int64, currency string) (Money, error) {
	if minor < 0 {
		return Money{}, fmt.Errorf("%w: %d", ErrNegative, minor)
	}
	return Money{minor: minor, currency: NormalizeCurrency(currency)}, nil
}

// Zero returns an empty amount in the given currency.
func Zero(currency string) Money {
	return Money{currency: NormalizeCurrency(currency)}
}

// MustNew panics on negative input; intended for constants and tests.
func MustNew(minor int64, currency string) Money {
	m, err := New(minor, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Parse converts a decimal string such as "100.50" into minor units.
func Parse(raw, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return FromDecimal(d, currency)
}

// FromDecimal converts a major-unit decimal, rejecting sub-minor precision
// and values that do not fit in int64 minor units.
func FromDecimal(d decimal.Decimal, currency string) (Money, error) {
	exp := Exponent(currency)
	scaled := d.Shift(exp)
	if !scaled.IsInteger() {
		return Money{}, fmt.Errorf("%w: %s has more than %d decimals", ErrInvalidAmount, d.String(), exp)
	}
	if scaled.GreaterThan(maxMinor) {
		return Money{}, fmt.Errorf("%w: %s: %w", ErrInvalidAmount, d.String(), ErrOverflow)
	}
	return New(scaled.IntPart(), currency)
}

// SafeAdd sums two non-negative minor-unit figures, failing on int64 overflow.
func SafeAdd(a, b int64) (int64, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	if b < 0 && a < math.MinInt64-b {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	return a + b, nil
}

// Minor returns the amount in minor units.
func (m Money) Minor() int64 { return m.minor }

// Currency returns the ISO code.
func (m Money) Currency() string { return m.currency }

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.minor == 0 }

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.minor, -Exponent(m.currency))
}

// String renders the amount with its currency exponent, e.g. "100.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(Exponent(m.currency))
}

// Add sums two amounts of the same currency. An empty currency adopts the other.
func (m Money) Add(other Money) (Money, error) {
	cur, err := m.combine(other)
	if err != nil {
		return Money{}, err
	}
	sum, err := SafeAdd(m.minor, other.minor)
	if err != nil {
		return Money{}, err
	}
	return Money{minor: sum, currency: cur}, nil
}

// Sub subtracts other, failing if the result would be negative.
func (m Money) Sub(other Money) (Money, error) {
	cur, err := m.combine(other)
	if err != nil {
		return Money{}, err
	}
	return New(m.minor-other.minor, cur)
}

// Percent returns value percent of m, rounded half away from zero to minor units.
func (m Money) Percent(value decimal.Decimal) (Money, error) {
	if value.IsNegative() {
		return Money{}, fmt.Errorf("%w: percentage %s", ErrNegative, value.String())
	}
	share := decimal.NewFromInt(m.minor).Mul(value).Div(decimal.NewFromInt(100)).Round(0)
	if share.GreaterThan(maxMinor) {
		return Money{}, fmt.Errorf("%w: %s percent of %d", ErrOverflow, value.String(), m.minor)
	}
	return New(share.IntPart(), m.currency)
}

func (m Money) combine(other Money) (string, error) {
	switch {
	case m.currency == other.currency:
		return m.currency, nil
	case m.currency == "":
		return other.currency, nil
	case other.currency == "":
		return m.currency, nil
	}
	return "", fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, other.currency)
}

// Format renders a signed minor-unit figure, used for derived values such as
// net profit that may legitimately fall below zero.
func Format(minor int64, currency string) string {
	return decimal.New(minor, -Exponent(currency)).StringFixed(Exponent(currency))
}
