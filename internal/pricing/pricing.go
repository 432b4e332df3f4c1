// Package pricing normalises listing price text and derives discount depth.
package pricing

import (
	"errors"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/IshaanNene/dealstalk/internal/types"
)

var (
	hundred     = decimal.NewFromInt(100)
	cent        = decimal.New(1, -2)
	errExponent = errors.New("exponent notation not accepted")
)

// Normalize strips currency symbols, whitespace and group separators from
// raw and parses the remainder as a decimal. The whole remainder must parse.
func Normalize(raw string) (decimal.Decimal, error) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case unicode.Is(unicode.Sc, r):
		case unicode.IsSpace(r):
		case r == ',':
		default:
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return decimal.Zero, &types.NumericParseError{Input: raw, Err: types.ErrEmptyInput}
	}
	// decimal.NewFromString accepts exponents; price text never carries one.
	if strings.ContainsAny(cleaned, "eE") {
		return decimal.Zero, &types.NumericParseError{Input: raw, Err: errExponent}
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, &types.NumericParseError{Input: raw, Err: err}
	}
	return d, nil
}

// NormalizePtr is Normalize for an optional value. Absent or unparsable
// input yields nil.
func NormalizePtr(raw *string) *decimal.Decimal {
	if raw == nil {
		return nil
	}
	d, err := Normalize(*raw)
	if err != nil {
		return nil
	}
	return &d
}

// Evaluate returns (original - current) / original * 100 rounded half away
// from zero to two places. Missing or non-numeric input, or a zero original,
// yields 0. Negative results are returned as is.
func Evaluate(rawCurrent, rawOriginal *string) decimal.Decimal {
	d, _ := Discount(rawCurrent, rawOriginal)
	return d
}

// Discount is Evaluate with the reason for a zero result exposed.
func Discount(rawCurrent, rawOriginal *string) (decimal.Decimal, error) {
	if rawCurrent == nil || rawOriginal == nil {
		return decimal.Zero, &types.NumericParseError{Err: types.ErrEmptyInput}
	}
	current, err := Normalize(*rawCurrent)
	if err != nil {
		return decimal.Zero, err
	}
	original, err := Normalize(*rawOriginal)
	if err != nil {
		return decimal.Zero, err
	}
	return FromPrices(current, original), nil
}

// FromPrices computes the discount percentage from normalised prices.
func FromPrices(current, original decimal.Decimal) decimal.Decimal {
	if original.IsZero() {
		return decimal.Zero
	}
	num := original.Sub(current).Mul(hundred)
	q, r := num.QuoRem(original, 2)
	// q is truncated toward zero; round the remainder half away from zero.
	if r.Abs().Mul(decimal.NewFromInt(2)).GreaterThanOrEqual(original.Abs().Mul(cent)) {
		if num.Sign()*original.Sign() < 0 {
			q = q.Sub(cent)
		} else {
			q = q.Add(cent)
		}
	}
	return q
}

// Qualifies reports whether discount is strictly above threshold.
func Qualifies(discount, threshold decimal.Decimal) bool {
	return discount.GreaterThan(threshold)
}
