// Package core provides money parsing and handling utilities.
//
// Amounts are fixed-point integers scaled by AmountScale (4 implied decimal
// digits). Floating point only appears at presentation boundaries.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// AmountScale is the number of amount units in one major currency unit.
const AmountScale = 10_000

// amountDigits is the number of implied decimal digits in an Amount.
const amountDigits = 4

// Amount is a signed fixed-point monetary value scaled by AmountScale.
type Amount int64

// ParseAmount converts a decimal string to a fixed-point Amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional sign. Digits beyond the fourth decimal place are rounded half-up
// on the fifth digit.
//
// Examples:
//
//	ParseAmount("12.34")     -> 123400
//	ParseAmount("-0,5")      -> -5000
//	ParseAmount("1.00005")   -> 10001
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" && fracPart == "" {
		return 0, ErrInvalidAmount
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafe = (1<<63 - 1) / AmountScale
	if iv > maxSafe-1 {
		return 0, ErrInvalidAmount
	}

	var frac int64
	for i := 0; i < amountDigits; i++ {
		frac *= 10
		if i < len(fracPart) {
			frac += int64(fracPart[i] - '0')
		}
	}
	if len(fracPart) > amountDigits && fracPart[amountDigits] >= '5' {
		frac++
	}

	v := iv*AmountScale + frac
	if neg {
		v = -v
	}
	return Amount(v), nil
}

// FormatAmount renders an amount with exactly four decimal digits, e.g.
// "-1234.5000". The output parses back to the same Amount.
func FormatAmount(a Amount) string {
	v := int64(a)
	neg := v < 0
	// Work on uint64 so MinInt64 keeps its magnitude.
	u := uint64(v)
	if neg {
		u = uint64(-(v + 1)) + 1
	}
	whole := u / AmountScale
	frac := u % AmountScale

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(strconv.FormatUint(whole, 10))
	b.WriteByte('.')
	fs := strconv.FormatUint(frac, 10)
	for i := len(fs); i < amountDigits; i++ {
		b.WriteByte('0')
	}
	b.WriteString(fs)
	return b.String()
}

// String implements fmt.Stringer.
func (a Amount) String() string {
	return FormatAmount(a)
}

// Abs returns the magnitude of the amount.
func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}

// Neg returns the amount with the opposite sign.
func (a Amount) Neg() Amount {
	return -a
}

// Major returns the value in major currency units as a float64 for display
// purposes. Never use it for arithmetic.
func (a Amount) Major() float64 {
	return float64(a) / AmountScale
}

// Signed forces the sign of a to match the given transaction type: negative
// for expenses, positive for income. Other types are returned unchanged.
func (a Amount) Signed(t TransactionType) Amount {
	switch t {
	case TypeExpense:
		return -a.Abs()
	case TypeIncome:
		return a.Abs()
	default:
		return a
	}
}
