package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"gorm.io/datatypes"
)

// MoneyScale is the number of fractional digits carried by every monetary amount.
const MoneyScale = 2

var hundred = decimal.NewFromInt(100)

// Round rounds half away from zero to two decimal places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// ApplyRate multiplies amount by a fractional rate (0.05 for 5%) and rounds.
func ApplyRate(amount, rate decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(rate))
}

// PercentageOf returns pct percent of amount, rounded (pct is 0–100).
func PercentageOf(amount, pct decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(pct).Div(hundred))
}

// MinMoney returns the smaller of a and b.
func MinMoney(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// IsMoney reports whether d has no more than two fractional digits.
func IsMoney(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyScale))
}

// ParseMoney parses a decimal string and rejects more than two fractional digits.
func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	if !IsMoney(d) {
		return decimal.Zero, fmt.Errorf("amount %q has more than %d decimal places", s, MoneyScale)
	}
	return d, nil
}

// FormatMoney renders d with exactly two fractional digits.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}

// NormalizeCurrency upper-cases and validates an ISO 4217 code.
func NormalizeCurrency(code string) (string, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return "", fmt.Errorf("unknown currency %q", code)
	}
	return unit.String(), nil
}

// DateOf truncates t to its calendar date in t's location and returns it as a UTC-midnight date.
func DateOf(t time.Time) datatypes.Date {
	y, m, d := t.Date()
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (datatypes.Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return datatypes.Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// FormatDate renders a date as YYYY-MM-DD.
func FormatDate(d datatypes.Date) string {
	return time.Time(d).Format(time.DateOnly)
}

// DateBefore reports whether a is strictly earlier than b.
func DateBefore(a, b datatypes.Date) bool {
	return time.Time(a).Before(time.Time(b))
}
