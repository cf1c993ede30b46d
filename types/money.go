// Package types provides value types shared across the pull payment engine.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Money is a fiat amount in the smallest currency unit. Plans are signed in
// cents, so all arithmetic stays integer-only.
type Money struct {
	Cents    int64  `json:"cents"`
	Currency string `json:"currency"` // ISO 4217 uppercase, as signed: "EUR", "USD"
}

// NewMoney creates a Money value, normalizing the currency code.
func NewMoney(cents int64, currency string) Money {
	return Money{Cents: cents, Currency: strings.ToUpper(currency)}
}

// EUR creates a Money value in euro cents.
func EUR(cents int64) Money { return Money{Cents: cents, Currency: "EUR"} }

// USD creates a Money value in US cents.
func USD(cents int64) Money { return Money{Cents: cents, Currency: "USD"} }

// Add adds two Money values. Currencies must match.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("money: currency mismatch: %s != %s", m.Currency, other.Currency)
	}
	return Money{Cents: m.Cents + other.Cents, Currency: m.Currency}, nil
}

// Times multiplies the amount by a count, e.g. a cycle amount by the number of cycles.
func (m Money) Times(n int64) Money {
	return Money{Cents: m.Cents * n, Currency: m.Currency}
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Cents == 0 }

// FormatMajor returns the major unit string without currency symbol,
// e.g. "2.00" for EUR(200).
func (m Money) FormatMajor() string {
	abs := m.Cents
	sign := ""
	if abs < 0 {
		abs = -abs
		sign = "-"
	}
	return fmt.Sprintf("%s%d.%02d", sign, abs/100, abs%100)
}

// String returns a human-readable string with currency symbol.
// Examples: "€2.00", "$0.50", "GBP 9.99"
func (m Money) String() string {
	return currencySymbol(m.Currency) + m.FormatMajor()
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Cents    int64  `json:"cents"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Cents:    m.Cents,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

func currencySymbol(currency string) string {
	switch strings.ToUpper(currency) {
	case "USD":
		return "$"
	case "EUR":
		return "€"
	case "GBP":
		return "£"
	case "JPY":
		return "¥"
	}
	return strings.ToUpper(currency) + " "
}
