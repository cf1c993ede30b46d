// Package conversion turns fiat cents into ledger units at a fixed-point
// conversion rate.
//
// A rate is the value of one ledger unit in fiat, scaled by 10^10. A rate of
// 0.05 USD per unit is therefore 500_000_000. The amount drawn for a charge is
//
//	cents * 10^10 * 10^decimals / rate / 100
//
// computed with arbitrary precision and truncated toward zero.
package conversion

import (
	"errors"
	"math/big"
)

const (
	// RateScale is the fixed-point scale of conversion rates.
	RateScale = 10_000_000_000

	// CentsPerUnit converts cents to whole fiat units.
	CentsPerUnit = 100

	// Ceiling bounds every cents amount and rate accepted by the engine.
	// Values must be strictly below it.
	Ceiling = 1_000_000_000_000_000_000
)

var (
	// ErrInvalidRate is returned for a zero or negative rate.
	ErrInvalidRate = errors.New("conversion: invalid rate")

	// ErrOverflow is returned when an input or the result reaches the ceiling.
	ErrOverflow = errors.New("conversion: overflow")
)

// Converter converts cents into ledger base units. The zero value converts
// into whole ledger units.
type Converter struct {
	decimals uint8
	unit     *big.Int
}

// New returns a Converter for a ledger whose unit has the given number of
// decimals. An 18-decimal token yields amounts in its smallest denomination.
func New(decimals uint8) *Converter {
	return &Converter{
		decimals: decimals,
		unit:     new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil),
	}
}

// Decimals returns the ledger unit decimals.
func (c *Converter) Decimals() uint8 { return c.decimals }

// ToLedgerUnits converts amountCents at rate into ledger base units.
func (c *Converter) ToLedgerUnits(amountCents, rate int64) (*big.Int, error) {
	if rate <= 0 {
		return nil, ErrInvalidRate
	}
	if amountCents < 0 || amountCents >= Ceiling || rate >= Ceiling {
		return nil, ErrOverflow
	}

	unit := c.unit
	if unit == nil {
		unit = big.NewInt(1)
	}

	n := new(big.Int).Mul(big.NewInt(amountCents), big.NewInt(RateScale))
	n.Mul(n, unit)
	n.Quo(n, big.NewInt(rate))
	n.Quo(n, big.NewInt(CentsPerUnit))

	limit := new(big.Int).Mul(big.NewInt(Ceiling), unit)
	if n.Cmp(limit) >= 0 {
		return nil, ErrOverflow
	}
	return n, nil
}
