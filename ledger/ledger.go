// Package ledger defines the value-transfer primitive the engine draws funds
// through. Balances, spending authorizations and the token itself live behind
// this interface.
package ledger

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInsufficientFunds is returned when the payer balance is too low.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrNotAuthorized is returned when the payer has not authorized the
	// engine to draw the amount.
	ErrNotAuthorized = errors.New("ledger: transfer not authorized")
)

// Ledger moves value from a payer to a payee. A transfer either completes in
// full or fails without effect.
type Ledger interface {
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
}

// Func adapts a function to the Ledger interface.
type Func func(ctx context.Context, from, to common.Address, amount *big.Int) error

// Transfer calls f.
func (f Func) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	return f(ctx, from, to, amount)
}
