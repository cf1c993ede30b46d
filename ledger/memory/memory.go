// Package memory provides an in-process token ledger with ERC-20 style
// balances and spending allowances granted to the engine.
package memory

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/pullpay/ledger"
)

var _ ledger.Ledger = (*Ledger)(nil)

// Ledger is a thread-safe in-memory token ledger. The engine is the single
// spender: each payer grants it an allowance that every transfer draws down.
type Ledger struct {
	mu         sync.Mutex
	balances   map[common.Address]*big.Int
	allowances map[common.Address]*big.Int
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]*big.Int),
	}
}

// Mint credits amount to holder.
func (l *Ledger) Mint(holder common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[holder] = new(big.Int).Add(l.balanceOf(holder), amount)
}

// Approve sets the amount the engine may draw from owner.
func (l *Ledger) Approve(owner common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[owner] = new(big.Int).Set(amount)
}

// BalanceOf returns the balance of holder.
func (l *Ledger) BalanceOf(holder common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balanceOf(holder))
}

// Allowance returns the amount the engine may still draw from owner.
func (l *Ledger) Allowance(owner common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.allowanceOf(owner))
}

// Transfer implements ledger.Ledger.
func (l *Ledger) Transfer(_ context.Context, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("ledger/memory: invalid amount %v", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	allowance := l.allowanceOf(from)
	if allowance.Cmp(amount) < 0 {
		return ledger.ErrNotAuthorized
	}
	balance := l.balanceOf(from)
	if balance.Cmp(amount) < 0 {
		return ledger.ErrInsufficientFunds
	}

	l.allowances[from] = new(big.Int).Sub(allowance, amount)
	l.balances[from] = new(big.Int).Sub(balance, amount)
	l.balances[to] = new(big.Int).Add(l.balanceOf(to), amount)
	return nil
}

func (l *Ledger) balanceOf(holder common.Address) *big.Int {
	if b, ok := l.balances[holder]; ok {
		return b
	}
	return new(big.Int)
}

func (l *Ledger) allowanceOf(owner common.Address) *big.Int {
	if a, ok := l.allowances[owner]; ok {
		return a
	}
	return new(big.Int)
}
