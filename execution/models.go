// Package execution records every successful draw made against a plan.
package execution

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/pullpay/id"
	"github.com/xraph/pullpay/types"
)

// Model names the plan family an execution belongs to.
type Model string

const (
	ModelRecurring Model = "recurring"
	ModelTopUp     Model = "topup"
)

// Kind names what was charged.
type Kind string

const (
	KindInitial   Kind = "initial"   // one-shot charge at registration
	KindRecurring Kind = "recurring" // one recurring cycle
	KindTopUp     Kind = "topup"     // one metered top-up
)

// Execution is an append-only record of a transfer.
type Execution struct {
	ID        id.ExecutionID `json:"id"`
	PaymentID common.Hash    `json:"payment_id"`
	Model     Model          `json:"model"`
	Kind      Kind           `json:"kind"`

	Payer    common.Address `json:"payer"`
	Treasury common.Address `json:"treasury"`

	AmountCents    int64    `json:"amount_cents"`
	Currency       string   `json:"currency"`
	ConversionRate int64    `json:"conversion_rate"`
	LedgerAmount   *big.Int `json:"ledger_amount"`

	// RemainingPayments is the recurring counter after this execution.
	RemainingPayments int64     `json:"remaining_payments,omitempty"`
	ExecutedAt        time.Time `json:"executed_at"`
}

// Amount returns the charged fiat amount.
func (e *Execution) Amount() types.Money {
	return types.NewMoney(e.AmountCents, e.Currency)
}
