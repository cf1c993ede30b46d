package plugin

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/pullpay/execution"
	"github.com/xraph/pullpay/topup"
)

// PaymentRegistered describes a newly registered plan.
type PaymentRegistered struct {
	Model      execution.Model `json:"model"`
	PlanType   string          `json:"plan_type,omitempty"`
	PaymentID  common.Hash     `json:"payment_id"`
	BusinessID common.Hash     `json:"business_id"`
	Payer      common.Address  `json:"payer"`
	Treasury   common.Address  `json:"treasury"`
	Executor   common.Address  `json:"executor"`
	Currency   string          `json:"currency"`
	At         time.Time       `json:"at"`
}

// PaymentCancelled describes a cancelled plan.
type PaymentCancelled struct {
	Model     execution.Model `json:"model"`
	PaymentID common.Hash     `json:"payment_id"`
	Payer     common.Address  `json:"payer"`
	Executor  common.Address  `json:"executor"`
	At        time.Time       `json:"at"`
}

// LimitUpdated describes a payer changing a top-up limit.
type LimitUpdated struct {
	PaymentID common.Hash     `json:"payment_id"`
	Payer     common.Address  `json:"payer"`
	Limit     topup.LimitKind `json:"limit"`
	Old       int64           `json:"old"`
	New       int64           `json:"new"`
	At        time.Time       `json:"at"`
}

// ExecutionRejected describes a failed execution attempt. Code is the stable
// error kind, e.g. "ScheduleNotDue".
type ExecutionRejected struct {
	Model     execution.Model `json:"model"`
	PaymentID common.Hash     `json:"payment_id"`
	Caller    common.Address  `json:"caller"`
	Code      string          `json:"code"`
	Err       error           `json:"-"`
	At        time.Time       `json:"at"`
}
