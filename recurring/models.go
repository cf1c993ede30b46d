// Package recurring models subscription-style pull payments: one-off,
// recurring, recurring with an initial charge, and free or paid trials.
package recurring

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/pullpay/signature"
	"github.com/xraph/pullpay/types"
)

// Type is the billing model of a plan.
type Type string

const (
	TypeSingle               Type = "single"
	TypeRecurring            Type = "recurring"
	TypeRecurringWithInitial Type = "recurring_with_initial"
	TypeFreeTrial            Type = "free_trial"
	TypePaidTrial            Type = "paid_trial"
)

// Code returns the numeric wire code signed by the payer.
func (t Type) Code() int64 {
	switch t {
	case TypeSingle:
		return 2
	case TypeRecurring:
		return 3
	case TypeRecurringWithInitial:
		return 4
	case TypeFreeTrial:
		return 5
	case TypePaidTrial:
		return 6
	}
	return 0
}

// Valid reports whether t is a known plan type.
func (t Type) Valid() bool { return t.Code() != 0 }

// HasTrial reports whether the first cycle is deferred by a trial period.
func (t Type) HasTrial() bool { return t == TypeFreeTrial || t == TypePaidTrial }

// ChargesInitial reports whether an initial amount is charged at registration.
func (t Type) ChargesInitial() bool { return t == TypeRecurringWithInitial || t == TypePaidTrial }

// Schema returns the signing schema for plans of this type.
func (t Type) Schema() signature.Schema {
	if t.HasTrial() {
		return signature.RecurringTrialRegistration
	}
	return signature.RecurringRegistration
}

// ParseType parses a plan type name.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("recurring: unknown plan type %q", s)
	}
	return t, nil
}

// Status is the derived lifecycle state of a plan.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExhausted Status = "exhausted"
)

// Plan is a registered recurring authorization. Timestamps are unix seconds.
type Plan struct {
	types.Entity
	PaymentID  common.Hash `json:"payment_id"`
	BusinessID common.Hash `json:"business_id"`
	Type       Type        `json:"type"`

	Currency             string `json:"currency"`
	ConversionRate       int64  `json:"conversion_rate"`
	InitialAmountCents   int64  `json:"initial_amount_cents"`
	RecurringAmountCents int64  `json:"recurring_amount_cents"`

	FrequencySeconds   int64 `json:"frequency_seconds"`
	RemainingPayments  int64 `json:"remaining_payments"`
	StartTimestamp     int64 `json:"start_timestamp"`
	TrialPeriodSeconds int64 `json:"trial_period_seconds"`

	NextDueTimestamp     int64 `json:"next_due_timestamp"`
	LastPaymentTimestamp int64 `json:"last_payment_timestamp"`
	CancelTimestamp      int64 `json:"cancel_timestamp"`

	Payer    common.Address `json:"payer"`
	Treasury common.Address `json:"treasury"`
	Executor common.Address `json:"executor"`

	// Version is bumped by every stored update.
	Version int64 `json:"version"`
}

// Status derives the lifecycle state. Cancellation wins over exhaustion.
func (p *Plan) Status() Status {
	switch {
	case p.CancelTimestamp != 0:
		return StatusCancelled
	case p.RemainingPayments == 0:
		return StatusExhausted
	}
	return StatusActive
}

// IsDue reports whether an execution may run at now.
func (p *Plan) IsDue(now int64) bool {
	return p.Status() == StatusActive && now >= p.NextDueTimestamp
}

// RecurringAmount returns the per-cycle amount.
func (p *Plan) RecurringAmount() types.Money {
	return types.NewMoney(p.RecurringAmountCents, p.Currency)
}

// Clone returns a copy of the plan.
func (p *Plan) Clone() *Plan {
	c := *p
	return &c
}

// CancellationValues returns the fields a payer signs to cancel the plan.
func (p *Plan) CancellationValues() []signature.Value {
	return []signature.Value{
		signature.Bytes32(p.PaymentID),
		signature.Address(p.Executor),
	}
}

// Registration carries the signed parameters of a new plan.
type Registration struct {
	Signature  signature.Signature `json:"signature"`
	PaymentID  common.Hash         `json:"payment_id"`
	BusinessID common.Hash         `json:"business_id"`
	Type       Type                `json:"type"`

	Payer    common.Address `json:"payer"`
	Executor common.Address `json:"executor"`
	Treasury common.Address `json:"treasury"`

	Currency             string `json:"currency"`
	ConversionRate       int64  `json:"conversion_rate"`
	InitialAmountCents   int64  `json:"initial_amount_cents"`
	RecurringAmountCents int64  `json:"recurring_amount_cents"`
	FrequencySeconds     int64  `json:"frequency_seconds"`
	NumberOfPayments     int64  `json:"number_of_payments"`
	StartTimestamp       int64  `json:"start_timestamp"`
	TrialPeriodSeconds   int64  `json:"trial_period_seconds"`
}

// SignedValues returns the attested fields in the order of r.Type.Schema().
func (r *Registration) SignedValues() []signature.Value {
	values := []signature.Value{
		signature.Address(r.Executor),
		signature.Bytes32(r.PaymentID),
		signature.Bytes32(r.BusinessID),
		signature.Uint(r.Type.Code()),
		signature.Address(r.Treasury),
		signature.String(r.Currency),
		signature.Uint(r.ConversionRate),
		signature.Uint(r.InitialAmountCents),
		signature.Uint(r.RecurringAmountCents),
		signature.Uint(r.FrequencySeconds),
		signature.Uint(r.NumberOfPayments),
		signature.Uint(r.StartTimestamp),
	}
	if r.Type.HasTrial() {
		values = append(values, signature.Uint(r.TrialPeriodSeconds))
	}
	return values
}

// Cancellation requests that a plan stop. The payer signs the plan's
// CancellationValues.
type Cancellation struct {
	Signature signature.Signature `json:"signature"`
	PaymentID common.Hash         `json:"payment_id"`
}
