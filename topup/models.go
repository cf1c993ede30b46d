// Package topup models metered pull payments: a merchant-designated executor
// draws a fixed top-up amount on demand, bounded by a total limit and an
// optional rolling window limit.
package topup

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/pullpay/signature"
	"github.com/xraph/pullpay/types"
)

// Plan is a registered top-up authorization. Timestamps are unix seconds.
type Plan struct {
	types.Entity
	PaymentID  common.Hash `json:"payment_id"`
	BusinessID common.Hash `json:"business_id"`

	Currency              string `json:"currency"`
	InitialConversionRate int64  `json:"initial_conversion_rate"`
	InitialAmountCents    int64  `json:"initial_amount_cents"`
	TopUpAmountCents      int64  `json:"top_up_amount_cents"`

	StartTimestamp  int64 `json:"start_timestamp"`
	TotalLimitCents int64 `json:"total_limit_cents"`
	TotalSpentCents int64 `json:"total_spent_cents"`

	LastPaymentTimestamp int64 `json:"last_payment_timestamp"`
	CancelTimestamp      int64 `json:"cancel_timestamp"`

	// ExpirationTimestamp is zero for plans that never expire.
	ExpirationTimestamp int64 `json:"expiration_timestamp,omitempty"`

	Payer    common.Address `json:"payer"`
	Treasury common.Address `json:"treasury"`
	Executor common.Address `json:"executor"`

	TimeBased *TimeBasedLimit `json:"time_based,omitempty"`

	// Version is bumped by every stored update.
	Version int64 `json:"version"`
}

// TimeBasedLimit caps spend within a rolling window. The window opens on the
// first top-up after it lapses.
type TimeBasedLimit struct {
	LimitCents           int64 `json:"limit_cents"`
	PeriodSeconds        int64 `json:"period_seconds"`
	SpentCents           int64 `json:"spent_cents"`
	WindowStartTimestamp int64 `json:"window_start_timestamp"`
}

// Lapsed reports whether the current window has ended at now.
func (l *TimeBasedLimit) Lapsed(now int64) bool {
	return now > l.WindowStartTimestamp+l.PeriodSeconds
}

// SpentAt returns the spend counted against the window at now.
func (l *TimeBasedLimit) SpentAt(now int64) int64 {
	if l.Lapsed(now) {
		return 0
	}
	return l.SpentCents
}

// IsActive reports whether the plan has not been cancelled.
func (p *Plan) IsActive() bool { return p.CancelTimestamp == 0 }

// Expired reports whether the plan's expiry has passed at now.
func (p *Plan) Expired(now int64) bool {
	return p.ExpirationTimestamp != 0 && now >= p.ExpirationTimestamp
}

// Remaining returns the cents still available under the total limit.
func (p *Plan) Remaining() types.Money {
	return types.NewMoney(p.TotalLimitCents-p.TotalSpentCents, p.Currency)
}

// Clone returns a deep copy of the plan.
func (p *Plan) Clone() *Plan {
	c := *p
	if p.TimeBased != nil {
		tb := *p.TimeBased
		c.TimeBased = &tb
	}
	return &c
}

// CancellationValues returns the fields a payer signs to cancel the plan.
func (p *Plan) CancellationValues() []signature.Value {
	return []signature.Value{
		signature.Bytes32(p.PaymentID),
		signature.Bytes32(p.BusinessID),
		signature.Address(p.Executor),
	}
}

// Limits is the read model returned for limit queries. An unknown plan
// yields the zero value.
type Limits struct {
	TotalLimitCents     int64 `json:"total_limit_cents"`
	TotalSpentCents     int64 `json:"total_spent_cents"`
	TimeBasedLimitCents int64 `json:"time_based_limit_cents"`
	TimeBasedSpentCents int64 `json:"time_based_spent_cents"`
	TimeBasedPeriod     int64 `json:"time_based_period_seconds"`
}

// LimitsAt reports the plan's limits as seen at now.
func (p *Plan) LimitsAt(now int64) Limits {
	l := Limits{
		TotalLimitCents: p.TotalLimitCents,
		TotalSpentCents: p.TotalSpentCents,
	}
	if p.TimeBased != nil {
		l.TimeBasedLimitCents = p.TimeBased.LimitCents
		l.TimeBasedSpentCents = p.TimeBased.SpentAt(now)
		l.TimeBasedPeriod = p.TimeBased.PeriodSeconds
	}
	return l
}

// TimeBasedTerms are the signed window parameters of a registration.
type TimeBasedTerms struct {
	LimitCents    int64 `json:"limit_cents"`
	PeriodSeconds int64 `json:"period_seconds"`
}

// Registration carries the signed parameters of a new top-up plan.
type Registration struct {
	Signature  signature.Signature `json:"signature"`
	PaymentID  common.Hash         `json:"payment_id"`
	BusinessID common.Hash         `json:"business_id"`

	Payer    common.Address `json:"payer"`
	Executor common.Address `json:"executor"`
	Treasury common.Address `json:"treasury"`

	Currency           string `json:"currency"`
	ConversionRate     int64  `json:"conversion_rate"`
	InitialAmountCents int64  `json:"initial_amount_cents"`
	TopUpAmountCents   int64  `json:"top_up_amount_cents"`
	StartTimestamp     int64  `json:"start_timestamp"`
	TotalLimitCents    int64  `json:"total_limit_cents"`

	// ExpirationTimestamp, when set, selects the expiring schemas.
	ExpirationTimestamp int64 `json:"expiration_timestamp,omitempty"`

	TimeBased *TimeBasedTerms `json:"time_based,omitempty"`
}

// Schema returns the signing schema for the registration.
func (r *Registration) Schema() signature.Schema {
	switch {
	case r.TimeBased != nil && r.ExpirationTimestamp != 0:
		return signature.TopUpTimeBasedExpiringRegistration
	case r.TimeBased != nil:
		return signature.TopUpTimeBasedRegistration
	case r.ExpirationTimestamp != 0:
		return signature.TopUpExpiringRegistration
	default:
		return signature.TopUpRegistration
	}
}

// SignedValues returns the attested fields in the order of r.Schema().
func (r *Registration) SignedValues() []signature.Value {
	values := []signature.Value{
		signature.Address(r.Executor),
		signature.Bytes32(r.PaymentID),
		signature.Bytes32(r.BusinessID),
		signature.Address(r.Treasury),
		signature.String(r.Currency),
		signature.Uint(r.ConversionRate),
		signature.Uint(r.InitialAmountCents),
		signature.Uint(r.TopUpAmountCents),
		signature.Uint(r.StartTimestamp),
		signature.Uint(r.TotalLimitCents),
	}
	if r.ExpirationTimestamp != 0 {
		values = append(values, signature.Uint(r.ExpirationTimestamp))
	}
	if r.TimeBased != nil {
		values = append(values,
			signature.Uint(r.TimeBased.LimitCents),
			signature.Uint(r.TimeBased.PeriodSeconds),
		)
	}
	return values
}

// Cancellation requests that a top-up plan stop.
type Cancellation struct {
	Signature signature.Signature `json:"signature"`
	PaymentID common.Hash         `json:"payment_id"`
}

// LimitKind names the limit changed by a payer update.
type LimitKind string

const (
	LimitTotal           LimitKind = "total"
	LimitTimeBased       LimitKind = "time_based"
	LimitTimeBasedPeriod LimitKind = "time_based_period"
)
