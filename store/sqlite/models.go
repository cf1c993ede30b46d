package sqlite

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/grove"

	"github.com/xraph/pullpay/execution"
	"github.com/xraph/pullpay/id"
	"github.com/xraph/pullpay/recurring"
	"github.com/xraph/pullpay/topup"
	"github.com/xraph/pullpay/types"
)

// ==================== Recurring plan models ====================

type recurringPlanModel struct {
	grove.BaseModel `grove:"table:pullpay_recurring_plans"`

	PaymentID            string    `grove:"payment_id,pk"`
	BusinessID           string    `grove:"business_id"`
	PlanType             string    `grove:"plan_type"`
	Currency             string    `grove:"currency"`
	ConversionRate       int64     `grove:"conversion_rate"`
	InitialAmountCents   int64     `grove:"initial_amount_cents"`
	RecurringAmountCents int64     `grove:"recurring_amount_cents"`
	FrequencySeconds     int64     `grove:"frequency_seconds"`
	RemainingPayments    int64     `grove:"remaining_payments"`
	StartTimestamp       int64     `grove:"start_timestamp"`
	TrialPeriodSeconds   int64     `grove:"trial_period_seconds"`
	NextDueTimestamp     int64     `grove:"next_due_timestamp"`
	LastPaymentTimestamp int64     `grove:"last_payment_timestamp"`
	CancelTimestamp      int64     `grove:"cancel_timestamp"`
	Payer                string    `grove:"payer"`
	Treasury             string    `grove:"treasury"`
	Executor             string    `grove:"executor"`
	Version              int64     `grove:"version"`
	CreatedAt            time.Time `grove:"created_at"`
	UpdatedAt            time.Time `grove:"updated_at"`
}

func toRecurringPlanModel(p *recurring.Plan) *recurringPlanModel {
	return &recurringPlanModel{
		PaymentID:            p.PaymentID.Hex(),
		BusinessID:           p.BusinessID.Hex(),
		PlanType:             string(p.Type),
		Currency:             p.Currency,
		ConversionRate:       p.ConversionRate,
		InitialAmountCents:   p.InitialAmountCents,
		RecurringAmountCents: p.RecurringAmountCents,
		FrequencySeconds:     p.FrequencySeconds,
		RemainingPayments:    p.RemainingPayments,
		StartTimestamp:       p.StartTimestamp,
		TrialPeriodSeconds:   p.TrialPeriodSeconds,
		NextDueTimestamp:     p.NextDueTimestamp,
		LastPaymentTimestamp: p.LastPaymentTimestamp,
		CancelTimestamp:      p.CancelTimestamp,
		Payer:                p.Payer.Hex(),
		Treasury:             p.Treasury.Hex(),
		Executor:             p.Executor.Hex(),
		Version:              p.Version,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}

func fromRecurringPlanModel(m *recurringPlanModel) (*recurring.Plan, error) {
	planType, err := recurring.ParseType(m.PlanType)
	if err != nil {
		return nil, err
	}

	return &recurring.Plan{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		PaymentID:            common.HexToHash(m.PaymentID),
		BusinessID:           common.HexToHash(m.BusinessID),
		Type:                 planType,
		Currency:             m.Currency,
		ConversionRate:       m.ConversionRate,
		InitialAmountCents:   m.InitialAmountCents,
		RecurringAmountCents: m.RecurringAmountCents,
		FrequencySeconds:     m.FrequencySeconds,
		RemainingPayments:    m.RemainingPayments,
		StartTimestamp:       m.StartTimestamp,
		TrialPeriodSeconds:   m.TrialPeriodSeconds,
		NextDueTimestamp:     m.NextDueTimestamp,
		LastPaymentTimestamp: m.LastPaymentTimestamp,
		CancelTimestamp:      m.CancelTimestamp,
		Payer:                common.HexToAddress(m.Payer),
		Treasury:             common.HexToAddress(m.Treasury),
		Executor:             common.HexToAddress(m.Executor),
		Version:              m.Version,
	}, nil
}

// ==================== Top-up plan models ====================

// The time-based limit lives on the plan row; HasTimeBased tells an absent
// window apart from a zeroed one.
type topUpPlanModel struct {
	grove.BaseModel `grove:"table:pullpay_topup_plans"`

	PaymentID             string    `grove:"payment_id,pk"`
	BusinessID            string    `grove:"business_id"`
	Currency              string    `grove:"currency"`
	InitialConversionRate int64     `grove:"initial_conversion_rate"`
	InitialAmountCents    int64     `grove:"initial_amount_cents"`
	TopUpAmountCents      int64     `grove:"top_up_amount_cents"`
	StartTimestamp        int64     `grove:"start_timestamp"`
	TotalLimitCents       int64     `grove:"total_limit_cents"`
	TotalSpentCents       int64     `grove:"total_spent_cents"`
	LastPaymentTimestamp  int64     `grove:"last_payment_timestamp"`
	CancelTimestamp       int64     `grove:"cancel_timestamp"`
	Payer                 string    `grove:"payer"`
	Treasury              string    `grove:"treasury"`
	Executor              string    `grove:"executor"`
	ExpirationTimestamp   int64     `grove:"expiration_timestamp"`
	Version               int64     `grove:"version"`
	HasTimeBased          bool      `grove:"has_time_based"`
	TimeBasedLimitCents   int64     `grove:"time_based_limit_cents"`
	TimeBasedPeriod       int64     `grove:"time_based_period_seconds"`
	TimeBasedSpentCents   int64     `grove:"time_based_spent_cents"`
	WindowStartTimestamp  int64     `grove:"window_start_timestamp"`
	CreatedAt             time.Time `grove:"created_at"`
	UpdatedAt             time.Time `grove:"updated_at"`
}

func toTopUpPlanModel(p *topup.Plan) *topUpPlanModel {
	m := &topUpPlanModel{
		PaymentID:             p.PaymentID.Hex(),
		BusinessID:            p.BusinessID.Hex(),
		Currency:              p.Currency,
		InitialConversionRate: p.InitialConversionRate,
		InitialAmountCents:    p.InitialAmountCents,
		TopUpAmountCents:      p.TopUpAmountCents,
		StartTimestamp:        p.StartTimestamp,
		TotalLimitCents:       p.TotalLimitCents,
		TotalSpentCents:       p.TotalSpentCents,
		LastPaymentTimestamp:  p.LastPaymentTimestamp,
		CancelTimestamp:       p.CancelTimestamp,
		Payer:                 p.Payer.Hex(),
		Treasury:              p.Treasury.Hex(),
		Executor:              p.Executor.Hex(),
		ExpirationTimestamp:   p.ExpirationTimestamp,
		Version:               p.Version,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
	if tb := p.TimeBased; tb != nil {
		m.HasTimeBased = true
		m.TimeBasedLimitCents = tb.LimitCents
		m.TimeBasedPeriod = tb.PeriodSeconds
		m.TimeBasedSpentCents = tb.SpentCents
		m.WindowStartTimestamp = tb.WindowStartTimestamp
	}
	return m
}

func fromTopUpPlanModel(m *topUpPlanModel) *topup.Plan {
	p := &topup.Plan{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		PaymentID:             common.HexToHash(m.PaymentID),
		BusinessID:            common.HexToHash(m.BusinessID),
		Currency:              m.Currency,
		InitialConversionRate: m.InitialConversionRate,
		InitialAmountCents:    m.InitialAmountCents,
		TopUpAmountCents:      m.TopUpAmountCents,
		StartTimestamp:        m.StartTimestamp,
		TotalLimitCents:       m.TotalLimitCents,
		TotalSpentCents:       m.TotalSpentCents,
		LastPaymentTimestamp:  m.LastPaymentTimestamp,
		CancelTimestamp:       m.CancelTimestamp,
		Payer:                 common.HexToAddress(m.Payer),
		Treasury:              common.HexToAddress(m.Treasury),
		Executor:              common.HexToAddress(m.Executor),
		ExpirationTimestamp:   m.ExpirationTimestamp,
		Version:               m.Version,
	}
	if m.HasTimeBased {
		p.TimeBased = &topup.TimeBasedLimit{
			LimitCents:           m.TimeBasedLimitCents,
			PeriodSeconds:        m.TimeBasedPeriod,
			SpentCents:           m.TimeBasedSpentCents,
			WindowStartTimestamp: m.WindowStartTimestamp,
		}
	}
	return p
}

// ==================== Execution models ====================

type executionModel struct {
	grove.BaseModel `grove:"table:pullpay_executions"`

	ID                string    `grove:"id,pk"`
	PaymentID         string    `grove:"payment_id"`
	Model             string    `grove:"model"`
	Kind              string    `grove:"kind"`
	Payer             string    `grove:"payer"`
	Treasury          string    `grove:"treasury"`
	AmountCents       int64     `grove:"amount_cents"`
	Currency          string    `grove:"currency"`
	ConversionRate    int64     `grove:"conversion_rate"`
	LedgerAmount      string    `grove:"ledger_amount"`
	RemainingPayments int64     `grove:"remaining_payments"`
	ExecutedAt        time.Time `grove:"executed_at"`
}

func toExecutionModel(e *execution.Execution) *executionModel {
	amount := "0"
	if e.LedgerAmount != nil {
		amount = e.LedgerAmount.String()
	}
	return &executionModel{
		ID:                e.ID.String(),
		PaymentID:         e.PaymentID.Hex(),
		Model:             string(e.Model),
		Kind:              string(e.Kind),
		Payer:             e.Payer.Hex(),
		Treasury:          e.Treasury.Hex(),
		AmountCents:       e.AmountCents,
		Currency:          e.Currency,
		ConversionRate:    e.ConversionRate,
		LedgerAmount:      amount,
		RemainingPayments: e.RemainingPayments,
		ExecutedAt:        e.ExecutedAt,
	}
}

func fromExecutionModel(m *executionModel) (*execution.Execution, error) {
	execID, err := id.ParseExecutionID(m.ID)
	if err != nil {
		return nil, err
	}
	amount, ok := new(big.Int).SetString(m.LedgerAmount, 10)
	if !ok {
		return nil, fmt.Errorf("pullpay/sqlite: invalid ledger amount %q for %s", m.LedgerAmount, m.ID)
	}

	return &execution.Execution{
		ID:                execID,
		PaymentID:         common.HexToHash(m.PaymentID),
		Model:             execution.Model(m.Model),
		Kind:              execution.Kind(m.Kind),
		Payer:             common.HexToAddress(m.Payer),
		Treasury:          common.HexToAddress(m.Treasury),
		AmountCents:       m.AmountCents,
		Currency:          m.Currency,
		ConversionRate:    m.ConversionRate,
		LedgerAmount:      amount,
		RemainingPayments: m.RemainingPayments,
		ExecutedAt:        m.ExecutedAt,
	}, nil
}
