package api

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"

	"github.com/xraph/pullpay/recurring"
	"github.com/xraph/pullpay/signature"
	"github.com/xraph/pullpay/topup"
	"github.com/xraph/pullpay/types"
)

// Amounts and schedules are checked by the engine so that their failures
// carry engine error codes. Request validation covers encodings only.

type recurringRequest struct {
	Signature  string `json:"signature"   validate:"required,hexadecimal"`
	PaymentID  string `json:"payment_id"  validate:"required,max=66"`
	BusinessID string `json:"business_id" validate:"required,max=66"`
	Type       string `json:"type"        validate:"required,oneof=single recurring recurring_with_initial free_trial paid_trial"`

	Payer    string `json:"payer"    validate:"required,eth_addr"`
	Executor string `json:"executor" validate:"required,eth_addr"`
	Treasury string `json:"treasury" validate:"required,eth_addr"`

	Currency             string `json:"currency"`
	ConversionRate       int64  `json:"conversion_rate"`
	InitialAmountCents   int64  `json:"initial_amount_cents"`
	RecurringAmountCents int64  `json:"recurring_amount_cents"`
	FrequencySeconds     int64  `json:"frequency_seconds"`
	NumberOfPayments     int64  `json:"number_of_payments"`
	StartTimestamp       int64  `json:"start_timestamp"`
	TrialPeriodSeconds   int64  `json:"trial_period_seconds"`
}

func (r *recurringRequest) registration() (*recurring.Registration, error) {
	sig, err := signature.ParseHex(r.Signature)
	if err != nil {
		return nil, err
	}
	paymentID, businessID, err := parseIDs(r.PaymentID, r.BusinessID)
	if err != nil {
		return nil, err
	}
	return &recurring.Registration{
		Signature:            sig,
		PaymentID:            paymentID,
		BusinessID:           businessID,
		Type:                 recurring.Type(r.Type),
		Payer:                common.HexToAddress(r.Payer),
		Executor:             common.HexToAddress(r.Executor),
		Treasury:             common.HexToAddress(r.Treasury),
		Currency:             r.Currency,
		ConversionRate:       r.ConversionRate,
		InitialAmountCents:   r.InitialAmountCents,
		RecurringAmountCents: r.RecurringAmountCents,
		FrequencySeconds:     r.FrequencySeconds,
		NumberOfPayments:     r.NumberOfPayments,
		StartTimestamp:       r.StartTimestamp,
		TrialPeriodSeconds:   r.TrialPeriodSeconds,
	}, nil
}

type timeBasedRequest struct {
	LimitCents    int64 `json:"limit_cents"`
	PeriodSeconds int64 `json:"period_seconds"`
}

type topUpRequest struct {
	Signature  string `json:"signature"   validate:"required,hexadecimal"`
	PaymentID  string `json:"payment_id"  validate:"required,max=66"`
	BusinessID string `json:"business_id" validate:"required,max=66"`

	Payer    string `json:"payer"    validate:"required,eth_addr"`
	Executor string `json:"executor" validate:"required,eth_addr"`
	Treasury string `json:"treasury" validate:"required,eth_addr"`

	Currency           string `json:"currency"`
	ConversionRate     int64  `json:"conversion_rate"`
	InitialAmountCents int64  `json:"initial_amount_cents"`
	TopUpAmountCents   int64  `json:"top_up_amount_cents"`
	StartTimestamp     int64  `json:"start_timestamp"`
	TotalLimitCents    int64  `json:"total_limit_cents"`

	ExpirationTimestamp int64 `json:"expiration_timestamp,omitempty"`

	TimeBased *timeBasedRequest `json:"time_based,omitempty"`
}

func (r *topUpRequest) registration() (*topup.Registration, error) {
	sig, err := signature.ParseHex(r.Signature)
	if err != nil {
		return nil, err
	}
	paymentID, businessID, err := parseIDs(r.PaymentID, r.BusinessID)
	if err != nil {
		return nil, err
	}
	reg := &topup.Registration{
		Signature:          sig,
		PaymentID:          paymentID,
		BusinessID:         businessID,
		Payer:              common.HexToAddress(r.Payer),
		Executor:           common.HexToAddress(r.Executor),
		Treasury:           common.HexToAddress(r.Treasury),
		Currency:           r.Currency,
		ConversionRate:     r.ConversionRate,
		InitialAmountCents: r.InitialAmountCents,
		TopUpAmountCents:   r.TopUpAmountCents,
		StartTimestamp:     r.StartTimestamp,
		TotalLimitCents:    r.TotalLimitCents,

		ExpirationTimestamp: r.ExpirationTimestamp,
	}
	if tb := r.TimeBased; tb != nil {
		reg.TimeBased = &topup.TimeBasedTerms{LimitCents: tb.LimitCents, PeriodSeconds: tb.PeriodSeconds}
	}
	return reg, nil
}

type executeRecurringRequest struct {
	Payer             string `json:"payer"              validate:"required,eth_addr"`
	ExpectedRemaining int64  `json:"expected_remaining" validate:"gte=0"`
	Rate              int64  `json:"rate"`
}

type executeTopUpRequest struct {
	Rate int64 `json:"rate"`
}

type cancelRequest struct {
	Signature string `json:"signature" validate:"required,hexadecimal"`
}

type limitRequest struct {
	LimitCents int64 `json:"limit_cents"`
}

type periodRequest struct {
	PeriodSeconds int64 `json:"period_seconds"`
}

type allLimitsRequest struct {
	TotalLimitCents     int64 `json:"total_limit_cents"`
	TimeBasedLimitCents int64 `json:"time_based_limit_cents"`
	PeriodSeconds       int64 `json:"period_seconds"`
}

type pageQuery struct {
	Limit  int `query:"limit"  validate:"gte=0"`
	Offset int `query:"offset" validate:"gte=0"`
}

// page parses and validates the limit and offset query parameters.
func (a *API) page(c *fiber.Ctx) (pageQuery, error) {
	var q pageQuery
	if err := c.QueryParser(&q); err != nil {
		return q, invalid(fmt.Errorf("api: decode query: %w", err))
	}
	if err := a.validate.Struct(&q); err != nil {
		return q, invalid(err)
	}
	return q, nil
}

// bind parses and validates the JSON body into v.
func (a *API) bind(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return invalid(fmt.Errorf("api: decode body: %w", err))
	}
	if err := a.validate.Struct(v); err != nil {
		return invalid(err)
	}
	return nil
}

// paymentID parses the :id route parameter.
func paymentID(c *fiber.Ctx) (common.Hash, error) {
	h, err := types.ParseBytes32(c.Params("id"))
	if err != nil {
		return common.Hash{}, invalid(err)
	}
	return h, nil
}

func parseIDs(payment, business string) (common.Hash, common.Hash, error) {
	p, err := types.ParseBytes32(payment)
	if err != nil {
		return common.Hash{}, common.Hash{}, invalid(err)
	}
	b, err := types.ParseBytes32(business)
	if err != nil {
		return common.Hash{}, common.Hash{}, invalid(err)
	}
	return p, b, nil
}
