package api

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"

	"github.com/xraph/pullpay/execution"
	"github.com/xraph/pullpay/recurring"
	"github.com/xraph/pullpay/signature"
	"github.com/xraph/pullpay/topup"
)

// registered is the response to a registration. Execution is null when
// nothing was charged.
type registered[P any] struct {
	Plan      P                    `json:"plan"`
	Execution *execution.Execution `json:"execution"`
}

// ──────────────────────────────────────────────────
// Recurring
// ──────────────────────────────────────────────────

func (a *API) registerRecurring(c *fiber.Ctx) error {
	caller, err := a.caller(c)
	if err != nil {
		return err
	}
	var req recurringRequest
	if err := a.bind(c, &req); err != nil {
		return err
	}
	reg, err := req.registration()
	if err != nil {
		return err
	}

	p, exec, err := a.engine.RegisterRecurring(c.UserContext(), caller, reg)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(registered[*recurring.Plan]{Plan: p, Execution: exec})
}

func (a *API) getRecurring(c *fiber.Ctx) error {
	id, err := paymentID(c)
	if err != nil {
		return err
	}
	p, err := a.engine.GetRecurringPlan(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (a *API) listRecurring(c *fiber.Ctx) error {
	payer, err := queryAddress(c, "payer")
	if err != nil {
		return err
	}
	pg, err := a.page(c)
	if err != nil {
		return err
	}
	plans, err := a.engine.ListRecurringPlans(c.UserContext(), recurring.ListOpts{
		Payer:      payer,
		DueBefore:  int64(c.QueryInt("due_before")),
		ActiveOnly: c.QueryBool("active"),
		Limit:      pg.Limit,
		Offset:     pg.Offset,
	})
	if err != nil {
		return err
	}
	return c.JSON(plans)
}

func (a *API) executeRecurring(c *fiber.Ctx) error {
	caller, err := a.caller(c)
	if err != nil {
		return err
	}
	id, err := paymentID(c)
	if err != nil {
		return err
	}
	var req executeRecurringRequest
	if err := a.bind(c, &req); err != nil {
		return err
	}

	exec, err := a.engine.ExecuteRecurring(c.UserContext(), caller, common.HexToAddress(req.Payer), id, req.ExpectedRemaining, req.Rate)
	if err != nil {
		return err
	}
	return c.JSON(exec)
}

func (a *API) cancelRecurring(c *fiber.Ctx) error {
	caller, err := a.caller(c)
	if err != nil {
		return err
	}
	id, err := paymentID(c)
	if err != nil {
		return err
	}
	sig, err := a.bindCancel(c)
	if err != nil {
		return err
	}

	p, err := a.engine.CancelRecurring(c.UserContext(), caller, &recurring.Cancellation{Signature: sig, PaymentID: id})
	if err != nil {
		return err
	}
	return c.JSON(p)
}

// ──────────────────────────────────────────────────
// Top-up
// ──────────────────────────────────────────────────

func (a *API) registerTopUp(c *fiber.Ctx) error {
	caller, err := a.caller(c)
	if err != nil {
		return err
	}
	var req topUpRequest
	if err := a.bind(c, &req); err != nil {
		return err
	}
	reg, err := req.registration()
	if err != nil {
		return err
	}

	p, exec, err := a.engine.RegisterTopUp(c.UserContext(), caller, reg)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(registered[*topup.Plan]{Plan: p, Execution: exec})
}

func (a *API) getTopUp(c *fiber.Ctx) error {
	id, err := paymentID(c)
	if err != nil {
		return err
	}
	p, err := a.engine.GetTopUpPlan(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (a *API) listTopUps(c *fiber.Ctx) error {
	payer, err := queryAddress(c, "payer")
	if err != nil {
		return err
	}
	executor, err := queryAddress(c, "executor")
	if err != nil {
		return err
	}
	pg, err := a.page(c)
	if err != nil {
		return err
	}
	plans, err := a.engine.ListTopUpPlans(c.UserContext(), topup.ListOpts{
		Payer:      payer,
		Executor:   executor,
		ActiveOnly: c.QueryBool("active"),
		Limit:      pg.Limit,
		Offset:     pg.Offset,
	})
	if err != nil {
		return err
	}
	return c.JSON(plans)
}

func (a *API) retrieveLimits(c *fiber.Ctx) error {
	id, err := paymentID(c)
	if err != nil {
		return err
	}
	limits, err := a.engine.RetrieveLimits(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(limits)
}

func (a *API) executeTopUp(c *fiber.Ctx) error {
	caller, err := a.caller(c)
	if err != nil {
		return err
	}
	id, err := paymentID(c)
	if err != nil {
		return err
	}
	var req executeTopUpRequest
	if err := a.bind(c, &req); err != nil {
		return err
	}

	exec, err := a.engine.ExecuteTopUp(c.UserContext(), caller, id, req.Rate)
	if err != nil {
		return err
	}
	return c.JSON(exec)
}

func (a *API) cancelTopUp(c *fiber.Ctx) error {
	caller, err := a.caller(c)
	if err != nil {
		return err
	}
	id, err := paymentID(c)
	if err != nil {
		return err
	}
	sig, err := a.bindCancel(c)
	if err != nil {
		return err
	}

	p, err := a.engine.CancelTopUp(c.UserContext(), caller, &topup.Cancellation{Signature: sig, PaymentID: id})
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (a *API) updateTotalLimit(c *fiber.Ctx) error {
	var req limitRequest
	return a.updateLimit(c, &req, func(caller common.Address, id common.Hash) (*topup.Plan, error) {
		return a.engine.UpdateTotalLimit(c.UserContext(), caller, id, req.LimitCents)
	})
}

func (a *API) updateTimeBasedLimit(c *fiber.Ctx) error {
	var req limitRequest
	return a.updateLimit(c, &req, func(caller common.Address, id common.Hash) (*topup.Plan, error) {
		return a.engine.UpdateTimeBasedLimit(c.UserContext(), caller, id, req.LimitCents)
	})
}

func (a *API) updateTimeBasedPeriod(c *fiber.Ctx) error {
	var req periodRequest
	return a.updateLimit(c, &req, func(caller common.Address, id common.Hash) (*topup.Plan, error) {
		return a.engine.UpdateTimeBasedPeriod(c.UserContext(), caller, id, req.PeriodSeconds)
	})
}

func (a *API) updateTimeBasedLimitAndPeriod(c *fiber.Ctx) error {
	var req timeBasedRequest
	return a.updateLimit(c, &req, func(caller common.Address, id common.Hash) (*topup.Plan, error) {
		return a.engine.UpdateTimeBasedLimitAndPeriod(c.UserContext(), caller, id, req.LimitCents, req.PeriodSeconds)
	})
}

func (a *API) updateAllLimits(c *fiber.Ctx) error {
	var req allLimitsRequest
	return a.updateLimit(c, &req, func(caller common.Address, id common.Hash) (*topup.Plan, error) {
		return a.engine.UpdateAllLimits(c.UserContext(), caller, id,
			req.TotalLimitCents, req.TimeBasedLimitCents, req.PeriodSeconds)
	})
}

// updateLimit resolves the caller and plan, binds req, then runs update.
func (a *API) updateLimit(c *fiber.Ctx, req any, update func(caller common.Address, id common.Hash) (*topup.Plan, error)) error {
	caller, err := a.caller(c)
	if err != nil {
		return err
	}
	id, err := paymentID(c)
	if err != nil {
		return err
	}
	if err := a.bind(c, req); err != nil {
		return err
	}

	p, err := update(caller, id)
	if err != nil {
		return err
	}
	return c.JSON(p)
}

// ──────────────────────────────────────────────────
// Executions
// ──────────────────────────────────────────────────

func (a *API) listExecutions(c *fiber.Ctx) error {
	id, err := paymentID(c)
	if err != nil {
		return err
	}
	pg, err := a.page(c)
	if err != nil {
		return err
	}
	execs, err := a.engine.ListExecutions(c.UserContext(), id, execution.ListOpts{
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
	if err != nil {
		return err
	}
	return c.JSON(execs)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (a *API) bindCancel(c *fiber.Ctx) (signature.Signature, error) {
	var req cancelRequest
	if err := a.bind(c, &req); err != nil {
		return signature.Signature{}, err
	}
	return signature.ParseHex(req.Signature)
}

func queryAddress(c *fiber.Ctx, key string) (common.Address, error) {
	v := c.Query(key)
	if v == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(v) {
		return common.Address{}, invalid(fmt.Errorf("api: query %s is not an address", key))
	}
	return common.HexToAddress(v), nil
}
