package pullpay

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/pullpay/execution"
	"github.com/xraph/pullpay/plugin"
	"github.com/xraph/pullpay/signature"
	"github.com/xraph/pullpay/topup"
	"github.com/xraph/pullpay/types"
)

// ──────────────────────────────────────────────────
// Top-up payments
// ──────────────────────────────────────────────────

// RegisterTopUp registers a payer-signed top-up plan on behalf of an
// authorized executor. A non-zero initial amount is charged immediately at
// the registration rate and does not count toward the total limit.
func (e *Engine) RegisterTopUp(ctx context.Context, caller common.Address, reg *topup.Registration) (*topup.Plan, *execution.Execution, error) {
	e.mu.Lock()
	p, exec, err := e.registerTopUp(ctx, caller, reg)
	e.mu.Unlock()
	if err != nil {
		e.logger.Debug("top-up registration rejected",
			"payment_id", reg.PaymentID.Hex(),
			"caller", caller.Hex(),
			"code", Code(err),
			"error", err,
		)
		return nil, nil, err
	}

	e.logger.Info("top-up payment registered",
		"payment_id", p.PaymentID.Hex(),
		"payer", p.Payer.Hex(),
		"executor", p.Executor.Hex(),
		"total_limit", p.TotalLimitCents,
		"time_based", p.TimeBased != nil,
		"expiration", p.ExpirationTimestamp,
	)

	planType := "topup"
	if p.TimeBased != nil {
		planType = "topup_time_based"
	}
	e.plugins.EmitPaymentRegistered(ctx, &plugin.PaymentRegistered{
		Model:      execution.ModelTopUp,
		PlanType:   planType,
		PaymentID:  p.PaymentID,
		BusinessID: p.BusinessID,
		Payer:      p.Payer,
		Treasury:   p.Treasury,
		Executor:   p.Executor,
		Currency:   p.Currency,
		At:         p.CreatedAt,
	})
	if exec != nil {
		e.plugins.EmitPaymentExecuted(ctx, exec)
	}

	return p.Clone(), exec, nil
}

func (e *Engine) registerTopUp(ctx context.Context, caller common.Address, reg *topup.Registration) (*topup.Plan, *execution.Execution, error) {
	if err := e.authorizeExecutor(ctx, caller); err != nil {
		return nil, nil, err
	}
	if err := validateTopUp(reg); err != nil {
		return nil, nil, err
	}
	if reg.ExpirationTimestamp != 0 && reg.ExpirationTimestamp <= e.clock().Unix() {
		return nil, nil, &ValidationError{Field: "expiration_timestamp", Err: ErrExpirationNotInFuture}
	}
	if err := e.ensureUnused(ctx, reg.PaymentID); err != nil {
		return nil, nil, err
	}
	if err := e.verify(reg.Schema(), reg.Signature, reg.Payer, reg.SignedValues()); err != nil {
		return nil, nil, err
	}

	at := e.clock()

	p := &topup.Plan{
		Entity:                types.NewEntity(at),
		PaymentID:             reg.PaymentID,
		BusinessID:            reg.BusinessID,
		Currency:              reg.Currency,
		InitialConversionRate: reg.ConversionRate,
		InitialAmountCents:    reg.InitialAmountCents,
		TopUpAmountCents:      reg.TopUpAmountCents,
		StartTimestamp:        reg.StartTimestamp,
		TotalLimitCents:       reg.TotalLimitCents,
		ExpirationTimestamp:   reg.ExpirationTimestamp,
		Payer:                 reg.Payer,
		Treasury:              reg.Treasury,
		Executor:              reg.Executor,
	}
	if reg.TimeBased != nil {
		p.TimeBased = &topup.TimeBasedLimit{
			LimitCents:    reg.TimeBased.LimitCents,
			PeriodSeconds: reg.TimeBased.PeriodSeconds,
		}
	}

	var exec *execution.Execution
	if p.InitialAmountCents > 0 {
		var err error
		exec, err = e.draft(execution.ModelTopUp, execution.KindInitial, p.PaymentID,
			p.Payer, p.Treasury, p.InitialAmountCents, p.Currency, p.InitialConversionRate, at)
		if err != nil {
			return nil, nil, err
		}
		p.LastPaymentTimestamp = at.Unix()
	}

	if err := e.store.CreateTopUpPlan(ctx, p); err != nil {
		return nil, nil, err
	}
	if exec == nil {
		return p, nil, nil
	}

	if err := e.settle(ctx, exec); err != nil {
		if derr := e.store.DeleteTopUpPlan(ctx, p.PaymentID); derr != nil {
			e.logger.Error("rollback of top-up registration failed",
				"payment_id", p.PaymentID.Hex(),
				"error", derr,
			)
		}
		return nil, nil, err
	}
	return p, exec, nil
}

// ExecuteTopUp draws the plan's top-up amount at the supplied rate.
func (e *Engine) ExecuteTopUp(ctx context.Context, caller common.Address, paymentID common.Hash, rate int64) (*execution.Execution, error) {
	e.mu.Lock()
	exec, err := e.executeTopUp(ctx, caller, paymentID, rate)
	e.mu.Unlock()
	if err != nil {
		e.rejected(ctx, execution.ModelTopUp, paymentID, caller, err)
		return nil, err
	}

	e.logger.Info("top-up payment executed",
		"payment_id", paymentID.Hex(),
		"execution_id", exec.ID.String(),
		"amount", exec.Amount().String(),
		"ledger_amount", exec.LedgerAmount.String(),
		"rate", rate,
	)
	e.plugins.EmitPaymentExecuted(ctx, exec)

	return exec, nil
}

func (e *Engine) executeTopUp(ctx context.Context, caller common.Address, paymentID common.Hash, rate int64) (*execution.Execution, error) {
	p, err := e.store.GetTopUpPlan(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := e.topUpPolicy.Authorize(ctx, caller, p.Executor); err != nil {
		return nil, err
	}

	at := e.clock()
	now := at.Unix()

	switch {
	case !p.IsActive():
		return nil, ErrPaymentCancelled
	case p.Expired(now):
		return nil, ErrPaymentExpired
	case now < p.StartTimestamp:
		return nil, ErrScheduleNotDue
	case p.TotalSpentCents+p.TopUpAmountCents > p.TotalLimitCents:
		return nil, ErrTotalLimitReached
	}

	prev := p.Clone()
	if tb := p.TimeBased; tb != nil {
		if tb.Lapsed(now) {
			tb.WindowStartTimestamp = now
			tb.SpentCents = 0
		}
		if tb.SpentCents+p.TopUpAmountCents > tb.LimitCents {
			return nil, ErrTimeBasedLimitReached
		}
		tb.SpentCents += p.TopUpAmountCents
	}

	exec, err := e.draft(execution.ModelTopUp, execution.KindTopUp, p.PaymentID,
		p.Payer, p.Treasury, p.TopUpAmountCents, p.Currency, rate, at)
	if err != nil {
		return nil, err
	}

	p.TotalSpentCents += p.TopUpAmountCents
	p.LastPaymentTimestamp = now
	p.Touch(at)

	if err := e.store.UpdateTopUpPlan(ctx, p); err != nil {
		return nil, err
	}
	if err := e.settle(ctx, exec); err != nil {
		prev.Version = p.Version
		if rerr := e.store.UpdateTopUpPlan(ctx, prev); rerr != nil {
			e.logger.Error("rollback of top-up execution failed",
				"payment_id", p.PaymentID.Hex(),
				"error", rerr,
			)
		}
		return nil, err
	}
	return exec, nil
}

// CancelTopUp cancels a top-up plan on behalf of an authorized executor.
func (e *Engine) CancelTopUp(ctx context.Context, caller common.Address, c *topup.Cancellation) (*topup.Plan, error) {
	e.mu.Lock()
	p, err := e.cancelTopUp(ctx, caller, c)
	e.mu.Unlock()
	if err != nil {
		e.logger.Debug("top-up cancellation rejected",
			"payment_id", c.PaymentID.Hex(),
			"caller", caller.Hex(),
			"code", Code(err),
		)
		return nil, err
	}

	e.logger.Info("top-up payment cancelled",
		"payment_id", p.PaymentID.Hex(),
		"total_spent", p.TotalSpentCents,
	)
	e.plugins.EmitPaymentCancelled(ctx, &plugin.PaymentCancelled{
		Model:     execution.ModelTopUp,
		PaymentID: p.PaymentID,
		Payer:     p.Payer,
		Executor:  p.Executor,
		At:        p.UpdatedAt,
	})

	return p.Clone(), nil
}

func (e *Engine) cancelTopUp(ctx context.Context, caller common.Address, c *topup.Cancellation) (*topup.Plan, error) {
	if err := e.authorizeExecutor(ctx, caller); err != nil {
		return nil, err
	}
	p, err := e.store.GetTopUpPlan(ctx, c.PaymentID)
	if err != nil {
		return nil, err
	}
	if err := e.verify(signature.TopUpCancellation, c.Signature, p.Payer, p.CancellationValues()); err != nil {
		return nil, err
	}
	if !p.IsActive() {
		return nil, ErrAlreadyCancelled
	}

	at := e.clock()
	p.CancelTimestamp = at.Unix()
	p.Touch(at)
	if err := e.store.UpdateTopUpPlan(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ──────────────────────────────────────────────────
// Limit management
// ──────────────────────────────────────────────────

// UpdateTotalLimit lets the payer change the plan's total limit. The new
// limit may not be below the amount already spent.
func (e *Engine) UpdateTotalLimit(ctx context.Context, caller common.Address, paymentID common.Hash, limitCents int64) (*topup.Plan, error) {
	return e.updateLimits(ctx, caller, paymentID, totalLimit(limitCents))
}

// UpdateTimeBasedLimit lets the payer change the window limit. The new limit
// may not be below the spend of the current window.
func (e *Engine) UpdateTimeBasedLimit(ctx context.Context, caller common.Address, paymentID common.Hash, limitCents int64) (*topup.Plan, error) {
	return e.updateLimits(ctx, caller, paymentID, timeBasedLimit(limitCents))
}

// UpdateTimeBasedPeriod lets the payer change the window length. The
// current window is measured against the new period from then on.
func (e *Engine) UpdateTimeBasedPeriod(ctx context.Context, caller common.Address, paymentID common.Hash, periodSeconds int64) (*topup.Plan, error) {
	return e.updateLimits(ctx, caller, paymentID, timeBasedPeriod(periodSeconds))
}

// UpdateTimeBasedLimitAndPeriod changes the window limit and length
// together. Either both are stored or neither is.
func (e *Engine) UpdateTimeBasedLimitAndPeriod(ctx context.Context, caller common.Address, paymentID common.Hash, limitCents, periodSeconds int64) (*topup.Plan, error) {
	return e.updateLimits(ctx, caller, paymentID,
		timeBasedLimit(limitCents),
		timeBasedPeriod(periodSeconds),
	)
}

// UpdateAllLimits changes the total limit, the window limit and the window
// length in one write. Any failing check leaves the plan untouched.
func (e *Engine) UpdateAllLimits(ctx context.Context, caller common.Address, paymentID common.Hash, totalCents, timeBasedCents, periodSeconds int64) (*topup.Plan, error) {
	return e.updateLimits(ctx, caller, paymentID,
		totalLimit(totalCents),
		timeBasedLimit(timeBasedCents),
		timeBasedPeriod(periodSeconds),
	)
}

// limitChange is one payer edit. apply mutates the plan and returns the
// previous value.
type limitChange struct {
	kind  topup.LimitKind
	value int64
	apply func(p *topup.Plan, now int64) (int64, error)
}

func totalLimit(cents int64) limitChange {
	return limitChange{topup.LimitTotal, cents, func(p *topup.Plan, _ int64) (int64, error) {
		if cents < p.TotalSpentCents {
			return 0, ErrInvalidTotalLimit
		}
		old := p.TotalLimitCents
		p.TotalLimitCents = cents
		return old, nil
	}}
}

func timeBasedLimit(cents int64) limitChange {
	return limitChange{topup.LimitTimeBased, cents, func(p *topup.Plan, now int64) (int64, error) {
		if p.TimeBased == nil {
			return 0, ErrNoTimeBasedLimit
		}
		if cents < p.TimeBased.SpentAt(now) {
			return 0, ErrInvalidTimeBasedLimit
		}
		old := p.TimeBased.LimitCents
		p.TimeBased.LimitCents = cents
		return old, nil
	}}
}

func timeBasedPeriod(seconds int64) limitChange {
	return limitChange{topup.LimitTimeBasedPeriod, seconds, func(p *topup.Plan, _ int64) (int64, error) {
		if p.TimeBased == nil {
			return 0, ErrNoTimeBasedLimit
		}
		old := p.TimeBased.PeriodSeconds
		p.TimeBased.PeriodSeconds = seconds
		return old, nil
	}}
}

// updateLimits runs the shared payer-only update flow and emits one
// LimitUpdated event per change, in order.
func (e *Engine) updateLimits(ctx context.Context, caller common.Address, paymentID common.Hash, changes ...limitChange) (*topup.Plan, error) {
	e.mu.Lock()
	p, olds, err := e.applyLimits(ctx, caller, paymentID, changes)
	e.mu.Unlock()
	if err != nil {
		e.logger.Debug("limit update rejected",
			"payment_id", paymentID.Hex(),
			"limits", len(changes),
			"caller", caller.Hex(),
			"code", Code(err),
		)
		return nil, err
	}

	for i, c := range changes {
		e.logger.Info("top-up limit updated",
			"payment_id", paymentID.Hex(),
			"limit", string(c.kind),
			"old", olds[i],
			"new", c.value,
		)
		e.plugins.EmitLimitUpdated(ctx, &plugin.LimitUpdated{
			PaymentID: paymentID,
			Payer:     p.Payer,
			Limit:     c.kind,
			Old:       olds[i],
			New:       c.value,
			At:        p.UpdatedAt,
		})
	}

	return p.Clone(), nil
}

// applyLimits checks every change before any is applied and persists the
// plan once, so a failure leaves the stored plan as it was.
func (e *Engine) applyLimits(ctx context.Context, caller common.Address, paymentID common.Hash, changes []limitChange) (*topup.Plan, []int64, error) {
	p, err := e.store.GetTopUpPlan(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	if p.Payer != caller {
		return nil, nil, ErrNotCustomer
	}
	if !p.IsActive() {
		return nil, nil, ErrPaymentCancelled
	}

	var v validator
	for _, c := range changes {
		v.positive(string(c.kind), c.value)
	}
	if v.err != nil {
		return nil, nil, v.err
	}

	at := e.clock()
	olds := make([]int64, len(changes))
	for i, c := range changes {
		if olds[i], err = c.apply(p, at.Unix()); err != nil {
			return nil, nil, err
		}
	}
	p.Touch(at)
	if err := e.store.UpdateTopUpPlan(ctx, p); err != nil {
		return nil, nil, err
	}
	return p, olds, nil
}

// RetrieveLimits reports a plan's limits and spend at the current time. An
// unknown payment yields zero limits.
func (e *Engine) RetrieveLimits(ctx context.Context, paymentID common.Hash) (topup.Limits, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, err := e.store.GetTopUpPlan(ctx, paymentID)
	if err != nil {
		if IsNotFound(err) {
			return topup.Limits{}, nil
		}
		return topup.Limits{}, err
	}
	return p.LimitsAt(e.clock().Unix()), nil
}

// GetTopUpPlan returns a top-up plan by payment ID.
func (e *Engine) GetTopUpPlan(ctx context.Context, paymentID common.Hash) (*topup.Plan, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.GetTopUpPlan(ctx, paymentID)
}

// ListTopUpPlans lists top-up plans matching opts.
func (e *Engine) ListTopUpPlans(ctx context.Context, opts topup.ListOpts) ([]*topup.Plan, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.ListTopUpPlans(ctx, opts)
}

func validateTopUp(reg *topup.Registration) error {
	var v validator
	v.identity("payer", reg.Payer)
	v.identity("executor", reg.Executor)
	v.identity("treasury", reg.Treasury)
	v.word("payment_id", reg.PaymentID)
	v.word("business_id", reg.BusinessID)
	v.text("currency", reg.Currency)
	v.positive("conversion_rate", reg.ConversionRate)
	v.bounded("initial_amount_cents", reg.InitialAmountCents)
	v.positive("top_up_amount_cents", reg.TopUpAmountCents)
	v.positive("start_timestamp", reg.StartTimestamp)
	v.positive("total_limit_cents", reg.TotalLimitCents)
	v.bounded("expiration_timestamp", reg.ExpirationTimestamp)
	if reg.TimeBased != nil {
		v.positive("time_based_limit_cents", reg.TimeBased.LimitCents)
		v.positive("time_based_period_seconds", reg.TimeBased.PeriodSeconds)
	}
	return v.err
}
