package pullpay

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/pullpay/execution"
	"github.com/xraph/pullpay/plugin"
	"github.com/xraph/pullpay/recurring"
	"github.com/xraph/pullpay/signature"
	"github.com/xraph/pullpay/types"
)

// ──────────────────────────────────────────────────
// Recurring payments
// ──────────────────────────────────────────────────

// RegisterRecurring registers a payer-signed recurring plan on behalf of an
// authorized executor and performs any charge due at registration. The
// returned execution is nil when nothing was charged.
func (e *Engine) RegisterRecurring(ctx context.Context, caller common.Address, reg *recurring.Registration) (*recurring.Plan, *execution.Execution, error) {
	e.mu.Lock()
	p, exec, err := e.registerRecurring(ctx, caller, reg)
	e.mu.Unlock()
	if err != nil {
		e.logger.Debug("recurring registration rejected",
			"payment_id", reg.PaymentID.Hex(),
			"caller", caller.Hex(),
			"code", Code(err),
			"error", err,
		)
		return nil, nil, err
	}

	e.logger.Info("recurring payment registered",
		"payment_id", p.PaymentID.Hex(),
		"type", string(p.Type),
		"payer", p.Payer.Hex(),
		"remaining", p.RemainingPayments,
		"next_due", p.NextDueTimestamp,
	)

	e.plugins.EmitPaymentRegistered(ctx, &plugin.PaymentRegistered{
		Model:      execution.ModelRecurring,
		PlanType:   string(p.Type),
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

func (e *Engine) registerRecurring(ctx context.Context, caller common.Address, reg *recurring.Registration) (*recurring.Plan, *execution.Execution, error) {
	if err := e.authorizeExecutor(ctx, caller); err != nil {
		return nil, nil, err
	}
	if err := validateRecurring(reg); err != nil {
		return nil, nil, err
	}
	if err := e.ensureUnused(ctx, reg.PaymentID); err != nil {
		return nil, nil, err
	}
	if err := e.verify(reg.Type.Schema(), reg.Signature, reg.Payer, reg.SignedValues()); err != nil {
		return nil, nil, err
	}

	at := e.clock()
	now := at.Unix()

	p := &recurring.Plan{
		Entity:               types.NewEntity(at),
		PaymentID:            reg.PaymentID,
		BusinessID:           reg.BusinessID,
		Type:                 reg.Type,
		Currency:             reg.Currency,
		ConversionRate:       reg.ConversionRate,
		InitialAmountCents:   reg.InitialAmountCents,
		RecurringAmountCents: reg.RecurringAmountCents,
		FrequencySeconds:     reg.FrequencySeconds,
		RemainingPayments:    reg.NumberOfPayments,
		StartTimestamp:       reg.StartTimestamp,
		TrialPeriodSeconds:   reg.TrialPeriodSeconds,
		NextDueTimestamp:     reg.StartTimestamp,
		Payer:                reg.Payer,
		Treasury:             reg.Treasury,
		Executor:             reg.Executor,
	}
	if reg.Type.HasTrial() {
		p.NextDueTimestamp = reg.StartTimestamp + reg.TrialPeriodSeconds
	}

	var (
		exec *execution.Execution
		err  error
	)
	switch {
	case reg.Type.ChargesInitial():
		// The initial amount neither advances the schedule nor counts as a cycle.
		exec, err = e.draft(execution.ModelRecurring, execution.KindInitial, p.PaymentID,
			p.Payer, p.Treasury, p.InitialAmountCents, p.Currency, p.ConversionRate, at)
		if err != nil {
			return nil, nil, err
		}
		p.LastPaymentTimestamp = now
	case !reg.Type.HasTrial() && p.NextDueTimestamp <= now:
		exec, err = e.draft(execution.ModelRecurring, execution.KindRecurring, p.PaymentID,
			p.Payer, p.Treasury, p.RecurringAmountCents, p.Currency, p.ConversionRate, at)
		if err != nil {
			return nil, nil, err
		}
		advance(p, now)
		exec.RemainingPayments = p.RemainingPayments
	}

	if err := e.store.CreateRecurringPlan(ctx, p); err != nil {
		return nil, nil, err
	}
	if exec == nil {
		return p, nil, nil
	}

	if err := e.settle(ctx, exec); err != nil {
		if derr := e.store.DeleteRecurringPlan(ctx, p.PaymentID); derr != nil {
			e.logger.Error("rollback of recurring registration failed",
				"payment_id", p.PaymentID.Hex(),
				"error", derr,
			)
		}
		return nil, nil, err
	}
	return p, exec, nil
}

// advance moves a plan forward by exactly one cycle.
func advance(p *recurring.Plan, now int64) {
	p.LastPaymentTimestamp = now
	p.NextDueTimestamp += p.FrequencySeconds
	if p.RemainingPayments > 0 {
		p.RemainingPayments--
	}
}

// ExecuteRecurring charges one cycle of a due plan at the supplied rate.
// expectedRemaining must equal the plan's current counter. Overdue plans
// catch up one cycle per call.
func (e *Engine) ExecuteRecurring(ctx context.Context, caller, payer common.Address, paymentID common.Hash, expectedRemaining, rate int64) (*execution.Execution, error) {
	e.mu.Lock()
	exec, err := e.executeRecurring(ctx, caller, payer, paymentID, expectedRemaining, rate)
	e.mu.Unlock()
	if err != nil {
		e.rejected(ctx, execution.ModelRecurring, paymentID, caller, err)
		return nil, err
	}

	e.logger.Info("recurring payment executed",
		"payment_id", paymentID.Hex(),
		"execution_id", exec.ID.String(),
		"amount", exec.Amount().String(),
		"ledger_amount", exec.LedgerAmount.String(),
		"rate", rate,
		"remaining", exec.RemainingPayments,
	)
	e.plugins.EmitPaymentExecuted(ctx, exec)

	return exec, nil
}

func (e *Engine) executeRecurring(ctx context.Context, caller, payer common.Address, paymentID common.Hash, expectedRemaining, rate int64) (*execution.Execution, error) {
	p, err := e.store.GetRecurringPlan(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Payer != payer {
		return nil, ErrPaymentNotFound
	}
	if err := e.recurringPolicy.Authorize(ctx, caller, p.Executor); err != nil {
		return nil, err
	}

	at := e.clock()
	now := at.Unix()

	switch {
	case p.CancelTimestamp != 0:
		return nil, ErrPaymentCancelled
	case p.RemainingPayments == 0:
		return nil, ErrPaymentExhausted
	case expectedRemaining != p.RemainingPayments:
		return nil, ErrStaleCounter
	case now < p.NextDueTimestamp:
		return nil, ErrScheduleNotDue
	}

	exec, err := e.draft(execution.ModelRecurring, execution.KindRecurring, p.PaymentID,
		p.Payer, p.Treasury, p.RecurringAmountCents, p.Currency, rate, at)
	if err != nil {
		return nil, err
	}

	prev := p.Clone()
	advance(p, now)
	p.Touch(at)
	exec.RemainingPayments = p.RemainingPayments

	if err := e.store.UpdateRecurringPlan(ctx, p); err != nil {
		return nil, err
	}
	if err := e.settle(ctx, exec); err != nil {
		prev.Version = p.Version
		if rerr := e.store.UpdateRecurringPlan(ctx, prev); rerr != nil {
			e.logger.Error("rollback of recurring execution failed",
				"payment_id", p.PaymentID.Hex(),
				"error", rerr,
			)
		}
		return nil, err
	}
	return exec, nil
}

// CancelRecurring cancels a plan on behalf of an authorized executor. The
// payer's signature must cover the payment and the plan's executor.
func (e *Engine) CancelRecurring(ctx context.Context, caller common.Address, c *recurring.Cancellation) (*recurring.Plan, error) {
	e.mu.Lock()
	p, err := e.cancelRecurring(ctx, caller, c)
	e.mu.Unlock()
	if err != nil {
		e.logger.Debug("recurring cancellation rejected",
			"payment_id", c.PaymentID.Hex(),
			"caller", caller.Hex(),
			"code", Code(err),
		)
		return nil, err
	}

	e.logger.Info("recurring payment cancelled",
		"payment_id", p.PaymentID.Hex(),
		"remaining", p.RemainingPayments,
	)
	e.plugins.EmitPaymentCancelled(ctx, &plugin.PaymentCancelled{
		Model:     execution.ModelRecurring,
		PaymentID: p.PaymentID,
		Payer:     p.Payer,
		Executor:  p.Executor,
		At:        p.UpdatedAt,
	})

	return p.Clone(), nil
}

func (e *Engine) cancelRecurring(ctx context.Context, caller common.Address, c *recurring.Cancellation) (*recurring.Plan, error) {
	if err := e.authorizeExecutor(ctx, caller); err != nil {
		return nil, err
	}
	p, err := e.store.GetRecurringPlan(ctx, c.PaymentID)
	if err != nil {
		return nil, err
	}
	if err := e.verify(signature.RecurringCancellation, c.Signature, p.Payer, p.CancellationValues()); err != nil {
		return nil, err
	}
	if p.CancelTimestamp != 0 {
		return nil, ErrAlreadyCancelled
	}

	at := e.clock()
	p.CancelTimestamp = at.Unix()
	p.Touch(at)
	if err := e.store.UpdateRecurringPlan(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetRecurringPlan returns a plan by payment ID.
func (e *Engine) GetRecurringPlan(ctx context.Context, paymentID common.Hash) (*recurring.Plan, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.GetRecurringPlan(ctx, paymentID)
}

// ListRecurringPlans lists plans matching opts.
func (e *Engine) ListRecurringPlans(ctx context.Context, opts recurring.ListOpts) ([]*recurring.Plan, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.ListRecurringPlans(ctx, opts)
}

func validateRecurring(reg *recurring.Registration) error {
	if !reg.Type.Valid() {
		return &ValidationError{Field: "type", Err: ErrInvalidPlanType}
	}

	var v validator
	v.identity("payer", reg.Payer)
	v.identity("executor", reg.Executor)
	v.identity("treasury", reg.Treasury)
	v.word("payment_id", reg.PaymentID)
	v.word("business_id", reg.BusinessID)
	v.text("currency", reg.Currency)
	v.positive("conversion_rate", reg.ConversionRate)
	v.positive("recurring_amount_cents", reg.RecurringAmountCents)
	v.positive("frequency_seconds", reg.FrequencySeconds)
	v.positive("number_of_payments", reg.NumberOfPayments)
	v.positive("start_timestamp", reg.StartTimestamp)

	if reg.Type.ChargesInitial() {
		v.positive("initial_amount_cents", reg.InitialAmountCents)
	} else {
		v.bounded("initial_amount_cents", reg.InitialAmountCents)
	}
	if reg.Type.HasTrial() {
		v.positive("trial_period_seconds", reg.TrialPeriodSeconds)
	} else {
		v.bounded("trial_period_seconds", reg.TrialPeriodSeconds)
	}
	return v.err
}
