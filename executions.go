package pullpay

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/pullpay/execution"
	"github.com/xraph/pullpay/id"
	"github.com/xraph/pullpay/plugin"
)

// draft converts cents at rate and prepares the execution record of a charge.
// Nothing is persisted.
func (e *Engine) draft(model execution.Model, kind execution.Kind, paymentID common.Hash,
	payer, treasury common.Address, cents int64, currency string, rate int64, at time.Time,
) (*execution.Execution, error) {
	amount, err := e.converter.ToLedgerUnits(cents, rate)
	if err != nil {
		return nil, err
	}
	return &execution.Execution{
		ID:             id.NewExecutionID(),
		PaymentID:      paymentID,
		Model:          model,
		Kind:           kind,
		Payer:          payer,
		Treasury:       treasury,
		AmountCents:    cents,
		Currency:       currency,
		ConversionRate: rate,
		LedgerAmount:   amount,
		ExecutedAt:     at.UTC(),
	}, nil
}

// settle records exec and moves the funds. If the transfer fails the record
// is removed again and the transfer error is returned.
func (e *Engine) settle(ctx context.Context, exec *execution.Execution) error {
	if err := e.store.RecordExecution(ctx, exec); err != nil {
		return err
	}
	if err := e.ledger.Transfer(ctx, exec.Payer, exec.Treasury, exec.LedgerAmount); err != nil {
		if derr := e.store.DeleteExecution(ctx, exec.ID); derr != nil {
			e.logger.Error("rollback of execution record failed",
				"execution_id", exec.ID.String(),
				"payment_id", exec.PaymentID.Hex(),
				"error", derr,
			)
		}
		return err
	}
	return nil
}

// rejected logs and broadcasts a failed execution attempt.
func (e *Engine) rejected(ctx context.Context, model execution.Model, paymentID common.Hash, caller common.Address, err error) {
	code := Code(err)
	e.logger.Debug("execution rejected",
		"model", string(model),
		"payment_id", paymentID.Hex(),
		"caller", caller.Hex(),
		"code", code,
		"error", err,
	)
	e.plugins.EmitExecutionRejected(ctx, &plugin.ExecutionRejected{
		Model:     model,
		PaymentID: paymentID,
		Caller:    caller,
		Code:      code,
		Err:       err,
		At:        e.clock().UTC(),
	})
}

// ListExecutions returns the executions recorded for a payment, newest first.
func (e *Engine) ListExecutions(ctx context.Context, paymentID common.Hash, opts execution.ListOpts) ([]*execution.Execution, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.ListExecutions(ctx, paymentID, opts)
}
