package pullpay

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/pullpay/executor"
)

// ExecutionPolicy decides who may trigger execution of a plan. designated is
// the executor identity recorded on the plan.
type ExecutionPolicy interface {
	Authorize(ctx context.Context, caller, designated common.Address) error
}

// OpenExecution admits any caller. Schedule and counter guards alone protect
// recurring plans.
type OpenExecution struct{}

// Authorize implements ExecutionPolicy.
func (OpenExecution) Authorize(context.Context, common.Address, common.Address) error {
	return nil
}

// DesignatedExecutor admits only the plan's own executor.
type DesignatedExecutor struct{}

// Authorize implements ExecutionPolicy.
func (DesignatedExecutor) Authorize(_ context.Context, caller, designated common.Address) error {
	if caller != designated {
		return ErrNotPullPaymentExecutor
	}
	return nil
}

// RegisteredExecutors admits any caller known to an executor registry.
type RegisteredExecutors struct {
	Registry executor.Registry
}

// Authorize implements ExecutionPolicy.
func (p RegisteredExecutors) Authorize(ctx context.Context, caller, _ common.Address) error {
	ok, err := p.Registry.IsAuthorized(ctx, caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAuthorizedExecutor
	}
	return nil
}
