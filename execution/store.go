package execution

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/pullpay/id"
)

// Store persists execution records.
type Store interface {
	RecordExecution(ctx context.Context, e *Execution) error
	// DeleteExecution only serves to roll back a record whose transfer failed.
	DeleteExecution(ctx context.Context, executionID id.ExecutionID) error
	// ListExecutions returns a payment's executions, newest first.
	ListExecutions(ctx context.Context, paymentID common.Hash, opts ListOpts) ([]*Execution, error)
}

// ListOpts paginates ListExecutions.
type ListOpts struct {
	Limit  int
	Offset int
}
