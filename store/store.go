package store

import (
	"context"

	"github.com/xraph/pullpay/execution"
	"github.com/xraph/pullpay/recurring"
	"github.com/xraph/pullpay/topup"
)

// Store is the unified storage interface for all pull payment records.
// Domain method names are qualified by model so the sub-interfaces embed
// without conflicts.
type Store interface {
	recurring.Store
	topup.Store
	execution.Store

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
