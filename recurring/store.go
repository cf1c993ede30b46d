package recurring

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Store persists recurring plans.
type Store interface {
	CreateRecurringPlan(ctx context.Context, p *Plan) error
	GetRecurringPlan(ctx context.Context, paymentID common.Hash) (*Plan, error)
	// UpdateRecurringPlan writes p only if the stored version still equals
	// p.Version, then increments p.Version. A newer stored version yields
	// pullpay.ErrStaleCounter.
	UpdateRecurringPlan(ctx context.Context, p *Plan) error
	// DeleteRecurringPlan only serves to roll back a registration whose
	// initial charge failed.
	DeleteRecurringPlan(ctx context.Context, paymentID common.Hash) error
	ListRecurringPlans(ctx context.Context, opts ListOpts) ([]*Plan, error)
}

// ListOpts filters ListRecurringPlans. Zero fields do not filter.
type ListOpts struct {
	Payer common.Address
	// DueBefore selects plans whose next due timestamp is <= DueBefore.
	DueBefore  int64
	ActiveOnly bool
	Limit      int
	Offset     int
}
