package topup

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Store persists top-up plans together with their time-based limit.
type Store interface {
	CreateTopUpPlan(ctx context.Context, p *Plan) error
	GetTopUpPlan(ctx context.Context, paymentID common.Hash) (*Plan, error)
	// UpdateTopUpPlan writes p only if the stored version still equals
	// p.Version, then increments p.Version. A newer stored version yields
	// pullpay.ErrStaleCounter.
	UpdateTopUpPlan(ctx context.Context, p *Plan) error
	// DeleteTopUpPlan only serves to roll back a registration whose initial
	// charge failed.
	DeleteTopUpPlan(ctx context.Context, paymentID common.Hash) error
	ListTopUpPlans(ctx context.Context, opts ListOpts) ([]*Plan, error)
}

// ListOpts filters ListTopUpPlans. Zero fields do not filter.
type ListOpts struct {
	Payer      common.Address
	Executor   common.Address
	ActiveOnly bool
	Limit      int
	Offset     int
}
