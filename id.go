package pullpay

import "github.com/xraph/pullpay/id"

// ExecutionID identifies one successful transfer.
type ExecutionID = id.ExecutionID

// SweepID identifies one keeper pass.
type SweepID = id.SweepID
