package pullpay

import "github.com/xraph/pullpay/types"

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Money constructors.
var (
	NewMoney = types.NewMoney
	USD      = types.USD
	EUR      = types.EUR
)

// Re-export payment id helpers.
var (
	PaymentID      = types.MustBytes32
	ParsePaymentID = types.ParseBytes32
)
