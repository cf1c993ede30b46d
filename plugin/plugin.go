// Package plugin provides an extensible hook system for the pull payment
// engine. Plugins observe lifecycle events; they never alter engine state.
package plugin

import (
	"context"

	"github.com/xraph/pullpay/execution"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRegistered is called after a plan is registered.
type OnPaymentRegistered interface {
	Plugin
	OnPaymentRegistered(ctx context.Context, evt *PaymentRegistered) error
}

// OnPaymentExecuted is called after every successful transfer, including
// charges made at registration.
type OnPaymentExecuted interface {
	Plugin
	OnPaymentExecuted(ctx context.Context, exec *execution.Execution) error
}

// OnPaymentCancelled is called after a plan is cancelled.
type OnPaymentCancelled interface {
	Plugin
	OnPaymentCancelled(ctx context.Context, evt *PaymentCancelled) error
}

// OnLimitUpdated is called after a payer changes a top-up limit.
type OnLimitUpdated interface {
	Plugin
	OnLimitUpdated(ctx context.Context, evt *LimitUpdated) error
}

// OnExecutionRejected is called when an execution attempt fails.
type OnExecutionRejected interface {
	Plugin
	OnExecutionRejected(ctx context.Context, evt *ExecutionRejected) error
}
