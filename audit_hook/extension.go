// Package audithook bridges pull payment lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not import any
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/pullpay"
	"github.com/xraph/pullpay/execution"
	"github.com/xraph/pullpay/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin              = (*Extension)(nil)
	_ plugin.OnPaymentRegistered = (*Extension)(nil)
	_ plugin.OnPaymentExecuted   = (*Extension)(nil)
	_ plugin.OnPaymentCancelled  = (*Extension)(nil)
	_ plugin.OnLimitUpdated      = (*Extension)(nil)
	_ plugin.OnExecutionRejected = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a backend-neutral audit record.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges engine lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	routine  bool
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Payment lifecycle hooks
// ──────────────────────────────────────────────────

// OnPaymentRegistered implements plugin.OnPaymentRegistered.
func (e *Extension) OnPaymentRegistered(ctx context.Context, evt *plugin.PaymentRegistered) error {
	return e.record(ctx, ActionPaymentRegistered, SeverityInfo, OutcomeSuccess,
		resourceFor(evt.Model), evt.PaymentID.Hex(), CategoryAuthorization, nil,
		"plan_type", evt.PlanType,
		"business_id", evt.BusinessID.Hex(),
		"payer", evt.Payer.Hex(),
		"executor", evt.Executor.Hex(),
		"treasury", evt.Treasury.Hex(),
		"currency", evt.Currency,
	)
}

// OnPaymentExecuted implements plugin.OnPaymentExecuted.
func (e *Extension) OnPaymentExecuted(ctx context.Context, exec *execution.Execution) error {
	return e.record(ctx, ActionPaymentExecuted, SeverityInfo, OutcomeSuccess,
		resourceFor(exec.Model), exec.PaymentID.Hex(), CategoryPayment, nil,
		"execution_id", exec.ID.String(),
		"kind", string(exec.Kind),
		"amount", exec.Amount().String(),
		"rate", exec.ConversionRate,
		"ledger_amount", exec.LedgerAmount.String(),
	)
}

// OnPaymentCancelled implements plugin.OnPaymentCancelled.
func (e *Extension) OnPaymentCancelled(ctx context.Context, evt *plugin.PaymentCancelled) error {
	return e.record(ctx, ActionPaymentCancelled, SeverityInfo, OutcomeSuccess,
		resourceFor(evt.Model), evt.PaymentID.Hex(), CategoryAuthorization, nil,
		"payer", evt.Payer.Hex(),
		"executor", evt.Executor.Hex(),
	)
}

// OnLimitUpdated implements plugin.OnLimitUpdated.
func (e *Extension) OnLimitUpdated(ctx context.Context, evt *plugin.LimitUpdated) error {
	return e.record(ctx, ActionLimitUpdated, SeverityInfo, OutcomeSuccess,
		ResourceTopUpPlan, evt.PaymentID.Hex(), CategoryLimits, nil,
		"limit", string(evt.Limit),
		"old", evt.Old,
		"new", evt.New,
	)
}

// OnExecutionRejected implements plugin.OnExecutionRejected. Schedule and
// counter races are routine for a keeper and are skipped unless
// WithRoutineRejections is set.
func (e *Extension) OnExecutionRejected(ctx context.Context, evt *plugin.ExecutionRejected) error {
	if !e.routine && (errors.Is(evt.Err, pullpay.ErrScheduleNotDue) || errors.Is(evt.Err, pullpay.ErrStaleCounter)) {
		return nil
	}

	severity := SeverityWarning
	switch {
	case evt.Code == "SignatureInvalid" || evt.Code == "NotPullPaymentExecutor":
		severity = SeverityCritical
	case pullpay.IsTerminal(evt.Err):
		severity = SeverityInfo
	}

	return e.record(ctx, ActionExecutionRejected, severity, OutcomeFailure,
		resourceFor(evt.Model), evt.PaymentID.Hex(), CategoryPayment, evt.Err,
		"code", evt.Code,
		"caller", evt.Caller.Hex(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func resourceFor(m execution.Model) string {
	if m == execution.ModelTopUp {
		return ResourceTopUpPlan
	}
	return ResourceRecurringPlan
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
