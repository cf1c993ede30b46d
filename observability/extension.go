// Package observability provides a metrics extension for the pull payment
// engine that records lifecycle event counts via a MetricFactory.
package observability

import (
	"context"
	"errors"

	"github.com/xraph/pullpay"
	"github.com/xraph/pullpay/execution"
	"github.com/xraph/pullpay/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin              = (*MetricsExtension)(nil)
	_ plugin.OnInit              = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRegistered = (*MetricsExtension)(nil)
	_ plugin.OnPaymentExecuted   = (*MetricsExtension)(nil)
	_ plugin.OnPaymentCancelled  = (*MetricsExtension)(nil)
	_ plugin.OnLimitUpdated      = (*MetricsExtension)(nil)
	_ plugin.OnExecutionRejected = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as an engine plugin to track pull payment activity.
type MetricsExtension struct {
	factory MetricFactory

	// Registration metrics
	RecurringRegistered Counter
	TopUpRegistered     Counter

	// Execution metrics
	InitialCharges   Counter
	RecurringCharges Counter
	TopUpCharges     Counter
	ChargedCents     Histogram

	// Lifecycle metrics
	Cancelled    Counter
	LimitUpdates Counter

	// Rejection metrics
	RejectedNotDue       Counter
	RejectedStaleCounter Counter
	RejectedLimit        Counter
	RejectedFunds        Counter
	RejectedOther        Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions, or NewPrometheusFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		RecurringRegistered: factory.Counter("pullpay.recurring.registered"),
		TopUpRegistered:     factory.Counter("pullpay.topup.registered"),

		InitialCharges:   factory.Counter("pullpay.charges.initial"),
		RecurringCharges: factory.Counter("pullpay.charges.recurring"),
		TopUpCharges:     factory.Counter("pullpay.charges.topup"),
		ChargedCents:     factory.Histogram("pullpay.charges.amount_cents"),

		Cancelled:    factory.Counter("pullpay.payment.cancelled"),
		LimitUpdates: factory.Counter("pullpay.limit.updated"),

		RejectedNotDue:       factory.Counter("pullpay.rejected.not_due"),
		RejectedStaleCounter: factory.Counter("pullpay.rejected.stale_counter"),
		RejectedLimit:        factory.Counter("pullpay.rejected.limit_reached"),
		RejectedFunds:        factory.Counter("pullpay.rejected.funds"),
		RejectedOther:        factory.Counter("pullpay.rejected.other"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// OnPaymentRegistered implements plugin.OnPaymentRegistered.
func (m *MetricsExtension) OnPaymentRegistered(_ context.Context, evt *plugin.PaymentRegistered) error {
	if evt.Model == execution.ModelTopUp {
		m.TopUpRegistered.Inc()
	} else {
		m.RecurringRegistered.Inc()
	}
	return nil
}

// OnPaymentExecuted implements plugin.OnPaymentExecuted.
func (m *MetricsExtension) OnPaymentExecuted(_ context.Context, exec *execution.Execution) error {
	switch exec.Kind {
	case execution.KindInitial:
		m.InitialCharges.Inc()
	case execution.KindRecurring:
		m.RecurringCharges.Inc()
	case execution.KindTopUp:
		m.TopUpCharges.Inc()
	}
	m.ChargedCents.Observe(float64(exec.AmountCents))
	return nil
}

// OnPaymentCancelled implements plugin.OnPaymentCancelled.
func (m *MetricsExtension) OnPaymentCancelled(_ context.Context, _ *plugin.PaymentCancelled) error {
	m.Cancelled.Inc()
	return nil
}

// OnLimitUpdated implements plugin.OnLimitUpdated.
func (m *MetricsExtension) OnLimitUpdated(_ context.Context, _ *plugin.LimitUpdated) error {
	m.LimitUpdates.Inc()
	return nil
}

// OnExecutionRejected implements plugin.OnExecutionRejected.
func (m *MetricsExtension) OnExecutionRejected(_ context.Context, evt *plugin.ExecutionRejected) error {
	switch {
	case errors.Is(evt.Err, pullpay.ErrScheduleNotDue):
		m.RejectedNotDue.Inc()
	case errors.Is(evt.Err, pullpay.ErrStaleCounter):
		m.RejectedStaleCounter.Inc()
	case errors.Is(evt.Err, pullpay.ErrTotalLimitReached), errors.Is(evt.Err, pullpay.ErrTimeBasedLimitReached):
		m.RejectedLimit.Inc()
	case errors.Is(evt.Err, pullpay.ErrInsufficientFunds), errors.Is(evt.Err, pullpay.ErrTransferNotAuthorized):
		m.RejectedFunds.Inc()
	default:
		m.RejectedOther.Inc()
	}
	return nil
}
