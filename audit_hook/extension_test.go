package audithook_test

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/pullpay"
	audithook "github.com/xraph/pullpay/audit_hook"
	"github.com/xraph/pullpay/execution"
	"github.com/xraph/pullpay/id"
	"github.com/xraph/pullpay/plugin"
	"github.com/xraph/pullpay/topup"
)

type sink struct{ events []*audithook.AuditEvent }

func (s *sink) record(_ context.Context, evt *audithook.AuditEvent) error {
	s.events = append(s.events, evt)
	return nil
}

func newExtension(opts ...audithook.Option) (*audithook.Extension, *sink) {
	s := &sink{}
	opts = append([]audithook.Option{audithook.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return audithook.New(audithook.RecorderFunc(s.record), opts...), s
}

var paymentID = common.HexToHash("0x01")

func TestPaymentEvents(t *testing.T) {
	ext, s := newExtension()
	ctx := context.Background()

	_ = ext.OnPaymentRegistered(ctx, &plugin.PaymentRegistered{Model: execution.ModelRecurring, PaymentID: paymentID, Currency: "EUR"})
	_ = ext.OnPaymentExecuted(ctx, &execution.Execution{
		ID:           id.NewExecutionID(),
		PaymentID:    paymentID,
		Model:        execution.ModelTopUp,
		Kind:         execution.KindTopUp,
		AmountCents:  500,
		Currency:     "EUR",
		LedgerAmount: big.NewInt(100),
	})
	_ = ext.OnPaymentCancelled(ctx, &plugin.PaymentCancelled{Model: execution.ModelTopUp, PaymentID: paymentID})
	_ = ext.OnLimitUpdated(ctx, &plugin.LimitUpdated{PaymentID: paymentID, Limit: topup.LimitTotal, Old: 10_000, New: 12_000})

	want := []struct {
		action   string
		resource string
	}{
		{audithook.ActionPaymentRegistered, audithook.ResourceRecurringPlan},
		{audithook.ActionPaymentExecuted, audithook.ResourceTopUpPlan},
		{audithook.ActionPaymentCancelled, audithook.ResourceTopUpPlan},
		{audithook.ActionLimitUpdated, audithook.ResourceTopUpPlan},
	}
	if len(s.events) != len(want) {
		t.Fatalf("got %d events, want %d", len(s.events), len(want))
	}
	for i, w := range want {
		got := s.events[i]
		if got.Action != w.action || got.Resource != w.resource {
			t.Errorf("event %d = %s/%s, want %s/%s", i, got.Action, got.Resource, w.action, w.resource)
		}
		if got.ResourceID != paymentID.Hex() {
			t.Errorf("event %d resource id = %s", i, got.ResourceID)
		}
	}
	if got := s.events[3].Metadata["new"]; got != int64(12_000) {
		t.Errorf("limit metadata new = %v", got)
	}
}

func TestExecutionRejected(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		routine  bool
		recorded bool
		severity string
	}{
		{"not due is routine", pullpay.ErrScheduleNotDue, false, false, ""},
		{"stale counter is routine", pullpay.ErrStaleCounter, false, false, ""},
		{"routine when asked", pullpay.ErrScheduleNotDue, true, true, audithook.SeverityWarning},
		{"insufficient funds", pullpay.ErrInsufficientFunds, false, true, audithook.SeverityWarning},
		{"cancelled", pullpay.ErrPaymentCancelled, false, true, audithook.SeverityInfo},
		{"hijack attempt", pullpay.ErrNotPullPaymentExecutor, false, true, audithook.SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []audithook.Option
			if tt.routine {
				opts = append(opts, audithook.WithRoutineRejections())
			}
			ext, s := newExtension(opts...)

			_ = ext.OnExecutionRejected(context.Background(), &plugin.ExecutionRejected{
				Model:     execution.ModelRecurring,
				PaymentID: paymentID,
				Code:      pullpay.Code(tt.err),
				Err:       tt.err,
			})

			if got := len(s.events) == 1; got != tt.recorded {
				t.Fatalf("recorded = %v, want %v", got, tt.recorded)
			}
			if !tt.recorded {
				return
			}
			evt := s.events[0]
			if evt.Severity != tt.severity {
				t.Errorf("severity = %q, want %q", evt.Severity, tt.severity)
			}
			if evt.Outcome != audithook.OutcomeFailure || evt.Reason == "" {
				t.Errorf("outcome = %q reason = %q", evt.Outcome, evt.Reason)
			}
		})
	}
}

func TestDisabledActions(t *testing.T) {
	ext, s := newExtension(audithook.WithDisabledActions(audithook.ActionPaymentRegistered))
	ctx := context.Background()

	_ = ext.OnPaymentRegistered(ctx, &plugin.PaymentRegistered{PaymentID: paymentID})
	_ = ext.OnPaymentCancelled(ctx, &plugin.PaymentCancelled{PaymentID: paymentID})

	if len(s.events) != 1 || s.events[0].Action != audithook.ActionPaymentCancelled {
		t.Fatalf("events = %+v", s.events)
	}
}
