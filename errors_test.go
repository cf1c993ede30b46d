package pullpay_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/xraph/pullpay"
	"github.com/xraph/pullpay/executor"
)

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{pullpay.ErrScheduleNotDue, "ScheduleNotDue"},
		{fmt.Errorf("wrapped: %w", pullpay.ErrStaleCounter), "StaleCounter"},
		{&pullpay.ValidationError{Field: "currency", Err: pullpay.ErrEmptyString}, "EmptyString"},
		{pullpay.ErrInvalidRate, "InvalidRate"},
		{pullpay.ErrTransferNotAuthorized, "TransferNotAuthorized"},
		{pullpay.ErrPaymentExpired, "PaymentExpired"},
		{&pullpay.ValidationError{Field: "expiration_timestamp", Err: pullpay.ErrExpirationNotInFuture}, "ExpirationNotInFuture"},
		{errors.New("disk on fire"), "Internal"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := pullpay.Code(tt.err); got != tt.want {
				t.Errorf("Code(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorClasses(t *testing.T) {
	if !pullpay.IsNotFound(fmt.Errorf("lookup: %w", pullpay.ErrPaymentNotFound)) {
		t.Error("wrapped ErrPaymentNotFound should be a not found error")
	}
	if pullpay.IsRetryable(pullpay.ErrPaymentCancelled) {
		t.Error("PaymentCancelled should not be retryable")
	}
	if !pullpay.IsRetryable(pullpay.ErrInsufficientFunds) {
		t.Error("InsufficientFunds should be retryable")
	}
	if !pullpay.IsTerminal(pullpay.ErrPaymentExhausted) {
		t.Error("PaymentExhausted should be terminal")
	}
}

func TestMultiError(t *testing.T) {
	var m pullpay.MultiError
	if m.HasErrors() {
		t.Fatal("empty MultiError reports errors")
	}
	m.Add(nil)
	m.Add(pullpay.ErrStaleCounter)
	if m.Error() != pullpay.ErrStaleCounter.Error() {
		t.Errorf("single error message = %q", m.Error())
	}
	m.Add(pullpay.ErrPaymentCancelled)

	if !m.HasErrors() || len(m.Errors) != 2 {
		t.Fatalf("got %d errors, want 2", len(m.Errors))
	}
	if !errors.Is(m, pullpay.ErrPaymentCancelled) {
		t.Error("errors.Is should see through MultiError")
	}
	if m.Error() != "pullpay: 2 errors occurred" {
		t.Errorf("message = %q", m.Error())
	}
}

func TestExecutionPolicies(t *testing.T) {
	ctx := context.Background()

	if err := (pullpay.OpenExecution{}).Authorize(ctx, strangerAddr, executorAddr); err != nil {
		t.Errorf("OpenExecution rejected a caller: %v", err)
	}

	designated := pullpay.DesignatedExecutor{}
	if err := designated.Authorize(ctx, executorAddr, executorAddr); err != nil {
		t.Errorf("DesignatedExecutor rejected the designated caller: %v", err)
	}
	if err := designated.Authorize(ctx, strangerAddr, executorAddr); !errors.Is(err, pullpay.ErrNotPullPaymentExecutor) {
		t.Errorf("expected ErrNotPullPaymentExecutor, got %v", err)
	}

	registered := pullpay.RegisteredExecutors{Registry: executor.NewSet(strangerAddr)}
	if err := registered.Authorize(ctx, strangerAddr, executorAddr); err != nil {
		t.Errorf("RegisteredExecutors rejected a registered caller: %v", err)
	}
	if err := registered.Authorize(ctx, executorAddr, executorAddr); !errors.Is(err, pullpay.ErrNotAuthorizedExecutor) {
		t.Errorf("expected ErrNotAuthorizedExecutor, got %v", err)
	}
}
