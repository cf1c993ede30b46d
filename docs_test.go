package pullpay_test

import (
	"errors"
	"testing"

	"github.com/xraph/pullpay"
	"github.com/xraph/pullpay/conversion"
	"github.com/xraph/pullpay/recurring"
)

// TestDocumentationExamples walks the flow shown in the package docs.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStart", func(t *testing.T) {
		h := newHarness(t, pullpay.WithConverter(conversion.New(18)))

		reg := h.signRecurring(h.recurringRegistration("doc_plan", recurring.TypeRecurring))
		plan, first, err := h.engine.RegisterRecurring(h.ctx, executorAddr, reg)
		if err != nil {
			t.Fatalf("RegisterRecurring: %v", err)
		}
		if first == nil {
			t.Fatal("a started plan should be charged at registration")
		}
		if first.ID.Prefix() != "exec" {
			t.Errorf("execution id prefix = %q", first.ID.Prefix())
		}

		// 200 cents at 0.05 per unit is 40 whole units.
		want := "40000000000000000000"
		if got := first.LedgerAmount.String(); got != want {
			t.Errorf("LedgerAmount = %s, want %s", got, want)
		}

		_, err = h.engine.ExecuteRecurring(h.ctx, executorAddr, h.payer, plan.PaymentID,
			plan.RemainingPayments, rateFiveCents)
		if !errors.Is(err, pullpay.ErrScheduleNotDue) {
			t.Fatalf("expected ErrScheduleNotDue before the next cycle, got %v", err)
		}

		h.clock.Advance(twoDays)
		exec, err := h.engine.ExecuteRecurring(h.ctx, executorAddr, h.payer, plan.PaymentID,
			plan.RemainingPayments, rateFiveCents)
		if err != nil {
			t.Fatalf("ExecuteRecurring: %v", err)
		}
		if exec.RemainingPayments != plan.RemainingPayments-1 {
			t.Errorf("RemainingPayments = %d, want %d", exec.RemainingPayments, plan.RemainingPayments-1)
		}
	})

	t.Run("Exports", func(t *testing.T) {
		if got := pullpay.EUR(1999).String(); got == "" {
			t.Error("Money.String returned empty string")
		}
		id, err := pullpay.ParsePaymentID("doc_plan")
		if err != nil {
			t.Fatalf("ParsePaymentID: %v", err)
		}
		if id != pullpay.PaymentID("doc_plan") {
			t.Error("ParsePaymentID and PaymentID disagree for ASCII ids")
		}
	})
}
