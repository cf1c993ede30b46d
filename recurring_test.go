package pullpay_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/pullpay"
	"github.com/xraph/pullpay/execution"
	"github.com/xraph/pullpay/executor"
	"github.com/xraph/pullpay/recurring"
	"github.com/xraph/pullpay/types"
)

func TestRecurringImmediateExecution(t *testing.T) {
	h := newHarness(t)

	reg := h.signRecurring(h.recurringRegistration("paymentID_1", recurring.TypeRecurring))
	p, exec, err := h.engine.RegisterRecurring(h.ctx, executorAddr, reg)
	if err != nil {
		t.Fatalf("RegisterRecurring: %v", err)
	}

	if exec == nil {
		t.Fatal("expected an immediate execution")
	}
	if exec.LedgerAmount.Int64() != 40 {
		t.Errorf("ledger amount = %s, want 40", exec.LedgerAmount)
	}
	if got := h.balance(treasuryAddr); got != 40 {
		t.Errorf("treasury balance = %d, want 40", got)
	}
	if p.RemainingPayments != 9 {
		t.Errorf("remaining = %d, want 9", p.RemainingPayments)
	}
	if p.NextDueTimestamp != genesis+twoDays {
		t.Errorf("next due = %d, want %d", p.NextDueTimestamp, genesis+twoDays)
	}
	if p.LastPaymentTimestamp != genesis {
		t.Errorf("last payment = %d, want %d", p.LastPaymentTimestamp, genesis)
	}
}

func TestRecurringScheduleNotDue(t *testing.T) {
	h := newHarness(t)
	p := h.registerRecurring("paymentID_1", recurring.TypeRecurring)

	h.clock.Advance(twoDays - 1)
	_, err := h.engine.ExecuteRecurring(h.ctx, executorAddr, h.payer, p.PaymentID, 9, rateFiveCents)
	if !errors.Is(err, pullpay.ErrScheduleNotDue) {
		t.Fatalf("expected ErrScheduleNotDue, got %v", err)
	}
	if !pullpay.IsRetryable(err) {
		t.Error("ScheduleNotDue should be retryable")
	}

	h.clock.Advance(1)
	if _, err := h.engine.ExecuteRecurring(h.ctx, executorAddr, h.payer, p.PaymentID, 9, rateFiveCents); err != nil {
		t.Fatalf("execution at the due timestamp: %v", err)
	}
}

func TestRecurringCatchUp(t *testing.T) {
	h := newHarness(t)
	p := h.registerRecurring("paymentID_1", recurring.TypeRecurring)

	h.clock.Advance(5 * twoDays)

	for i, expected := range []int64{9, 8, 7, 6, 5} {
		before, err := h.engine.GetRecurringPlan(h.ctx, p.PaymentID)
		if err != nil {
			t.Fatalf("GetRecurringPlan: %v", err)
		}

		exec, err := h.engine.ExecuteRecurring(h.ctx, strangerAddr, h.payer, p.PaymentID, expected, rateFiveCents)
		if err != nil {
			t.Fatalf("catch-up execution %d: %v", i+1, err)
		}
		if exec.LedgerAmount.Int64() != 40 {
			t.Errorf("execution %d: ledger amount = %s, want 40", i+1, exec.LedgerAmount)
		}

		after, _ := h.engine.GetRecurringPlan(h.ctx, p.PaymentID)
		if after.NextDueTimestamp != before.NextDueTimestamp+twoDays {
			t.Errorf("execution %d: next due moved from %d to %d", i+1, before.NextDueTimestamp, after.NextDueTimestamp)
		}
		if after.RemainingPayments != before.RemainingPayments-1 {
			t.Errorf("execution %d: remaining moved from %d to %d", i+1, before.RemainingPayments, after.RemainingPayments)
		}
	}

	if got := h.balance(treasuryAddr); got != 6*40 {
		t.Errorf("treasury balance = %d, want %d", got, 6*40)
	}

	_, err := h.engine.ExecuteRecurring(h.ctx, executorAddr, h.payer, p.PaymentID, 5, rateFiveCents)
	if !errors.Is(err, pullpay.ErrStaleCounter) {
		t.Fatalf("expected ErrStaleCounter, got %v", err)
	}

	execs, err := h.engine.ListExecutions(h.ctx, p.PaymentID, execution.ListOpts{})
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(execs) != 6 {
		t.Fatalf("got %d executions, want 6", len(execs))
	}
	if execs[0].RemainingPayments != 4 || execs[5].RemainingPayments != 9 {
		t.Errorf("executions not newest first: first remaining %d, last remaining %d",
			execs[0].RemainingPayments, execs[5].RemainingPayments)
	}
}

func TestRecurringRegistrationByType(t *testing.T) {
	const week = 7 * 86_400

	tests := []struct {
		name          string
		typ           recurring.Type
		startOffset   int64
		wantCharged   int64
		wantKind      execution.Kind
		wantRemaining int64
		wantNextDue   int64
	}{
		{"single", recurring.TypeSingle, 0, 40, execution.KindRecurring, 9, genesis + twoDays},
		{"recurring", recurring.TypeRecurring, 0, 40, execution.KindRecurring, 9, genesis + twoDays},
		{"recurring starting later", recurring.TypeRecurring, 3600, 0, "", 10, genesis + 3600},
		{"recurring with initial", recurring.TypeRecurringWithInitial, 0, 20, execution.KindInitial, 10, genesis},
		{"free trial", recurring.TypeFreeTrial, 0, 0, "", 10, genesis + week},
		{"paid trial", recurring.TypePaidTrial, 0, 20, execution.KindInitial, 10, genesis + week},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			reg := h.recurringRegistration("paymentID_1", tt.typ)
			reg.StartTimestamp += tt.startOffset
			p, exec, err := h.engine.RegisterRecurring(h.ctx, executorAddr, h.signRecurring(reg))
			if err != nil {
				t.Fatalf("RegisterRecurring: %v", err)
			}

			if got := h.balance(treasuryAddr); got != tt.wantCharged {
				t.Errorf("charged %d, want %d", got, tt.wantCharged)
			}
			if tt.wantKind == "" {
				if exec != nil {
					t.Errorf("unexpected execution %+v", exec)
				}
			} else if exec == nil || exec.Kind != tt.wantKind {
				t.Errorf("execution = %+v, want kind %s", exec, tt.wantKind)
			}
			if p.RemainingPayments != tt.wantRemaining {
				t.Errorf("remaining = %d, want %d", p.RemainingPayments, tt.wantRemaining)
			}
			if p.NextDueTimestamp != tt.wantNextDue {
				t.Errorf("next due = %d, want %d", p.NextDueTimestamp, tt.wantNextDue)
			}
		})
	}
}

func TestRecurringCancel(t *testing.T) {
	h := newHarness(t)
	p := h.registerRecurring("paymentID_1", recurring.TypeRecurring)
	h.clock.Advance(twoDays)

	cancelled, err := h.engine.CancelRecurring(h.ctx, executorAddr, h.recurringCancellation(p.PaymentID))
	if err != nil {
		t.Fatalf("CancelRecurring: %v", err)
	}
	if cancelled.CancelTimestamp != genesis+twoDays {
		t.Errorf("cancel timestamp = %d, want %d", cancelled.CancelTimestamp, genesis+twoDays)
	}
	if cancelled.Status() != recurring.StatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status())
	}

	_, err = h.engine.ExecuteRecurring(h.ctx, executorAddr, h.payer, p.PaymentID, 9, rateFiveCents)
	if !errors.Is(err, pullpay.ErrPaymentCancelled) {
		t.Fatalf("expected ErrPaymentCancelled, got %v", err)
	}
	if !pullpay.IsTerminal(err) {
		t.Error("PaymentCancelled should be terminal")
	}

	_, err = h.engine.CancelRecurring(h.ctx, executorAddr, h.recurringCancellation(p.PaymentID))
	if !errors.Is(err, pullpay.ErrAlreadyCancelled) {
		t.Fatalf("expected ErrAlreadyCancelled, got %v", err)
	}
}

func TestRecurringCancelRequiresPayerSignature(t *testing.T) {
	h := newHarness(t)
	p := h.registerRecurring("paymentID_1", recurring.TypeRecurring)

	// Signed for another plan.
	c := h.recurringCancellation(types.MustBytes32("paymentID_2"))
	c.PaymentID = p.PaymentID
	if _, err := h.engine.CancelRecurring(h.ctx, executorAddr, c); !errors.Is(err, pullpay.ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}

	if _, err := h.engine.CancelRecurring(h.ctx, strangerAddr, h.recurringCancellation(p.PaymentID)); !errors.Is(err, pullpay.ErrNotAuthorizedExecutor) {
		t.Fatalf("expected ErrNotAuthorizedExecutor, got %v", err)
	}

	if _, err := h.engine.CancelRecurring(h.ctx, executorAddr, h.recurringCancellation(types.MustBytes32("unknown"))); !errors.Is(err, pullpay.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestRecurringFreeTrial(t *testing.T) {
	h := newHarness(t)
	reg := h.recurringRegistration("paymentID_1", recurring.TypeFreeTrial)
	p, exec, err := h.engine.RegisterRecurring(h.ctx, executorAddr, h.signRecurring(reg))
	if err != nil {
		t.Fatalf("RegisterRecurring: %v", err)
	}
	if exec != nil || h.balance(treasuryAddr) != 0 {
		t.Fatal("free trial registration must not charge")
	}

	h.clock.Advance(reg.TrialPeriodSeconds - 1)
	_, err = h.engine.ExecuteRecurring(h.ctx, executorAddr, h.payer, p.PaymentID, 10, rateFiveCents)
	if !errors.Is(err, pullpay.ErrScheduleNotDue) {
		t.Fatalf("expected ErrScheduleNotDue during trial, got %v", err)
	}

	h.clock.Advance(1)
	exec, err = h.engine.ExecuteRecurring(h.ctx, executorAddr, h.payer, p.PaymentID, 10, rateFiveCents)
	if err != nil {
		t.Fatalf("execution after trial: %v", err)
	}
	if exec.AmountCents != reg.RecurringAmountCents {
		t.Errorf("charged %d cents, want the recurring amount %d", exec.AmountCents, reg.RecurringAmountCents)
	}
	if exec.RemainingPayments != 9 {
		t.Errorf("remaining = %d, want 9", exec.RemainingPayments)
	}
}

func TestRecurringExhaustion(t *testing.T) {
	h := newHarness(t)
	reg := h.recurringRegistration("paymentID_1", recurring.TypeSingle)
	reg.NumberOfPayments = 1
	p, _, err := h.engine.RegisterRecurring(h.ctx, executorAddr, h.signRecurring(reg))
	if err != nil {
		t.Fatalf("RegisterRecurring: %v", err)
	}
	if p.Status() != recurring.StatusExhausted {
		t.Fatalf("status = %s, want exhausted", p.Status())
	}

	h.clock.Advance(10 * twoDays)
	_, err = h.engine.ExecuteRecurring(h.ctx, executorAddr, h.payer, p.PaymentID, 0, rateFiveCents)
	if !errors.Is(err, pullpay.ErrPaymentExhausted) {
		t.Fatalf("expected ErrPaymentExhausted, got %v", err)
	}
}

func TestRecurringUniqueness(t *testing.T) {
	h := newHarness(t)
	h.registerRecurring("paymentID_1", recurring.TypeRecurring)

	reg := h.signRecurring(h.recurringRegistration("paymentID_1", recurring.TypeFreeTrial))
	if _, _, err := h.engine.RegisterRecurring(h.ctx, executorAddr, reg); !errors.Is(err, pullpay.ErrPaymentExists) {
		t.Fatalf("expected ErrPaymentExists, got %v", err)
	}

	topUp := h.signTopUp(h.topUpRegistration("paymentID_1"))
	if _, _, err := h.engine.RegisterTopUp(h.ctx, executorAddr, topUp); !errors.Is(err, pullpay.ErrPaymentExists) {
		t.Fatalf("expected ErrPaymentExists across models, got %v", err)
	}
}

func TestRecurringRegistrationRejected(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(r *recurring.Registration)
		field string
		want  error
	}{
		{"invalid type", func(r *recurring.Registration) { r.Type = "weekly" }, "type", pullpay.ErrInvalidPlanType},
		{"zero payer", func(r *recurring.Registration) { r.Payer = common.Address{} }, "payer", pullpay.ErrInvalidIdentity},
		{"zero treasury", func(r *recurring.Registration) { r.Treasury = common.Address{} }, "treasury", pullpay.ErrInvalidIdentity},
		{"zero payment id", func(r *recurring.Registration) { r.PaymentID = common.Hash{} }, "payment_id", pullpay.ErrZeroValue},
		{"empty currency", func(r *recurring.Registration) { r.Currency = "" }, "currency", pullpay.ErrEmptyString},
		{"zero amount", func(r *recurring.Registration) { r.RecurringAmountCents = 0 }, "recurring_amount_cents", pullpay.ErrZeroValue},
		{"zero frequency", func(r *recurring.Registration) { r.FrequencySeconds = 0 }, "frequency_seconds", pullpay.ErrZeroValue},
		{"zero payments", func(r *recurring.Registration) { r.NumberOfPayments = 0 }, "number_of_payments", pullpay.ErrZeroValue},
		{"rate at ceiling", func(r *recurring.Registration) { r.ConversionRate = pullpay.OverflowLimit }, "conversion_rate", pullpay.ErrOverflowLimit},
		{"initial at ceiling", func(r *recurring.Registration) { r.InitialAmountCents = pullpay.OverflowLimit }, "initial_amount_cents", pullpay.ErrOverflowLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			reg := h.recurringRegistration("paymentID_1", recurring.TypeRecurring)
			tt.mut(reg)

			_, _, err := h.engine.RegisterRecurring(h.ctx, executorAddr, reg)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var verr *pullpay.ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("expected validation error on %s, got %v", tt.field, err)
			}
			if _, err := h.engine.GetRecurringPlan(h.ctx, reg.PaymentID); err == nil {
				t.Error("rejected registration was persisted")
			}
		})
	}
}

func TestRecurringRegistrationTrialRules(t *testing.T) {
	h := newHarness(t)

	reg := h.recurringRegistration("paymentID_1", recurring.TypePaidTrial)
	reg.InitialAmountCents = 0
	if _, _, err := h.engine.RegisterRecurring(h.ctx, executorAddr, reg); !errors.Is(err, pullpay.ErrZeroValue) {
		t.Errorf("paid trial without initial amount: expected ErrZeroValue, got %v", err)
	}

	reg = h.recurringRegistration("paymentID_1", recurring.TypeFreeTrial)
	reg.TrialPeriodSeconds = 0
	if _, _, err := h.engine.RegisterRecurring(h.ctx, executorAddr, reg); !errors.Is(err, pullpay.ErrZeroValue) {
		t.Errorf("free trial without trial period: expected ErrZeroValue, got %v", err)
	}
}

func TestRecurringSignatureBinding(t *testing.T) {
	h := newHarness(t)

	t.Run("unauthorized caller", func(t *testing.T) {
		reg := h.signRecurring(h.recurringRegistration("paymentID_1", recurring.TypeRecurring))
		_, _, err := h.engine.RegisterRecurring(h.ctx, strangerAddr, reg)
		if !errors.Is(err, pullpay.ErrNotAuthorizedExecutor) {
			t.Fatalf("expected ErrNotAuthorizedExecutor, got %v", err)
		}
	})

	tampers := []struct {
		name string
		mut  func(r *recurring.Registration)
	}{
		{"amount", func(r *recurring.Registration) { r.RecurringAmountCents++ }},
		{"treasury", func(r *recurring.Registration) { r.Treasury = strangerAddr }},
		{"currency", func(r *recurring.Registration) { r.Currency = "USD" }},
		{"frequency", func(r *recurring.Registration) { r.FrequencySeconds-- }},
		{"plan type", func(r *recurring.Registration) { r.Type = recurring.TypeSingle }},
		{"payer", func(r *recurring.Registration) { r.Payer = strangerAddr }},
	}
	for _, tt := range tampers {
		t.Run("tampered "+tt.name, func(t *testing.T) {
			reg := h.signRecurring(h.recurringRegistration("paymentID_1", recurring.TypeRecurring))
			tt.mut(reg)
			_, _, err := h.engine.RegisterRecurring(h.ctx, executorAddr, reg)
			if !errors.Is(err, pullpay.ErrSignatureInvalid) {
				t.Fatalf("expected ErrSignatureInvalid, got %v", err)
			}
		})
	}

	t.Run("other signing domain", func(t *testing.T) {
		other := newHarness(t, pullpay.WithSigningDomain("acme"))
		reg := other.signRecurring(other.recurringRegistration("paymentID_1", recurring.TypeRecurring))
		_, _, err := other.engine.RegisterRecurring(other.ctx, executorAddr, reg)
		if !errors.Is(err, pullpay.ErrSignatureInvalid) {
			t.Fatalf("expected ErrSignatureInvalid, got %v", err)
		}
	})
}

func TestRecurringExecuteGuards(t *testing.T) {
	h := newHarness(t)
	p := h.registerRecurring("paymentID_1", recurring.TypeRecurring)
	h.clock.Advance(twoDays)

	if _, err := h.engine.ExecuteRecurring(h.ctx, executorAddr, strangerAddr, p.PaymentID, 9, rateFiveCents); !errors.Is(err, pullpay.ErrPaymentNotFound) {
		t.Errorf("wrong payer: expected ErrPaymentNotFound, got %v", err)
	}
	if _, err := h.engine.ExecuteRecurring(h.ctx, executorAddr, h.payer, types.MustBytes32("unknown"), 9, rateFiveCents); !errors.Is(err, pullpay.ErrPaymentNotFound) {
		t.Errorf("unknown payment: expected ErrPaymentNotFound, got %v", err)
	}
	if _, err := h.engine.ExecuteRecurring(h.ctx, executorAddr, h.payer, p.PaymentID, 9, 0); !errors.Is(err, pullpay.ErrInvalidRate) {
		t.Errorf("zero rate: expected ErrInvalidRate, got %v", err)
	}
	if _, err := h.engine.ExecuteRecurring(h.ctx, executorAddr, h.payer, p.PaymentID, 9, pullpay.OverflowLimit); !errors.Is(err, pullpay.ErrConversionOverflow) {
		t.Errorf("rate at ceiling: expected ErrConversionOverflow, got %v", err)
	}

	after, _ := h.engine.GetRecurringPlan(h.ctx, p.PaymentID)
	if after.RemainingPayments != 9 || after.NextDueTimestamp != p.NextDueTimestamp {
		t.Error("failed executions mutated the plan")
	}

	_, _, _, _, rejected := h.events.counts()
	if rejected != 4 {
		t.Errorf("rejected events = %d, want 4", rejected)
	}
}

func TestRecurringRestrictedPolicy(t *testing.T) {
	h := newHarness(t, pullpay.WithRecurringPolicy(pullpay.RegisteredExecutors{
		Registry: executor.NewSet(executorAddr),
	}))
	p := h.registerRecurring("paymentID_1", recurring.TypeRecurring)
	h.clock.Advance(twoDays)

	_, err := h.engine.ExecuteRecurring(h.ctx, strangerAddr, h.payer, p.PaymentID, 9, rateFiveCents)
	if !errors.Is(err, pullpay.ErrNotAuthorizedExecutor) {
		t.Fatalf("expected ErrNotAuthorizedExecutor, got %v", err)
	}
	if _, err := h.engine.ExecuteRecurring(h.ctx, executorAddr, h.payer, p.PaymentID, 9, rateFiveCents); err != nil {
		t.Fatalf("registered executor: %v", err)
	}
}

func TestRecurringTransferFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	p := h.registerRecurring("paymentID_1", recurring.TypeRecurring)
	h.clock.Advance(twoDays)

	h.ledger.Approve(h.payer, big.NewInt(0))
	_, err := h.engine.ExecuteRecurring(h.ctx, executorAddr, h.payer, p.PaymentID, 9, rateFiveCents)
	if !errors.Is(err, pullpay.ErrTransferNotAuthorized) {
		t.Fatalf("expected ErrTransferNotAuthorized, got %v", err)
	}

	after, _ := h.engine.GetRecurringPlan(h.ctx, p.PaymentID)
	if after.RemainingPayments != 9 || after.NextDueTimestamp != genesis+twoDays {
		t.Errorf("plan not restored: remaining %d, next due %d", after.RemainingPayments, after.NextDueTimestamp)
	}
	execs, _ := h.engine.ListExecutions(h.ctx, p.PaymentID, execution.ListOpts{})
	if len(execs) != 1 {
		t.Errorf("got %d executions, want only the registration charge", len(execs))
	}

	t.Run("registration", func(t *testing.T) {
		reg := h.signRecurring(h.recurringRegistration("paymentID_2", recurring.TypeRecurring))
		_, _, err := h.engine.RegisterRecurring(h.ctx, executorAddr, reg)
		if !errors.Is(err, pullpay.ErrTransferNotAuthorized) {
			t.Fatalf("expected ErrTransferNotAuthorized, got %v", err)
		}
		if _, err := h.engine.GetRecurringPlan(h.ctx, reg.PaymentID); !errors.Is(err, pullpay.ErrPaymentNotFound) {
			t.Errorf("failed registration was persisted: %v", err)
		}
	})
}

func TestRecurringEvents(t *testing.T) {
	h := newHarness(t)
	p := h.registerRecurring("paymentID_1", recurring.TypeRecurringWithInitial)
	if _, err := h.engine.ExecuteRecurring(h.ctx, executorAddr, h.payer, p.PaymentID, 10, rateFiveCents); err != nil {
		t.Fatalf("ExecuteRecurring: %v", err)
	}
	if _, err := h.engine.CancelRecurring(h.ctx, executorAddr, h.recurringCancellation(p.PaymentID)); err != nil {
		t.Fatalf("CancelRecurring: %v", err)
	}

	registered, executed, cancelled, _, rejected := h.events.counts()
	if registered != 1 || executed != 2 || cancelled != 1 || rejected != 0 {
		t.Errorf("events = registered %d, executed %d, cancelled %d, rejected %d",
			registered, executed, cancelled, rejected)
	}
}

func TestListRecurringPlansDue(t *testing.T) {
	h := newHarness(t)
	h.registerRecurring("paymentID_1", recurring.TypeRecurring)
	h.registerRecurring("paymentID_2", recurring.TypeFreeTrial)

	h.clock.Advance(twoDays)
	due, err := h.engine.ListRecurringPlans(h.ctx, recurring.ListOpts{DueBefore: h.engine.Now(), ActiveOnly: true})
	if err != nil {
		t.Fatalf("ListRecurringPlans: %v", err)
	}
	if len(due) != 1 || due[0].PaymentID != types.MustBytes32("paymentID_1") {
		t.Errorf("due plans = %d, want only paymentID_1", len(due))
	}
}
