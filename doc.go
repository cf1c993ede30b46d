// Package pullpay provides a pull payment authorization and billing engine
// for Go applications.
//
// Payers sign a payment plan once. Authorized executors then pull funds from
// the payer's ledger account into the business treasury on the payer's
// behalf, within the bounds the payer signed. pullpay is a library, not a
// service: import it directly and back it with the store and ledger of your
// choice. It provides:
//
//   - Signature-bound registration and cancellation of payment plans
//   - Recurring plans with optional initial charge or free/paid trial
//   - Top-up plans with a total spending cap and a rolling time-based cap
//   - Fiat cents to ledger unit conversion at executor-supplied rates
//   - Pluggable executor registries (in memory, Redis)
//   - Plugin hooks for audit trails and Prometheus metrics
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/pullpay"
//	    "github.com/xraph/pullpay/conversion"
//	    "github.com/xraph/pullpay/executor"
//	    "github.com/xraph/pullpay/store/postgres"
//	)
//
//	engine := pullpay.New(postgres.New(db), tokenLedger, executor.NewSet(executorAddr),
//	    pullpay.WithConverter(conversion.New(18)),
//	)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Recurring plans
//
// A recurring plan charges RecurringAmountCents every FrequencySeconds until
// NumberOfPayments charges have been made. A plan that has already started is
// charged at registration. Executors call ExecuteRecurring with the number of
// remaining payments they expect, so a retried call cannot charge twice:
//
//	plan, first, err := engine.RegisterRecurring(ctx, executorAddr, reg)
//	...
//	exec, err := engine.ExecuteRecurring(ctx, executorAddr, payer, plan.PaymentID,
//	    plan.RemainingPayments, rate)
//
// The keeper package runs this loop for every due plan.
//
// # Top-up plans
//
// A top-up plan charges a fixed TopUpAmountCents whenever its designated
// executor asks, while the total spent stays within TotalLimitCents and, if
// set, the spending in the current window stays within the time-based limit.
// Payers may raise or lower either limit afterwards.
//
// # Amounts
//
// All fiat amounts are integer cents. Conversion rates are scaled by 10^10:
// a rate of 500_000_000 means one ledger unit is worth 0.05 currency units.
// Every amount, limit and rate must be below OverflowLimit.
//
// # Identifiers
//
// Plans are keyed by the 32 byte payment id the payer signed. Executions and
// keeper sweeps use TypeIDs:
//
//	exec_01h2xcejqtf2nbrexx3vqjhp41  // Execution ID
//	swp_01h455vb4pex5vsknk084sn02q   // Sweep ID
package pullpay
