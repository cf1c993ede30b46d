package pullpay_test

import (
	"context"
	"crypto/ecdsa"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/xraph/pullpay"
	"github.com/xraph/pullpay/execution"
	"github.com/xraph/pullpay/executor"
	ledgermem "github.com/xraph/pullpay/ledger/memory"
	"github.com/xraph/pullpay/plugin"
	"github.com/xraph/pullpay/recurring"
	"github.com/xraph/pullpay/signature"
	"github.com/xraph/pullpay/store/memory"
	"github.com/xraph/pullpay/topup"
	"github.com/xraph/pullpay/types"
)

// Well-known development key; never holds real funds.
const payerKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

const (
	// 1 ledger unit = 0.05 currency units.
	rateFiveCents int64 = 500_000_000
	twoDays       int64 = 172_800
	genesis       int64 = 1_700_000_000
)

var (
	executorAddr = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	treasuryAddr = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	strangerAddr = common.HexToAddress("0x0000000000000000000000000000000000000bad")
)

type fakeClock struct {
	mu  sync.Mutex
	now int64
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Unix(c.now, 0)
}

func (c *fakeClock) Advance(seconds int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += seconds
}

func (c *fakeClock) Unix() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// recorder captures plugin events.
type recorder struct {
	mu         sync.Mutex
	registered []*plugin.PaymentRegistered
	executed   []*execution.Execution
	cancelled  []*plugin.PaymentCancelled
	limits     []*plugin.LimitUpdated
	rejected   []*plugin.ExecutionRejected
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnPaymentRegistered(_ context.Context, evt *plugin.PaymentRegistered) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered = append(r.registered, evt)
	return nil
}

func (r *recorder) OnPaymentExecuted(_ context.Context, exec *execution.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executed = append(r.executed, exec)
	return nil
}

func (r *recorder) OnPaymentCancelled(_ context.Context, evt *plugin.PaymentCancelled) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, evt)
	return nil
}

func (r *recorder) OnLimitUpdated(_ context.Context, evt *plugin.LimitUpdated) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limits = append(r.limits, evt)
	return nil
}

func (r *recorder) OnExecutionRejected(_ context.Context, evt *plugin.ExecutionRejected) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, evt)
	return nil
}

func (r *recorder) counts() (registered, executed, cancelled, limits, rejected int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.registered), len(r.executed), len(r.cancelled), len(r.limits), len(r.rejected)
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	engine   *pullpay.Engine
	store    *memory.Store
	ledger   *ledgermem.Ledger
	registry *executor.Set
	clock    *fakeClock
	events   *recorder
	key      *ecdsa.PrivateKey
	payer    common.Address
}

func newHarness(t *testing.T, opts ...pullpay.Option) *harness {
	t.Helper()

	key, err := crypto.HexToECDSA(payerKeyHex)
	if err != nil {
		t.Fatalf("load key: %v", err)
	}

	h := &harness{
		t:        t,
		ctx:      context.Background(),
		store:    memory.New(),
		ledger:   ledgermem.New(),
		registry: executor.NewSet(executorAddr),
		clock:    &fakeClock{now: genesis},
		events:   &recorder{},
		key:      key,
		payer:    crypto.PubkeyToAddress(key.PublicKey),
	}

	funds := new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)
	h.ledger.Mint(h.payer, funds)
	h.ledger.Approve(h.payer, funds)

	base := []pullpay.Option{
		pullpay.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		pullpay.WithClock(h.clock.Now),
		pullpay.WithPlugin(h.events),
	}
	h.engine = pullpay.New(h.store, h.ledger, h.registry, append(base, opts...)...)
	if err := h.engine.Start(h.ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = h.engine.Stop() })

	return h
}

func (h *harness) balance(a common.Address) int64 {
	return h.ledger.BalanceOf(a).Int64()
}

// recurringRegistration returns an unsigned plan starting now.
func (h *harness) recurringRegistration(paymentID string, typ recurring.Type) *recurring.Registration {
	reg := &recurring.Registration{
		PaymentID:            types.MustBytes32(paymentID),
		BusinessID:           types.MustBytes32("businessID_1"),
		Type:                 typ,
		Payer:                h.payer,
		Executor:             executorAddr,
		Treasury:             treasuryAddr,
		Currency:             "EUR",
		ConversionRate:       rateFiveCents,
		RecurringAmountCents: 200,
		FrequencySeconds:     twoDays,
		NumberOfPayments:     10,
		StartTimestamp:       h.clock.Unix(),
	}
	if typ.ChargesInitial() {
		reg.InitialAmountCents = 100
	}
	if typ.HasTrial() {
		reg.TrialPeriodSeconds = 7 * 86_400
	}
	return reg
}

func (h *harness) signRecurring(reg *recurring.Registration) *recurring.Registration {
	h.t.Helper()
	sig, err := signature.Sign(reg.Type.Schema(), h.key, reg.SignedValues()...)
	if err != nil {
		h.t.Fatalf("sign registration: %v", err)
	}
	reg.Signature = sig
	return reg
}

func (h *harness) registerRecurring(paymentID string, typ recurring.Type) *recurring.Plan {
	h.t.Helper()
	reg := h.signRecurring(h.recurringRegistration(paymentID, typ))
	p, _, err := h.engine.RegisterRecurring(h.ctx, executorAddr, reg)
	if err != nil {
		h.t.Fatalf("RegisterRecurring: %v", err)
	}
	return p
}

func (h *harness) recurringCancellation(paymentID common.Hash) *recurring.Cancellation {
	h.t.Helper()
	p := &recurring.Plan{PaymentID: paymentID, Executor: executorAddr}
	sig, err := signature.Sign(signature.RecurringCancellation, h.key, p.CancellationValues()...)
	if err != nil {
		h.t.Fatalf("sign cancellation: %v", err)
	}
	return &recurring.Cancellation{Signature: sig, PaymentID: paymentID}
}

// topUpRegistration returns an unsigned top-up plan with a 10000 cent total
// limit and 500 cent top-ups.
func (h *harness) topUpRegistration(paymentID string) *topup.Registration {
	return &topup.Registration{
		PaymentID:        types.MustBytes32(paymentID),
		BusinessID:       types.MustBytes32("businessID_1"),
		Payer:            h.payer,
		Executor:         executorAddr,
		Treasury:         treasuryAddr,
		Currency:         "EUR",
		ConversionRate:   rateFiveCents,
		TopUpAmountCents: 500,
		StartTimestamp:   h.clock.Unix(),
		TotalLimitCents:  10_000,
	}
}

func (h *harness) signTopUp(reg *topup.Registration) *topup.Registration {
	h.t.Helper()
	sig, err := signature.Sign(reg.Schema(), h.key, reg.SignedValues()...)
	if err != nil {
		h.t.Fatalf("sign top-up registration: %v", err)
	}
	reg.Signature = sig
	return reg
}

func (h *harness) registerTopUp(reg *topup.Registration) *topup.Plan {
	h.t.Helper()
	p, _, err := h.engine.RegisterTopUp(h.ctx, executorAddr, h.signTopUp(reg))
	if err != nil {
		h.t.Fatalf("RegisterTopUp: %v", err)
	}
	return p
}

func (h *harness) topUpCancellation(reg *topup.Registration) *topup.Cancellation {
	h.t.Helper()
	p := &topup.Plan{PaymentID: reg.PaymentID, BusinessID: reg.BusinessID, Executor: reg.Executor}
	sig, err := signature.Sign(signature.TopUpCancellation, h.key, p.CancellationValues()...)
	if err != nil {
		h.t.Fatalf("sign cancellation: %v", err)
	}
	return &topup.Cancellation{Signature: sig, PaymentID: reg.PaymentID}
}
