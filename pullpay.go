package pullpay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/pullpay/conversion"
	"github.com/xraph/pullpay/executor"
	"github.com/xraph/pullpay/ledger"
	"github.com/xraph/pullpay/plugin"
	"github.com/xraph/pullpay/signature"
	"github.com/xraph/pullpay/store"
)

// OverflowLimit bounds every amount, limit, rate and schedule field. Values
// must be strictly below it.
const OverflowLimit = conversion.Ceiling

// Engine is the pull payment authorization and billing engine. All mutating
// calls are serialized: each runs to completion or is rolled back before the
// next one observes any state.
type Engine struct {
	mu sync.RWMutex

	store     store.Store
	ledger    ledger.Ledger
	executors executor.Registry
	converter *conversion.Converter
	plugins   *plugin.Registry
	logger    *slog.Logger
	clock     func() time.Time

	domain          string
	verifiers       map[string]*signature.Verifier
	recurringPolicy ExecutionPolicy
	topUpPolicy     ExecutionPolicy
}

// New creates an Engine drawing funds through l and admitting the
// executors known to executors.
func New(s store.Store, l ledger.Ledger, executors executor.Registry, opts ...Option) *Engine {
	e := &Engine{
		store:           s,
		ledger:          l,
		executors:       executors,
		converter:       conversion.New(0),
		plugins:         plugin.NewRegistry(),
		logger:          slog.Default(),
		clock:           time.Now,
		domain:          signature.DefaultDomain,
		recurringPolicy: OpenExecution{},
		topUpPolicy:     DesignatedExecutor{},
	}

	for _, opt := range opts {
		opt(e)
	}

	e.verifiers = make(map[string]*signature.Verifier)
	for _, schema := range []signature.Schema{
		signature.RecurringRegistration,
		signature.RecurringTrialRegistration,
		signature.TopUpRegistration,
		signature.TopUpTimeBasedRegistration,
		signature.TopUpExpiringRegistration,
		signature.TopUpTimeBasedExpiringRegistration,
		signature.RecurringCancellation,
		signature.TopUpCancellation,
	} {
		e.verifiers[schema.ID()] = signature.NewVerifier(schema.Bind(e.domain))
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock replaces the wall clock used for schedules and limits.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithConverter sets the currency converter, e.g. conversion.New(18) for an
// 18-decimal token.
func WithConverter(c *conversion.Converter) Option {
	return func(e *Engine) {
		e.converter = c
	}
}

// WithSigningDomain binds every signing schema to domain. Payers must sign
// under the same domain.
func WithSigningDomain(domain string) Option {
	return func(e *Engine) {
		e.domain = domain
	}
}

// WithRecurringPolicy sets who may execute recurring plans. The default
// admits any caller.
func WithRecurringPolicy(p ExecutionPolicy) Option {
	return func(e *Engine) {
		e.recurringPolicy = p
	}
}

// WithTopUpPolicy sets who may execute top-up plans. The default admits only
// the plan's designated executor.
func WithTopUpPolicy(p ExecutionPolicy) Option {
	return func(e *Engine) {
		e.topUpPolicy = p
	}
}

// Start migrates the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("pullpay engine started",
		"signing_domain", e.domain,
		"ledger_decimals", e.converter.Decimals(),
		"plugins", e.plugins.Count(),
	)

	return nil
}

// Stop shuts plugins down and closes the store.
func (e *Engine) Stop() error {
	e.plugins.EmitShutdown(context.Background())
	return e.store.Close()
}

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Now returns the engine clock in unix seconds.
func (e *Engine) Now() int64 { return e.clock().Unix() }

// ──────────────────────────────────────────────────
// Shared helpers
// ──────────────────────────────────────────────────

// authorizeExecutor checks caller against the executor registry.
func (e *Engine) authorizeExecutor(ctx context.Context, caller common.Address) error {
	ok, err := e.executors.IsAuthorized(ctx, caller)
	if err != nil {
		return fmt.Errorf("pullpay: executor lookup: %w", err)
	}
	if !ok {
		return ErrNotAuthorizedExecutor
	}
	return nil
}

// verify checks sig against the engine's verifier for schema.
func (e *Engine) verify(schema signature.Schema, sig signature.Signature, signer common.Address, values []signature.Value) error {
	v, ok := e.verifiers[schema.ID()]
	if !ok {
		return fmt.Errorf("%w: unknown schema %s", ErrSignatureInvalid, schema.ID())
	}
	if err := v.Verify(sig, signer, values...); err != nil {
		if errors.Is(err, ErrSignatureInvalid) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return nil
}

// ensureUnused fails with ErrPaymentExists when either model holds paymentID.
func (e *Engine) ensureUnused(ctx context.Context, paymentID common.Hash) error {
	if _, err := e.store.GetRecurringPlan(ctx, paymentID); err == nil {
		return ErrPaymentExists
	} else if !IsNotFound(err) {
		return err
	}
	if _, err := e.store.GetTopUpPlan(ctx, paymentID); err == nil {
		return ErrPaymentExists
	} else if !IsNotFound(err) {
		return err
	}
	return nil
}
