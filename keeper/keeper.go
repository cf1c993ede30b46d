// Package keeper is the off-engine scheduler for recurring plans. A Keeper
// periodically lists the plans that have come due and executes each of them
// once per sweep, so a plan that fell several cycles behind catches up over
// successive sweeps.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"

	"github.com/xraph/pullpay"
	"github.com/xraph/pullpay/execution"
	"github.com/xraph/pullpay/id"
	"github.com/xraph/pullpay/recurring"
)

// Defaults applied by New.
const (
	DefaultInterval  = time.Minute
	DefaultBatchSize = 100
)

// Engine is the subset of *pullpay.Engine the keeper drives.
type Engine interface {
	Now() int64
	ListRecurringPlans(ctx context.Context, opts recurring.ListOpts) ([]*recurring.Plan, error)
	ExecuteRecurring(ctx context.Context, caller, payer common.Address, paymentID common.Hash, expectedRemaining, rate int64) (*execution.Execution, error)
}

var _ Engine = (*pullpay.Engine)(nil)

// RateSource supplies the conversion rate (fixed-point ×10^10) used to charge
// a plan in the given currency.
type RateSource interface {
	Rate(ctx context.Context, currency string) (int64, error)
}

// ErrNoRate is returned by StaticRates for an unknown currency.
var ErrNoRate = errors.New("keeper: no rate for currency")

// StaticRates is a fixed RateSource keyed by currency code.
type StaticRates map[string]int64

// Rate implements RateSource.
func (r StaticRates) Rate(_ context.Context, currency string) (int64, error) {
	v, ok := r[currency]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrNoRate, currency)
	}
	return v, nil
}

// SweepResult summarizes one pass over the due plans.
type SweepResult struct {
	ID       id.SweepID
	At       int64
	Due      int
	Executed int
	Skipped  int
	Failed   int
}

// Keeper executes due recurring plans on a fixed interval.
type Keeper struct {
	engine    Engine
	rates     RateSource
	caller    common.Address
	interval  time.Duration
	batchSize int
	limiter   *rate.Limiter
	logger    *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Keeper.
type Option func(*Keeper)

// WithInterval sets the time between sweeps.
func WithInterval(d time.Duration) Option {
	return func(k *Keeper) {
		if d > 0 {
			k.interval = d
		}
	}
}

// WithBatchSize sets the page size used to list due plans.
func WithBatchSize(n int) Option {
	return func(k *Keeper) {
		if n > 0 {
			k.batchSize = n
		}
	}
}

// WithRateLimit caps executions at perSecond with the given burst. A
// non-positive perSecond removes the cap.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(k *Keeper) {
		if perSecond <= 0 {
			k.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst <= 0 {
			burst = 1
		}
		k.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithCaller sets the identity the keeper executes as. It matters only when
// the engine restricts who may execute recurring plans.
func WithCaller(caller common.Address) Option {
	return func(k *Keeper) { k.caller = caller }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(k *Keeper) { k.logger = logger }
}

// New creates a Keeper. It does nothing until Start or Sweep is called.
func New(engine Engine, rates RateSource, opts ...Option) *Keeper {
	k := &Keeper{
		engine:    engine,
		rates:     rates,
		interval:  DefaultInterval,
		batchSize: DefaultBatchSize,
		limiter:   rate.NewLimiter(rate.Inf, 0),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Start runs sweeps in the background until Stop is called or ctx ends.
func (k *Keeper) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.cancel != nil {
		return errors.New("keeper: already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	k.cancel = cancel
	k.done = make(chan struct{})

	go k.run(ctx, k.done)

	k.logger.Info("keeper started",
		"interval", k.interval,
		"batch_size", k.batchSize,
	)
	return nil
}

// Stop halts the sweep loop and waits for the running sweep to finish.
func (k *Keeper) Stop() {
	k.mu.Lock()
	cancel, done := k.cancel, k.done
	k.cancel, k.done = nil, nil
	k.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	k.logger.Info("keeper stopped")
}

func (k *Keeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := k.Sweep(ctx); err != nil && ctx.Err() == nil {
				k.logger.Warn("keeper sweep finished with errors", "error", err)
			}
		}
	}
}

// Sweep executes every plan due at the engine's current time once. Plans
// that are not due anymore, or whose counter moved since they were listed,
// are skipped. Other failures are collected into a pullpay.MultiError.
func (k *Keeper) Sweep(ctx context.Context) (SweepResult, error) {
	res := SweepResult{ID: id.NewSweepID(), At: k.engine.Now()}

	due, err := k.due(ctx, res.At)
	if err != nil {
		return res, err
	}
	res.Due = len(due)

	var errs pullpay.MultiError
	for _, p := range due {
		if err := k.limiter.Wait(ctx); err != nil {
			errs.Add(err)
			break
		}

		err := k.execute(ctx, p)
		switch {
		case err == nil:
			res.Executed++
		case errors.Is(err, pullpay.ErrScheduleNotDue), errors.Is(err, pullpay.ErrStaleCounter):
			res.Skipped++
			k.logger.Debug("keeper skipped plan",
				"sweep_id", res.ID.String(),
				"payment_id", p.PaymentID.Hex(),
				"code", pullpay.Code(err),
			)
		default:
			res.Failed++
			errs.Add(fmt.Errorf("payment %s: %w", p.PaymentID.Hex(), err))
			k.logger.Warn("keeper execution failed",
				"sweep_id", res.ID.String(),
				"payment_id", p.PaymentID.Hex(),
				"code", pullpay.Code(err),
				"terminal", pullpay.IsTerminal(err),
				"error", err,
			)
		}
	}

	if res.Due > 0 {
		k.logger.Info("keeper sweep completed",
			"sweep_id", res.ID.String(),
			"due", res.Due,
			"executed", res.Executed,
			"skipped", res.Skipped,
			"failed", res.Failed,
		)
	}

	if errs.HasErrors() {
		return res, errs
	}
	return res, nil
}

// due snapshots all active plans due at now before any of them executes, so
// paging is not disturbed by plans moving out of the window.
func (k *Keeper) due(ctx context.Context, now int64) ([]*recurring.Plan, error) {
	var plans []*recurring.Plan
	for offset := 0; ; offset += k.batchSize {
		page, err := k.engine.ListRecurringPlans(ctx, recurring.ListOpts{
			DueBefore:  now,
			ActiveOnly: true,
			Limit:      k.batchSize,
			Offset:     offset,
		})
		if err != nil {
			return nil, fmt.Errorf("keeper: list due plans: %w", err)
		}
		plans = append(plans, page...)
		if len(page) < k.batchSize {
			return plans, nil
		}
	}
}

func (k *Keeper) execute(ctx context.Context, p *recurring.Plan) error {
	r, err := k.rates.Rate(ctx, p.Currency)
	if err != nil {
		return err
	}
	_, err = k.engine.ExecuteRecurring(ctx, k.caller, p.Payer, p.PaymentID, p.RemainingPayments, r)
	return err
}
