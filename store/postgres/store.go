package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/pullpay"
	"github.com/xraph/pullpay/execution"
	"github.com/xraph/pullpay/id"
	"github.com/xraph/pullpay/recurring"
	pullpaystore "github.com/xraph/pullpay/store"
	"github.com/xraph/pullpay/topup"
)

// compile-time interface check
var _ pullpaystore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("pullpay/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("pullpay/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Recurring Plan Store ====================

func (s *Store) CreateRecurringPlan(ctx context.Context, p *recurring.Plan) error {
	m := toRecurringPlanModel(p)
	res, err := s.pg.NewInsert(m).
		OnConflict("(payment_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pullpay.ErrPaymentExists
	}
	return nil
}

func (s *Store) GetRecurringPlan(ctx context.Context, paymentID common.Hash) (*recurring.Plan, error) {
	m := new(recurringPlanModel)
	err := s.pg.NewSelect(m).
		Where("payment_id = $1", paymentID.Hex()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, pullpay.ErrPaymentNotFound
		}
		return nil, err
	}
	return fromRecurringPlanModel(m)
}

func (s *Store) UpdateRecurringPlan(ctx context.Context, p *recurring.Plan) error {
	res, err := s.pg.NewUpdate((*recurringPlanModel)(nil)).
		Set("remaining_payments = $1", p.RemainingPayments).
		Set("next_due_timestamp = $2", p.NextDueTimestamp).
		Set("last_payment_timestamp = $3", p.LastPaymentTimestamp).
		Set("cancel_timestamp = $4", p.CancelTimestamp).
		Set("updated_at = $5", p.UpdatedAt).
		Set("version = $6", p.Version+1).
		Where("payment_id = $7", p.PaymentID.Hex()).
		Where("version = $8", p.Version).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := s.GetRecurringPlan(ctx, p.PaymentID); err != nil {
			return err
		}
		return pullpay.ErrStaleCounter
	}
	p.Version++
	return nil
}

func (s *Store) DeleteRecurringPlan(ctx context.Context, paymentID common.Hash) error {
	res, err := s.pg.NewDelete((*recurringPlanModel)(nil)).
		Where("payment_id = $1", paymentID.Hex()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pullpay.ErrPaymentNotFound
	}
	return nil
}

func (s *Store) ListRecurringPlans(ctx context.Context, opts recurring.ListOpts) ([]*recurring.Plan, error) {
	var models []recurringPlanModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Payer != (common.Address{}) {
		argIdx++
		q = q.Where(fmt.Sprintf("payer = $%d", argIdx), opts.Payer.Hex())
	}
	if opts.DueBefore != 0 {
		argIdx++
		q = q.Where(fmt.Sprintf("next_due_timestamp <= $%d", argIdx), opts.DueBefore)
	}
	if opts.ActiveOnly {
		q = q.Where("cancel_timestamp = 0").Where("remaining_payments > 0")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("next_due_timestamp ASC, payment_id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*recurring.Plan, len(models))
	for i := range models {
		p, err := fromRecurringPlanModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// ==================== Top-up Plan Store ====================

func (s *Store) CreateTopUpPlan(ctx context.Context, p *topup.Plan) error {
	m := toTopUpPlanModel(p)
	res, err := s.pg.NewInsert(m).
		OnConflict("(payment_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pullpay.ErrPaymentExists
	}
	return nil
}

func (s *Store) GetTopUpPlan(ctx context.Context, paymentID common.Hash) (*topup.Plan, error) {
	m := new(topUpPlanModel)
	err := s.pg.NewSelect(m).
		Where("payment_id = $1", paymentID.Hex()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, pullpay.ErrPaymentNotFound
		}
		return nil, err
	}
	return fromTopUpPlanModel(m), nil
}

func (s *Store) UpdateTopUpPlan(ctx context.Context, p *topup.Plan) error {
	m := toTopUpPlanModel(p)
	res, err := s.pg.NewUpdate((*topUpPlanModel)(nil)).
		Set("total_limit_cents = $1", m.TotalLimitCents).
		Set("total_spent_cents = $2", m.TotalSpentCents).
		Set("last_payment_timestamp = $3", m.LastPaymentTimestamp).
		Set("cancel_timestamp = $4", m.CancelTimestamp).
		Set("has_time_based = $5", m.HasTimeBased).
		Set("time_based_limit_cents = $6", m.TimeBasedLimitCents).
		Set("time_based_period_seconds = $7", m.TimeBasedPeriod).
		Set("time_based_spent_cents = $8", m.TimeBasedSpentCents).
		Set("window_start_timestamp = $9", m.WindowStartTimestamp).
		Set("updated_at = $10", m.UpdatedAt).
		Set("version = $11", p.Version+1).
		Where("payment_id = $12", p.PaymentID.Hex()).
		Where("version = $13", p.Version).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := s.GetTopUpPlan(ctx, p.PaymentID); err != nil {
			return err
		}
		return pullpay.ErrStaleCounter
	}
	p.Version++
	return nil
}

func (s *Store) DeleteTopUpPlan(ctx context.Context, paymentID common.Hash) error {
	res, err := s.pg.NewDelete((*topUpPlanModel)(nil)).
		Where("payment_id = $1", paymentID.Hex()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pullpay.ErrPaymentNotFound
	}
	return nil
}

func (s *Store) ListTopUpPlans(ctx context.Context, opts topup.ListOpts) ([]*topup.Plan, error) {
	var models []topUpPlanModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Payer != (common.Address{}) {
		argIdx++
		q = q.Where(fmt.Sprintf("payer = $%d", argIdx), opts.Payer.Hex())
	}
	if opts.Executor != (common.Address{}) {
		argIdx++
		q = q.Where(fmt.Sprintf("executor = $%d", argIdx), opts.Executor.Hex())
	}
	if opts.ActiveOnly {
		q = q.Where("cancel_timestamp = 0")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, payment_id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*topup.Plan, len(models))
	for i := range models {
		result[i] = fromTopUpPlanModel(&models[i])
	}
	return result, nil
}

// ==================== Execution Store ====================

func (s *Store) RecordExecution(ctx context.Context, e *execution.Execution) error {
	m := toExecutionModel(e)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) DeleteExecution(ctx context.Context, executionID id.ExecutionID) error {
	res, err := s.pg.NewDelete((*executionModel)(nil)).
		Where("id = $1", executionID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pullpay.ErrExecutionNotFound
	}
	return nil
}

func (s *Store) ListExecutions(ctx context.Context, paymentID common.Hash, opts execution.ListOpts) ([]*execution.Execution, error) {
	var models []executionModel
	q := s.pg.NewSelect(&models).Where("payment_id = $1", paymentID.Hex())

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("executed_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*execution.Execution, len(models))
	for i := range models {
		e, err := fromExecutionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

// ==================== Helpers ====================

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
