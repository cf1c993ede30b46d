package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
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

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("pullpay/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("pullpay/sqlite: migration failed: %w", err)
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
	res, err := s.sdb.NewInsert(m).
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
	err := s.sdb.NewSelect(m).
		Where("payment_id = ?", paymentID.Hex()).
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
	res, err := s.sdb.NewUpdate((*recurringPlanModel)(nil)).
		Set("remaining_payments = ?", p.RemainingPayments).
		Set("next_due_timestamp = ?", p.NextDueTimestamp).
		Set("last_payment_timestamp = ?", p.LastPaymentTimestamp).
		Set("cancel_timestamp = ?", p.CancelTimestamp).
		Set("updated_at = ?", p.UpdatedAt).
		Set("version = ?", p.Version+1).
		Where("payment_id = ?", p.PaymentID.Hex()).
		Where("version = ?", p.Version).
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
	res, err := s.sdb.NewDelete((*recurringPlanModel)(nil)).
		Where("payment_id = ?", paymentID.Hex()).
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
	q := s.sdb.NewSelect(&models)

	if opts.Payer != (common.Address{}) {
		q = q.Where("payer = ?", opts.Payer.Hex())
	}
	if opts.DueBefore != 0 {
		q = q.Where("next_due_timestamp <= ?", opts.DueBefore)
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
	res, err := s.sdb.NewInsert(m).
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
	err := s.sdb.NewSelect(m).
		Where("payment_id = ?", paymentID.Hex()).
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
	res, err := s.sdb.NewUpdate((*topUpPlanModel)(nil)).
		Set("total_limit_cents = ?", m.TotalLimitCents).
		Set("total_spent_cents = ?", m.TotalSpentCents).
		Set("last_payment_timestamp = ?", m.LastPaymentTimestamp).
		Set("cancel_timestamp = ?", m.CancelTimestamp).
		Set("has_time_based = ?", m.HasTimeBased).
		Set("time_based_limit_cents = ?", m.TimeBasedLimitCents).
		Set("time_based_period_seconds = ?", m.TimeBasedPeriod).
		Set("time_based_spent_cents = ?", m.TimeBasedSpentCents).
		Set("window_start_timestamp = ?", m.WindowStartTimestamp).
		Set("updated_at = ?", m.UpdatedAt).
		Set("version = ?", p.Version+1).
		Where("payment_id = ?", p.PaymentID.Hex()).
		Where("version = ?", p.Version).
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
	res, err := s.sdb.NewDelete((*topUpPlanModel)(nil)).
		Where("payment_id = ?", paymentID.Hex()).
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
	q := s.sdb.NewSelect(&models)

	if opts.Payer != (common.Address{}) {
		q = q.Where("payer = ?", opts.Payer.Hex())
	}
	if opts.Executor != (common.Address{}) {
		q = q.Where("executor = ?", opts.Executor.Hex())
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
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) DeleteExecution(ctx context.Context, executionID id.ExecutionID) error {
	res, err := s.sdb.NewDelete((*executionModel)(nil)).
		Where("id = ?", executionID.String()).
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
	q := s.sdb.NewSelect(&models).Where("payment_id = ?", paymentID.Hex())

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
