package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/pullpay"
	"github.com/xraph/pullpay/execution"
	"github.com/xraph/pullpay/id"
	"github.com/xraph/pullpay/recurring"
	pullpaystore "github.com/xraph/pullpay/store"
	"github.com/xraph/pullpay/topup"
)

// Collection name constants.
const (
	colRecurringPlans = "pullpay_recurring_plans"
	colTopUpPlans     = "pullpay_topup_plans"
	colExecutions     = "pullpay_executions"
)

// compile-time interface check
var _ pullpaystore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all pull payment collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("pullpay/mongo: migrate %s indexes: %w", col, err)
		}
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
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return pullpay.ErrPaymentExists
		}
		return fmt.Errorf("pullpay/mongo: create recurring plan: %w", err)
	}
	return nil
}

func (s *Store) GetRecurringPlan(ctx context.Context, paymentID common.Hash) (*recurring.Plan, error) {
	var m recurringPlanModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": paymentID.Hex()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, pullpay.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("pullpay/mongo: get recurring plan: %w", err)
	}
	return fromRecurringPlanModel(&m)
}

func (s *Store) UpdateRecurringPlan(ctx context.Context, p *recurring.Plan) error {
	m := toRecurringPlanModel(p)
	m.Version = p.Version + 1
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.PaymentID, "version": p.Version}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("pullpay/mongo: update recurring plan: %w", err)
	}
	if res.MatchedCount() == 0 {
		if _, err := s.GetRecurringPlan(ctx, p.PaymentID); err != nil {
			return err
		}
		return pullpay.ErrStaleCounter
	}
	p.Version++
	return nil
}

func (s *Store) DeleteRecurringPlan(ctx context.Context, paymentID common.Hash) error {
	res, err := s.mdb.NewDelete((*recurringPlanModel)(nil)).
		Filter(bson.M{"_id": paymentID.Hex()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("pullpay/mongo: delete recurring plan: %w", err)
	}
	if res.DeletedCount() == 0 {
		return pullpay.ErrPaymentNotFound
	}
	return nil
}

func (s *Store) ListRecurringPlans(ctx context.Context, opts recurring.ListOpts) ([]*recurring.Plan, error) {
	var models []recurringPlanModel
	filter := bson.M{}
	if opts.Payer != (common.Address{}) {
		filter["payer"] = opts.Payer.Hex()
	}
	if opts.DueBefore != 0 {
		filter["next_due_timestamp"] = bson.M{"$lte": opts.DueBefore}
	}
	if opts.ActiveOnly {
		filter["cancel_timestamp"] = int64(0)
		filter["remaining_payments"] = bson.M{"$gt": 0}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "next_due_timestamp", Value: 1}, {Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("pullpay/mongo: list recurring plans: %w", err)
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
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return pullpay.ErrPaymentExists
		}
		return fmt.Errorf("pullpay/mongo: create top-up plan: %w", err)
	}
	return nil
}

func (s *Store) GetTopUpPlan(ctx context.Context, paymentID common.Hash) (*topup.Plan, error) {
	var m topUpPlanModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": paymentID.Hex()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, pullpay.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("pullpay/mongo: get top-up plan: %w", err)
	}
	return fromTopUpPlanModel(&m), nil
}

func (s *Store) UpdateTopUpPlan(ctx context.Context, p *topup.Plan) error {
	m := toTopUpPlanModel(p)
	m.Version = p.Version + 1
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.PaymentID, "version": p.Version}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("pullpay/mongo: update top-up plan: %w", err)
	}
	if res.MatchedCount() == 0 {
		if _, err := s.GetTopUpPlan(ctx, p.PaymentID); err != nil {
			return err
		}
		return pullpay.ErrStaleCounter
	}
	p.Version++
	return nil
}

func (s *Store) DeleteTopUpPlan(ctx context.Context, paymentID common.Hash) error {
	res, err := s.mdb.NewDelete((*topUpPlanModel)(nil)).
		Filter(bson.M{"_id": paymentID.Hex()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("pullpay/mongo: delete top-up plan: %w", err)
	}
	if res.DeletedCount() == 0 {
		return pullpay.ErrPaymentNotFound
	}
	return nil
}

func (s *Store) ListTopUpPlans(ctx context.Context, opts topup.ListOpts) ([]*topup.Plan, error) {
	var models []topUpPlanModel
	filter := bson.M{}
	if opts.Payer != (common.Address{}) {
		filter["payer"] = opts.Payer.Hex()
	}
	if opts.Executor != (common.Address{}) {
		filter["executor"] = opts.Executor.Hex()
	}
	if opts.ActiveOnly {
		filter["cancel_timestamp"] = int64(0)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("pullpay/mongo: list top-up plans: %w", err)
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
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("pullpay/mongo: record execution: %w", err)
	}
	return nil
}

func (s *Store) DeleteExecution(ctx context.Context, executionID id.ExecutionID) error {
	res, err := s.mdb.NewDelete((*executionModel)(nil)).
		Filter(bson.M{"_id": executionID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("pullpay/mongo: delete execution: %w", err)
	}
	if res.DeletedCount() == 0 {
		return pullpay.ErrExecutionNotFound
	}
	return nil
}

func (s *Store) ListExecutions(ctx context.Context, paymentID common.Hash, opts execution.ListOpts) ([]*execution.Execution, error) {
	var models []executionModel
	q := s.mdb.NewFind(&models).
		Filter(bson.M{"payment_id": paymentID.Hex()}).
		Sort(bson.D{{Key: "executed_at", Value: -1}, {Key: "_id", Value: -1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("pullpay/mongo: list executions: %w", err)
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

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all pull payment collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colRecurringPlans: {
			{Keys: bson.D{{Key: "payer", Value: 1}}},
			{
				Keys:    bson.D{{Key: "cancel_timestamp", Value: 1}, {Key: "next_due_timestamp", Value: 1}},
				Options: options.Index().SetName("pullpay_recurring_due"),
			},
		},
		colTopUpPlans: {
			{Keys: bson.D{{Key: "payer", Value: 1}}},
			{Keys: bson.D{{Key: "executor", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colExecutions: {
			{Keys: bson.D{{Key: "payment_id", Value: 1}, {Key: "executed_at", Value: -1}}},
		},
	}
}
