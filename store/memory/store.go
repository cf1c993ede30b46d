// Package memory provides an in-memory Store for tests and single-process
// deployments. Records are copied in and out so callers never share state
// with the store.
package memory

import (
	"cmp"
	"context"
	"math/big"
	"slices"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/pullpay"
	"github.com/xraph/pullpay/execution"
	"github.com/xraph/pullpay/id"
	"github.com/xraph/pullpay/recurring"
	"github.com/xraph/pullpay/store"
	"github.com/xraph/pullpay/topup"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// Plan storage
	recurring map[common.Hash]*recurring.Plan
	topups    map[common.Hash]*topup.Plan

	// Execution records in insertion order
	executions []*execution.Execution
}

func New() *Store {
	return &Store{
		recurring: make(map[common.Hash]*recurring.Plan),
		topups:    make(map[common.Hash]*topup.Plan),
	}
}

// ──────────────────────────────────────────────────
// Recurring plans
// ──────────────────────────────────────────────────

func (s *Store) CreateRecurringPlan(_ context.Context, p *recurring.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.recurring[p.PaymentID]; exists {
		return pullpay.ErrPaymentExists
	}
	s.recurring[p.PaymentID] = p.Clone()
	return nil
}

func (s *Store) GetRecurringPlan(_ context.Context, paymentID common.Hash) (*recurring.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.recurring[paymentID]; ok {
		return p.Clone(), nil
	}
	return nil, pullpay.ErrPaymentNotFound
}

func (s *Store) UpdateRecurringPlan(_ context.Context, p *recurring.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.recurring[p.PaymentID]
	if !exists {
		return pullpay.ErrPaymentNotFound
	}
	if stored.Version != p.Version {
		return pullpay.ErrStaleCounter
	}
	p.Version++
	s.recurring[p.PaymentID] = p.Clone()
	return nil
}

func (s *Store) DeleteRecurringPlan(_ context.Context, paymentID common.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.recurring[paymentID]; !exists {
		return pullpay.ErrPaymentNotFound
	}
	delete(s.recurring, paymentID)
	return nil
}

func (s *Store) ListRecurringPlans(_ context.Context, opts recurring.ListOpts) ([]*recurring.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*recurring.Plan, 0)
	for _, p := range s.recurring {
		if opts.Payer != (common.Address{}) && p.Payer != opts.Payer {
			continue
		}
		if opts.ActiveOnly && p.Status() != recurring.StatusActive {
			continue
		}
		if opts.DueBefore != 0 && p.NextDueTimestamp > opts.DueBefore {
			continue
		}
		result = append(result, p.Clone())
	}

	// Due order, oldest obligation first
	slices.SortFunc(result, func(a, b *recurring.Plan) int {
		if a.NextDueTimestamp != b.NextDueTimestamp {
			return cmp.Compare(a.NextDueTimestamp, b.NextDueTimestamp)
		}
		return strings.Compare(a.PaymentID.Hex(), b.PaymentID.Hex())
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// Top-up plans
// ──────────────────────────────────────────────────

func (s *Store) CreateTopUpPlan(_ context.Context, p *topup.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.topups[p.PaymentID]; exists {
		return pullpay.ErrPaymentExists
	}
	s.topups[p.PaymentID] = p.Clone()
	return nil
}

func (s *Store) GetTopUpPlan(_ context.Context, paymentID common.Hash) (*topup.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.topups[paymentID]; ok {
		return p.Clone(), nil
	}
	return nil, pullpay.ErrPaymentNotFound
}

func (s *Store) UpdateTopUpPlan(_ context.Context, p *topup.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.topups[p.PaymentID]
	if !exists {
		return pullpay.ErrPaymentNotFound
	}
	if stored.Version != p.Version {
		return pullpay.ErrStaleCounter
	}
	p.Version++
	s.topups[p.PaymentID] = p.Clone()
	return nil
}

func (s *Store) DeleteTopUpPlan(_ context.Context, paymentID common.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.topups[paymentID]; !exists {
		return pullpay.ErrPaymentNotFound
	}
	delete(s.topups, paymentID)
	return nil
}

func (s *Store) ListTopUpPlans(_ context.Context, opts topup.ListOpts) ([]*topup.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*topup.Plan, 0)
	for _, p := range s.topups {
		if opts.Payer != (common.Address{}) && p.Payer != opts.Payer {
			continue
		}
		if opts.Executor != (common.Address{}) && p.Executor != opts.Executor {
			continue
		}
		if opts.ActiveOnly && !p.IsActive() {
			continue
		}
		result = append(result, p.Clone())
	}

	slices.SortFunc(result, func(a, b *topup.Plan) int {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Compare(b.CreatedAt)
		}
		return strings.Compare(a.PaymentID.Hex(), b.PaymentID.Hex())
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// Executions
// ──────────────────────────────────────────────────

func (s *Store) RecordExecution(_ context.Context, e *execution.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.executions = append(s.executions, cloneExecution(e))
	return nil
}

func (s *Store) DeleteExecution(_ context.Context, executionID id.ExecutionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.executions {
		if e.ID.String() == executionID.String() {
			s.executions = slices.Delete(s.executions, i, i+1)
			return nil
		}
	}
	return pullpay.ErrExecutionNotFound
}

func (s *Store) ListExecutions(_ context.Context, paymentID common.Hash, opts execution.ListOpts) ([]*execution.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*execution.Execution, 0)
	for i := len(s.executions) - 1; i >= 0; i-- {
		if s.executions[i].PaymentID == paymentID {
			result = append(result, cloneExecution(s.executions[i]))
		}
	}
	return paginate(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// Core
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func cloneExecution(e *execution.Execution) *execution.Execution {
	c := *e
	if e.LedgerAmount != nil {
		c.LedgerAmount = new(big.Int).Set(e.LedgerAmount)
	}
	return &c
}

// paginate treats a negative offset as zero and a non-positive limit as
// unbounded.
func paginate[T any](items []T, offset, limit int) []T {
	start := max(offset, 0)
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
