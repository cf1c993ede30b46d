// Package executor decides which caller identities may submit privileged
// registration, cancellation and top-up calls.
package executor

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry reports whether an identity is an authorized executor.
type Registry interface {
	IsAuthorized(ctx context.Context, identity common.Address) (bool, error)
}

var _ Registry = (*Set)(nil)

// Set is an in-memory Registry.
type Set struct {
	mu      sync.RWMutex
	members map[common.Address]struct{}
}

// NewSet creates a Set holding the given executors.
func NewSet(executors ...common.Address) *Set {
	s := &Set{members: make(map[common.Address]struct{}, len(executors))}
	for _, e := range executors {
		s.members[e] = struct{}{}
	}
	return s
}

// Add authorizes an executor.
func (s *Set) Add(identity common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[identity] = struct{}{}
}

// Remove revokes an executor.
func (s *Set) Remove(identity common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, identity)
}

// IsAuthorized implements Registry.
func (s *Set) IsAuthorized(_ context.Context, identity common.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[identity]
	return ok, nil
}
