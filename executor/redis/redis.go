// Package redis backs the executor registry with a Redis set so that several
// engine replicas share one list of authorized executors.
package redis

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/pullpay/executor"
)

// DefaultKey is the set holding executor addresses.
const DefaultKey = "pullpay:executors"

var _ executor.Registry = (*Registry)(nil)

// Registry stores executor addresses as lowercase hex members of a Redis set.
type Registry struct {
	client goredis.UniversalClient
	key    string
}

// Option configures a Registry.
type Option func(*Registry)

// WithKey overrides the Redis key of the executor set.
func WithKey(key string) Option {
	return func(r *Registry) { r.key = key }
}

// New creates a Registry over an existing client.
func New(client goredis.UniversalClient, opts ...Option) *Registry {
	r := &Registry{client: client, key: DefaultKey}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add authorizes executors.
func (r *Registry) Add(ctx context.Context, identities ...common.Address) error {
	if len(identities) == 0 {
		return nil
	}
	members := make([]any, len(identities))
	for i, id := range identities {
		members[i] = member(id)
	}
	if err := r.client.SAdd(ctx, r.key, members...).Err(); err != nil {
		return fmt.Errorf("executor/redis: add: %w", err)
	}
	return nil
}

// Remove revokes an executor.
func (r *Registry) Remove(ctx context.Context, identity common.Address) error {
	if err := r.client.SRem(ctx, r.key, member(identity)).Err(); err != nil {
		return fmt.Errorf("executor/redis: remove: %w", err)
	}
	return nil
}

// IsAuthorized implements executor.Registry.
func (r *Registry) IsAuthorized(ctx context.Context, identity common.Address) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key, member(identity)).Result()
	if err != nil {
		return false, fmt.Errorf("executor/redis: lookup: %w", err)
	}
	return ok, nil
}

func member(a common.Address) string {
	return "0x" + common.Bytes2Hex(a[:])
}
