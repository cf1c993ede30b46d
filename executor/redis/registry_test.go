package redis_test

import (
	"context"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/pullpay/executor/redis"
)

// newRegistry connects to PULLPAY_REDIS_ADDR and isolates the test under its
// own key.
func newRegistry(t *testing.T) *redis.Registry {
	t.Helper()

	addr := os.Getenv("PULLPAY_REDIS_ADDR")
	if addr == "" {
		t.Skip("PULLPAY_REDIS_ADDR not set")
	}

	client := goredis.NewClient(&goredis.Options{Addr: addr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	key := "pullpay:test:" + t.Name()
	t.Cleanup(func() {
		client.Del(context.Background(), key)
		_ = client.Close()
	})

	return redis.New(client, redis.WithKey(key))
}

func TestRegistry(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()

	alice := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob := common.HexToAddress("0x00000000000000000000000000000000000000b2")

	if err := reg.Add(ctx, alice, bob); err != nil {
		t.Fatalf("Add: %v", err)
	}

	for _, addr := range []common.Address{alice, bob} {
		ok, err := reg.IsAuthorized(ctx, addr)
		if err != nil {
			t.Fatalf("IsAuthorized(%s): %v", addr.Hex(), err)
		}
		if !ok {
			t.Errorf("%s should be authorized", addr.Hex())
		}
	}

	if err := reg.Remove(ctx, bob); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	ok, err := reg.IsAuthorized(ctx, bob)
	if err != nil {
		t.Fatalf("IsAuthorized: %v", err)
	}
	if ok {
		t.Error("removed executor is still authorized")
	}
}

func TestRegistry_AddNothing(t *testing.T) {
	reg := newRegistry(t)
	if err := reg.Add(context.Background()); err != nil {
		t.Fatalf("Add with no identities: %v", err)
	}
}
