package executor_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/pullpay/executor"
)

func TestSet(t *testing.T) {
	ctx := context.Background()
	a := common.HexToAddress("0x00000000000000000000000000000000000000e1")
	b := common.HexToAddress("0x00000000000000000000000000000000000000e2")

	s := executor.NewSet(a)

	tests := []struct {
		name     string
		identity common.Address
		want     bool
	}{
		{"registered executor", a, true},
		{"unknown identity", b, false},
		{"zero address", common.Address{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.IsAuthorized(ctx, tt.identity)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsAuthorized(%s) = %v, want %v", tt.identity.Hex(), got, tt.want)
			}
		})
	}

	s.Add(b)
	s.Remove(a)
	if ok, _ := s.IsAuthorized(ctx, a); ok {
		t.Error("removed executor still authorized")
	}
	if ok, _ := s.IsAuthorized(ctx, b); !ok {
		t.Error("added executor not authorized")
	}
}
