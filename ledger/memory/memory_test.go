package memory_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/pullpay/ledger"
	"github.com/xraph/pullpay/ledger/memory"
)

var (
	payer    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	treasury = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

func TestTransfer(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		balance   int64
		allowance int64
		amount    int64
		want      error
	}{
		{"within balance and allowance", 100, 100, 40, nil},
		{"exceeds allowance", 100, 10, 40, ledger.ErrNotAuthorized},
		{"exceeds balance", 10, 100, 40, ledger.ErrInsufficientFunds},
		{"zero amount", 0, 0, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := memory.New()
			l.Mint(payer, big.NewInt(tt.balance))
			l.Approve(payer, big.NewInt(tt.allowance))

			err := l.Transfer(ctx, payer, treasury, big.NewInt(tt.amount))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}

			wantTreasury := int64(0)
			if tt.want == nil {
				wantTreasury = tt.amount
			}
			if got := l.BalanceOf(treasury); got.Cmp(big.NewInt(wantTreasury)) != 0 {
				t.Errorf("treasury balance = %s, want %d", got, wantTreasury)
			}
			if got := l.BalanceOf(payer); got.Cmp(big.NewInt(tt.balance-wantTreasury)) != 0 {
				t.Errorf("payer balance = %s, want %d", got, tt.balance-wantTreasury)
			}
		})
	}
}

func TestTransferDrawsDownAllowance(t *testing.T) {
	l := memory.New()
	l.Mint(payer, big.NewInt(1000))
	l.Approve(payer, big.NewInt(100))

	for i := 0; i < 2; i++ {
		if err := l.Transfer(context.Background(), payer, treasury, big.NewInt(40)); err != nil {
			t.Fatalf("transfer %d: %v", i, err)
		}
	}
	if got := l.Allowance(payer); got.Cmp(big.NewInt(20)) != 0 {
		t.Errorf("allowance = %s, want 20", got)
	}
	if err := l.Transfer(context.Background(), payer, treasury, big.NewInt(40)); !errors.Is(err, ledger.ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized, got %v", err)
	}
}
