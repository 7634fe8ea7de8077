package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"nft-auction-house/internal/model"
)

var (
	alice = model.Address{0xa1}
	bob   = model.Address{0xb0}
	carol = model.Address{0xc0}
	usdc  = model.Address{0x05}
)

func TestMintAndBalance(t *testing.T) {
	ctx := context.Background()
	l := New(nil)

	nb, err := l.Mint(ctx, model.Native, alice, model.NewAmount(100))
	require.NoError(t, err)
	require.Equal(t, int64(100), nb.Int64())

	bal, _ := l.BalanceOf(ctx, model.Native, alice)
	require.Equal(t, int64(100), bal.Int64())

	// currencies are independent
	bal, _ = l.BalanceOf(ctx, usdc, alice)
	require.True(t, bal.IsZero())

	_, err = l.Mint(ctx, model.Native, alice, model.ZeroAmount())
	require.ErrorIs(t, err, model.ErrWrongPrice)
}

func TestSettleAllOrNothing(t *testing.T) {
	ctx := context.Background()
	l := New(nil)
	_, _ = l.Mint(ctx, model.Native, alice, model.NewAmount(100))

	err := l.Settle(ctx, model.Native, []model.Transfer{
		{From: alice, To: bob, Amount: model.NewAmount(60)},
		{From: alice, To: carol, Amount: model.NewAmount(50)},
	})
	require.ErrorIs(t, err, model.ErrInsufficientBalance)

	bal, _ := l.BalanceOf(ctx, model.Native, bob)
	require.True(t, bal.IsZero(), "failed batch must not move funds")

	err = l.Settle(ctx, model.Native, []model.Transfer{
		{From: alice, To: bob, Amount: model.NewAmount(60)},
		{From: alice, To: carol, Amount: model.NewAmount(40)},
		{From: alice, To: carol, Amount: model.ZeroAmount()},
	})
	require.NoError(t, err)

	a, _ := l.BalanceOf(ctx, model.Native, alice)
	b, _ := l.BalanceOf(ctx, model.Native, bob)
	c, _ := l.BalanceOf(ctx, model.Native, carol)
	require.True(t, a.IsZero())
	require.Equal(t, int64(60), b.Int64())
	require.Equal(t, int64(40), c.Int64())
}

func TestFrozenRecipient(t *testing.T) {
	ctx := context.Background()
	l := New(nil)
	_, _ = l.Mint(ctx, usdc, alice, model.NewAmount(10))

	l.Freeze(bob, true)
	err := l.Transfer(ctx, usdc, alice, bob, model.NewAmount(5))
	require.ErrorIs(t, err, model.ErrTransferFailed)

	l.Freeze(bob, false)
	require.NoError(t, l.Transfer(ctx, usdc, alice, bob, model.NewAmount(5)))
	b, _ := l.BalanceOf(ctx, usdc, bob)
	require.Equal(t, int64(5), b.Int64())
}
