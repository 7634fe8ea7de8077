package custody

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"nft-auction-house/internal/model"
)

var (
	coll    = model.Address{0xc1}
	creator = model.Address{0xcc}
	owner   = model.Address{0x01}
	other   = model.Address{0x02}
	market  = model.Address{0xee}
)

func TestTransferInRequiresOwnerAndApproval(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	require.NoError(t, r.Mint(coll, 1, owner))

	require.ErrorIs(t, r.TransferIn(ctx, coll, 1, other, market), model.ErrWrongFrom)
	require.ErrorIs(t, r.TransferIn(ctx, coll, 1, owner, market), model.ErrNotAuthorized)

	require.NoError(t, r.Approve(coll, 1, owner, market))
	require.NoError(t, r.TransferIn(ctx, coll, 1, owner, market))

	got, err := r.OwnerOf(ctx, coll, 1)
	require.NoError(t, err)
	require.Equal(t, market, got)

	require.NoError(t, r.TransferOut(ctx, coll, 1, market, other))
	got, _ = r.OwnerOf(ctx, coll, 1)
	require.Equal(t, other, got)

	// approval does not survive a transfer
	ok, err := r.IsApproved(ctx, coll, 1, market)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOperatorApproval(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	require.NoError(t, r.Mint(coll, 7, owner))

	r.SetApprovalForAll(owner, market, true)
	ok, err := r.IsApproved(ctx, coll, 7, market)
	require.NoError(t, err)
	require.True(t, ok)

	r.SetApprovalForAll(owner, market, false)
	ok, _ = r.IsApproved(ctx, coll, 7, market)
	require.False(t, ok)
}

func TestDoubleMint(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Mint(coll, 1, owner))
	require.Error(t, r.Mint(coll, 1, other))
	require.ErrorIs(t, r.Mint(coll, 2, model.Address{}), model.ErrZeroAddress)
}

func TestRoyaltyAndCreator(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)

	ok, _ := r.SupportsRoyalty(ctx, coll)
	require.False(t, ok)

	_, err := r.RegisterCollection(coll, creator, &Royalty{Recipient: creator, Bps: 750})
	require.NoError(t, err)

	ok, _ = r.SupportsRoyalty(ctx, coll)
	require.True(t, ok)

	to, amt, err := r.RoyaltyInfo(ctx, coll, 1, model.NewAmount(1_000_000))
	require.NoError(t, err)
	require.Equal(t, creator, to)
	require.Equal(t, int64(75_000), amt.Int64())

	isCreator, who, err := r.CreatorCheck(ctx, coll, creator)
	require.NoError(t, err)
	require.True(t, isCreator)
	require.Equal(t, creator, who)

	isCreator, _, _ = r.CreatorCheck(ctx, coll, other)
	require.False(t, isCreator)

	_, err = r.RegisterCollection(coll, creator, &Royalty{Recipient: creator, Bps: 10_001})
	require.ErrorIs(t, err, model.ErrWrongPrice)
}
