// Package fee computes how a sale price is divided between the platform, the
// royalty recipient and the seller.
package fee

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"nft-auction-house/internal/model"
)

const (
	Denominator = 10_000
	// MaxFeeBps bounds every rate in a Schedule. The owner cannot raise it.
	MaxFeeBps = 1_500
)

// Schedule holds the platform rates in basis points. NativeBps and TokenBps
// apply to royalty-aware assets depending on the sale currency; ExternalBps is
// the flat rate for assets without royalty introspection.
type Schedule struct {
	NativeBps   uint32 `json:"native_bps"`
	TokenBps    uint32 `json:"token_bps"`
	ExternalBps uint32 `json:"external_bps"`
}

func DefaultSchedule() Schedule {
	return Schedule{NativeBps: 1000, TokenBps: 1000, ExternalBps: 250}
}

func (s Schedule) Validate() error {
	for _, v := range []uint32{s.NativeBps, s.TokenBps, s.ExternalBps} {
		if v > MaxFeeBps {
			return errorsmod.Wrapf(model.ErrFeeCap, "%d bps exceeds %d", v, MaxFeeBps)
		}
	}
	return nil
}

// ── Asset capability ─────────────────────────────────

type Kind uint8

const (
	Plain Kind = iota
	RoyaltyAware
)

func (k Kind) String() string {
	if k == RoyaltyAware {
		return "royalty-aware"
	}
	return "plain"
}

// RoyaltyInspector answers royalty introspection for a collection.
type RoyaltyInspector interface {
	SupportsRoyalty(ctx context.Context, token model.Address) (bool, error)
	RoyaltyInfo(ctx context.Context, token model.Address, tokenID uint64, price model.Amount) (model.Address, model.Amount, error)
}

// Asset is a listed token with its royalty capability resolved.
type Asset struct {
	Kind    Kind
	Token   model.Address
	TokenID uint64
}

// Resolve asks the inspector once whether token supports royalties.
func Resolve(ctx context.Context, ri RoyaltyInspector, token model.Address, tokenID uint64) (Asset, error) {
	a := Asset{Kind: Plain, Token: token, TokenID: tokenID}
	if ri == nil {
		return a, nil
	}
	ok, err := ri.SupportsRoyalty(ctx, token)
	if err != nil {
		return a, err
	}
	if ok {
		a.Kind = RoyaltyAware
	}
	return a, nil
}

// ── Split ────────────────────────────────────────────

// Split is the division of one sale. Fee + Royalty + Seller == Price.
type Split struct {
	Price            model.Amount  `json:"price"`
	Fee              model.Amount  `json:"fee"`
	Royalty          model.Amount  `json:"royalty"`
	RoyaltyRecipient model.Address `json:"royalty_recipient"`
	Seller           model.Amount  `json:"seller"`
}

// Compute splits price for asset. Every division floors; the remainder stays
// with the seller. A royalty larger than what is left after the platform fee
// is cut down to that remainder.
func (s Schedule) Compute(ctx context.Context, ri RoyaltyInspector, asset Asset, currency model.Address, price model.Amount) (Split, error) {
	if price.IsNil() || price.IsNegative() {
		return Split{}, errorsmod.Wrap(model.ErrWrongPrice, "negative sale price")
	}
	out := Split{Price: price, Royalty: model.ZeroAmount()}

	if asset.Kind == Plain {
		out.Fee = bps(price, s.ExternalBps)
		out.Seller = price.Sub(out.Fee)
		return out, nil
	}

	rate := s.NativeBps
	if currency != model.Native {
		rate = s.TokenBps
	}
	out.Fee = bps(price, rate)
	left := price.Sub(out.Fee)

	to, royalty, err := ri.RoyaltyInfo(ctx, asset.Token, asset.TokenID, price)
	if err != nil {
		return Split{}, err
	}
	royalty = model.OrZero(royalty)
	if royalty.IsNegative() || to == (model.Address{}) {
		royalty = model.ZeroAmount()
	}
	if royalty.GT(left) {
		royalty = left
	}
	out.Royalty = royalty
	out.RoyaltyRecipient = to
	out.Seller = left.Sub(royalty)
	return out, nil
}

// Transfers renders the split as ledger legs paid out of from.
func (sp Split) Transfers(from, seller, recipient model.Address) []model.Transfer {
	legs := []model.Transfer{
		{From: from, To: recipient, Amount: sp.Fee},
		{From: from, To: seller, Amount: sp.Seller},
	}
	if sp.Royalty.IsPositive() {
		legs = append(legs, model.Transfer{From: from, To: sp.RoyaltyRecipient, Amount: sp.Royalty})
	}
	return legs
}

func bps(v model.Amount, rate uint32) model.Amount {
	return v.Mul(sdkmath.NewIntFromUint64(uint64(rate))).Quo(sdkmath.NewInt(Denominator))
}
