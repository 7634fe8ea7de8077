// Package custody is an in-process stand-in for ERC-721 collections: token
// ownership, per-token and operator approvals, optional ERC-2981 royalty
// configuration, and the creator registry the factory would otherwise
// provide.
package custody

import (
	"context"
	"sync"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"go.uber.org/zap"

	"nft-auction-house/internal/model"
)

const bpsDenominator = 10_000

type tokenKey struct {
	token model.Address
	id    uint64
}

// Royalty is a collection-wide ERC-2981 configuration.
type Royalty struct {
	Recipient model.Address `json:"recipient"`
	Bps       uint32        `json:"bps"`
}

type Collection struct {
	Token   model.Address `json:"token"`
	Creator model.Address `json:"creator"`
	Royalty *Royalty      `json:"royalty,omitempty"`
}

type Registry struct {
	mu          sync.RWMutex
	owners      map[tokenKey]model.Address
	approvals   map[tokenKey]model.Address
	operators   map[model.Address]map[model.Address]bool // owner -> operator
	collections map[model.Address]*Collection
	log         *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		owners:      make(map[tokenKey]model.Address),
		approvals:   make(map[tokenKey]model.Address),
		operators:   make(map[model.Address]map[model.Address]bool),
		collections: make(map[model.Address]*Collection),
		log:         log.Named("custody"),
	}
}

// ── Collection setup ─────────────────────────────────

// RegisterCollection records the creator and, when royalty is non-nil, makes
// the collection royalty-aware.
func (r *Registry) RegisterCollection(token, creator model.Address, royalty *Royalty) (*Collection, error) {
	if token == (model.Address{}) || creator == (model.Address{}) {
		return nil, model.ErrZeroAddress
	}
	if royalty != nil && royalty.Bps > bpsDenominator {
		return nil, errorsmod.Wrapf(model.ErrWrongPrice, "royalty %d bps", royalty.Bps)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &Collection{Token: token, Creator: creator, Royalty: royalty}
	r.collections[token] = c
	return c, nil
}

func (r *Registry) Collection(token model.Address) (*Collection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collections[token]
	return c, ok
}

// Mint assigns a fresh token id to owner.
func (r *Registry) Mint(token model.Address, id uint64, owner model.Address) error {
	if owner == (model.Address{}) {
		return model.ErrZeroAddress
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := tokenKey{token, id}
	if _, exists := r.owners[k]; exists {
		return errorsmod.Wrapf(model.ErrNotAuthorized, "token %s #%d already minted", token, id)
	}
	r.owners[k] = owner
	return nil
}

// ── Approvals ────────────────────────────────────────

func (r *Registry) Approve(token model.Address, id uint64, caller, spender model.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := tokenKey{token, id}
	owner, ok := r.owners[k]
	if !ok {
		return errorsmod.Wrapf(model.ErrWrongFrom, "token %s #%d not minted", token, id)
	}
	if owner != caller && !r.operators[owner][caller] {
		return model.ErrNotAuthorized
	}
	r.approvals[k] = spender
	return nil
}

func (r *Registry) SetApprovalForAll(owner, operator model.Address, approved bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops, ok := r.operators[owner]
	if !ok {
		ops = make(map[model.Address]bool)
		r.operators[owner] = ops
	}
	if approved {
		ops[operator] = true
	} else {
		delete(ops, operator)
	}
}

// ── Custody ──────────────────────────────────────────

func (r *Registry) OwnerOf(_ context.Context, token model.Address, id uint64) (model.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[tokenKey{token, id}]
	if !ok {
		return model.Address{}, errorsmod.Wrapf(model.ErrWrongFrom, "token %s #%d not minted", token, id)
	}
	return owner, nil
}

// IsApproved reports whether operator may move the token on behalf of its
// current owner.
func (r *Registry) IsApproved(_ context.Context, token model.Address, id uint64, operator model.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k := tokenKey{token, id}
	owner, ok := r.owners[k]
	if !ok {
		return false, errorsmod.Wrapf(model.ErrWrongFrom, "token %s #%d not minted", token, id)
	}
	return r.approvedLocked(k, owner, operator), nil
}

// TransferIn moves the token from its owner to custodian. The custodian must
// be approved by the owner.
func (r *Registry) TransferIn(_ context.Context, token model.Address, id uint64, from, custodian model.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := tokenKey{token, id}
	owner, ok := r.owners[k]
	if !ok || owner != from {
		return model.ErrWrongFrom
	}
	if !r.approvedLocked(k, owner, custodian) {
		return model.ErrNotAuthorized
	}
	r.moveLocked(k, custodian)
	return nil
}

// TransferOut releases a token held by custodian to to.
func (r *Registry) TransferOut(_ context.Context, token model.Address, id uint64, custodian, to model.Address) error {
	if to == (model.Address{}) {
		return model.ErrZeroAddress
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := tokenKey{token, id}
	if owner, ok := r.owners[k]; !ok || owner != custodian {
		return model.ErrWrongFrom
	}
	r.moveLocked(k, to)
	r.log.Debug("released", zap.Stringer("token", token), zap.Uint64("id", id), zap.Stringer("to", to))
	return nil
}

// ── Royalties / creators ─────────────────────────────

func (r *Registry) SupportsRoyalty(_ context.Context, token model.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collections[token]
	return ok && c.Royalty != nil, nil
}

func (r *Registry) RoyaltyInfo(_ context.Context, token model.Address, _ uint64, price model.Amount) (model.Address, model.Amount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collections[token]
	if !ok || c.Royalty == nil {
		return model.Address{}, model.ZeroAmount(), nil
	}
	amount := price.Mul(sdkmath.NewIntFromUint64(uint64(c.Royalty.Bps))).Quo(sdkmath.NewInt(bpsDenominator))
	return c.Royalty.Recipient, amount, nil
}

// CreatorCheck reports whether caller created the collection and who the
// creator is.
func (r *Registry) CreatorCheck(_ context.Context, token, caller model.Address) (bool, model.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collections[token]
	if !ok {
		return false, model.Address{}, nil
	}
	return c.Creator == caller, c.Creator, nil
}

func (r *Registry) approvedLocked(k tokenKey, owner, operator model.Address) bool {
	return owner == operator || r.approvals[k] == operator || r.operators[owner][operator]
}

func (r *Registry) moveLocked(k tokenKey, to model.Address) {
	r.owners[k] = to
	delete(r.approvals, k)
}
