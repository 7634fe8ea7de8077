// Package splitter implements pull-payment fan-out of a balance across a
// fixed set of weighted payees. Funds land on the splitter's ledger account
// from any sender; each payee withdraws its pro-rata entitlement on its own.
package splitter

import (
	"context"
	"errors"
	"sync"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"go.uber.org/zap"

	"nft-auction-house/internal/model"
)

// Bank is the fungible-transfer collaborator.
type Bank interface {
	BalanceOf(ctx context.Context, currency, who model.Address) (model.Amount, error)
	Transfer(ctx context.Context, currency, from, to model.Address, amount model.Amount) error
}

type Splitter struct {
	addr        model.Address
	payees      []model.Address
	shares      map[model.Address]uint64
	totalShares uint64
	bank        Bank
	log         *zap.Logger

	mu            sync.Mutex
	released      map[model.Address]map[model.Address]model.Amount // currency -> payee -> released
	totalReleased map[model.Address]model.Amount
}

// New validates payees and shares. Payee order is preserved.
func New(addr model.Address, payees []model.Address, shares []uint64, bank Bank, log *zap.Logger) (*Splitter, error) {
	if len(payees) == 0 {
		return nil, model.ErrNoPayees
	}
	if len(payees) != len(shares) {
		return nil, errorsmod.Wrapf(model.ErrLengthMismatch, "%d payees, %d shares", len(payees), len(shares))
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Splitter{
		addr:          addr,
		shares:        make(map[model.Address]uint64, len(payees)),
		bank:          bank,
		log:           log.Named("splitter").With(zap.Stringer("splitter", addr)),
		released:      make(map[model.Address]map[model.Address]model.Amount),
		totalReleased: make(map[model.Address]model.Amount),
	}
	for i, p := range payees {
		if p == (model.Address{}) {
			return nil, model.ErrDeadAddress
		}
		if shares[i] == 0 {
			return nil, errorsmod.Wrapf(model.ErrInvalidShare, "payee %s", p)
		}
		if _, dup := s.shares[p]; dup {
			return nil, errorsmod.Wrapf(model.ErrAlreadyPayee, "payee %s", p)
		}
		s.payees = append(s.payees, p)
		s.shares[p] = shares[i]
		s.totalShares += shares[i]
	}
	return s, nil
}

// ── Queries ──────────────────────────────────────────

func (s *Splitter) Address() model.Address { return s.addr }

func (s *Splitter) Payees() []model.Address {
	out := make([]model.Address, len(s.payees))
	copy(out, s.payees)
	return out
}

func (s *Splitter) Shares(payee model.Address) uint64 { return s.shares[payee] }

func (s *Splitter) TotalShares() uint64 { return s.totalShares }

func (s *Splitter) Released(currency, payee model.Address) model.Amount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releasedLocked(currency, payee)
}

func (s *Splitter) TotalReleased(currency model.Address) model.Amount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalReleasedLocked(currency)
}

// Releasable is what payee could withdraw right now.
func (s *Splitter) Releasable(ctx context.Context, currency, payee model.Address) (model.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owedLocked(ctx, currency, payee)
}

// ── Release ──────────────────────────────────────────

// Release pays payee its outstanding entitlement in currency. The payout is
// only recorded once the transfer went through.
func (s *Splitter) Release(ctx context.Context, currency, payee model.Address) (model.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shares[payee] == 0 {
		return model.ZeroAmount(), errorsmod.Wrapf(model.ErrNoShares, "account %s", payee)
	}
	owed, err := s.owedLocked(ctx, currency, payee)
	if err != nil {
		return model.ZeroAmount(), err
	}
	if !owed.IsPositive() {
		return model.ZeroAmount(), errorsmod.Wrapf(model.ErrDeniedAccount, "nothing due to %s", payee)
	}
	if err := s.bank.Transfer(ctx, currency, s.addr, payee, owed); err != nil {
		return model.ZeroAmount(), err
	}

	m, ok := s.released[currency]
	if !ok {
		m = make(map[model.Address]model.Amount)
		s.released[currency] = m
	}
	m[payee] = s.releasedLocked(currency, payee).Add(owed)
	s.totalReleased[currency] = s.totalReleasedLocked(currency).Add(owed)

	s.log.Info("payment released",
		zap.Stringer("payee", payee),
		zap.Stringer("currency", currency),
		zap.String("amount", owed.String()))
	return owed, nil
}

// Payout is one payee's result from ReleaseAll.
type Payout struct {
	Payee  model.Address `json:"payee"`
	Amount model.Amount  `json:"amount"`
	Error  string        `json:"error,omitempty"`
}

// ReleaseAll releases to every payee with something due. Payees are settled
// independently: a failing payee is reported and skipped.
func (s *Splitter) ReleaseAll(ctx context.Context, currency model.Address) ([]Payout, error) {
	var (
		out  []Payout
		errs []error
	)
	for _, p := range s.payees {
		amt, err := s.Release(ctx, currency, p)
		switch {
		case errors.Is(err, model.ErrDeniedAccount):
			continue
		case err != nil:
			errs = append(errs, err)
			out = append(out, Payout{Payee: p, Amount: model.ZeroAmount(), Error: err.Error()})
		default:
			out = append(out, Payout{Payee: p, Amount: amt})
		}
	}
	return out, errors.Join(errs...)
}

// ── Internals ────────────────────────────────────────

// owedLocked = floor(totalReceived * shares / totalShares) - released, where
// totalReceived is the current balance plus everything already paid out.
func (s *Splitter) owedLocked(ctx context.Context, currency, payee model.Address) (model.Amount, error) {
	share := s.shares[payee]
	if share == 0 {
		return model.ZeroAmount(), nil
	}
	bal, err := s.bank.BalanceOf(ctx, currency, s.addr)
	if err != nil {
		return model.ZeroAmount(), err
	}
	totalReceived := bal.Add(s.totalReleasedLocked(currency))
	due := totalReceived.
		Mul(sdkmath.NewIntFromUint64(share)).
		Quo(sdkmath.NewIntFromUint64(s.totalShares))
	owed := due.Sub(s.releasedLocked(currency, payee))
	if owed.IsNegative() {
		return model.ZeroAmount(), nil
	}
	return owed, nil
}

func (s *Splitter) releasedLocked(currency, payee model.Address) model.Amount {
	if v, ok := s.released[currency][payee]; ok {
		return v
	}
	return model.ZeroAmount()
}

func (s *Splitter) totalReleasedLocked(currency model.Address) model.Amount {
	if v, ok := s.totalReleased[currency]; ok {
		return v
	}
	return model.ZeroAmount()
}
