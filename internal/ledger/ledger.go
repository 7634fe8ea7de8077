// Package ledger is an in-process fungible balance book for the native coin
// and any number of ERC20-like tokens. A batch of transfers settles
// all-or-nothing.
package ledger

import (
	"context"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"go.uber.org/zap"

	"nft-auction-house/internal/model"
)

type Ledger struct {
	mu       sync.Mutex
	balances map[model.Address]map[model.Address]model.Amount // currency -> account -> balance
	frozen   map[model.Address]bool
	log      *zap.Logger
}

func New(log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{
		balances: make(map[model.Address]map[model.Address]model.Amount),
		frozen:   make(map[model.Address]bool),
		log:      log.Named("ledger"),
	}
}

// ── Queries ──────────────────────────────────────────

func (l *Ledger) BalanceOf(_ context.Context, currency, who model.Address) (model.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(currency, who), nil
}

// ── Mutations ────────────────────────────────────────

// Mint credits amount out of thin air. It backs deposits made through the
// admin surface.
func (l *Ledger) Mint(_ context.Context, currency, to model.Address, amount model.Amount) (model.Amount, error) {
	if amount.IsNil() || !amount.IsPositive() {
		return model.ZeroAmount(), errorsmod.Wrap(model.ErrWrongPrice, "mint amount must be positive")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	nb := l.balance(currency, to).Add(amount)
	l.set(currency, to, nb)
	return nb, nil
}

// Freeze makes every transfer to who fail, like a recipient contract that
// reverts on receive.
func (l *Ledger) Freeze(who model.Address, frozen bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if frozen {
		l.frozen[who] = true
	} else {
		delete(l.frozen, who)
	}
}

func (l *Ledger) Transfer(ctx context.Context, currency, from, to model.Address, amount model.Amount) error {
	return l.Settle(ctx, currency, []model.Transfer{{From: from, To: to, Amount: amount}})
}

// Settle applies every leg or none. Zero legs are skipped.
func (l *Ledger) Settle(_ context.Context, currency model.Address, legs []model.Transfer) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Net debits per sender must be covered before anything moves.
	debits := make(map[model.Address]model.Amount)
	for _, leg := range legs {
		if leg.Amount.IsNil() || leg.Amount.IsZero() {
			continue
		}
		if leg.Amount.IsNegative() {
			return errorsmod.Wrap(model.ErrTransferFailed, "negative amount")
		}
		if l.frozen[leg.To] {
			return errorsmod.Wrapf(model.ErrTransferFailed, "recipient %s rejects transfers", leg.To)
		}
		d, ok := debits[leg.From]
		if !ok {
			d = model.ZeroAmount()
		}
		debits[leg.From] = d.Add(leg.Amount)
	}
	for from, d := range debits {
		if have := l.balance(currency, from); have.LT(d) {
			return errorsmod.Wrapf(model.ErrInsufficientBalance, "%s has %s, needs %s", from, have, d)
		}
	}

	for _, leg := range legs {
		if leg.Amount.IsNil() || leg.Amount.IsZero() {
			continue
		}
		l.set(currency, leg.From, l.balance(currency, leg.From).Sub(leg.Amount))
		l.set(currency, leg.To, l.balance(currency, leg.To).Add(leg.Amount))
	}
	l.log.Debug("settled", zap.Stringer("currency", currency), zap.Int("legs", len(legs)))
	return nil
}

// ── Internals ────────────────────────────────────────

func (l *Ledger) balance(currency, who model.Address) model.Amount {
	if b, ok := l.balances[currency][who]; ok {
		return b
	}
	return model.ZeroAmount()
}

func (l *Ledger) set(currency, who model.Address, v model.Amount) {
	m, ok := l.balances[currency]
	if !ok {
		m = make(map[model.Address]model.Amount)
		l.balances[currency] = m
	}
	m[who] = v
}
