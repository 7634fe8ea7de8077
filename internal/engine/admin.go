package engine

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	"go.uber.org/zap"

	"nft-auction-house/internal/fee"
	"nft-auction-house/internal/model"
)

func scheduleOf(st model.Settings) fee.Schedule {
	return fee.Schedule{NativeBps: st.NativeFeeBps, TokenBps: st.TokenFeeBps, ExternalBps: st.ExternalFeeBps}
}

func validateSettings(st model.Settings) error {
	switch {
	case st.Owner == (model.Address{}), st.Recipient == (model.Address{}):
		return model.ErrZeroAddress
	case st.MinOrderDuration < 0, st.MinAuctionIncrement < 0, st.MinBidValue < 0:
		return errorsmod.Wrap(model.ErrInvalidSettings, "negative setting")
	case st.MaxDuration <= 0, st.MaxDuration < st.MinOrderDuration:
		return errorsmod.Wrapf(model.ErrInvalidSettings, "max duration %d below min %d", st.MaxDuration, st.MinOrderDuration)
	}
	return nil
}

// adminOp applies mutate to the settings under the exclusive lock. mutate
// sees the current settings and returns the event to emit.
func (e *Engine) adminOp(ctx context.Context, op string, caller model.Address, mutate func(st *model.Settings) (model.Event, error)) error {
	e.smu.Lock()
	if caller != e.settings.Owner {
		e.smu.Unlock()
		observe(op, model.ErrUnauthorized)
		return model.ErrUnauthorized
	}
	next := e.settings
	ev, err := mutate(&next)
	if err == nil {
		e.settings = next
	}
	e.smu.Unlock()

	observe(op, err)
	if err != nil {
		return err
	}
	ev.Account = caller
	e.log.Info("settings changed", zap.String("op", op), zap.Stringer("by", caller))
	e.commit(ctx, model.Record{Events: []model.Event{ev}})
	return nil
}

func (e *Engine) Pause(ctx context.Context, caller model.Address) error {
	return e.adminOp(ctx, "pause", caller, func(st *model.Settings) (model.Event, error) {
		if st.Paused {
			return model.Event{}, model.ErrPaused
		}
		st.Paused = true
		return e.event(model.EventPaused), nil
	})
}

func (e *Engine) Unpause(ctx context.Context, caller model.Address) error {
	return e.adminOp(ctx, "unpause", caller, func(st *model.Settings) (model.Event, error) {
		if !st.Paused {
			return model.Event{}, model.ErrUnpaused
		}
		st.Paused = false
		return e.event(model.EventUnpaused), nil
	})
}

func (e *Engine) UpdateSettings(ctx context.Context, caller model.Address, req model.SettingsReq) error {
	return e.adminOp(ctx, "update_settings", caller, func(st *model.Settings) (model.Event, error) {
		st.MinOrderDuration = req.MinOrderDuration
		st.MinAuctionIncrement = req.MinAuctionIncrement
		st.MinBidValue = req.MinBidValue
		st.MaxDuration = req.MaxDuration
		if err := validateSettings(*st); err != nil {
			return model.Event{}, err
		}
		ev := e.event(model.EventSettingsUpdated)
		ev.Data = req
		return ev, nil
	})
}

func (e *Engine) SetRecipient(ctx context.Context, caller, recipient model.Address) error {
	return e.adminOp(ctx, "set_recipient", caller, func(st *model.Settings) (model.Event, error) {
		if recipient == (model.Address{}) {
			return model.Event{}, model.ErrZeroAddress
		}
		st.Recipient = recipient
		ev := e.event(model.EventRecipientUpdated)
		ev.Data = map[string]any{"recipient": recipient}
		return ev, nil
	})
}

func (e *Engine) SetFees(ctx context.Context, caller model.Address, req model.FeesReq) error {
	return e.adminOp(ctx, "set_fees", caller, func(st *model.Settings) (model.Event, error) {
		s := fee.Schedule{NativeBps: req.NativeFeeBps, TokenBps: req.TokenFeeBps, ExternalBps: req.ExternalFeeBps}
		if err := s.Validate(); err != nil {
			return model.Event{}, err
		}
		st.NativeFeeBps, st.TokenFeeBps, st.ExternalFeeBps = s.NativeBps, s.TokenBps, s.ExternalBps
		ev := e.event(model.EventFeesUpdated)
		ev.Data = s
		return ev, nil
	})
}

func (e *Engine) SetOwner(ctx context.Context, caller, owner model.Address) error {
	return e.adminOp(ctx, "set_owner", caller, func(st *model.Settings) (model.Event, error) {
		if owner == (model.Address{}) {
			return model.Event{}, model.ErrZeroAddress
		}
		prev := st.Owner
		st.Owner = owner
		ev := e.event(model.EventOwnerUpdated)
		ev.Data = map[string]any{"previous": prev, "owner": owner}
		return ev, nil
	})
}

// SetPaymentToken changes the currency of future listings. The zero address
// selects the native coin.
func (e *Engine) SetPaymentToken(ctx context.Context, caller, token model.Address) error {
	return e.adminOp(ctx, "set_payment_token", caller, func(st *model.Settings) (model.Event, error) {
		st.PaymentToken = token
		ev := e.event(model.EventPaymentToken)
		ev.Currency = token
		return ev, nil
	})
}

// Withdraw sends the marketplace's free balance in currency to the fee
// recipient. Escrowed bids and outbid balances are not free.
func (e *Engine) Withdraw(ctx context.Context, caller, currency model.Address) (model.Amount, error) {
	var amount model.Amount
	err := e.adminOp(ctx, "withdraw", caller, func(st *model.Settings) (model.Event, error) {
		if !st.Paused {
			return model.Event{}, model.ErrUnpaused
		}
		free, err := e.freeBalance(ctx, currency)
		if err != nil {
			return model.Event{}, err
		}
		if !free.IsPositive() {
			return model.Event{}, model.ErrNoFunds
		}
		if err := e.bank.Transfer(ctx, currency, e.self, st.Recipient, free); err != nil {
			return model.Event{}, err
		}
		amount = free
		ev := e.event(model.EventWithdraw)
		ev.Currency, ev.Amount = currency, free
		ev.Data = map[string]any{"recipient": st.Recipient}
		return ev, nil
	})
	if err != nil {
		return model.ZeroAmount(), err
	}
	return amount, nil
}

func (e *Engine) freeBalance(ctx context.Context, currency model.Address) (model.Amount, error) {
	bal, err := e.bank.BalanceOf(ctx, currency, e.self)
	if err != nil {
		return model.ZeroAmount(), err
	}
	return bal.Sub(e.outbid.Total(currency)).Sub(e.book.ActiveBidTotal(currency)), nil
}
