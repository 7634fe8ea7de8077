package engine

import (
	"context"
	"errors"

	errorsmod "cosmossdk.io/errors"
	"go.uber.org/zap"

	"nft-auction-house/internal/fee"
	"nft-auction-house/internal/model"
)

// exec runs fn on the sequencer of token, counts the outcome and commits the
// record of a successful operation.
func exec[T any](ctx context.Context, e *Engine, op string, token model.Address, fn func() (model.Record, T, error)) (T, error) {
	return submit(ctx, e, token, func(e *Engine) (T, error) {
		rec, v, err := fn()
		observe(op, err)
		if err != nil {
			var zero T
			return zero, err
		}
		e.commit(ctx, rec)
		return v, nil
	})
}

// route finds the sequencer for an order id. Closed and unknown ids fail here
// without touching a sequencer since those states are terminal.
func (e *Engine) route(id model.OrderID) (model.Address, error) {
	v := e.book.Get(id)
	if err := checkActive(v); err != nil {
		return model.Address{}, err
	}
	return v.Order.Token, nil
}

func (e *Engine) checkNotPaused() error {
	if e.Settings().Paused {
		return model.ErrPaused
	}
	return nil
}

func checkActive(v model.OrderView) error {
	switch v.Status {
	case model.StatusActive:
		return nil
	case model.StatusSold:
		return model.ErrSoldToken
	case model.StatusCanceled:
		return model.ErrCanceledOrder
	default:
		return errorsmod.Wrapf(model.ErrUnknownOrder, "order %s", v.ID.Hex())
	}
}

// priceAt is the asking price of o at unix time now. Dutch prices fall by one
// tick per second, counting the listing second, and never go below EndPrice.
func priceAt(o model.Order, now int64) model.Amount {
	switch o.OrderType {
	case model.Dutch:
		span := o.EndTime - o.StartTime
		if span <= 0 {
			return o.EndPrice
		}
		tick := o.StartPrice.Sub(o.EndPrice).QuoRaw(span)
		elapsed := now - o.StartTime + 1
		if elapsed < 0 {
			elapsed = 0
		}
		p := o.StartPrice.Sub(tick.MulRaw(elapsed))
		return model.MaxAmount(p, o.EndPrice)
	case model.English:
		return model.MaxAmount(o.LastBidPrice, o.StartPrice)
	default:
		return o.StartPrice
	}
}

// ── Listing ──────────────────────────────────────────

type listing struct {
	typ        model.OrderType
	token      model.Address
	tokenID    uint64
	startPrice model.Amount
	endPrice   model.Amount
	endTime    int64
}

func (e *Engine) FixedPrice(ctx context.Context, caller model.Address, req model.FixedPriceReq) (model.OrderID, error) {
	return e.list(ctx, caller, listing{
		typ: model.FixedPrice, token: req.Token, tokenID: req.TokenID,
		startPrice: req.Price, endTime: req.EndTime,
	})
}

func (e *Engine) DutchAuction(ctx context.Context, caller model.Address, req model.DutchAuctionReq) (model.OrderID, error) {
	return e.list(ctx, caller, listing{
		typ: model.Dutch, token: req.Token, tokenID: req.TokenID,
		startPrice: req.StartPrice, endPrice: req.EndPrice, endTime: req.EndTime,
	})
}

func (e *Engine) EnglishAuction(ctx context.Context, caller model.Address, req model.EnglishAuctionReq) (model.OrderID, error) {
	return e.list(ctx, caller, listing{
		typ: model.English, token: req.Token, tokenID: req.TokenID,
		startPrice: req.StartPrice, endTime: req.EndTime,
	})
}

func (e *Engine) list(ctx context.Context, caller model.Address, l listing) (model.OrderID, error) {
	return exec(ctx, e, "list", l.token, func() (model.Record, model.OrderID, error) {
		return e.doList(ctx, caller, l)
	})
}

func (e *Engine) doList(ctx context.Context, caller model.Address, l listing) (model.Record, model.OrderID, error) {
	e.smu.RLock()
	defer e.smu.RUnlock()
	st := e.settings
	var none model.OrderID

	if st.Paused {
		return model.Record{}, none, model.ErrPaused
	}
	now := e.now()
	if d := l.endTime - now; d < st.MinOrderDuration || d > st.MaxDuration {
		return model.Record{}, none, errorsmod.Wrapf(model.ErrNeedMoreTime,
			"duration %d outside [%d, %d]", d, st.MinOrderDuration, st.MaxDuration)
	}
	start, end := model.OrZero(l.startPrice), model.OrZero(l.endPrice)
	if !start.IsPositive() || end.IsNegative() {
		return model.Record{}, none, model.ErrWrongPrice
	}
	if l.typ != model.Dutch {
		end = model.ZeroAmount()
	} else if end.GT(start) {
		return model.Record{}, none, model.ErrExceedsMaxEP
	}

	owner, err := e.custody.OwnerOf(ctx, l.token, l.tokenID)
	if err != nil {
		return model.Record{}, none, err
	}
	ok, err := e.custody.IsApproved(ctx, l.token, l.tokenID, caller)
	if err != nil {
		return model.Record{}, none, err
	}
	if !ok {
		return model.Record{}, none, errorsmod.Wrapf(model.ErrWrongFrom, "%s may not list %s #%d", caller, l.token, l.tokenID)
	}
	if err := e.custody.TransferIn(ctx, l.token, l.tokenID, owner, e.self); err != nil {
		return model.Record{}, none, err
	}

	id := deriveOrderID(e.nonce.Add(1), l.token, l.tokenID, owner)
	o := model.Order{
		OrderType:    l.typ,
		Seller:       owner,
		Token:        l.token,
		TokenID:      l.tokenID,
		Currency:     st.PaymentToken,
		StartPrice:   start,
		EndPrice:     end,
		StartTime:    now,
		EndTime:      l.endTime,
		LastBidPrice: model.ZeroAmount(),
	}
	if !e.book.Add(id, o) {
		if rerr := e.custody.TransferOut(ctx, l.token, l.tokenID, e.self, owner); rerr != nil {
			e.log.Error("returning asset failed", zap.Error(rerr))
		}
		return model.Record{}, none, errors.New("order id collision")
	}
	activeOrdersGauge.Inc()

	ev := e.event(model.EventMakeOrder)
	ev.Token, ev.TokenID, ev.OrderID, ev.Seller = l.token, l.tokenID, id, owner
	ev.Currency, ev.Amount = o.Currency, start

	e.log.Info("order listed",
		zap.Stringer("order", id),
		zap.Stringer("type", l.typ),
		zap.Stringer("token", l.token),
		zap.Uint64("token_id", l.tokenID),
		zap.String("price", model.FormatUnits(start, model.NativeDecimals)))

	view := e.book.Get(id)
	return model.Record{Order: &view, Events: []model.Event{ev}}, id, nil
}

// ── Bid ──────────────────────────────────────────────

// Bid raises an English auction. The superseded bid is credited to its
// bidder's outbid balance rather than sent back.
func (e *Engine) Bid(ctx context.Context, bidder model.Address, id model.OrderID, amount model.Amount) error {
	if err := e.checkNotPaused(); err != nil {
		return err
	}
	token, err := e.route(id)
	if err != nil {
		return err
	}
	_, err = exec(ctx, e, "bid", token, func() (model.Record, struct{}, error) {
		rec, err := e.doBid(ctx, bidder, id, model.OrZero(amount))
		return rec, struct{}{}, err
	})
	return err
}

func (e *Engine) doBid(ctx context.Context, bidder model.Address, id model.OrderID, amount model.Amount) (model.Record, error) {
	e.smu.RLock()
	defer e.smu.RUnlock()
	st := e.settings

	if st.Paused {
		return model.Record{}, model.ErrPaused
	}
	v := e.book.Get(id)
	if err := checkActive(v); err != nil {
		return model.Record{}, err
	}
	o := v.Order
	if o.OrderType != model.English {
		return model.Record{}, model.ErrEAOnly
	}
	now := e.now()
	if now > o.EndTime {
		return model.Record{}, model.ErrTimeout
	}
	if bidder == o.Seller {
		return model.Record{}, model.ErrInvalidBidder
	}
	base := model.MaxAmount(o.LastBidPrice, o.StartPrice)
	floor := base.Add(base.MulRaw(st.MinBidValue).QuoRaw(100))
	if !amount.GT(floor) {
		return model.Record{}, errorsmod.Wrapf(model.ErrWrongPrice, "bid %s must exceed %s", amount, floor)
	}
	if err := e.bank.Transfer(ctx, o.Currency, bidder, e.self, amount); err != nil {
		return model.Record{}, err
	}

	rec := model.Record{}
	if o.HasBid() {
		e.outbid.Credit(o.LastBidder, o.Currency, o.LastBidPrice)
		ev := e.event(model.EventUserOutbid)
		ev.Token, ev.TokenID, ev.OrderID, ev.Seller = o.Token, o.TokenID, id, o.Seller
		ev.Account, ev.Currency, ev.Amount = o.LastBidder, o.Currency, o.LastBidPrice
		rec.Events = append(rec.Events, ev)
		rec.Outbid = append(rec.Outbid, e.outbidEntry(o.LastBidder, o.Currency))
	}

	o.LastBidder, o.LastBidPrice = bidder, amount
	if o.EndTime-now < st.MinAuctionIncrement {
		o.EndTime += st.MinAuctionIncrement
	}
	e.book.Update(id, o)

	ev := e.event(model.EventBid)
	ev.Token, ev.TokenID, ev.OrderID, ev.Seller = o.Token, o.TokenID, id, o.Seller
	ev.Account, ev.Currency, ev.Amount = bidder, o.Currency, amount
	rec.Events = append(rec.Events, ev)

	view := e.book.Get(id)
	rec.Order = &view
	e.log.Info("bid placed",
		zap.Stringer("order", id),
		zap.Stringer("bidder", bidder),
		zap.String("amount", model.FormatUnits(amount, model.NativeDecimals)),
		zap.Int64("end_time", o.EndTime))
	return rec, nil
}

// ── Buy / Claim ──────────────────────────────────────

// Buy settles a fixed-price or Dutch order at amount, which must cover the
// current price.
func (e *Engine) Buy(ctx context.Context, buyer model.Address, id model.OrderID, amount model.Amount) (fee.Split, error) {
	if err := e.checkNotPaused(); err != nil {
		return fee.Split{}, err
	}
	token, err := e.route(id)
	if err != nil {
		return fee.Split{}, err
	}
	return exec(ctx, e, "buy", token, func() (model.Record, fee.Split, error) {
		return e.doBuy(ctx, buyer, id, model.OrZero(amount))
	})
}

func (e *Engine) doBuy(ctx context.Context, buyer model.Address, id model.OrderID, amount model.Amount) (model.Record, fee.Split, error) {
	e.smu.RLock()
	defer e.smu.RUnlock()
	st := e.settings

	if st.Paused {
		return model.Record{}, fee.Split{}, model.ErrPaused
	}
	v := e.book.Get(id)
	if err := checkActive(v); err != nil {
		return model.Record{}, fee.Split{}, err
	}
	o := v.Order
	if o.OrderType == model.English {
		return model.Record{}, fee.Split{}, model.ErrNotBuyable
	}
	now := e.now()
	if now > o.EndTime {
		return model.Record{}, fee.Split{}, model.ErrTimeout
	}
	if price := priceAt(o, now); amount.LT(price) {
		return model.Record{}, fee.Split{}, errorsmod.Wrapf(model.ErrWrongPrice, "paid %s, price is %s", amount, price)
	}

	split, err := e.settle(ctx, st, id, o, buyer, buyer, amount)
	if err != nil {
		return model.Record{}, fee.Split{}, err
	}
	return e.saleRecord(id, o, buyer, split), split, nil
}

// Claim settles an expired English auction to its highest bidder. The seller,
// the highest bidder or the collection's creator may call it.
func (e *Engine) Claim(ctx context.Context, caller model.Address, id model.OrderID) (fee.Split, error) {
	if err := e.checkNotPaused(); err != nil {
		return fee.Split{}, err
	}
	token, err := e.route(id)
	if err != nil {
		return fee.Split{}, err
	}
	return exec(ctx, e, "claim", token, func() (model.Record, fee.Split, error) {
		return e.doClaim(ctx, caller, id)
	})
}

func (e *Engine) doClaim(ctx context.Context, caller model.Address, id model.OrderID) (model.Record, fee.Split, error) {
	e.smu.RLock()
	defer e.smu.RUnlock()
	st := e.settings

	if st.Paused {
		return model.Record{}, fee.Split{}, model.ErrPaused
	}
	v := e.book.Get(id)
	if err := checkActive(v); err != nil {
		return model.Record{}, fee.Split{}, err
	}
	o := v.Order
	if o.OrderType != model.English {
		return model.Record{}, fee.Split{}, model.ErrEAOnly
	}
	allowed := caller == o.Seller || (o.HasBid() && caller == o.LastBidder)
	if !allowed && e.creators != nil {
		isCreator, _, err := e.creators.CreatorCheck(ctx, o.Token, caller)
		if err != nil {
			return model.Record{}, fee.Split{}, errorsmod.Wrap(model.ErrAccessDenied, err.Error())
		}
		allowed = isCreator
	}
	if !allowed {
		return model.Record{}, fee.Split{}, model.ErrAccessDenied
	}
	if e.now() <= o.EndTime {
		return model.Record{}, fee.Split{}, model.ErrNeedMoreTime
	}
	if !o.HasBid() {
		return model.Record{}, fee.Split{}, errorsmod.Wrap(model.ErrNoBids, "cancel the order to recover the asset")
	}

	split, err := e.settle(ctx, st, id, o, e.self, o.LastBidder, o.LastBidPrice)
	if err != nil {
		return model.Record{}, fee.Split{}, err
	}
	return e.saleRecord(id, o, o.LastBidder, split), split, nil
}

// settle pays the split of price out of payer's account, then releases the
// asset to buyer. If the asset cannot be released the payment is reversed.
func (e *Engine) settle(ctx context.Context, st model.Settings, id model.OrderID, o model.Order, payer, buyer model.Address, price model.Amount) (fee.Split, error) {
	asset, err := fee.Resolve(ctx, e.custody, o.Token, o.TokenID)
	if err != nil {
		return fee.Split{}, err
	}
	split, err := scheduleOf(st).Compute(ctx, e.custody, asset, o.Currency, price)
	if err != nil {
		return fee.Split{}, err
	}
	legs := split.Transfers(payer, o.Seller, st.Recipient)
	if err := e.bank.Settle(ctx, o.Currency, legs); err != nil {
		return fee.Split{}, err
	}
	if err := e.custody.TransferOut(ctx, o.Token, o.TokenID, e.self, buyer); err != nil {
		if rerr := e.bank.Settle(ctx, o.Currency, reverse(legs)); rerr != nil {
			e.log.Error("reversing payment failed", zap.Stringer("order", id), zap.Error(rerr))
		}
		return fee.Split{}, err
	}
	e.book.MarkSold(id)
	activeOrdersGauge.Dec()

	e.log.Info("order settled",
		zap.Stringer("order", id),
		zap.Stringer("kind", asset.Kind),
		zap.Stringer("buyer", buyer),
		zap.String("price", model.FormatUnits(price, model.NativeDecimals)),
		zap.String("fee", model.FormatUnits(split.Fee, model.NativeDecimals)),
		zap.String("royalty", model.FormatUnits(split.Royalty, model.NativeDecimals)))
	return split, nil
}

func reverse(legs []model.Transfer) []model.Transfer {
	out := make([]model.Transfer, len(legs))
	for i, l := range legs {
		out[i] = model.Transfer{From: l.To, To: l.From, Amount: l.Amount}
	}
	return out
}

func (e *Engine) saleRecord(id model.OrderID, o model.Order, buyer model.Address, split fee.Split) model.Record {
	ev := e.event(model.EventClaim)
	ev.Token, ev.TokenID, ev.OrderID, ev.Seller = o.Token, o.TokenID, id, o.Seller
	ev.Account, ev.Currency, ev.Amount = buyer, o.Currency, split.Price
	ev.Data = split
	view := e.book.Get(id)
	return model.Record{Order: &view, Events: []model.Event{ev}}
}

// ── Cancel ───────────────────────────────────────────

// CancelOrder returns the asset to the seller. English auctions can only be
// canceled while nobody has bid.
func (e *Engine) CancelOrder(ctx context.Context, caller model.Address, id model.OrderID) error {
	token, err := e.route(id)
	if err != nil {
		return err
	}
	_, err = exec(ctx, e, "cancel", token, func() (model.Record, struct{}, error) {
		rec, err := e.doCancel(ctx, caller, id, false)
		return rec, struct{}{}, err
	})
	return err
}

// DelOrder is the owner's override while paused: the order is closed whatever
// its state and a standing bid is credited back to its bidder.
func (e *Engine) DelOrder(ctx context.Context, caller model.Address, id model.OrderID) error {
	st := e.Settings()
	if caller != st.Owner {
		return model.ErrUnauthorized
	}
	if !st.Paused {
		return model.ErrUnpaused
	}
	token, err := e.route(id)
	if err != nil {
		return err
	}
	_, err = exec(ctx, e, "del_order", token, func() (model.Record, struct{}, error) {
		rec, err := e.doCancel(ctx, caller, id, true)
		return rec, struct{}{}, err
	})
	return err
}

func (e *Engine) doCancel(ctx context.Context, caller model.Address, id model.OrderID, override bool) (model.Record, error) {
	e.smu.RLock()
	defer e.smu.RUnlock()
	st := e.settings

	if override {
		if caller != st.Owner {
			return model.Record{}, model.ErrUnauthorized
		}
		if !st.Paused {
			return model.Record{}, model.ErrUnpaused
		}
	}
	v := e.book.Get(id)
	if err := checkActive(v); err != nil {
		return model.Record{}, err
	}
	o := v.Order
	if !override {
		if caller != o.Seller {
			return model.Record{}, model.ErrAccessDenied
		}
		if o.OrderType == model.English && o.HasBid() {
			return model.Record{}, model.ErrBidExists
		}
	}
	if err := e.custody.TransferOut(ctx, o.Token, o.TokenID, e.self, o.Seller); err != nil {
		return model.Record{}, err
	}

	rec := model.Record{}
	if o.HasBid() {
		e.outbid.Credit(o.LastBidder, o.Currency, o.LastBidPrice)
		ev := e.event(model.EventUserOutbid)
		ev.Token, ev.TokenID, ev.OrderID, ev.Seller = o.Token, o.TokenID, id, o.Seller
		ev.Account, ev.Currency, ev.Amount = o.LastBidder, o.Currency, o.LastBidPrice
		rec.Events = append(rec.Events, ev)
		rec.Outbid = append(rec.Outbid, e.outbidEntry(o.LastBidder, o.Currency))
	}
	e.book.MarkCanceled(id)
	activeOrdersGauge.Dec()

	ev := e.event(model.EventCancelOrder)
	ev.Token, ev.TokenID, ev.OrderID, ev.Seller = o.Token, o.TokenID, id, o.Seller
	ev.Account = caller
	rec.Events = append(rec.Events, ev)

	view := e.book.Get(id)
	rec.Order = &view
	e.log.Info("order canceled", zap.Stringer("order", id), zap.Bool("override", override))
	return rec, nil
}

// ── Outbid withdrawal ────────────────────────────────

// WithdrawOutbid pays out bidder's whole outbid balance in currency. A failed
// transfer leaves the balance in place.
func (e *Engine) WithdrawOutbid(ctx context.Context, bidder, currency model.Address) (model.Amount, error) {
	amt, rec, err := e.doWithdrawOutbid(ctx, bidder, currency)
	observe("withdraw_outbid", err)
	if err != nil {
		return model.ZeroAmount(), err
	}
	e.commit(ctx, rec)
	return amt, nil
}

func (e *Engine) doWithdrawOutbid(ctx context.Context, bidder, currency model.Address) (model.Amount, model.Record, error) {
	e.smu.RLock()
	defer e.smu.RUnlock()

	amt := e.outbid.Take(bidder, currency)
	if !amt.IsPositive() {
		return model.ZeroAmount(), model.Record{}, model.ErrNoFunds
	}
	if err := e.bank.Transfer(ctx, currency, e.self, bidder, amt); err != nil {
		e.outbid.Credit(bidder, currency, amt)
		e.log.Warn("outbid withdrawal failed", zap.Stringer("bidder", bidder), zap.Error(err))
		return model.ZeroAmount(), model.Record{}, err
	}

	ev := e.event(model.EventWithdrawOutbid)
	ev.Account, ev.Currency, ev.Amount = bidder, currency, amt
	return amt, model.Record{
		Events: []model.Event{ev},
		Outbid: []model.OutbidEntry{e.outbidEntry(bidder, currency)},
	}, nil
}
