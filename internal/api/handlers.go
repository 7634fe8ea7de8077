package api

import (
	"net/http"

	"nft-auction-house/internal/model"
)

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	json200(w, s.engine.Settings())
}

// ── Listings ─────────────────────────────────────────

func (s *Server) listFixed(w http.ResponseWriter, r *http.Request) {
	var req model.FixedPriceReq
	if !decode(w, r, &req) {
		return
	}
	id, err := s.engine.FixedPrice(r.Context(), callerOf(r), req)
	s.listed(w, r, id, err)
}

func (s *Server) listDutch(w http.ResponseWriter, r *http.Request) {
	var req model.DutchAuctionReq
	if !decode(w, r, &req) {
		return
	}
	id, err := s.engine.DutchAuction(r.Context(), callerOf(r), req)
	s.listed(w, r, id, err)
}

func (s *Server) listEnglish(w http.ResponseWriter, r *http.Request) {
	var req model.EnglishAuctionReq
	if !decode(w, r, &req) {
		return
	}
	id, err := s.engine.EnglishAuction(r.Context(), callerOf(r), req)
	s.listed(w, r, id, err)
}

func (s *Server) listed(w http.ResponseWriter, r *http.Request, id model.OrderID, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	json201(w, map[string]model.OrderID{"order_id": id})
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	v := s.engine.OrderInfo(id)
	if v.Status == model.StatusUnknown {
		jsonErr(w, 404, "order not found")
		return
	}
	json200(w, v)
}

func (s *Server) getPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	price, err := s.engine.CurrentPrice(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	json200(w, map[string]any{
		"price":     price,
		"formatted": model.FormatUnits(price, model.NativeDecimals),
	})
}

// ── Trading ──────────────────────────────────────────

func (s *Server) bid(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var req model.PaymentReq
	if !decode(w, r, &req) {
		return
	}
	if req.Amount.IsNil() {
		jsonErr(w, 400, "amount required")
		return
	}
	if err := s.engine.Bid(r.Context(), callerOf(r), id, req.Amount); err != nil {
		s.fail(w, r, err)
		return
	}
	json200(w, s.engine.OrderInfo(id))
}

func (s *Server) buy(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var req model.PaymentReq
	if !decode(w, r, &req) {
		return
	}
	if req.Amount.IsNil() {
		jsonErr(w, 400, "amount required")
		return
	}
	split, err := s.engine.Buy(r.Context(), callerOf(r), id, req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	json200(w, split)
}

func (s *Server) claim(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	split, err := s.engine.Claim(r.Context(), callerOf(r), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	json200(w, split)
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	if err := s.engine.CancelOrder(r.Context(), callerOf(r), id); err != nil {
		s.fail(w, r, err)
		return
	}
	json200(w, map[string]string{"status": string(model.StatusCanceled)})
}

// ── Indices ──────────────────────────────────────────

func (s *Server) ordersByToken(w http.ResponseWriter, r *http.Request) {
	token, ok := addressParam(w, r, "token")
	if !ok {
		return
	}
	tokenID, ok := tokenIDParam(w, r)
	if !ok {
		return
	}
	n := s.engine.TokenOrderLength(token, tokenID)
	ids := make([]model.OrderID, 0, n)
	for i := 0; i < n; i++ {
		if id, ok := s.engine.OrderIDByToken(token, tokenID, i); ok {
			ids = append(ids, id)
		}
	}
	json200(w, map[string]any{"length": len(ids), "order_ids": ids})
}

func (s *Server) ordersBySeller(w http.ResponseWriter, r *http.Request) {
	seller, ok := addressParam(w, r, "seller")
	if !ok {
		return
	}
	n := s.engine.SellerOrderLength(seller)
	ids := make([]model.OrderID, 0, n)
	for i := 0; i < n; i++ {
		if id, ok := s.engine.OrderIDBySeller(seller, i); ok {
			ids = append(ids, id)
		}
	}
	json200(w, map[string]any{"length": len(ids), "order_ids": ids})
}

// ── Funds ────────────────────────────────────────────

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	currency, ok := currencyQuery(w, r)
	if !ok {
		return
	}
	bal, err := s.ledger.BalanceOf(r.Context(), currency, callerOf(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	json200(w, amountBody(currency, bal))
}

func (s *Server) getOutbid(w http.ResponseWriter, r *http.Request) {
	currency, ok := currencyQuery(w, r)
	if !ok {
		return
	}
	json200(w, amountBody(currency, s.engine.OutbidBalance(callerOf(r), currency)))
}

type currencyReq struct {
	Currency model.Address `json:"currency"`
}

func (s *Server) withdrawOutbid(w http.ResponseWriter, r *http.Request) {
	var req currencyReq
	if !decode(w, r, &req) {
		return
	}
	amt, err := s.engine.WithdrawOutbid(r.Context(), callerOf(r), req.Currency)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	json200(w, amountBody(req.Currency, amt))
}

func amountBody(currency model.Address, amt model.Amount) map[string]any {
	return map[string]any{
		"currency":  currency,
		"amount":    amt,
		"formatted": model.FormatUnits(amt, model.NativeDecimals),
	}
}

// ── Assets ───────────────────────────────────────────

func (s *Server) getAsset(w http.ResponseWriter, r *http.Request) {
	token, ok := addressParam(w, r, "token")
	if !ok {
		return
	}
	tokenID, ok := tokenIDParam(w, r)
	if !ok {
		return
	}
	owner, err := s.assets.OwnerOf(r.Context(), token, tokenID)
	if err != nil {
		jsonErr(w, 404, err.Error())
		return
	}
	out := map[string]any{"token": token, "token_id": tokenID, "owner": owner}
	if c, ok := s.assets.Collection(token); ok {
		out["collection"] = c
	}
	json200(w, out)
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token   model.Address `json:"token"`
		TokenID uint64        `json:"token_id"`
		Spender model.Address `json:"spender"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Spender == (model.Address{}) {
		req.Spender = s.engine.Self()
	}
	if err := s.assets.Approve(req.Token, req.TokenID, callerOf(r), req.Spender); err != nil {
		s.fail(w, r, err)
		return
	}
	json200(w, map[string]any{"token": req.Token, "token_id": req.TokenID, "spender": req.Spender})
}

func (s *Server) setOperator(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Operator model.Address `json:"operator"`
		Approved bool          `json:"approved"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Operator == (model.Address{}) {
		req.Operator = s.engine.Self()
	}
	s.assets.SetApprovalForAll(callerOf(r), req.Operator, req.Approved)
	json200(w, map[string]any{"operator": req.Operator, "approved": req.Approved})
}

// ── Splitters ────────────────────────────────────────

func (s *Server) createSplitter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Payees []model.Address `json:"payees"`
		Shares []uint64        `json:"shares"`
	}
	if !decode(w, r, &req) {
		return
	}
	sp, err := s.splitters.Create(req.Payees, req.Shares)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	json201(w, map[string]any{"address": sp.Address(), "total_shares": sp.TotalShares()})
}

type payeeView struct {
	Payee      model.Address `json:"payee"`
	Shares     uint64        `json:"shares"`
	Released   model.Amount  `json:"released"`
	Releasable model.Amount  `json:"releasable"`
}

func (s *Server) getSplitter(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r, "addr")
	if !ok {
		return
	}
	currency, ok := currencyQuery(w, r)
	if !ok {
		return
	}
	sp, found := s.splitters.Get(addr)
	if !found {
		jsonErr(w, 404, "splitter not found")
		return
	}
	payees := sp.Payees()
	views := make([]payeeView, len(payees))
	for i, p := range payees {
		due, err := sp.Releasable(r.Context(), currency, p)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		views[i] = payeeView{Payee: p, Shares: sp.Shares(p), Released: sp.Released(currency, p), Releasable: due}
	}
	json200(w, map[string]any{
		"address":        sp.Address(),
		"currency":       currency,
		"total_shares":   sp.TotalShares(),
		"total_released": sp.TotalReleased(currency),
		"payees":         views,
	})
}

func (s *Server) release(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r, "addr")
	if !ok {
		return
	}
	var req struct {
		Currency model.Address `json:"currency"`
		Payee    model.Address `json:"payee"`
	}
	if !decode(w, r, &req) {
		return
	}
	sp, found := s.splitters.Get(addr)
	if !found {
		jsonErr(w, 404, "splitter not found")
		return
	}
	if req.Payee == (model.Address{}) {
		req.Payee = callerOf(r)
	}
	amt, err := sp.Release(r.Context(), req.Currency, req.Payee)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	json200(w, amountBody(req.Currency, amt))
}

func (s *Server) releaseAll(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r, "addr")
	if !ok {
		return
	}
	var req currencyReq
	if !decode(w, r, &req) {
		return
	}
	sp, found := s.splitters.Get(addr)
	if !found {
		jsonErr(w, 404, "splitter not found")
		return
	}
	payouts, err := sp.ReleaseAll(r.Context(), req.Currency)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	json200(w, map[string]any{"currency": req.Currency, "payouts": payouts})
}
