package api

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"nft-auction-house/internal/custody"
	"nft-auction-house/internal/model"
)

// ── Marketplace admin ────────────────────────────────

func (s *Server) pause(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Pause(r.Context(), callerOf(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	json200(w, s.engine.Settings())
}

func (s *Server) unpause(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Unpause(r.Context(), callerOf(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	json200(w, s.engine.Settings())
}

func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req model.SettingsReq
	if !decode(w, r, &req) {
		return
	}
	if err := s.engine.UpdateSettings(r.Context(), callerOf(r), req); err != nil {
		s.fail(w, r, err)
		return
	}
	json200(w, s.engine.Settings())
}

func (s *Server) setFees(w http.ResponseWriter, r *http.Request) {
	var req model.FeesReq
	if !decode(w, r, &req) {
		return
	}
	if err := s.engine.SetFees(r.Context(), callerOf(r), req); err != nil {
		s.fail(w, r, err)
		return
	}
	json200(w, s.engine.Settings())
}

type addressReq struct {
	Address model.Address `json:"address"`
}

func (s *Server) setRecipient(w http.ResponseWriter, r *http.Request) {
	var req addressReq
	if !decode(w, r, &req) {
		return
	}
	if err := s.engine.SetRecipient(r.Context(), callerOf(r), req.Address); err != nil {
		s.fail(w, r, err)
		return
	}
	json200(w, s.engine.Settings())
}

func (s *Server) setOwner(w http.ResponseWriter, r *http.Request) {
	var req addressReq
	if !decode(w, r, &req) {
		return
	}
	if err := s.engine.SetOwner(r.Context(), callerOf(r), req.Address); err != nil {
		s.fail(w, r, err)
		return
	}
	json200(w, s.engine.Settings())
}

func (s *Server) setPaymentToken(w http.ResponseWriter, r *http.Request) {
	var req addressReq
	if !decode(w, r, &req) {
		return
	}
	if err := s.engine.SetPaymentToken(r.Context(), callerOf(r), req.Address); err != nil {
		s.fail(w, r, err)
		return
	}
	json200(w, s.engine.Settings())
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	var req currencyReq
	if !decode(w, r, &req) {
		return
	}
	amt, err := s.engine.Withdraw(r.Context(), callerOf(r), req.Currency)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	json200(w, amountBody(req.Currency, amt))
}

func (s *Server) delOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	if err := s.engine.DelOrder(r.Context(), callerOf(r), id); err != nil {
		s.fail(w, r, err)
		return
	}
	json200(w, map[string]string{"status": string(model.StatusCanceled)})
}

// ── Dev collaborators ────────────────────────────────

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Currency model.Address `json:"currency"`
		To       model.Address `json:"to"`
		Amount   model.Amount  `json:"amount"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.To == (model.Address{}) || req.Amount.IsNil() || !req.Amount.IsPositive() {
		jsonErr(w, 400, "to and amount > 0 required")
		return
	}
	bal, err := s.ledger.Mint(r.Context(), req.Currency, req.To, req.Amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	json200(w, amountBody(req.Currency, bal))
}

func (s *Server) mint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token   model.Address `json:"token"`
		TokenID uint64        `json:"token_id"`
		Owner   model.Address `json:"owner"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.assets.Mint(req.Token, req.TokenID, req.Owner); err != nil {
		s.fail(w, r, err)
		return
	}
	json201(w, map[string]any{"token": req.Token, "token_id": req.TokenID, "owner": req.Owner})
}

func (s *Server) registerCollection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token   model.Address    `json:"token"`
		Creator model.Address    `json:"creator"`
		Royalty *custody.Royalty `json:"royalty"`
	}
	if !decode(w, r, &req) {
		return
	}
	c, err := s.assets.RegisterCollection(req.Token, req.Creator, req.Royalty)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	json201(w, c)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		jsonErr(w, 503, "event log unavailable")
		return
	}
	limit := 100
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n <= 500 {
		limit = n
	}
	var token *model.Address
	if v := r.URL.Query().Get("token"); v != "" {
		if !common.IsHexAddress(v) {
			jsonErr(w, 400, "invalid token")
			return
		}
		a := common.HexToAddress(v)
		token = &a
	}
	events, err := s.events.ListEvents(r.Context(), token, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if events == nil {
		events = []model.EventLog{}
	}
	json200(w, events)
}
