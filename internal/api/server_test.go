package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"nft-auction-house/internal/custody"
	"nft-auction-house/internal/engine"
	"nft-auction-house/internal/ledger"
	"nft-auction-house/internal/model"
	"nft-auction-house/internal/splitter"
	"nft-auction-house/internal/ws"
)

var (
	owner  = model.Address{0xa0}
	seller = model.Address{0x01}
	alice  = model.Address{0x02}
	market = model.Address{0xee}
	coll   = model.Address{0xc2}
)

type memAccounts struct {
	mu   sync.Mutex
	byID map[model.Address]*model.Account
}

func (m *memAccounts) CreateAccount(_ context.Context, addr model.Address, hash string, role model.Role) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := &model.Account{Address: addr, PasswordHash: hash, Role: role, CreatedAt: time.Now()}
	m.byID[addr] = a
	return a, nil
}

func (m *memAccounts) GetAccount(_ context.Context, addr model.Address) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[addr]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

type memEvents struct{ logs []model.EventLog }

func (m *memEvents) ListEvents(_ context.Context, token *model.Address, limit int) ([]model.EventLog, error) {
	var out []model.EventLog
	for _, e := range m.logs {
		if token != nil && (e.Token == nil || *e.Token != *token) {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type testServer struct {
	srv  *httptest.Server
	bank *ledger.Ledger
	nft  *custody.Registry
}

func newTestServer(t *testing.T, events EventStore) *testServer {
	t.Helper()
	bank := ledger.New(nil)
	nft := custody.NewRegistry(nil)
	hub := ws.NewHub(nil)
	eng, err := engine.New(engine.Config{Self: market, Settings: engine.DefaultSettings(owner)}, engine.Deps{
		Custody:  nft,
		Creators: nft,
		Bank:     bank,
		Publish:  hub.Publish,
	})
	require.NoError(t, err)
	t.Cleanup(eng.Close)

	s := NewServer(Deps{
		Accounts:  &memAccounts{byID: make(map[model.Address]*model.Account)},
		Events:    events,
		Engine:    eng,
		Ledger:    bank,
		Assets:    nft,
		Splitters: splitter.NewRegistry(bank, nil),
		Hub:       hub,
	}, Options{Secret: "test-secret-at-least-32-characters!!"})
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, bank: bank, nft: nft}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	m, _ := out.(map[string]any)
	if m == nil {
		m = map[string]any{"_": out}
	}
	return resp.StatusCode, m
}

func (ts *testServer) register(t *testing.T, addr model.Address) string {
	t.Helper()
	code, body := ts.do(t, "POST", "/api/register", "", map[string]any{"address": addr, "password": "hunter22"})
	require.Equal(t, 201, code, body)
	return body["token"].(string)
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t, nil)

	adminTok := ts.register(t, owner)
	userTok := ts.register(t, alice)

	code, _ := ts.do(t, "POST", "/api/register", "", map[string]any{"address": alice, "password": "hunter22"})
	require.Equal(t, 409, code)

	code, _ = ts.do(t, "POST", "/api/login", "", map[string]any{"address": alice, "password": "wrong-pass"})
	require.Equal(t, 401, code)

	code, body := ts.do(t, "POST", "/api/login", "", map[string]any{"address": alice, "password": "hunter22"})
	require.Equal(t, 200, code)
	require.Equal(t, "USER", body["account"].(map[string]any)["role"])

	code, _ = ts.do(t, "GET", "/api/settings", "", nil)
	require.Equal(t, 401, code)
	code, _ = ts.do(t, "GET", "/api/settings", "garbage", nil)
	require.Equal(t, 401, code)

	code, _ = ts.do(t, "POST", "/api/admin/pause", userTok, nil)
	require.Equal(t, 403, code)
	code, body = ts.do(t, "POST", "/api/admin/pause", adminTok, nil)
	require.Equal(t, 200, code)
	require.Equal(t, true, body["paused"])

	code, _ = ts.do(t, "POST", "/api/admin/pause", adminTok, nil)
	require.Equal(t, 409, code)
}

func TestFixedPriceSaleOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	adminTok := ts.register(t, owner)
	sellerTok := ts.register(t, seller)
	aliceTok := ts.register(t, alice)

	code, _ := ts.do(t, "POST", "/api/admin/collections", adminTok, map[string]any{"token": coll, "creator": owner})
	require.Equal(t, 201, code)
	code, _ = ts.do(t, "POST", "/api/admin/mint", adminTok, map[string]any{"token": coll, "token_id": 7, "owner": seller})
	require.Equal(t, 201, code)
	code, _ = ts.do(t, "POST", "/api/admin/deposit", adminTok, map[string]any{"to": alice, "amount": "5000"})
	require.Equal(t, 200, code)

	// Listing without approving the marketplace fails.
	listing := map[string]any{"token": coll, "token_id": 7, "price": "1000", "end_time": time.Now().Unix() + 3600}
	code, _ = ts.do(t, "POST", "/api/orders/fixed", sellerTok, listing)
	require.Equal(t, 403, code)

	code, _ = ts.do(t, "POST", "/api/assets/approve", sellerTok, map[string]any{"token": coll, "token_id": 7})
	require.Equal(t, 200, code)
	code, body := ts.do(t, "POST", "/api/orders/fixed", sellerTok, listing)
	require.Equal(t, 201, code, body)
	id := body["order_id"].(string)

	code, body = ts.do(t, "GET", "/api/orders/"+id+"/price", aliceTok, nil)
	require.Equal(t, 200, code)
	require.Equal(t, "1000", body["price"])

	code, _ = ts.do(t, "POST", "/api/orders/"+id+"/bid", aliceTok, map[string]any{"amount": "2000"})
	require.Equal(t, 409, code)
	code, _ = ts.do(t, "POST", "/api/orders/"+id+"/buy", aliceTok, map[string]any{"amount": "999"})
	require.Equal(t, 400, code)

	code, body = ts.do(t, "POST", "/api/orders/"+id+"/buy", aliceTok, map[string]any{"amount": "1000"})
	require.Equal(t, 200, code, body)
	require.Equal(t, "25", body["fee"])
	require.Equal(t, "975", body["seller"])

	code, body = ts.do(t, "GET", "/api/balance", sellerTok, nil)
	require.Equal(t, 200, code)
	require.Equal(t, "975", body["amount"])

	code, body = ts.do(t, "GET", "/api/orders/"+id, aliceTok, nil)
	require.Equal(t, 200, code)
	require.Equal(t, "SOLD", body["status"])

	code, body = ts.do(t, "GET", "/api/assets/"+coll.Hex()+"/7", aliceTok, nil)
	require.Equal(t, 200, code)
	require.Equal(t, alice.Hex(), body["owner"])

	code, body = ts.do(t, "GET", "/api/sellers/"+seller.Hex()+"/orders", aliceTok, nil)
	require.Equal(t, 200, code)
	require.EqualValues(t, 1, body["length"])
}

func TestOrderRouteErrors(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := ts.register(t, alice)

	code, _ := ts.do(t, "GET", "/api/orders/not-hex", tok, nil)
	require.Equal(t, 400, code)

	unknown := model.OrderID{0x42}.Hex()
	code, _ = ts.do(t, "GET", "/api/orders/"+unknown, tok, nil)
	require.Equal(t, 404, code)
	code, _ = ts.do(t, "POST", "/api/orders/"+unknown+"/bid", tok, map[string]any{"amount": "10"})
	require.Equal(t, 404, code)
	code, _ = ts.do(t, "POST", "/api/orders/"+unknown+"/bid", tok, map[string]any{})
	require.Equal(t, 400, code)
	code, _ = ts.do(t, "POST", "/api/outbid/withdraw", tok, map[string]any{"currency": model.Native})
	require.Equal(t, 422, code)
}

func TestSplitterOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := ts.register(t, alice)

	code, _ := ts.do(t, "POST", "/api/splitters", tok, map[string]any{"payees": []model.Address{alice}, "shares": []uint64{1, 2}})
	require.Equal(t, 400, code)

	code, body := ts.do(t, "POST", "/api/splitters", tok, map[string]any{"payees": []model.Address{alice, seller}, "shares": []uint64{1, 3}})
	require.Equal(t, 201, code, body)
	addr := body["address"].(string)

	_, err := ts.bank.Mint(context.Background(), model.Native, common.HexToAddress(addr), model.NewAmount(400))
	require.NoError(t, err)

	code, body = ts.do(t, "GET", "/api/splitters/"+addr, tok, nil)
	require.Equal(t, 200, code)
	payees := body["payees"].([]any)
	require.Len(t, payees, 2)
	require.Equal(t, "100", payees[0].(map[string]any)["releasable"])

	code, body = ts.do(t, "POST", "/api/splitters/"+addr+"/release", tok, map[string]any{"currency": model.Native})
	require.Equal(t, 200, code)
	require.Equal(t, "100", body["amount"])

	code, _ = ts.do(t, "POST", "/api/splitters/"+addr+"/release", tok, map[string]any{"currency": model.Native})
	require.Equal(t, 422, code)

	code, body = ts.do(t, "POST", "/api/splitters/"+addr+"/release-all", tok, map[string]any{"currency": model.Native})
	require.Equal(t, 200, code)
	require.Len(t, body["payouts"].([]any), 1)
}

func TestEventLog(t *testing.T) {
	tok := coll
	ev := &memEvents{logs: []model.EventLog{
		{Seq: 2, Type: model.EventBid, Token: &tok},
		{Seq: 1, Type: model.EventPaused},
	}}
	ts := newTestServer(t, ev)
	adminTok := ts.register(t, owner)

	code, body := ts.do(t, "GET", "/api/admin/events", adminTok, nil)
	require.Equal(t, 200, code)
	require.Len(t, body["_"].([]any), 2)

	code, body = ts.do(t, "GET", "/api/admin/events?token="+coll.Hex(), adminTok, nil)
	require.Equal(t, 200, code)
	require.Len(t, body["_"].([]any), 1)

	code, _ = ts.do(t, "GET", "/api/admin/events?token=zz", adminTok, nil)
	require.Equal(t, 400, code)
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{model.ErrUnknownOrder, 404},
		{errorsmod.Wrap(model.ErrAccessDenied, "x"), 403},
		{model.ErrTimeout, 409},
		{model.ErrNeedMoreTime, 400},
		{model.ErrInsufficientBalance, 422},
		{engine.ErrNotRunning, 503},
		{errors.New("boom"), 500},
	}
	for _, c := range cases {
		require.Equal(t, c.want, statusOf(c.err), c.err.Error())
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, nil)
	code, body := ts.do(t, "GET", "/health", "", nil)
	require.Equal(t, 200, code)
	require.Equal(t, "ok", body["status"])

	resp, err := http.Get(ts.srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
}
