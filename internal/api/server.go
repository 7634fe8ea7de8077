package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"nft-auction-house/internal/custody"
	"nft-auction-house/internal/engine"
	"nft-auction-house/internal/ledger"
	"nft-auction-house/internal/model"
	"nft-auction-house/internal/splitter"
	"nft-auction-house/internal/ws"
)

type AccountStore interface {
	CreateAccount(ctx context.Context, addr model.Address, hash string, role model.Role) (*model.Account, error)
	GetAccount(ctx context.Context, addr model.Address) (*model.Account, error)
}

type EventStore interface {
	ListEvents(ctx context.Context, token *model.Address, limit int) ([]model.EventLog, error)
}

type Deps struct {
	Accounts  AccountStore
	Events    EventStore
	Engine    *engine.Engine
	Ledger    *ledger.Ledger
	Assets    *custody.Registry
	Splitters *splitter.Registry
	Hub       *ws.Hub
	Log       *zap.Logger
}

type Options struct {
	Secret   string
	TokenTTL time.Duration
	// Admins get the ADMIN role on register and login. The current
	// marketplace owner always does.
	Admins         []model.Address
	RequestTimeout time.Duration
}

type Server struct {
	accounts  AccountStore
	events    EventStore
	engine    *engine.Engine
	ledger    *ledger.Ledger
	assets    *custody.Registry
	splitters *splitter.Registry
	hub       *ws.Hub
	log       *zap.Logger

	secret  []byte
	ttl     time.Duration
	timeout time.Duration
	admins  map[model.Address]bool
}

func NewServer(d Deps, opt Options) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if opt.TokenTTL <= 0 {
		opt.TokenTTL = 72 * time.Hour
	}
	if opt.RequestTimeout <= 0 {
		opt.RequestTimeout = 30 * time.Second
	}
	admins := make(map[model.Address]bool, len(opt.Admins))
	for _, a := range opt.Admins {
		admins[a] = true
	}
	return &Server{
		accounts:  d.Accounts,
		events:    d.Events,
		engine:    d.Engine,
		ledger:    d.Ledger,
		assets:    d.Assets,
		splitters: d.Splitters,
		hub:       d.Hub,
		log:       d.Log.Named("api"),
		secret:    []byte(opt.Secret),
		ttl:       opt.TokenTTL,
		timeout:   opt.RequestTimeout,
		admins:    admins,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json200(w, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", s.hub.HandleWS)

	// Auth (public)
	r.Post("/api/register", s.register)
	r.Post("/api/login", s.login)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/api/settings", s.getSettings)

		// Listings and trading
		r.Post("/api/orders/fixed", s.listFixed)
		r.Post("/api/orders/dutch", s.listDutch)
		r.Post("/api/orders/english", s.listEnglish)
		r.Get("/api/orders/{id}", s.getOrder)
		r.Get("/api/orders/{id}/price", s.getPrice)
		r.Post("/api/orders/{id}/bid", s.bid)
		r.Post("/api/orders/{id}/buy", s.buy)
		r.Post("/api/orders/{id}/claim", s.claim)
		r.Delete("/api/orders/{id}", s.cancelOrder)

		// Indices
		r.Get("/api/tokens/{token}/{tokenID}/orders", s.ordersByToken)
		r.Get("/api/sellers/{seller}/orders", s.ordersBySeller)

		// Funds
		r.Get("/api/balance", s.getBalance)
		r.Get("/api/outbid", s.getOutbid)
		r.Post("/api/outbid/withdraw", s.withdrawOutbid)

		// Assets
		r.Get("/api/assets/{token}/{tokenID}", s.getAsset)
		r.Post("/api/assets/approve", s.approve)
		r.Post("/api/assets/operators", s.setOperator)

		// Splitters
		r.Post("/api/splitters", s.createSplitter)
		r.Get("/api/splitters/{addr}", s.getSplitter)
		r.Post("/api/splitters/{addr}/release", s.release)
		r.Post("/api/splitters/{addr}/release-all", s.releaseAll)

		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Post("/api/admin/pause", s.pause)
			r.Post("/api/admin/unpause", s.unpause)
			r.Put("/api/admin/settings", s.updateSettings)
			r.Put("/api/admin/recipient", s.setRecipient)
			r.Put("/api/admin/fees", s.setFees)
			r.Put("/api/admin/owner", s.setOwner)
			r.Put("/api/admin/payment-token", s.setPaymentToken)
			r.Post("/api/admin/withdraw", s.withdraw)
			r.Delete("/api/admin/orders/{id}", s.delOrder)
			r.Post("/api/admin/deposit", s.deposit)
			r.Post("/api/admin/mint", s.mint)
			r.Post("/api/admin/collections", s.registerCollection)
			r.Get("/api/admin/events", s.listEvents)
		})
	})

	return r
}

// ── Auth ─────────────────────────────────────────────

type credentials struct {
	Address  model.Address `json:"address"`
	Password string        `json:"password"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decode(w, r, &req) {
		return
	}
	if req.Address == (model.Address{}) || len(req.Password) < 6 {
		jsonErr(w, 400, "address and password (min 6 chars) required")
		return
	}

	existing, err := s.accounts.GetAccount(r.Context(), req.Address)
	if err != nil {
		jsonErr(w, 500, err.Error())
		return
	}
	if existing != nil {
		jsonErr(w, 409, "address already registered")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonErr(w, 500, "hash failed")
		return
	}
	role := model.RoleUser
	if s.isAdmin(req.Address) {
		role = model.RoleAdmin
	}
	acct, err := s.accounts.CreateAccount(r.Context(), req.Address, string(hash), role)
	if err != nil {
		jsonErr(w, 500, "create account failed: "+err.Error())
		return
	}

	json201(w, map[string]any{"account": acct, "token": s.makeToken(acct.Address, acct.Role)})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decode(w, r, &req) {
		return
	}

	acct, err := s.accounts.GetAccount(r.Context(), req.Address)
	if err != nil || acct == nil {
		jsonErr(w, 401, "invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(req.Password)); err != nil {
		jsonErr(w, 401, "invalid credentials")
		return
	}
	// Ownership can move after registration.
	if s.isAdmin(acct.Address) {
		acct.Role = model.RoleAdmin
	}
	json200(w, map[string]any{"account": acct, "token": s.makeToken(acct.Address, acct.Role)})
}

func (s *Server) isAdmin(a model.Address) bool {
	return s.admins[a] || s.engine.Settings().Owner == a
}

func (s *Server) makeToken(addr model.Address, role model.Role) string {
	claims := jwt.MapClaims{
		"sub":  addr.Hex(),
		"role": string(role),
		"exp":  time.Now().Add(s.ttl).Unix(),
	}
	t, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return t
}

// ── Middleware ────────────────────────────────────────

type ctxKey string

const (
	ctxCaller ctxKey = "caller"
	ctxRole   ctxKey = "role"
)

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			jsonErr(w, 401, "missing token")
			return
		}
		tokenStr := strings.TrimPrefix(auth, "Bearer ")
		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return s.secret, nil
		})
		if err != nil || !token.Valid {
			jsonErr(w, 401, "invalid token")
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			jsonErr(w, 401, "invalid claims")
			return
		}
		sub, _ := claims["sub"].(string)
		if !common.IsHexAddress(sub) {
			jsonErr(w, 401, "invalid subject")
			return
		}
		role, _ := claims["role"].(string)
		ctx := context.WithValue(r.Context(), ctxCaller, common.HexToAddress(sub))
		ctx = context.WithValue(ctx, ctxRole, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, _ := r.Context().Value(ctxRole).(string)
		if role != string(model.RoleAdmin) {
			jsonErr(w, 403, "admin only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ── Helpers ──────────────────────────────────────────

func callerOf(r *http.Request) model.Address {
	a, _ := r.Context().Value(ctxCaller).(model.Address)
	return a
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonErr(w, 400, "invalid json")
		return false
	}
	return true
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (model.OrderID, bool) {
	b := common.FromHex(chi.URLParam(r, "id"))
	if len(b) != common.HashLength {
		jsonErr(w, 400, "invalid order id")
		return model.OrderID{}, false
	}
	return common.BytesToHash(b), true
}

func addressParam(w http.ResponseWriter, r *http.Request, name string) (model.Address, bool) {
	v := chi.URLParam(r, name)
	if !common.IsHexAddress(v) {
		jsonErr(w, 400, "invalid "+name)
		return model.Address{}, false
	}
	return common.HexToAddress(v), true
}

func tokenIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "tokenID"), 10, 64)
	if err != nil {
		jsonErr(w, 400, "invalid token id")
		return 0, false
	}
	return id, true
}

// currencyQuery reads ?currency=, defaulting to the native coin.
func currencyQuery(w http.ResponseWriter, r *http.Request) (model.Address, bool) {
	v := r.URL.Query().Get("currency")
	if v == "" {
		return model.Native, true
	}
	if !common.IsHexAddress(v) {
		jsonErr(w, 400, "invalid currency")
		return model.Address{}, false
	}
	return common.HexToAddress(v), true
}

// statusOf maps a domain error to an HTTP status by its class.
func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrUnknownOrder):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNotRunning):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	switch model.ClassOf(err) {
	case model.ClassAuthorization:
		return http.StatusForbidden
	case model.ClassState:
		return http.StatusConflict
	case model.ClassValidation:
		return http.StatusBadRequest
	case model.ClassFunds:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	if code >= 500 {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	jsonErr(w, code, err.Error())
}

func json200(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func json201(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(201)
	json.NewEncoder(w).Encode(data)
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
