// Package engine runs the marketplace: listings, bids, sales, claims and
// cancellations, plus the owner's admin surface.
//
// Every operation on an order is executed by the sequencer of that order's
// collection, one goroutine per collection, so operations on one order are
// totally ordered while different collections proceed in parallel.
package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	lifecycle "github.com/boz/go-lifecycle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"

	"nft-auction-house/internal/fee"
	"nft-auction-house/internal/model"
)

var ErrNotRunning = errors.New("engine not running")

// AllRoom receives every event regardless of collection.
const AllRoom = "*"

// ── Collaborators ────────────────────────────────────

// Custody holds listed assets and answers royalty introspection.
type Custody interface {
	OwnerOf(ctx context.Context, token model.Address, tokenID uint64) (model.Address, error)
	IsApproved(ctx context.Context, token model.Address, tokenID uint64, operator model.Address) (bool, error)
	TransferIn(ctx context.Context, token model.Address, tokenID uint64, from, custodian model.Address) error
	TransferOut(ctx context.Context, token model.Address, tokenID uint64, custodian, to model.Address) error
	fee.RoyaltyInspector
}

// CreatorVerifier tells whether caller created a collection.
type CreatorVerifier interface {
	CreatorCheck(ctx context.Context, token, caller model.Address) (bool, model.Address, error)
}

// Bank moves fungible funds.
type Bank interface {
	BalanceOf(ctx context.Context, currency, who model.Address) (model.Amount, error)
	Transfer(ctx context.Context, currency, from, to model.Address, amount model.Amount) error
	Settle(ctx context.Context, currency model.Address, legs []model.Transfer) error
}

// Journal persists committed operations. It is called after the in-memory
// state changed; a failure is logged and does not undo the operation.
type Journal interface {
	Commit(ctx context.Context, rec model.Record) error
}

// PublishFunc broadcasts an event to a room.
type PublishFunc func(room, msgType string, data any)

type Clock func() time.Time

type Config struct {
	// Self is the marketplace's own account: escrow for assets and bids.
	Self     model.Address
	Settings model.Settings
}

func DefaultSettings(owner model.Address) model.Settings {
	fs := fee.DefaultSchedule()
	return model.Settings{
		MinOrderDuration:    300,
		MinAuctionIncrement: 300,
		MinBidValue:         20,
		MaxDuration:         31_536_000,
		Recipient:           owner,
		Owner:               owner,
		NativeFeeBps:        fs.NativeBps,
		TokenFeeBps:         fs.TokenBps,
		ExternalFeeBps:      fs.ExternalBps,
	}
}

type Deps struct {
	Custody  Custody
	Creators CreatorVerifier
	Bank     Bank
	Journal  Journal
	Publish  PublishFunc
	Clock    Clock
	Log      *zap.Logger
}

// ── Engine ───────────────────────────────────────────

type Engine struct {
	self     model.Address
	custody  Custody
	creators CreatorVerifier
	bank     Bank
	journal  Journal
	publish  PublishFunc
	clock    Clock
	log      *zap.Logger

	book   *OrderBook
	outbid *OutbidLedger

	// smu is held shared by every trading operation and exclusively by admin
	// operations, so an admin change never interleaves with a trade.
	smu      sync.RWMutex
	settings model.Settings

	nonce atomic.Uint64
	seq   atomic.Uint64

	mu     sync.RWMutex
	shards map[model.Address]*shard
	closed bool
}

func New(cfg Config, d Deps) (*Engine, error) {
	if cfg.Self == (model.Address{}) {
		return nil, model.ErrZeroAddress
	}
	if err := validateSettings(cfg.Settings); err != nil {
		return nil, err
	}
	if err := scheduleOf(cfg.Settings).Validate(); err != nil {
		return nil, err
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Engine{
		self:     cfg.Self,
		custody:  d.Custody,
		creators: d.Creators,
		bank:     d.Bank,
		journal:  d.Journal,
		publish:  d.Publish,
		clock:    d.Clock,
		log:      d.Log.Named("engine"),
		book:     NewOrderBook(),
		outbid:   NewOutbidLedger(),
		settings: cfg.Settings,
		shards:   make(map[model.Address]*shard),
	}, nil
}

func (e *Engine) Self() model.Address { return e.self }

// Close stops every collection sequencer. Pending callers get ErrNotRunning.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	shards := make([]*shard, 0, len(e.shards))
	for _, s := range e.shards {
		shards = append(shards, s)
	}
	e.mu.Unlock()

	for _, s := range shards {
		s.lc.Shutdown(nil)
	}
	e.log.Info("engine stopped", zap.Int("shards", len(shards)))
}

func (e *Engine) now() int64 { return e.clock().Unix() }

// ── Sequencers ───────────────────────────────────────

type shard struct {
	token model.Address
	cmdCh chan command
	lc    lifecycle.Lifecycle
}

type command interface{ exec(e *Engine) }

type result[T any] struct {
	v   T
	err error
}

type call[T any] struct {
	fn func(*Engine) (T, error)
	ch chan<- result[T]
}

func (c call[T]) exec(e *Engine) {
	v, err := c.fn(e)
	c.ch <- result[T]{v, err}
}

func (e *Engine) shardFor(token model.Address) (*shard, error) {
	e.mu.RLock()
	s, ok := e.shards[token]
	closed := e.closed
	e.mu.RUnlock()
	if ok {
		return s, nil
	}
	if closed {
		return nil, ErrNotRunning
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrNotRunning
	}
	if s, ok := e.shards[token]; ok {
		return s, nil
	}
	s = &shard{token: token, cmdCh: make(chan command), lc: lifecycle.New()}
	e.shards[token] = s
	go s.run(e)
	e.log.Debug("sequencer started", zap.Stringer("token", token))
	return s, nil
}

func (s *shard) run(e *Engine) {
	defer s.lc.ShutdownCompleted()
	for {
		select {
		case err := <-s.lc.ShutdownRequest():
			s.lc.ShutdownInitiated(err)
			return
		case cmd := <-s.cmdCh:
			cmd.exec(e)
		}
	}
}

// submit runs fn on the sequencer of token and waits for its result.
func submit[T any](ctx context.Context, e *Engine, token model.Address, fn func(*Engine) (T, error)) (T, error) {
	var zero T
	s, err := e.shardFor(token)
	if err != nil {
		return zero, err
	}
	ch := make(chan result[T], 1)
	select {
	case s.cmdCh <- call[T]{fn: fn, ch: ch}:
	case <-s.lc.ShuttingDown():
		return zero, ErrNotRunning
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	r := <-ch
	return r.v, r.err
}

// ── Order ids ────────────────────────────────────────

// deriveOrderID hashes (sequence, token, tokenId, seller) as 32-byte words.
func deriveOrderID(seq uint64, token model.Address, tokenID uint64, seller model.Address) model.OrderID {
	h := sha3.NewLegacyKeccak256()
	h.Write(common.LeftPadBytes(binary.BigEndian.AppendUint64(nil, seq), 32))
	h.Write(common.LeftPadBytes(token.Bytes(), 32))
	h.Write(common.LeftPadBytes(binary.BigEndian.AppendUint64(nil, tokenID), 32))
	h.Write(common.LeftPadBytes(seller.Bytes(), 32))
	return common.BytesToHash(h.Sum(nil))
}

// ── Commit ───────────────────────────────────────────

// event stamps a fresh event with id, sequence and time.
func (e *Engine) event(t model.EventType) model.Event {
	return model.Event{
		ID:        uuid.New(),
		Seq:       e.seq.Add(1),
		Type:      t,
		Amount:    model.ZeroAmount(),
		CreatedAt: e.clock().UTC(),
	}
}

// commit journals rec and publishes its events. The operation has already
// taken effect.
func (e *Engine) commit(ctx context.Context, rec model.Record) {
	if e.journal != nil {
		if err := e.journal.Commit(context.WithoutCancel(ctx), rec); err != nil {
			journalFailures.Inc()
			e.log.Error("journal commit failed", zap.Error(err), zap.Int("events", len(rec.Events)))
		}
	}
	if e.publish == nil {
		return
	}
	for _, ev := range rec.Events {
		if ev.Token != (model.Address{}) {
			e.publish(ev.Token.Hex(), string(ev.Type), ev)
		}
		e.publish(AllRoom, string(ev.Type), ev)
	}
}

func (e *Engine) outbidEntry(bidder, currency model.Address) model.OutbidEntry {
	return model.OutbidEntry{Bidder: bidder, Currency: currency, Amount: e.outbid.Balance(bidder, currency)}
}

// ── Queries ──────────────────────────────────────────

func (e *Engine) Settings() model.Settings {
	e.smu.RLock()
	defer e.smu.RUnlock()
	return e.settings
}

func (e *Engine) OrderInfo(id model.OrderID) model.OrderView { return e.book.Get(id) }

// CurrentPrice is what a buyer pays now for a fixed-price or Dutch order, or
// the standing price of an English auction.
func (e *Engine) CurrentPrice(id model.OrderID) (model.Amount, error) {
	v := e.book.Get(id)
	if err := checkActive(v); err != nil {
		return model.ZeroAmount(), err
	}
	return priceAt(v.Order, e.now()), nil
}

func (e *Engine) OrderIDByToken(token model.Address, tokenID uint64, i int) (model.OrderID, bool) {
	return e.book.ByToken(token, tokenID, i)
}

func (e *Engine) OrderIDBySeller(seller model.Address, i int) (model.OrderID, bool) {
	return e.book.BySeller(seller, i)
}

func (e *Engine) TokenOrderLength(token model.Address, tokenID uint64) int {
	return e.book.TokenLen(token, tokenID)
}

func (e *Engine) SellerOrderLength(seller model.Address) int {
	return e.book.SellerLen(seller)
}

func (e *Engine) OutbidBalance(bidder, currency model.Address) model.Amount {
	return e.outbid.Balance(bidder, currency)
}
