package model

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// ── Identities ───────────────────────────────────────

// Address identifies an account, a collection or a splitter.
type Address = common.Address

// OrderID is the Keccak-256 digest that names a listing.
type OrderID = common.Hash

// Amount is an integer quantity of the smallest currency unit.
type Amount = sdkmath.Int

// Native is the currency identity of the chain's native coin.
var Native = Address{}

func ZeroAmount() Amount { return sdkmath.ZeroInt() }

func NewAmount(v int64) Amount { return sdkmath.NewInt(v) }

// ── Enums ────────────────────────────────────────────

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

type OrderType uint8

const (
	FixedPrice OrderType = iota
	Dutch
	English
)

func (t OrderType) String() string {
	switch t {
	case FixedPrice:
		return "FIXED_PRICE"
	case Dutch:
		return "DUTCH"
	case English:
		return "ENGLISH"
	default:
		return "UNKNOWN"
	}
}

func (t OrderType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// OrderStatus is the lifecycle variant of an order id. Unknown means the id
// was never listed; Canceled and Unknown share zeroed order fields but are
// kept apart by the book's existence set.
type OrderStatus string

const (
	StatusUnknown  OrderStatus = "UNKNOWN"
	StatusActive   OrderStatus = "ACTIVE"
	StatusSold     OrderStatus = "SOLD"
	StatusCanceled OrderStatus = "CANCELED"
)

// ── Domain Objects ───────────────────────────────────

// Order is one listing. Closed orders are zeroed; a sold order keeps only
// IsSold.
type Order struct {
	OrderType    OrderType `json:"order_type"`
	Seller       Address   `json:"seller"`
	Token        Address   `json:"token"`
	TokenID      uint64    `json:"token_id"`
	Currency     Address   `json:"currency"`
	StartPrice   Amount    `json:"start_price"`
	EndPrice     Amount    `json:"end_price"`
	StartTime    int64     `json:"start_time"`
	EndTime      int64     `json:"end_time"`
	LastBidPrice Amount    `json:"last_bid_price"`
	LastBidder   Address   `json:"last_bidder"`
	IsSold       bool      `json:"is_sold"`
}

// ZeroOrder is the storage form of a closed order.
func ZeroOrder() Order {
	return Order{
		StartPrice:   ZeroAmount(),
		EndPrice:     ZeroAmount(),
		LastBidPrice: ZeroAmount(),
	}
}

func (o Order) HasBid() bool {
	return o.LastBidder != (Address{}) && o.LastBidPrice.IsPositive()
}

// OrderView is an order together with its lifecycle variant.
type OrderView struct {
	ID     OrderID     `json:"id"`
	Status OrderStatus `json:"status"`
	Order  Order       `json:"order"`
}

// Settings is the global owner-mutable marketplace configuration.
type Settings struct {
	MinOrderDuration    int64   `json:"min_order_duration"`
	MinAuctionIncrement int64   `json:"min_auction_increment"`
	MinBidValue         int64   `json:"min_bid_value"`
	MaxDuration         int64   `json:"max_duration"`
	Recipient           Address `json:"recipient"`
	Owner               Address `json:"owner"`
	PaymentToken        Address `json:"payment_token"`
	NativeFeeBps        uint32  `json:"native_fee_bps"`
	TokenFeeBps         uint32  `json:"token_fee_bps"`
	ExternalFeeBps      uint32  `json:"external_fee_bps"`
	Paused              bool    `json:"paused"`
}

// Transfer is a single leg of a fungible settlement.
type Transfer struct {
	From   Address `json:"from"`
	To     Address `json:"to"`
	Amount Amount  `json:"amount"`
}

// ── Events ───────────────────────────────────────────

type EventType string

const (
	EventMakeOrder        EventType = "MakeOrder"
	EventBid              EventType = "Bid"
	EventClaim            EventType = "Claim"
	EventCancelOrder      EventType = "CancelOrder"
	EventUserOutbid       EventType = "UserOutbid"
	EventWithdrawOutbid   EventType = "WithdrawOutbid"
	EventSettingsUpdated  EventType = "AuctionSettingsUpdated"
	EventRecipientUpdated EventType = "RecipientUpdated"
	EventFeesUpdated      EventType = "FeesUpdated"
	EventOwnerUpdated     EventType = "OwnerUpdated"
	EventPaymentToken     EventType = "PaymentTokenUpdated"
	EventPaused           EventType = "Paused"
	EventUnpaused         EventType = "Unpaused"
	EventWithdraw         EventType = "Withdraw"
)

// Event is an observable marketplace event. Fields that do not apply to a
// type are left zero.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Seq       uint64    `json:"seq"`
	Type      EventType `json:"type"`
	Token     Address   `json:"token"`
	TokenID   uint64    `json:"token_id"`
	OrderID   OrderID   `json:"order_id"`
	Seller    Address   `json:"seller"`
	Account   Address   `json:"account"`
	Currency  Address   `json:"currency"`
	Amount    Amount    `json:"amount"`
	Data      any       `json:"data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// OutbidEntry is the balance snapshot of one bidder in one currency.
type OutbidEntry struct {
	Bidder   Address `json:"bidder"`
	Currency Address `json:"currency"`
	Amount   Amount  `json:"amount"`
}

// Record is what the engine journals after a committed operation.
type Record struct {
	Order  *OrderView
	Events []Event
	Outbid []OutbidEntry
}

// EventLog is a journaled event as read back from the store.
type EventLog struct {
	ID          uuid.UUID `json:"id"`
	Seq         uint64    `json:"seq"`
	Type        EventType `json:"type"`
	Token       *Address  `json:"token,omitempty"`
	OrderID     *OrderID  `json:"order_id,omitempty"`
	PayloadJSON any       `json:"payload"`
	CreatedAt   time.Time `json:"created_at"`
}

// ── Accounts ─────────────────────────────────────────

type Account struct {
	Address      Address   `json:"address"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// ── API Types ────────────────────────────────────────

type FixedPriceReq struct {
	Token   Address `json:"token"`
	TokenID uint64  `json:"token_id"`
	Price   Amount  `json:"price"`
	EndTime int64   `json:"end_time"`
}

type DutchAuctionReq struct {
	Token      Address `json:"token"`
	TokenID    uint64  `json:"token_id"`
	StartPrice Amount  `json:"start_price"`
	EndPrice   Amount  `json:"end_price"`
	EndTime    int64   `json:"end_time"`
}

type EnglishAuctionReq struct {
	Token      Address `json:"token"`
	TokenID    uint64  `json:"token_id"`
	StartPrice Amount  `json:"start_price"`
	EndTime    int64   `json:"end_time"`
}

type PaymentReq struct {
	Amount Amount `json:"amount"`
}

type SettingsReq struct {
	MinOrderDuration    int64 `json:"min_order_duration"`
	MinAuctionIncrement int64 `json:"min_auction_increment"`
	MinBidValue         int64 `json:"min_bid_value"`
	MaxDuration         int64 `json:"max_duration"`
}

type FeesReq struct {
	NativeFeeBps   uint32 `json:"native_fee_bps"`
	TokenFeeBps    uint32 `json:"token_fee_bps"`
	ExternalFeeBps uint32 `json:"external_fee_bps"`
}
