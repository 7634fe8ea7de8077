package engine

import (
	"sync"

	"nft-auction-house/internal/model"
)

type tokenKey struct {
	token model.Address
	id    uint64
}

// slot is the stored form of one order id. The presence of a slot is the
// existence set; status separates Canceled from Unknown.
type slot struct {
	order  model.Order
	status model.OrderStatus
}

// OrderBook stores every order ever listed together with append-only
// per-token and per-seller indices. Shards write only the orders of their
// own collection; readers may come from any goroutine.
type OrderBook struct {
	mu       sync.RWMutex
	orders   map[model.OrderID]*slot
	byToken  map[tokenKey][]model.OrderID
	bySeller map[model.Address][]model.OrderID
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		orders:   make(map[model.OrderID]*slot),
		byToken:  make(map[tokenKey][]model.OrderID),
		bySeller: make(map[model.Address][]model.OrderID),
	}
}

// ── Queries ──────────────────────────────────────────

func (b *OrderBook) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.orders)
}

// Get returns the order and its lifecycle variant. Ids that were never listed
// come back as StatusUnknown with a zeroed order.
func (b *OrderBook) Get(id model.OrderID) model.OrderView {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.orders[id]
	if !ok {
		return model.OrderView{ID: id, Status: model.StatusUnknown, Order: model.ZeroOrder()}
	}
	return model.OrderView{ID: id, Status: s.status, Order: s.order}
}

func (b *OrderBook) Exists(id model.OrderID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.orders[id]
	return ok
}

func (b *OrderBook) TokenLen(token model.Address, tokenID uint64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byToken[tokenKey{token, tokenID}])
}

func (b *OrderBook) ByToken(token model.Address, tokenID uint64, i int) (model.OrderID, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := b.byToken[tokenKey{token, tokenID}]
	if i < 0 || i >= len(ids) {
		return model.OrderID{}, false
	}
	return ids[i], true
}

func (b *OrderBook) SellerLen(seller model.Address) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.bySeller[seller])
}

func (b *OrderBook) BySeller(seller model.Address, i int) (model.OrderID, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := b.bySeller[seller]
	if i < 0 || i >= len(ids) {
		return model.OrderID{}, false
	}
	return ids[i], true
}

// ActiveBidTotal sums the standing bids of active English orders in currency.
// Those funds sit in escrow and belong to bidders, not the platform.
func (b *OrderBook) ActiveBidTotal(currency model.Address) model.Amount {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := model.ZeroAmount()
	for _, s := range b.orders {
		if s.status != model.StatusActive || s.order.OrderType != model.English {
			continue
		}
		if s.order.Currency == currency && s.order.HasBid() {
			total = total.Add(s.order.LastBidPrice)
		}
	}
	return total
}

// ── Add / Update ─────────────────────────────────────

// Add records a new active order and appends it to both indices. It reports
// false when the id is already taken.
func (b *OrderBook) Add(id model.OrderID, o model.Order) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.orders[id]; exists {
		return false
	}
	b.orders[id] = &slot{order: o, status: model.StatusActive}
	k := tokenKey{o.Token, o.TokenID}
	b.byToken[k] = append(b.byToken[k], id)
	b.bySeller[o.Seller] = append(b.bySeller[o.Seller], id)
	return true
}

// Update replaces an active order's fields, e.g. after a bid.
func (b *OrderBook) Update(id model.OrderID, o model.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.orders[id]; ok && s.status == model.StatusActive {
		s.order = o
	}
}

// MarkSold zeroes the order, keeping only IsSold.
func (b *OrderBook) MarkSold(id model.OrderID) {
	b.close(id, model.StatusSold)
}

// MarkCanceled zeroes the order. Index entries stay.
func (b *OrderBook) MarkCanceled(id model.OrderID) {
	b.close(id, model.StatusCanceled)
}

// Restore puts a closed order back to active. Settlement uses it to undo a
// close when the asset cannot be released.
func (b *OrderBook) Restore(id model.OrderID, o model.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.orders[id]; ok {
		s.order = o
		s.status = model.StatusActive
	}
}

func (b *OrderBook) close(id model.OrderID, status model.OrderStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.orders[id]
	if !ok {
		return
	}
	s.order = model.ZeroOrder()
	s.order.IsSold = status == model.StatusSold
	s.status = status
}
