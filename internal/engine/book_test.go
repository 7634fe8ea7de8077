package engine

import (
	"testing"

	"nft-auction-house/internal/model"
)

var (
	bookColl   = model.Address{0xc1}
	bookSeller = model.Address{0x01}
)

func testOrder(typ model.OrderType, tokenID uint64) model.Order {
	o := model.ZeroOrder()
	o.OrderType = typ
	o.Seller = bookSeller
	o.Token = bookColl
	o.TokenID = tokenID
	o.StartPrice = model.NewAmount(100)
	o.EndTime = 1000
	return o
}

func TestAddAndGet(t *testing.T) {
	b := NewOrderBook()
	id := model.OrderID{0x01}

	if !b.Add(id, testOrder(model.FixedPrice, 1)) {
		t.Fatal("expected add to succeed")
	}
	if b.Size() != 1 {
		t.Fatalf("expected size 1, got %d", b.Size())
	}
	v := b.Get(id)
	if v.Status != model.StatusActive {
		t.Fatalf("expected ACTIVE, got %s", v.Status)
	}
	if v.Order.StartPrice.Int64() != 100 {
		t.Fatalf("expected start price 100, got %s", v.Order.StartPrice)
	}
}

func TestDuplicateAddIgnored(t *testing.T) {
	b := NewOrderBook()
	id := model.OrderID{0x01}
	b.Add(id, testOrder(model.FixedPrice, 1))
	if b.Add(id, testOrder(model.Dutch, 1)) {
		t.Fatal("expected duplicate add to be rejected")
	}
	if b.Size() != 1 || b.TokenLen(bookColl, 1) != 1 {
		t.Fatalf("expected one order and one index entry, got %d/%d", b.Size(), b.TokenLen(bookColl, 1))
	}
}

func TestUnknownIsNotCanceled(t *testing.T) {
	b := NewOrderBook()
	id := model.OrderID{0x01}
	b.Add(id, testOrder(model.FixedPrice, 1))
	b.MarkCanceled(id)

	if got := b.Get(id).Status; got != model.StatusCanceled {
		t.Fatalf("expected CANCELED, got %s", got)
	}
	if got := b.Get(model.OrderID{0x02}).Status; got != model.StatusUnknown {
		t.Fatalf("expected UNKNOWN, got %s", got)
	}
	if !b.Exists(id) || b.Exists(model.OrderID{0x02}) {
		t.Fatal("existence set mismatch")
	}
}

func TestCloseZeroesFields(t *testing.T) {
	b := NewOrderBook()
	sold, canceled := model.OrderID{0x01}, model.OrderID{0x02}
	b.Add(sold, testOrder(model.FixedPrice, 1))
	b.Add(canceled, testOrder(model.FixedPrice, 2))
	b.MarkSold(sold)
	b.MarkCanceled(canceled)

	s := b.Get(sold).Order
	if !s.IsSold || s.EndTime != 0 || !s.StartPrice.IsZero() || s.Seller != (model.Address{}) {
		t.Fatalf("sold order not zeroed: %+v", s)
	}
	c := b.Get(canceled).Order
	if c.IsSold || c.EndTime != 0 {
		t.Fatalf("canceled order not zeroed: %+v", c)
	}
}

func TestIndicesSurviveClose(t *testing.T) {
	b := NewOrderBook()
	first, second := model.OrderID{0x01}, model.OrderID{0x02}
	b.Add(first, testOrder(model.FixedPrice, 7))
	b.MarkCanceled(first)
	b.Add(second, testOrder(model.English, 7))

	if n := b.TokenLen(bookColl, 7); n != 2 {
		t.Fatalf("expected 2 token entries, got %d", n)
	}
	if n := b.SellerLen(bookSeller); n != 2 {
		t.Fatalf("expected 2 seller entries, got %d", n)
	}
	if id, ok := b.ByToken(bookColl, 7, 0); !ok || id != first {
		t.Fatalf("expected first entry %s, got %s", first, id)
	}
	if id, ok := b.BySeller(bookSeller, 1); !ok || id != second {
		t.Fatalf("expected second entry %s, got %s", second, id)
	}
	if _, ok := b.ByToken(bookColl, 7, 2); ok {
		t.Fatal("expected out of range lookup to fail")
	}
}

func TestUpdateIgnoresClosed(t *testing.T) {
	b := NewOrderBook()
	id := model.OrderID{0x01}
	o := testOrder(model.English, 1)
	b.Add(id, o)
	b.MarkCanceled(id)

	o.LastBidder = model.Address{0x09}
	o.LastBidPrice = model.NewAmount(500)
	b.Update(id, o)
	if b.Get(id).Order.HasBid() {
		t.Fatal("update must not resurrect a closed order")
	}
}

func TestActiveBidTotal(t *testing.T) {
	b := NewOrderBook()
	weth := model.Address{0x0e}
	for i, amt := range []int64{100, 250, 40} {
		o := testOrder(model.English, uint64(i))
		o.LastBidder = model.Address{0x09}
		o.LastBidPrice = model.NewAmount(amt)
		if i == 2 {
			o.Currency = weth
		}
		b.Add(model.OrderID{byte(i + 1)}, o)
	}
	b.MarkSold(model.OrderID{0x02})

	if got := b.ActiveBidTotal(model.Native).Int64(); got != 100 {
		t.Fatalf("expected native escrow 100, got %d", got)
	}
	if got := b.ActiveBidTotal(weth).Int64(); got != 40 {
		t.Fatalf("expected weth escrow 40, got %d", got)
	}
}

func TestOutbidLedgerAccumulates(t *testing.T) {
	l := NewOutbidLedger()
	alice := model.Address{0x02}
	l.Credit(alice, model.Native, model.NewAmount(10))
	l.Credit(alice, model.Native, model.NewAmount(15))

	if got := l.Balance(alice, model.Native).Int64(); got != 25 {
		t.Fatalf("expected 25, got %d", got)
	}
	if got := l.Total(model.Native).Int64(); got != 25 {
		t.Fatalf("expected total 25, got %d", got)
	}
	if got := l.Take(alice, model.Native).Int64(); got != 25 {
		t.Fatalf("expected take 25, got %d", got)
	}
	if !l.Balance(alice, model.Native).IsZero() {
		t.Fatal("expected zero after take")
	}
}
