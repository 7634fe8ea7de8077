package engine

import (
	"sync"

	"nft-auction-house/internal/model"
)

type outbidKey struct {
	bidder   model.Address
	currency model.Address
}

// OutbidLedger holds refundable amounts of superseded bidders. Credits
// accumulate across auctions until the bidder withdraws.
type OutbidLedger struct {
	mu  sync.Mutex
	bal map[outbidKey]model.Amount
}

func NewOutbidLedger() *OutbidLedger {
	return &OutbidLedger{bal: make(map[outbidKey]model.Amount)}
}

func (l *OutbidLedger) Balance(bidder, currency model.Address) model.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.get(outbidKey{bidder, currency})
}

// Credit adds amount and returns the new balance.
func (l *OutbidLedger) Credit(bidder, currency model.Address, amount model.Amount) model.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := outbidKey{bidder, currency}
	nb := l.get(k).Add(amount)
	l.bal[k] = nb
	return nb
}

// Take zeroes and returns the balance.
func (l *OutbidLedger) Take(bidder, currency model.Address) model.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := outbidKey{bidder, currency}
	v := l.get(k)
	delete(l.bal, k)
	return v
}

// Total is the sum owed to all bidders in currency.
func (l *OutbidLedger) Total(currency model.Address) model.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := model.ZeroAmount()
	for k, v := range l.bal {
		if k.currency == currency {
			total = total.Add(v)
		}
	}
	return total
}

func (l *OutbidLedger) get(k outbidKey) model.Amount {
	if v, ok := l.bal[k]; ok {
		return v
	}
	return model.ZeroAmount()
}
