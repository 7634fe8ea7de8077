package splitter

import (
	"encoding/binary"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"

	"nft-auction-house/internal/model"
)

// Registry creates splitters at deterministic addresses and looks them up.
type Registry struct {
	mu    sync.RWMutex
	bank  Bank
	log   *zap.Logger
	nonce uint64
	byAdr map[model.Address]*Splitter
}

func NewRegistry(bank Bank, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{bank: bank, log: log, byAdr: make(map[model.Address]*Splitter)}
}

// Create deploys a splitter. Its address is the low 20 bytes of
// keccak256(nonce, payees..., shares...).
func (r *Registry) Create(payees []model.Address, shares []uint64) (*Splitter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	addr := deriveAddress(r.nonce, payees, shares)
	s, err := New(addr, payees, shares, r.bank, r.log)
	if err != nil {
		return nil, err
	}
	r.nonce++
	r.byAdr[addr] = s
	r.log.Info("splitter created", zap.Stringer("address", addr), zap.Int("payees", len(payees)))
	return s, nil
}

func (r *Registry) Get(addr model.Address) (*Splitter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byAdr[addr]
	return s, ok
}

func deriveAddress(nonce uint64, payees []model.Address, shares []uint64) model.Address {
	h := sha3.NewLegacyKeccak256()
	var word [32]byte
	binary.BigEndian.PutUint64(word[24:], nonce)
	h.Write(word[:])
	for _, p := range payees {
		h.Write(p.Bytes())
	}
	for _, s := range shares {
		binary.BigEndian.PutUint64(word[24:], s)
		h.Write(word[:])
	}
	return common.BytesToAddress(h.Sum(nil)[12:])
}
