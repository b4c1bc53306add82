// Package nonce hands out transaction nonces per signer so concurrent submissions from one
// account never collide or leave gaps.
package nonce

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// Source reports the confirmed transaction count of an address
type Source interface {
	GetNonce(ctx context.Context, addr common.Address) (uint64, error)
}

// Sequencer reserves nonces. It is safe for concurrent use.
type Sequencer struct {
	source  Source
	log     *logrus.Logger
	mu      sync.Mutex
	signers map[common.Address]*signer
}

type signer struct {
	mu       sync.Mutex
	seeded   bool
	next     uint64
	released []uint64
}

func NewSequencer(source Source, log *logrus.Logger) *Sequencer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sequencer{
		source:  source,
		log:     log,
		signers: make(map[common.Address]*signer),
	}
}

func (s *Sequencer) signer(addr common.Address) *signer {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.signers[addr]
	if !ok {
		st = &signer{}
		s.signers[addr] = st
	}
	return st
}

// Reserve returns the next nonce for addr. The first reservation, and the first after a
// Resync, asks the source for the confirmed count. Released nonces are handed out again
// lowest first.
func (s *Sequencer) Reserve(ctx context.Context, addr common.Address) (uint64, error) {
	st := s.signer(addr)
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.seeded {
		n, err := s.source.GetNonce(ctx, addr)
		if err != nil {
			return 0, fmt.Errorf("failed to seed nonce of %s: %w", addr.Hex(), err)
		}
		st.next = n
		st.seeded = true
		s.log.Debugf("Seeded nonce of %s at %d", addr.Hex(), n)
	}
	if len(st.released) > 0 {
		n := st.released[0]
		st.released = st.released[1:]
		return n, nil
	}
	n := st.next
	st.next++
	return n, nil
}

// Release gives back a nonce that was reserved but never reached the network
func (s *Sequencer) Release(addr common.Address, n uint64) {
	st := s.signer(addr)
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.seeded || n >= st.next {
		return
	}
	i := sort.Search(len(st.released), func(i int) bool { return st.released[i] >= n })
	if i < len(st.released) && st.released[i] == n {
		return
	}
	st.released = append(st.released, 0)
	copy(st.released[i+1:], st.released[i:])
	st.released[i] = n

	// trailing released nonces shrink the counter instead of waiting for reuse
	for len(st.released) > 0 && st.released[len(st.released)-1] == st.next-1 {
		st.released = st.released[:len(st.released)-1]
		st.next--
	}
}

// Resync forgets local state for addr so the next Reserve reseeds from the source
func (s *Sequencer) Resync(addr common.Address) {
	st := s.signer(addr)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.seeded = false
	st.released = nil
	s.log.Warnf("Nonce of %s will be resynchronised", addr.Hex())
}
