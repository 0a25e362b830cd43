package tokenrepofake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-campsite-client/token"
	"github.com/rs/zerolog/log"
)

var _ token.Store = (*MemoryStore)(nil)

// MemoryStore keeps the credential pair in process memory.
type MemoryStore struct {
	pair   token.Pair
	stored bool
	lock   sync.RWMutex

	saves  int
	clears int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewMemoryStoreWith returns a store pre-populated with pair.
func NewMemoryStoreWith(pair token.Pair) *MemoryStore {
	s := NewMemoryStore()
	s.Save(context.Background(), pair)
	return s
}

func (s *MemoryStore) Save(_ context.Context, pair token.Pair) {
	if !pair.Valid() {
		log.Warn().Msg("refusing to store an incomplete credential pair")
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.pair = pair
	s.stored = true
	s.saves++
}

func (s *MemoryStore) Read(_ context.Context) (token.Pair, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if !s.stored {
		return token.Pair{}, false
	}
	return s.pair, true
}

func (s *MemoryStore) SetAccess(_ context.Context, access string) {
	if access == "" {
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.stored {
		return
	}
	s.pair.Access = access
	s.saves++
}

func (s *MemoryStore) Clear(_ context.Context) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.pair = token.Pair{}
	s.stored = false
	s.clears++
}

// Saves reports how many writes the store has accepted.
func (s *MemoryStore) Saves() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.saves
}

// Clears reports how many times Clear was called.
func (s *MemoryStore) Clears() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.clears
}
