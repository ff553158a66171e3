package repository

import (
	"context"
	"sync"
	"time"

	"payment-relay/internal/domain"
)

// MemoryAttributionStore keeps attribution for the life of the process.
type MemoryAttributionStore struct {
	mu      sync.RWMutex
	records map[string]domain.Attribution
}

func NewMemoryAttributionStore() *MemoryAttributionStore {
	return &MemoryAttributionStore{records: make(map[string]domain.Attribution)}
}

func (s *MemoryAttributionStore) Put(_ context.Context, txID string, attr domain.Attribution) (bool, error) {
	if txID == "" {
		return false, ErrEmptyTransactionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[txID]; ok {
		return false, nil
	}
	s.records[txID] = attr
	return true, nil
}

func (s *MemoryAttributionStore) Get(_ context.Context, txID string) (*domain.Attribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attr, ok := s.records[txID]
	if !ok {
		return nil, nil
	}
	return &attr, nil
}

// MemoryNotifiedSet is a process-local dedupe set. Entries older than ttl are
// forgotten; a zero ttl keeps them forever.
type MemoryNotifiedSet struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryNotifiedSet(ttl time.Duration) *MemoryNotifiedSet {
	return &MemoryNotifiedSet{seen: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (s *MemoryNotifiedSet) CheckAndMark(_ context.Context, txID string) (bool, error) {
	if txID == "" {
		return false, ErrEmptyTransactionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.liveLocked(txID) {
		return false, nil
	}
	s.seen[txID] = s.now()
	return true, nil
}

func (s *MemoryNotifiedSet) Contains(_ context.Context, txID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveLocked(txID), nil
}

func (s *MemoryNotifiedSet) liveLocked(txID string) bool {
	at, ok := s.seen[txID]
	if !ok {
		return false
	}
	if s.ttl > 0 && s.now().Sub(at) > s.ttl {
		delete(s.seen, txID)
		return false
	}
	return true
}

type MemoryCardStore struct {
	mu    sync.Mutex
	cards []domain.SavedCard
}

func NewMemoryCardStore() *MemoryCardStore {
	return &MemoryCardStore{}
}

func (s *MemoryCardStore) Save(_ context.Context, card domain.SavedCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if card.CreatedAt.IsZero() {
		card.CreatedAt = time.Now().UTC()
	}
	s.cards = append(s.cards, card)
	return nil
}

// List returns a copy of the stored cards in insertion order.
func (s *MemoryCardStore) List() []domain.SavedCard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SavedCard(nil), s.cards...)
}
