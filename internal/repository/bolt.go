package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"payment-relay/internal/domain"

	bolt "github.com/boltdb/bolt"
	"github.com/google/uuid"
)

var (
	attributionBucket = []byte("transaction_utm")
	notifiedBucket    = []byte("notified_transactions")
	cardsBucket       = []byte("saved_cards")
)

// BoltStore keeps attribution, dedupe marks and redacted cards in a single
// embedded database file. Every insert-if-absent runs inside one write
// transaction, and bolt serializes writers.
type BoltStore struct {
	db *bolt.DB
}

func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{attributionBucket, notifiedBucket, cardsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bolt buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// insertIfAbsent writes value under key unless the key exists and reports
// whether it wrote.
func (s *BoltStore) insertIfAbsent(bucket []byte, key string, value []byte) (bool, error) {
	created := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b.Get([]byte(key)) != nil {
			return nil
		}
		created = true
		return b.Put([]byte(key), value)
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *BoltStore) exists(bucket []byte, key string) (bool, error) {
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucket).Get([]byte(key)) != nil
		return nil
	})
	return found, err
}

// Attributions exposes the store as an attribution store.
func (s *BoltStore) Attributions() *BoltAttributionStore { return &BoltAttributionStore{s} }

// Notified exposes the store as a dedupe set.
func (s *BoltStore) Notified() *BoltNotifiedSet { return &BoltNotifiedSet{s} }

func (s *BoltStore) Cards() *BoltCardStore { return &BoltCardStore{s} }

type BoltAttributionStore struct{ s *BoltStore }

func (a *BoltAttributionStore) Put(_ context.Context, txID string, attr domain.Attribution) (bool, error) {
	if txID == "" {
		return false, ErrEmptyTransactionID
	}
	data, err := json.Marshal(attr)
	if err != nil {
		return false, fmt.Errorf("failed to encode attribution: %w", err)
	}
	created, err := a.s.insertIfAbsent(attributionBucket, txID, data)
	if err != nil {
		return false, fmt.Errorf("failed to insert attribution: %w", err)
	}
	return created, nil
}

func (a *BoltAttributionStore) Get(_ context.Context, txID string) (*domain.Attribution, error) {
	var attr *domain.Attribution
	err := a.s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(attributionBucket).Get([]byte(txID))
		if v == nil {
			return nil
		}
		attr = &domain.Attribution{}
		return json.Unmarshal(v, attr)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load attribution: %w", err)
	}
	return attr, nil
}

type BoltNotifiedSet struct{ s *BoltStore }

func (n *BoltNotifiedSet) CheckAndMark(_ context.Context, txID string) (bool, error) {
	if txID == "" {
		return false, ErrEmptyTransactionID
	}
	stamp := []byte(time.Now().UTC().Format(time.RFC3339Nano))
	created, err := n.s.insertIfAbsent(notifiedBucket, txID, stamp)
	if err != nil {
		return false, fmt.Errorf("failed to mark transaction as notified: %w", err)
	}
	return created, nil
}

func (n *BoltNotifiedSet) Contains(_ context.Context, txID string) (bool, error) {
	found, err := n.s.exists(notifiedBucket, txID)
	if err != nil {
		return false, fmt.Errorf("failed to check notified transaction: %w", err)
	}
	return found, nil
}

type BoltCardStore struct{ s *BoltStore }

func (c *BoltCardStore) Save(_ context.Context, card domain.SavedCard) error {
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	if card.CreatedAt.IsZero() {
		card.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("failed to encode saved card: %w", err)
	}
	if _, err := c.s.insertIfAbsent(cardsBucket, card.ID, data); err != nil {
		return fmt.Errorf("failed to insert saved card: %w", err)
	}
	return nil
}

// List returns every stored card.
func (c *BoltCardStore) List() ([]domain.SavedCard, error) {
	cards := []domain.SavedCard{}
	err := c.s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(cardsBucket).ForEach(func(_, v []byte) error {
			var card domain.SavedCard
			if err := json.Unmarshal(v, &card); err != nil {
				return err
			}
			cards = append(cards, card)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return cards, nil
}
