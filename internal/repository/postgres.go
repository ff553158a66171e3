package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"payment-relay/internal/domain"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const queryTimeout = 5 * time.Second

type PostgresAttributionStore struct {
	db *sql.DB
}

func NewPostgresAttributionStore(db *sql.DB) *PostgresAttributionStore {
	return &PostgresAttributionStore{db: db}
}

// Put inserts the attribution unless the transaction already has one.
func (r *PostgresAttributionStore) Put(ctx context.Context, txID string, attr domain.Attribution) (bool, error) {
	if txID == "" {
		return false, ErrEmptyTransactionID
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
        INSERT INTO transaction_utm (tx_id, utm_source, utm_medium, utm_campaign, utm_content, utm_term, src, sck)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (tx_id) DO NOTHING;
    `

	res, err := r.db.ExecContext(ctx, query, txID, attr.UTMSource, attr.UTMMedium,
		nullIfEmpty(attr.UTMCampaign), nullIfEmpty(attr.UTMContent), nullIfEmpty(attr.UTMTerm),
		nullIfEmpty(attr.Src), nullIfEmpty(attr.Sck))
	if err != nil {
		return false, fmt.Errorf("failed to insert attribution: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read attribution insert result: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresAttributionStore) Get(ctx context.Context, txID string) (*domain.Attribution, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
        SELECT utm_source, utm_medium, utm_campaign, utm_content, utm_term, src, sck
        FROM transaction_utm WHERE tx_id = $1;
    `

	var (
		attr                              domain.Attribution
		campaign, content, term, src, sck sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, txID).Scan(&attr.UTMSource, &attr.UTMMedium, &campaign, &content, &term, &src, &sck)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load attribution: %w", err)
	}
	attr.UTMCampaign = stringOrNil(campaign)
	attr.UTMContent = stringOrNil(content)
	attr.UTMTerm = stringOrNil(term)
	attr.Src = stringOrNil(src)
	attr.Sck = stringOrNil(sck)
	return &attr, nil
}

type PostgresNotifiedSet struct {
	db *sql.DB
}

func NewPostgresNotifiedSet(db *sql.DB) *PostgresNotifiedSet {
	return &PostgresNotifiedSet{db: db}
}

// CheckAndMark relies on the primary key: only the insert that actually
// creates the row reports true.
func (r *PostgresNotifiedSet) CheckAndMark(ctx context.Context, txID string) (bool, error) {
	if txID == "" {
		return false, ErrEmptyTransactionID
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
        INSERT INTO notified_transactions (tx_id) VALUES ($1)
        ON CONFLICT (tx_id) DO NOTHING;
    `

	res, err := r.db.ExecContext(ctx, query, txID)
	if err != nil {
		return false, fmt.Errorf("failed to mark transaction as notified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read notified insert result: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresNotifiedSet) Contains(ctx context.Context, txID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM notified_transactions WHERE tx_id = $1);`
	if err := r.db.QueryRowContext(ctx, query, txID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check notified transaction: %w", err)
	}
	return exists, nil
}

type PostgresCardStore struct {
	db *sql.DB
}

func NewPostgresCardStore(db *sql.DB) *PostgresCardStore {
	return &PostgresCardStore{db: db}
}

func (r *PostgresCardStore) Save(ctx context.Context, card domain.SavedCard) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	log.WithFields(log.Fields{
		"transaction_id": card.TxID,
		"last4":          card.Last4,
		"brand":          card.Brand,
	}).Info("Saving redacted card reference")

	const query = `
        INSERT INTO saved_cards (id, tx_id, customer_email, holder_name, last4, brand, exp_month, exp_year)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
    `

	id := card.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, err := r.db.ExecContext(ctx, query, id, card.TxID, card.CustomerEmail, card.HolderName,
		card.Last4, card.Brand, card.ExpMonth, card.ExpYear); err != nil {
		return fmt.Errorf("failed to insert saved card: %w", err)
	}
	return nil
}

func stringOrNil(ns sql.NullString) *string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	s := ns.String
	return &s
}
