package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"payment-relay/internal/domain"

	log "github.com/sirupsen/logrus"
)

type PostgresDeliveryLogRepository struct {
	db *sql.DB
}

func NewPostgresDeliveryLogRepository(db *sql.DB) *PostgresDeliveryLogRepository {
	return &PostgresDeliveryLogRepository{db: db}
}

func (r *PostgresDeliveryLogRepository) SaveLog(ctx context.Context, l domain.DeliveryLog) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	log.WithFields(log.Fields{
		"transaction_id": l.TransactionID,
		"sink":           l.Sink,
		"event":          l.Event,
		"status":         l.Status,
		"error_message":  l.ErrorMessage.String,
	}).Debug("Saving sink delivery log to database")

	const query = `
        INSERT INTO sink_delivery_logs (transaction_id, sink, event, status, error_message)
        VALUES ($1, $2, $3, $4, $5);
    `

	if _, err := r.db.ExecContext(ctx, query, l.TransactionID, l.Sink, l.Event, string(l.Status), nullStringOrNil(l.ErrorMessage)); err != nil {
		return fmt.Errorf("failed to insert sink delivery log: %w", err)
	}
	return nil
}

// LogDeliveryLogRepository only writes delivery outcomes to the process log.
// It is used when no relational store is configured.
type LogDeliveryLogRepository struct{}

func (LogDeliveryLogRepository) SaveLog(_ context.Context, l domain.DeliveryLog) error {
	entry := log.WithFields(log.Fields{
		"transaction_id": l.TransactionID,
		"sink":           l.Sink,
		"event":          l.Event,
		"status":         l.Status,
	})
	if l.ErrorMessage.Valid {
		entry.WithField("error_message", l.ErrorMessage.String).Warn("Sink delivery failed")
		return nil
	}
	entry.Info("Sink delivery recorded")
	return nil
}

func nullStringOrNil(ns sql.NullString) interface{} {
	if ns.Valid {
		return ns.String
	}
	return nil
}

func nullIfEmpty(p *string) interface{} {
	if p == nil || *p == "" {
		return nil
	}
	return *p
}
