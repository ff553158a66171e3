package repository

import (
	"context"
	"fmt"
	"io"
	"os"

	"payment-relay/internal/domain"

	log "github.com/sirupsen/logrus"
)

// CardAuditLog appends one JSON line per redacted card. The entry carries
// only what a SavedCard holds.
type CardAuditLog struct {
	logger *log.Logger
	closer io.Closer
}

func OpenCardAuditLog(path string) (*CardAuditLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open card audit log: %w", err)
	}
	a := NewCardAuditLog(f)
	a.closer = f
	return a, nil
}

func NewCardAuditLog(w io.Writer) *CardAuditLog {
	logger := log.New()
	logger.SetOutput(w)
	logger.SetFormatter(&log.JSONFormatter{})
	logger.SetLevel(log.InfoLevel)
	return &CardAuditLog{logger: logger}
}

func (a *CardAuditLog) Save(_ context.Context, card domain.SavedCard) error {
	a.logger.WithFields(log.Fields{
		"card_id": card.ID,
		"tx_id":   card.TxID,
		"email":   card.CustomerEmail,
		"holder":  card.HolderName,
		"last4":   card.Last4,
		"brand":   card.Brand,
		"exp":     card.ExpMonth + "/" + card.ExpYear,
	}).Info("card captured")
	return nil
}

func (a *CardAuditLog) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}
