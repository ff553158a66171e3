package consumer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"payment-relay/internal/domain"
	"payment-relay/internal/sender"

	log "github.com/sirupsen/logrus"
)

type ReceiptSender interface {
	SendReceipt(ctx context.Context, ev domain.PaidEvent) error
}

type DeliveryLogRepository interface {
	SaveLog(ctx context.Context, l domain.DeliveryLog) error
}

// ReceiptHandler turns published paid events into receipt emails.
type ReceiptHandler struct {
	receipts   ReceiptSender
	deliveries DeliveryLogRepository
}

func NewReceiptHandler(receipts ReceiptSender, deliveries DeliveryLogRepository) *ReceiptHandler {
	return &ReceiptHandler{receipts: receipts, deliveries: deliveries}
}

func (h *ReceiptHandler) HandleMessage(ctx context.Context, message []byte) error {
	var ev domain.PaidEvent
	if err := json.Unmarshal(message, &ev); err != nil {
		return fmt.Errorf("failed to unmarshal paid event: %w", err)
	}

	logCtx := log.WithFields(log.Fields{
		"transaction_id": ev.TransactionID,
		"provider":       ev.Provider,
	})
	logCtx.Info("Processing paid event for receipt email")

	entry := domain.DeliveryLog{
		TransactionID: ev.TransactionID,
		Sink:          sender.ReceiptSinkName,
		Event:         sender.EventPaid,
		Status:        domain.DeliverySent,
	}
	sendErr := h.receipts.SendReceipt(ctx, ev)
	if sendErr != nil {
		entry.Status = domain.DeliveryFailed
		entry.ErrorMessage = sql.NullString{String: sendErr.Error(), Valid: true}
	}
	if h.deliveries != nil {
		if err := h.deliveries.SaveLog(ctx, entry); err != nil {
			logCtx.WithError(err).Error("Failed to save sink delivery log")
		}
	}
	return sendErr
}
