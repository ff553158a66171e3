package sender

import (
	"context"
	"database/sql"
	"time"

	"payment-relay/internal/domain"
	"payment-relay/internal/normalizer"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	EventWaitingPayment = "waiting_payment"
	EventPaid           = "paid"
)

type OrderSender interface {
	Enabled() bool
	Send(ctx context.Context, ev domain.OrderEvent) error
}

type ConversionSender interface {
	Enabled() bool
	Send(ctx context.Context, tx domain.Transaction, attr *domain.Attribution) error
}

type PaidPublisher interface {
	Publish(ctx context.Context, ev domain.PaidEvent) error
}

type ReceiptSender interface {
	SendReceipt(ctx context.Context, ev domain.PaidEvent) error
}

type DeliveryLogRepository interface {
	SaveLog(ctx context.Context, l domain.DeliveryLog) error
}

// Sinks groups the delivery targets. Publisher and Receipts may be nil.
type Sinks struct {
	Orders      OrderSender
	Conversions ConversionSender
	Publisher   PaidPublisher
	Receipts    ReceiptSender
}

type NotifierOptions struct {
	Platform string
	Provider string
	Country  string
	Currency string
}

// Notifier fans lifecycle events out to the sinks. Delivery failures are
// logged and recorded, never returned.
type Notifier struct {
	sinks      Sinks
	deliveries DeliveryLogRepository
	opts       NotifierOptions
	now        func() time.Time
}

func NewNotifier(sinks Sinks, deliveries DeliveryLogRepository, opts NotifierOptions) *Notifier {
	return &Notifier{sinks: sinks, deliveries: deliveries, opts: opts, now: time.Now}
}

// NotifyWaiting reports a freshly created transaction to the order sink.
func (n *Notifier) NotifyWaiting(ctx context.Context, tx domain.Transaction, attr domain.Attribution) {
	if n.sinks.Orders == nil || !n.sinks.Orders.Enabled() {
		return
	}
	ev := normalizer.BuildOrderEvent(tx, string(domain.StatusWaitingPayment), &attr, n.orderOptions())
	n.deliver(ctx, string(tx.ID), OrderSinkName, EventWaitingPayment, func(ctx context.Context) error {
		return n.sinks.Orders.Send(ctx, ev)
	})
}

// NotifyPaid delivers a confirmed payment to every sink concurrently. It
// returns once every delivery has finished.
func (n *Notifier) NotifyPaid(ctx context.Context, tx domain.Transaction, attr domain.Attribution) {
	txID := string(tx.ID)
	paid := normalizer.BuildPaidEvent(tx, attr, n.opts.Provider, n.opts.Country, n.opts.Currency, n.now())

	var g errgroup.Group
	if n.sinks.Orders != nil && n.sinks.Orders.Enabled() {
		ev := normalizer.BuildOrderEvent(tx, string(domain.StatusPaid), &attr, n.orderOptions())
		g.Go(func() error {
			n.deliver(ctx, txID, OrderSinkName, EventPaid, func(ctx context.Context) error {
				return n.sinks.Orders.Send(ctx, ev)
			})
			return nil
		})
	}
	if n.sinks.Conversions != nil && n.sinks.Conversions.Enabled() {
		g.Go(func() error {
			n.deliver(ctx, txID, ConversionSinkName, EventPaid, func(ctx context.Context) error {
				return n.sinks.Conversions.Send(ctx, tx, &attr)
			})
			return nil
		})
	}
	if n.sinks.Publisher != nil {
		g.Go(func() error {
			n.deliver(ctx, txID, BrokerSinkName, EventPaid, func(ctx context.Context) error {
				return n.sinks.Publisher.Publish(ctx, paid)
			})
			return nil
		})
	}
	if n.sinks.Receipts != nil {
		g.Go(func() error {
			n.deliver(ctx, txID, ReceiptSinkName, EventPaid, func(ctx context.Context) error {
				return n.sinks.Receipts.SendReceipt(ctx, paid)
			})
			return nil
		})
	}
	_ = g.Wait()
}

func (n *Notifier) orderOptions() normalizer.OrderEventOptions {
	return normalizer.OrderEventOptions{Platform: n.opts.Platform, Country: n.opts.Country}
}

func (n *Notifier) deliver(ctx context.Context, txID, sink, event string, send func(context.Context) error) {
	entry := domain.DeliveryLog{TransactionID: txID, Sink: sink, Event: event, Status: domain.DeliverySent}
	if err := send(ctx); err != nil {
		log.WithFields(log.Fields{
			"transaction_id": txID,
			"sink":           sink,
			"event":          event,
			"error":          err,
		}).Error("Sink delivery failed")
		entry.Status = domain.DeliveryFailed
		entry.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
	}
	if n.deliveries == nil {
		return
	}
	if err := n.deliveries.SaveLog(ctx, entry); err != nil {
		log.WithError(err).Error("Failed to save sink delivery log")
	}
}
