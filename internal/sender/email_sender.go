package sender

import (
	"context"
	"fmt"
	"net/smtp"
	"time"

	"payment-relay/internal/apperror"
	"payment-relay/internal/domain"
	"payment-relay/internal/validator"

	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const ReceiptSinkName = "receipt_email"

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type SMTPEmailSender struct {
	host string
	port string
	user string
	pass string
	from string
}

func NewSMTPEmailSender(host, port, user, pass, from string) *SMTPEmailSender {
	return &SMTPEmailSender{host: host, port: port, user: user, pass: pass, from: from}
}

func (s *SMTPEmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	auth := smtp.PlainAuth("", s.user, s.pass, s.host)

	e := email.NewEmail()
	e.From = s.from
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	return e.Send(addr, auth)
}

// ReceiptSink emails the customer once a payment is confirmed.
type ReceiptSink struct {
	sender       EmailSender
	maxAttempts  int
	initialDelay time.Duration
}

func NewReceiptSink(sender EmailSender) *ReceiptSink {
	return &ReceiptSink{sender: sender, maxAttempts: 3, initialDelay: 1 * time.Second}
}

// WithBackoff overrides the retry schedule.
func (r *ReceiptSink) WithBackoff(maxAttempts int, initialDelay time.Duration) *ReceiptSink {
	r.maxAttempts = maxAttempts
	r.initialDelay = initialDelay
	return r
}

func (r *ReceiptSink) Name() string { return ReceiptSinkName }

func (r *ReceiptSink) SendReceipt(ctx context.Context, ev domain.PaidEvent) error {
	if err := validator.ValidatePaidEvent(ev); err != nil {
		return apperror.SinkDelivery(ReceiptSinkName, fmt.Errorf("validation error: %w", err))
	}

	subject := "Pagamento confirmado"
	amount := decimal.New(ev.Amount, -2).StringFixed(2)
	body := fmt.Sprintf(
		"Olá!\n\nRecebemos o seu pagamento de %s %s.\nID da transação: %s\n\nObrigado pela compra!",
		ev.Currency, amount, ev.TransactionID,
	)

	delay := r.initialDelay
	var err error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err = r.sender.SendEmail(ctx, ev.UserEmail, subject, body)
		if err == nil {
			if attempt > 1 {
				log.WithFields(log.Fields{
					"attempt":      attempt,
					"max_attempts": r.maxAttempts,
					"email":        ev.UserEmail,
				}).Info("Email sent successfully after retry")
			}
			return nil
		}

		if attempt < r.maxAttempts {
			log.WithFields(log.Fields{
				"attempt":      attempt,
				"max_attempts": r.maxAttempts,
				"error":        err,
				"email":        ev.UserEmail,
			}).Warn("Failed to send email, retrying...")

			select {
			case <-ctx.Done():
				return apperror.SinkDelivery(ReceiptSinkName, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return apperror.SinkDelivery(ReceiptSinkName, err)
}
