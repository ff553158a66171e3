package sender_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"payment-relay/internal/apperror"
	"payment-relay/internal/domain"
	"payment-relay/internal/sender"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmailSender struct {
	failures int
	calls    int
	to       string
	body     string
}

func (f *fakeEmailSender) SendEmail(_ context.Context, to, _, body string) error {
	f.calls++
	f.to = to
	f.body = body
	if f.calls <= f.failures {
		return errors.New("smtp unavailable")
	}
	return nil
}

func paidEvent() domain.PaidEvent {
	return domain.PaidEvent{TransactionID: "tx_1", UserEmail: "ana@example.com", Amount: 1990, Currency: "BRL"}
}

func TestReceiptSinkRetriesThenSucceeds(t *testing.T) {
	mail := &fakeEmailSender{failures: 2}
	sink := sender.NewReceiptSink(mail).WithBackoff(3, time.Millisecond)

	err := sink.SendReceipt(context.Background(), paidEvent())
	require.NoError(t, err)

	assert.Equal(t, 3, mail.calls)
	assert.Equal(t, "ana@example.com", mail.to)
	assert.Contains(t, mail.body, "BRL 19.90")
	assert.Contains(t, mail.body, "tx_1")
}

func TestReceiptSinkGivesUp(t *testing.T) {
	mail := &fakeEmailSender{failures: 5}
	sink := sender.NewReceiptSink(mail).WithBackoff(3, time.Millisecond)

	err := sink.SendReceipt(context.Background(), paidEvent())

	assert.Equal(t, 3, mail.calls)
	assert.Equal(t, apperror.KindSinkDelivery, apperror.KindOf(err))
}

func TestReceiptSinkSkipsInvalidEmail(t *testing.T) {
	mail := &fakeEmailSender{}
	ev := paidEvent()
	ev.UserEmail = "not-an-email"

	err := sender.NewReceiptSink(mail).SendReceipt(context.Background(), ev)

	assert.Error(t, err)
	assert.Zero(t, mail.calls)
}
