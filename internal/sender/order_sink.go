package sender

import (
	"context"
	"time"

	"payment-relay/internal/apperror"
	"payment-relay/internal/domain"

	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

const OrderSinkName = "utmify"

// OrderSink posts order events to the order-tracking API. Without a token it
// is disabled and Send does nothing.
type OrderSink struct {
	endpoint string
	token    string
	timeout  time.Duration
	client   *fasthttp.Client
}

func NewOrderSink(endpoint, token string, timeout time.Duration) *OrderSink {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &OrderSink{endpoint: endpoint, token: token, timeout: timeout, client: newHTTPClient()}
}

func (s *OrderSink) Name() string { return OrderSinkName }

func (s *OrderSink) Enabled() bool { return s.token != "" }

func (s *OrderSink) Send(ctx context.Context, ev domain.OrderEvent) error {
	if !s.Enabled() {
		return nil
	}
	status, _, err := postJSON(ctx, s.client, s.endpoint, map[string]string{"x-api-token": s.token}, ev, s.timeout)
	if err != nil {
		return apperror.SinkDelivery(OrderSinkName, err)
	}
	log.WithFields(log.Fields{
		"order_id": ev.OrderID,
		"status":   ev.Status,
		"code":     status,
	}).Info("Order event delivered")
	return nil
}
