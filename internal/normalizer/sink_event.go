package normalizer

import (
	"strings"
	"time"

	"payment-relay/internal/domain"
)

const sinkTimestampLayout = "2006-01-02 15:04:05"

type OrderEventOptions struct {
	Platform string
	Country  string
}

// SinkStatus rounds the gateway's statuses to the two buckets the sinks
// see: "paid" passes through and everything else is waiting_payment.
func SinkStatus(status string) string {
	if status == string(domain.StatusPaid) {
		return string(domain.StatusPaid)
	}
	return string(domain.StatusWaitingPayment)
}

// BuildOrderEvent maps a gateway transaction onto the order-tracking schema.
// A nil override means the attribution is read back from the transaction's
// metadata.
func BuildOrderEvent(tx domain.Transaction, status string, override *domain.Attribution, opts OrderEventOptions) domain.OrderEvent {
	sinkStatus := SinkStatus(status)

	tracking := ExtractAttribution(nil, []byte(tx.Metadata))
	if override != nil {
		tracking = *override
	}

	var approved *string
	if sinkStatus == string(domain.StatusPaid) {
		approved = FormatTimestamp(tx.PaidAt)
	}

	document := ""
	if tx.Customer.Document != nil {
		document = strings.TrimSpace(tx.Customer.Document.Number)
	}

	return domain.OrderEvent{
		OrderID:       string(tx.ID),
		Platform:      opts.Platform,
		PaymentMethod: NormalizePaymentMethod(tx.PaymentMethod),
		Status:        sinkStatus,
		CreatedAt:     FormatTimestamp(tx.CreatedAt),
		ApprovedDate:  approved,
		Customer: domain.OrderCustomer{
			Name:     strings.TrimSpace(tx.Customer.Name),
			Email:    strings.TrimSpace(tx.Customer.Email),
			Phone:    strings.TrimSpace(tx.Customer.Phone),
			Document: document,
			Country:  opts.Country,
			IP:       tx.IP,
		},
		Products:           orderProducts(tx.Items),
		TrackingParameters: tracking,
		Commission: domain.Commission{
			TotalPriceInCents:     int64(tx.Amount),
			UserCommissionInCents: int64(tx.Amount),
		},
	}
}

// BuildPaidEvent is the broker message for a confirmed payment.
func BuildPaidEvent(tx domain.Transaction, attr domain.Attribution, provider, country, currency string, now time.Time) domain.PaidEvent {
	ev := domain.PaidEvent{
		TransactionID:      string(tx.ID),
		UserEmail:          strings.TrimSpace(tx.Customer.Email),
		Amount:             int64(tx.Amount),
		Currency:           currency,
		PaymentMethod:      string(NormalizePaymentMethod(tx.PaymentMethod)),
		Provider:           provider,
		Country:            country,
		TrackingParameters: attr,
		PaidAt:             now.UTC(),
	}
	if attr.UTMCampaign != nil {
		ev.Funnel = *attr.UTMCampaign
	}
	if len(tx.Items) > 0 {
		ev.ProductID = itemID(tx.Items[0])
	}
	return ev
}

// FormatTimestamp turns ISO-8601 timestamps into "YYYY-MM-DD HH:MM:SS" in the
// timestamp's own offset. Other non-empty values pass through unchanged.
func FormatTimestamp(ts string) *string {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, ts); err == nil {
			s := t.Format(sinkTimestampLayout)
			return &s
		}
	}
	return &ts
}

func orderProducts(items []domain.Item) []domain.OrderProduct {
	products := make([]domain.OrderProduct, 0, len(items))
	for _, i := range items {
		quantity := int64(i.Quantity)
		if quantity == 0 {
			quantity = 1
		}
		products = append(products, domain.OrderProduct{
			ID:           itemID(i),
			Name:         i.Title,
			Quantity:     quantity,
			PriceInCents: int64(i.UnitPrice),
		})
	}
	return products
}

func itemID(i domain.Item) string {
	return firstNonEmpty(i.ExternalRef, string(i.ID), i.Title)
}
