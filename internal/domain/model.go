package domain

import (
	"database/sql"
	"encoding/json"
	"time"
)

// TransactionStatus is the lifecycle state owned by the gateway.
type TransactionStatus string

const (
	StatusCreated        TransactionStatus = "created"
	StatusWaitingPayment TransactionStatus = "waiting_payment"
	StatusPaid           TransactionStatus = "paid"
	StatusExpired        TransactionStatus = "expired"
	StatusFailed         TransactionStatus = "failed"
)

type PaymentMethod string

const (
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodBoleto     PaymentMethod = "boleto"
	PaymentMethodPix        PaymentMethod = "pix"
	PaymentMethodPayPal     PaymentMethod = "paypal"
	PaymentMethodFreePrice  PaymentMethod = "free_price"
	PaymentMethodUnknown    PaymentMethod = "unknown"
)

type Document struct {
	Number string `json:"number,omitempty"`
	Type   string `json:"type,omitempty"`
}

// UnmarshalJSON accepts either a document object or a bare document number.
func (d *Document) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		d.Number = s
		return nil
	}
	type plain Document
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}
	*d = Document(p)
	return nil
}

type Customer struct {
	Name     string    `json:"name,omitempty"`
	Email    string    `json:"email,omitempty"`
	Phone    string    `json:"phone,omitempty"`
	Document *Document `json:"document,omitempty"`
}

// Item is a line item as the gateway reports it.
type Item struct {
	ID          FlexString `json:"id,omitempty"`
	ExternalRef string     `json:"externalRef,omitempty"`
	Title       string     `json:"title"`
	UnitPrice   MinorUnits `json:"unitPrice"`
	Quantity    Count      `json:"quantity"`
	Tangible    bool       `json:"tangible"`
}

// Transaction is the gateway's representation of a payment. It is referenced
// by id and never stored locally.
type Transaction struct {
	ID            FlexString      `json:"id"`
	Status        string          `json:"status"`
	Amount        MinorUnits      `json:"amount"`
	PaymentMethod string          `json:"paymentMethod"`
	Customer      Customer        `json:"customer"`
	Items         []Item          `json:"items"`
	CreatedAt     string          `json:"createdAt"`
	PaidAt        string          `json:"paidAt"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	IP            string          `json:"ip"`
}

// Attribution holds the marketing parameters captured when a transaction is
// created. UTMSource and UTMMedium always carry a value; the rest are null
// when absent.
type Attribution struct {
	UTMSource   string  `json:"utm_source"`
	UTMMedium   string  `json:"utm_medium"`
	UTMCampaign *string `json:"utm_campaign"`
	UTMContent  *string `json:"utm_content"`
	UTMTerm     *string `json:"utm_term"`
	Src         *string `json:"src"`
	Sck         *string `json:"sck"`
}

const (
	DefaultUTMSource = "direct"
	DefaultUTMMedium = "none"
)

func DefaultAttribution() Attribution {
	return Attribution{UTMSource: DefaultUTMSource, UTMMedium: DefaultUTMMedium}
}

// Pairs returns the non-empty parameters in a fixed key order.
func (a Attribution) Pairs() [][2]string {
	pairs := make([][2]string, 0, 7)
	add := func(k string, v *string) {
		if v != nil && *v != "" {
			pairs = append(pairs, [2]string{k, *v})
		}
	}
	add("utm_source", &a.UTMSource)
	add("utm_medium", &a.UTMMedium)
	add("utm_campaign", a.UTMCampaign)
	add("utm_content", a.UTMContent)
	add("utm_term", a.UTMTerm)
	add("src", a.Src)
	add("sck", a.Sck)
	return pairs
}

// SavedCard is the redacted cardholder reference kept for audit. It has no
// field able to hold a full card number or a verification code.
type SavedCard struct {
	ID            string
	TxID          string
	CustomerEmail string
	HolderName    string
	Last4         string
	Brand         string
	ExpMonth      string
	ExpYear       string
	CreatedAt     time.Time
}

type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// DeliveryLog records the outcome of one sink delivery.
type DeliveryLog struct {
	TransactionID string
	Sink          string
	Event         string
	Status        DeliveryStatus
	ErrorMessage  sql.NullString
}
