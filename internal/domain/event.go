package domain

import "time"

type OrderCustomer struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Document string `json:"document"`
	Country  string `json:"country"`
	IP       string `json:"ip"`
}

type OrderProduct struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	PlanID       *string `json:"planId"`
	PlanName     *string `json:"planName"`
	Quantity     int64   `json:"quantity"`
	PriceInCents int64   `json:"priceInCents"`
}

type Commission struct {
	TotalPriceInCents     int64 `json:"totalPriceInCents"`
	GatewayFeeInCents     int64 `json:"gatewayFeeInCents"`
	UserCommissionInCents int64 `json:"userCommissionInCents"`
}

// OrderEvent is the order-tracking sink's schema.
type OrderEvent struct {
	OrderID            string         `json:"orderId"`
	Platform           string         `json:"platform"`
	PaymentMethod      PaymentMethod  `json:"paymentMethod"`
	Status             string         `json:"status"`
	CreatedAt          *string        `json:"createdAt"`
	ApprovedDate       *string        `json:"approvedDate"`
	RefundedAt         *string        `json:"refundedAt"`
	Customer           OrderCustomer  `json:"customer"`
	Products           []OrderProduct `json:"products"`
	TrackingParameters Attribution    `json:"trackingParameters"`
	Commission         Commission     `json:"commission"`
	IsTest             bool           `json:"isTest"`
}

type ConversionUserData struct {
	Email           []string `json:"em,omitempty"`
	Phone           []string `json:"ph,omitempty"`
	ClientIPAddress string   `json:"client_ip_address,omitempty"`
	ClientUserAgent string   `json:"client_user_agent,omitempty"`
}

type ConversionCustomData struct {
	Value       float64  `json:"value"`
	Currency    string   `json:"currency"`
	OrderID     string   `json:"order_id,omitempty"`
	ContentType string   `json:"content_type"`
	ContentIDs  []string `json:"content_ids,omitempty"`
}

// ConversionEvent is a server-side purchase event for a conversions API.
// Personal fields in UserData are one-way hashes.
type ConversionEvent struct {
	EventName      string               `json:"event_name"`
	EventTime      int64                `json:"event_time"`
	EventID        string               `json:"event_id,omitempty"`
	ActionSource   string               `json:"action_source"`
	EventSourceURL string               `json:"event_source_url,omitempty"`
	UserData       ConversionUserData   `json:"user_data"`
	CustomData     ConversionCustomData `json:"custom_data"`
}

// PaidEvent is published to the broker once per confirmed payment.
type PaidEvent struct {
	TransactionID      string      `json:"transaction_id"`
	UserEmail          string      `json:"user_email"`
	Amount             int64       `json:"amount"`
	Currency           string      `json:"currency"`
	PaymentMethod      string      `json:"payment_method"`
	Provider           string      `json:"provider"`
	Country            string      `json:"country"`
	Funnel             string      `json:"funnel,omitempty"`
	ProductID          string      `json:"product_id,omitempty"`
	TrackingParameters Attribution `json:"tracking_parameters"`
	PaidAt             time.Time   `json:"paid_at"`
}
