package domain

import (
	"encoding/json"
	"fmt"
)

type PixConfig struct {
	ExpiresInDays int `json:"expiresInDays"`
}

// CardInput is the card block a client may send. It only lives for the
// duration of one request and must never be logged or persisted as is.
type CardInput struct {
	Number          string     `json:"number"`
	HolderName      string     `json:"holderName"`
	CVV             string     `json:"cvv"`
	ExpirationMonth FlexString `json:"expirationMonth"`
	ExpirationYear  FlexString `json:"expirationYear"`
	ExpMonth        FlexString `json:"expMonth"`
	ExpYear         FlexString `json:"expYear"`
}

func (c CardInput) String() string {
	return fmt.Sprintf("CardInput{holder=%q, number=<redacted>, cvv=<redacted>}", c.HolderName)
}

func (c CardInput) GoString() string { return c.String() }

// Month returns the expiry month, preferring expirationMonth over expMonth.
func (c CardInput) Month() string {
	if c.ExpirationMonth != "" {
		return string(c.ExpirationMonth)
	}
	return string(c.ExpMonth)
}

func (c CardInput) Year() string {
	if c.ExpirationYear != "" {
		return string(c.ExpirationYear)
	}
	return string(c.ExpYear)
}

// ClientItem accepts the several item shapes client applications send.
type ClientItem struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Name        string      `json:"name"`
	UnitPrice   *MinorUnits `json:"unitPrice"`
	Price       *MinorUnits `json:"price"`
	Quantity    *Count      `json:"quantity"`
	Tangible    bool        `json:"tangible"`
	ExternalRef string      `json:"externalRef"`
}

// CreateRequest is the inbound create-transaction body.
type CreateRequest struct {
	Customer      Customer        `json:"customer"`
	Amount        MinorUnits      `json:"amount"`
	Items         []ClientItem    `json:"items"`
	PaymentMethod string          `json:"paymentMethod"`
	Pix           *PixConfig      `json:"pix"`
	Shipping      json.RawMessage `json:"shipping"`
	Metadata      json.RawMessage `json:"metadata"`
	Card          *CardInput      `json:"card"`
	Installments  Count           `json:"installments"`
	Description   string          `json:"description"`
	IP            string          `json:"ip"`
	PostbackURL   string          `json:"postbackUrl"`
}

type GatewayItem struct {
	Title       string `json:"title"`
	UnitPrice   int64  `json:"unitPrice"`
	Quantity    int64  `json:"quantity"`
	Tangible    bool   `json:"tangible"`
	ExternalRef string `json:"externalRef,omitempty"`
}

type GatewayCard struct {
	Number          string `json:"number"`
	HolderName      string `json:"holderName"`
	ExpirationMonth string `json:"expirationMonth"`
	ExpirationYear  string `json:"expirationYear"`
	CVV             string `json:"cvv"`
}

type Shipping struct {
	Neighborhood string `json:"neighborhood,omitempty"`
	ZipCode      string `json:"zipCode,omitempty"`
	City         string `json:"city,omitempty"`
	Complement   string `json:"complement,omitempty"`
	StreetNumber string `json:"streetNumber,omitempty"`
	Street       string `json:"street,omitempty"`
	State        string `json:"state,omitempty"`
	Fee          int64  `json:"fee"`
}

// GatewayRequest is the create-transaction body sent to the gateway.
type GatewayRequest struct {
	Customer      Customer      `json:"customer"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Amount        int64         `json:"amount"`
	Items         []GatewayItem `json:"items"`
	Pix           *PixConfig    `json:"pix,omitempty"`
	Card          *GatewayCard  `json:"card,omitempty"`
	Installments  int64         `json:"installments"`
	PostbackURL   string        `json:"postbackUrl"`
	IP            string        `json:"ip,omitempty"`
	Description   string        `json:"description"`
	Metadata      string        `json:"metadata,omitempty"`
	Shipping      *Shipping     `json:"shipping,omitempty"`
}
