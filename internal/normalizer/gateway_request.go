package normalizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"payment-relay/internal/domain"

	"github.com/spf13/cast"
)

const (
	defaultDescription   = "Transação criada via API"
	defaultItemTitle     = "Item"
	defaultPixExpiryDays = 1
	fallbackPublicURL    = "http://localhost:8000"
)

// ClientInfo is what the relay observed about the caller of a create request.
type ClientInfo struct {
	IP        string
	Referrer  string
	UserAgent string
}

// BuildGatewayRequest reshapes a client create request into the gateway's
// schema. The pix block is only sent for pix payments, shipping only when at
// least one item is tangible, and the postback URL is always ours.
func BuildGatewayRequest(req domain.CreateRequest, attr domain.Attribution, postbackURL string, client ClientInfo) (domain.GatewayRequest, error) {
	method := NormalizePaymentMethod(req.PaymentMethod)

	out := domain.GatewayRequest{
		Customer:      normalizeCustomer(req.Customer),
		PaymentMethod: method,
		Amount:        int64(req.Amount),
		Items:         make([]domain.GatewayItem, 0, len(req.Items)),
		Installments:  int64(req.Installments),
		PostbackURL:   postbackURL,
		IP:            strings.TrimSpace(req.IP),
		Description:   strings.TrimSpace(req.Description),
	}
	if out.Installments <= 0 {
		out.Installments = 1
	}
	if out.IP == "" {
		out.IP = client.IP
	}
	if out.Description == "" {
		out.Description = defaultDescription
	}

	switch method {
	case domain.PaymentMethodPix:
		pix := domain.PixConfig{ExpiresInDays: defaultPixExpiryDays}
		if req.Pix != nil && req.Pix.ExpiresInDays > 0 {
			pix = *req.Pix
		}
		out.Pix = &pix
	case domain.PaymentMethodCreditCard:
		if req.Card != nil {
			out.Card = &domain.GatewayCard{
				Number:          strings.TrimSpace(req.Card.Number),
				HolderName:      strings.TrimSpace(req.Card.HolderName),
				ExpirationMonth: strings.TrimSpace(req.Card.Month()),
				ExpirationYear:  strings.TrimSpace(req.Card.Year()),
				CVV:             strings.TrimSpace(req.Card.CVV),
			}
		}
	}

	tangible := false
	for _, item := range req.Items {
		gi := buildGatewayItem(item)
		tangible = tangible || gi.Tangible
		out.Items = append(out.Items, gi)
	}
	if tangible {
		out.Shipping = buildShipping(req.Shipping)
	}

	metadata, err := mergeMetadata(req.Metadata, attr, client)
	if err != nil {
		return domain.GatewayRequest{}, fmt.Errorf("failed to encode metadata: %w", err)
	}
	out.Metadata = metadata
	return out, nil
}

// PostbackURL builds the callback URL the gateway will notify. A configured
// public base URL wins; otherwise the address the request was observed on.
func PostbackURL(publicBaseURL, observedBaseURL, path string) string {
	base := strings.TrimSpace(publicBaseURL)
	if !strings.HasPrefix(strings.ToLower(base), "http") {
		base = strings.TrimSpace(observedBaseURL)
	}
	if base == "" {
		base = fallbackPublicURL
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func buildGatewayItem(item domain.ClientItem) domain.GatewayItem {
	title := firstNonEmpty(item.Title, item.Description, item.Name)
	if title == "" {
		title = defaultItemTitle
	}
	var price int64
	switch {
	case item.UnitPrice != nil:
		price = int64(*item.UnitPrice)
	case item.Price != nil:
		price = int64(*item.Price)
	}
	quantity := int64(1)
	if item.Quantity != nil {
		quantity = int64(*item.Quantity)
	}
	return domain.GatewayItem{
		Title:       title,
		UnitPrice:   price,
		Quantity:    quantity,
		Tangible:    item.Tangible,
		ExternalRef: strings.TrimSpace(item.ExternalRef),
	}
}

func normalizeCustomer(c domain.Customer) domain.Customer {
	out := domain.Customer{
		Name:  strings.TrimSpace(c.Name),
		Email: strings.TrimSpace(c.Email),
		Phone: strings.TrimSpace(c.Phone),
	}
	if c.Document != nil {
		out.Document = &domain.Document{
			Number: strings.TrimSpace(c.Document.Number),
			Type:   strings.ToLower(strings.TrimSpace(c.Document.Type)),
		}
	}
	return out
}

// buildShipping accepts shipping either flat or nested under "address".
func buildShipping(raw json.RawMessage) *domain.Shipping {
	if len(raw) == 0 {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil
	}
	if addr, ok := obj["address"].(map[string]any); ok {
		obj = addr
	}
	return &domain.Shipping{
		Neighborhood: cast.ToString(obj["neighborhood"]),
		ZipCode:      cast.ToString(obj["zipCode"]),
		City:         cast.ToString(obj["city"]),
		Complement:   cast.ToString(obj["complement"]),
		StreetNumber: cast.ToString(obj["streetNumber"]),
		Street:       cast.ToString(obj["street"]),
		State:        cast.ToString(obj["state"]),
		Fee:          domain.ParseMinorUnits(obj["fee"]),
	}
}

// mergeMetadata folds attribution and client context into the client's own
// metadata. A metadata string that is not JSON is kept under "note".
func mergeMetadata(raw json.RawMessage, attr domain.Attribution, client ClientInfo) (string, error) {
	meta := map[string]any{}
	if obj := decodeMetadataBytes(raw); obj != nil {
		for k, v := range obj {
			meta[k] = v
		}
	} else if len(raw) > 0 {
		var note string
		if err := json.Unmarshal(raw, &note); err == nil && strings.TrimSpace(note) != "" {
			meta["note"] = note
		}
	}

	utm := make(map[string]string, 7)
	for _, p := range attr.Pairs() {
		utm[p[0]] = p[1]
	}
	meta["utm"] = utm
	if client.Referrer != "" {
		meta["referrer"] = client.Referrer
	}
	if client.UserAgent != "" {
		meta["userAgent"] = client.UserAgent
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(meta); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
