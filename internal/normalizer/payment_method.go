package normalizer

import (
	"strings"

	"payment-relay/internal/domain"
)

// canonicalPaymentMethods are passed through unchanged.
var canonicalPaymentMethods = map[string]domain.PaymentMethod{
	"credit_card": domain.PaymentMethodCreditCard,
	"boleto":      domain.PaymentMethodBoleto,
	"pix":         domain.PaymentMethodPix,
	"paypal":      domain.PaymentMethodPayPal,
	"free_price":  domain.PaymentMethodFreePrice,
	"unknown":     domain.PaymentMethodUnknown,
}

var paymentMethodAliases = map[string]domain.PaymentMethod{
	"card":            domain.PaymentMethodCreditCard,
	"credit":          domain.PaymentMethodCreditCard,
	"cc":              domain.PaymentMethodCreditCard,
	"boleto_bancario": domain.PaymentMethodBoleto,
}

// FallbackPaymentMethod is reported for any value that is neither canonical
// nor a known alias, including the empty string.
const FallbackPaymentMethod = domain.PaymentMethodPix

func NormalizePaymentMethod(raw string) domain.PaymentMethod {
	val := strings.ToLower(strings.TrimSpace(raw))
	if pm, ok := canonicalPaymentMethods[val]; ok {
		return pm
	}
	if pm, ok := paymentMethodAliases[val]; ok {
		return pm
	}
	return FallbackPaymentMethod
}
