package normalizer

import (
	"strings"

	"payment-relay/internal/domain"
)

// RedactCard keeps only what may be stored about a card: holder, last four
// digits, brand and expiry. The number and verification code are dropped.
func RedactCard(card domain.CardInput, txID, email string) domain.SavedCard {
	digits := digitsOnly(card.Number)
	last4 := digits
	if len(digits) > 4 {
		last4 = digits[len(digits)-4:]
	}
	return domain.SavedCard{
		TxID:          txID,
		CustomerEmail: strings.TrimSpace(email),
		HolderName:    strings.TrimSpace(card.HolderName),
		Last4:         last4,
		Brand:         CardBrand(digits),
		ExpMonth:      truncate(strings.TrimSpace(card.Month()), 2),
		ExpYear:       truncate(strings.TrimSpace(card.Year()), 4),
	}
}

// CardBrand guesses the scheme from the leading digits; "" when unknown.
func CardBrand(digits string) string {
	switch {
	case strings.HasPrefix(digits, "4"):
		return "visa"
	case strings.HasPrefix(digits, "34"), strings.HasPrefix(digits, "37"):
		return "amex"
	case len(digits) >= 2 && digits[0] == '5' && digits[1] >= '1' && digits[1] <= '5':
		return "mastercard"
	case len(digits) >= 4 && digits[:4] >= "2221" && digits[:4] <= "2720":
		return "mastercard"
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
