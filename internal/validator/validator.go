package validator

import (
	"errors"
	"regexp"
	"strings"

	"payment-relay/internal/domain"
)

var (
	ErrEmptyEmail         = errors.New("email is empty")
	ErrInvalidEmailFormat = errors.New("invalid email format")
	ErrEmptyTransactionID = errors.New("transaction ID is empty")
	ErrInvalidAmount      = errors.New("amount must not be negative")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return ErrEmptyEmail
	}
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmailFormat
	}
	return nil
}

func ValidateTransactionID(transactionID string) error {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return ErrEmptyTransactionID
	}
	return nil
}

func ValidateAmount(amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ValidatePaidEvent checks a broker paid event before a receipt is sent.
func ValidatePaidEvent(ev domain.PaidEvent) error {
	if err := ValidateTransactionID(ev.TransactionID); err != nil {
		return err
	}
	if err := ValidateEmail(ev.UserEmail); err != nil {
		return err
	}
	if err := ValidateAmount(ev.Amount); err != nil {
		return err
	}
	return nil
}

// IsPaid reports whether a gateway status or paid timestamp marks the
// transaction as paid.
func IsPaid(status, paidAt string) bool {
	return strings.EqualFold(strings.TrimSpace(status), string(domain.StatusPaid)) || strings.TrimSpace(paidAt) != ""
}
