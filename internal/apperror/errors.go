package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindClientInput           Kind = "client_input"
	KindConfiguration         Kind = "configuration"
	KindPaymentMethodRejected Kind = "payment_method_rejected"
	KindUpstreamUnavailable   Kind = "upstream_unavailable"
	KindUpstreamRejected      Kind = "upstream_rejected"
	KindSinkDelivery          Kind = "sink_delivery"
	KindPersistence           Kind = "persistence"
)

// Error is an application error carrying the HTTP status it maps to.
type Error struct {
	Kind    Kind   `json:"-"`
	Code    int    `json:"-"`
	Message string `json:"error"`
	Detail  string `json:"detail,omitempty"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Code: defaultCode(kind), Message: message, Err: err}
}

func ClientInput(message string, err error) *Error {
	return New(KindClientInput, message, err)
}

func Configuration(message string) *Error {
	return New(KindConfiguration, message, nil)
}

func PaymentMethodRejected(message string) *Error {
	return New(KindPaymentMethodRejected, message, nil)
}

// UpstreamUnavailable wraps a transport failure; the cause is exposed as
// detail for diagnostics.
func UpstreamUnavailable(err error) *Error {
	e := New(KindUpstreamUnavailable, "Upstream request failed", err)
	if err != nil {
		e.Detail = err.Error()
	}
	return e
}

func SinkDelivery(sink string, err error) *Error {
	return New(KindSinkDelivery, sink+" delivery failed", err)
}

func Persistence(message string, err error) *Error {
	return New(KindPersistence, message, err)
}

func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// HTTPStatus returns the status an error should surface with. Errors that
// are not *Error map to 500.
func HTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Code != 0 {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

func defaultCode(kind Kind) int {
	switch kind {
	case KindClientInput:
		return http.StatusBadRequest
	case KindPaymentMethodRejected:
		return http.StatusPaymentRequired
	case KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
