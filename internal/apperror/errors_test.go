package apperror_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"payment-relay/internal/apperror"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, apperror.HTTPStatus(apperror.ClientInput("Invalid JSON body", nil)))
	assert.Equal(t, http.StatusInternalServerError, apperror.HTTPStatus(apperror.Configuration("missing credentials")))
	assert.Equal(t, http.StatusPaymentRequired, apperror.HTTPStatus(apperror.PaymentMethodRejected("nope")))
	assert.Equal(t, http.StatusBadGateway, apperror.HTTPStatus(apperror.UpstreamUnavailable(errors.New("dial tcp: refused"))))
	assert.Equal(t, http.StatusInternalServerError, apperror.HTTPStatus(errors.New("plain")))
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("create: %w", apperror.UpstreamUnavailable(errors.New("timeout")))
	assert.Equal(t, apperror.KindUpstreamUnavailable, apperror.KindOf(err))
	assert.Equal(t, apperror.Kind(""), apperror.KindOf(errors.New("plain")))
}

func TestUpstreamUnavailableDetail(t *testing.T) {
	err := apperror.UpstreamUnavailable(errors.New("connection reset"))
	assert.Equal(t, "connection reset", err.Detail)
	assert.Equal(t, "Upstream request failed: connection reset", err.Error())
}
