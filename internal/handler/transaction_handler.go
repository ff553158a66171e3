package handler

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"payment-relay/internal/apperror"
	"payment-relay/internal/gateway"
	"payment-relay/internal/normalizer"
	"payment-relay/internal/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type TransactionService interface {
	Create(ctx context.Context, in service.CreateInput) (*gateway.Response, error)
	HandlePostback(ctx context.Context, body []byte) service.PostbackOutcome
	Status(ctx context.Context, txID string) (*gateway.Response, error)
}

type TransactionHandler struct {
	service    TransactionService
	apiBaseURL string
}

func NewTransactionHandler(svc TransactionService, apiBaseURL string) *TransactionHandler {
	return &TransactionHandler{service: svc, apiBaseURL: apiBaseURL}
}

// Create relays a client create request to the gateway.
func (h *TransactionHandler) Create(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		renderError(c, apperror.ClientInput("Invalid JSON body", err))
		return
	}

	resp, err := h.service.Create(c.Request.Context(), service.CreateInput{
		Body:  body,
		Query: c.Request.URL.Query(),
		Client: normalizer.ClientInfo{
			IP:        clientIP(c.Request),
			Referrer:  c.Request.Referer(),
			UserAgent: c.Request.UserAgent(),
		},
		ObservedBaseURL: observedBaseURL(c.Request),
	})
	if err != nil {
		renderError(c, err)
		return
	}
	relay(c, resp)
}

// Postback always acknowledges with 200 so the gateway does not retry on our
// account; the outcome is only logged.
func (h *TransactionHandler) Postback(c *gin.Context) {
	if c.Request.Method == http.MethodPost {
		body, err := c.GetRawData()
		if err != nil {
			log.WithError(err).Warn("Failed to read postback body")
		} else {
			outcome := h.service.HandlePostback(c.Request.Context(), body)
			log.WithField("outcome", outcome).Debug("Postback handled")
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *TransactionHandler) Status(c *gin.Context) {
	txID := c.Query("id")
	if strings.TrimSpace(txID) == "" {
		txID = c.Query("txid")
	}
	resp, err := h.service.Status(c.Request.Context(), txID)
	if err != nil {
		renderError(c, err)
		return
	}
	relay(c, resp)
}

func (h *TransactionHandler) PublicConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"apiBaseUrl": h.apiBaseURL})
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func relay(c *gin.Context, resp *gateway.Response) {
	body := resp.Body
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	c.Data(resp.StatusCode, "application/json", body)
}

func renderError(c *gin.Context, err error) {
	status := apperror.HTTPStatus(err)
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		appErr = &apperror.Error{Message: "Internal server error"}
	}
	entry := log.WithError(err).WithFields(log.Fields{
		"path":   c.Request.URL.Path,
		"status": status,
		"kind":   appErr.Kind,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}
	c.JSON(status, appErr)
}

// clientIP takes the first X-Forwarded-For entry, else the peer address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if ip := strings.TrimSpace(strings.Split(fwd, ",")[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func observedBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	if r.Host == "" {
		return ""
	}
	return scheme + "://" + r.Host
}
