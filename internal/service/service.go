package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"payment-relay/internal/apperror"
	"payment-relay/internal/domain"
	"payment-relay/internal/gateway"
	"payment-relay/internal/normalizer"
	"payment-relay/internal/validator"

	log "github.com/sirupsen/logrus"
)

const rejectedMethodMessage = "Erro no meio de pagamento. Tente outro método."

type Gateway interface {
	Configured() bool
	Create(ctx context.Context, req domain.GatewayRequest) (*gateway.Response, error)
	GetStatus(ctx context.Context, txID string) (*gateway.Response, error)
}

type AttributionStore interface {
	Put(ctx context.Context, txID string, attr domain.Attribution) (bool, error)
	Get(ctx context.Context, txID string) (*domain.Attribution, error)
}

type NotifiedSet interface {
	CheckAndMark(ctx context.Context, txID string) (bool, error)
	Contains(ctx context.Context, txID string) (bool, error)
}

type CardStore interface {
	Save(ctx context.Context, card domain.SavedCard) error
}

type Notifier interface {
	NotifyWaiting(ctx context.Context, tx domain.Transaction, attr domain.Attribution)
	NotifyPaid(ctx context.Context, tx domain.Transaction, attr domain.Attribution)
}

type Dependencies struct {
	Gateway      Gateway
	Attributions AttributionStore
	Notified     NotifiedSet
	Cards        CardStore
	Notifier     Notifier
}

type Options struct {
	PublicBaseURL   string
	PostbackPath    string
	DisabledMethods []string
	// FanoutTimeout bounds sink delivery after the caller's context is
	// detached.
	FanoutTimeout time.Duration
}

// CreateInput is a create request as received by the HTTP layer.
type CreateInput struct {
	Body            []byte
	Query           url.Values
	Client          normalizer.ClientInfo
	ObservedBaseURL string
}

type StatusResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type PostbackOutcome string

const (
	PostbackInvalid   PostbackOutcome = "invalid"
	PostbackIgnored   PostbackOutcome = "ignored"
	PostbackDuplicate PostbackOutcome = "duplicate"
	PostbackNotified  PostbackOutcome = "notified"
	PostbackFailed    PostbackOutcome = "failed"
)

// TransactionService ties the create, postback and status flows together.
type TransactionService struct {
	deps Dependencies
	opts Options
	now  func() time.Time
}

func NewTransactionService(deps Dependencies, opts Options) *TransactionService {
	if opts.FanoutTimeout <= 0 {
		opts.FanoutTimeout = 30 * time.Second
	}
	return &TransactionService{deps: deps, opts: opts, now: time.Now}
}

// Create forwards a client transaction to the gateway and relays its answer.
// The gateway call and everything that follows a 2xx run detached from ctx:
// once the gateway may have created the transaction, local state must follow.
func (s *TransactionService) Create(ctx context.Context, in CreateInput) (*gateway.Response, error) {
	var req domain.CreateRequest
	if err := json.Unmarshal(in.Body, &req); err != nil {
		return nil, apperror.ClientInput("Invalid JSON body", err)
	}
	if !s.deps.Gateway.Configured() {
		return nil, apperror.Configuration("Server misconfigured: missing gateway credentials")
	}

	method := normalizer.NormalizePaymentMethod(req.PaymentMethod)
	if s.methodDisabled(method) {
		s.captureRejectedCard(context.WithoutCancel(ctx), req, method)
		return nil, apperror.PaymentMethodRejected(rejectedMethodMessage)
	}

	attr := normalizer.ExtractAttribution(in.Query, req.Metadata)
	postbackURL := normalizer.PostbackURL(s.opts.PublicBaseURL, in.ObservedBaseURL, s.opts.PostbackPath)
	gwReq, err := normalizer.BuildGatewayRequest(req, attr, postbackURL, in.Client)
	if err != nil {
		return nil, apperror.ClientInput("Invalid transaction payload", err)
	}

	detached := context.WithoutCancel(ctx)
	resp, err := s.deps.Gateway.Create(detached, gwReq)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		log.WithFields(log.Fields{
			"status": resp.StatusCode,
			"kind":   apperror.KindUpstreamRejected,
		}).Warn("Gateway rejected transaction")
		return resp, nil
	}

	s.afterCreate(detached, resp, req, method, attr)
	return resp, nil
}

func (s *TransactionService) afterCreate(ctx context.Context, resp *gateway.Response, req domain.CreateRequest, method domain.PaymentMethod, attr domain.Attribution) {
	tx, err := normalizer.DecodeTransaction(resp.Body)
	if err != nil {
		log.WithError(err).Warn("Could not read gateway create response")
		return
	}
	txID := string(tx.ID)
	if txID == "" {
		log.Warn("Gateway create response has no transaction id")
		return
	}
	logCtx := log.WithFields(log.Fields{"transaction_id": txID, "utm_source": attr.UTMSource})

	created, err := s.deps.Attributions.Put(ctx, txID, attr)
	switch {
	case err != nil:
		logCtx.WithError(apperror.Persistence("failed to persist attribution", err)).Error("Attribution not stored")
	case !created:
		if stored, err := s.deps.Attributions.Get(ctx, txID); err == nil && stored != nil {
			attr = *stored
		}
		logCtx.Info("Attribution already stored for transaction")
	default:
		logCtx.Info("Attribution stored")
	}

	if method == domain.PaymentMethodCreditCard && req.Card != nil {
		s.saveCard(ctx, normalizer.RedactCard(*req.Card, txID, req.Customer.Email))
	}

	fanout, cancel := context.WithTimeout(ctx, s.opts.FanoutTimeout)
	defer cancel()
	s.deps.Notifier.NotifyWaiting(fanout, tx, attr)
}

func (s *TransactionService) captureRejectedCard(ctx context.Context, req domain.CreateRequest, method domain.PaymentMethod) {
	log.WithField("payment_method", method).Warn("Payment method disabled, transaction refused")
	if method != domain.PaymentMethodCreditCard || req.Card == nil {
		return
	}
	localID := fmt.Sprintf("cc_%d", s.now().UnixMilli())
	card := normalizer.RedactCard(*req.Card, localID, req.Customer.Email)
	card.ID = localID
	s.saveCard(ctx, card)
}

func (s *TransactionService) saveCard(ctx context.Context, card domain.SavedCard) {
	if s.deps.Cards == nil {
		return
	}
	if err := s.deps.Cards.Save(ctx, card); err != nil {
		log.WithError(apperror.Persistence("failed to save card reference", err)).
			WithField("transaction_id", card.TxID).Error("Card reference not stored")
	}
}

// HandlePostback reconciles a gateway notification. It never fails: the
// outcome is only reported for logging and tests.
func (s *TransactionService) HandlePostback(ctx context.Context, body []byte) PostbackOutcome {
	tx, err := normalizer.DecodeTransaction(body)
	if err != nil {
		log.WithError(err).Warn("Ignoring unreadable postback")
		return PostbackInvalid
	}
	txID := string(tx.ID)
	logCtx := log.WithFields(log.Fields{"transaction_id": txID, "status": tx.Status})

	if tx.Status != string(domain.StatusPaid) {
		logCtx.Debug("Postback acknowledged without fan-out")
		return PostbackIgnored
	}
	if err := validator.ValidateTransactionID(txID); err != nil {
		logCtx.Warn("Paid postback without transaction id")
		return PostbackIgnored
	}

	detached := context.WithoutCancel(ctx)
	attr := s.resolveAttribution(detached, tx)

	first, err := s.deps.Notified.CheckAndMark(detached, txID)
	if err != nil {
		logCtx.WithError(err).Error("Dedupe check failed, paid event not sent")
		return PostbackFailed
	}
	if !first {
		logCtx.Info("Duplicate paid postback")
		return PostbackDuplicate
	}

	fanout, cancel := context.WithTimeout(detached, s.opts.FanoutTimeout)
	defer cancel()
	s.deps.Notifier.NotifyPaid(fanout, tx, attr)
	logCtx.WithField("utm_source", attr.UTMSource).Info("Paid event fanned out")
	return PostbackNotified
}

// resolveAttribution prefers the stored record, then the transaction's own
// metadata, then the defaults.
func (s *TransactionService) resolveAttribution(ctx context.Context, tx domain.Transaction) domain.Attribution {
	stored, err := s.deps.Attributions.Get(ctx, string(tx.ID))
	if err != nil {
		log.WithError(err).WithField("transaction_id", tx.ID).Warn("Attribution lookup failed")
	}
	if stored != nil {
		return *stored
	}
	return normalizer.ExtractAttribution(nil, []byte(tx.Metadata))
}

// Status answers a polling client. Transactions already confirmed through a
// postback are answered locally.
func (s *TransactionService) Status(ctx context.Context, txID string) (*gateway.Response, error) {
	txID = strings.TrimSpace(txID)
	if err := validator.ValidateTransactionID(txID); err != nil {
		return nil, apperror.ClientInput("missing id", err)
	}

	if known, err := s.deps.Notified.Contains(ctx, txID); err != nil {
		log.WithError(err).WithField("transaction_id", txID).Warn("Notified lookup failed")
	} else if known {
		return statusResponse(txID, string(domain.StatusPaid))
	}

	if !s.deps.Gateway.Configured() {
		return nil, apperror.Configuration("Server misconfigured: missing gateway credentials")
	}
	resp, err := s.deps.Gateway.GetStatus(ctx, txID)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		if len(strings.TrimSpace(string(resp.Body))) == 0 {
			resp.Body = []byte(`{"error":"not found"}`)
		}
		return resp, nil
	}

	body := resp.Body
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	tx, err := normalizer.DecodeTransaction(body)
	if err != nil {
		return nil, apperror.UpstreamUnavailable(err)
	}
	status := tx.Status
	if validator.IsPaid(status, tx.PaidAt) {
		status = string(domain.StatusPaid)
	}
	if status == "" {
		status = string(domain.StatusWaitingPayment)
	}
	return statusResponse(txID, status)
}

func (s *TransactionService) methodDisabled(method domain.PaymentMethod) bool {
	for _, m := range s.opts.DisabledMethods {
		if strings.EqualFold(strings.TrimSpace(m), string(method)) {
			return true
		}
	}
	return false
}

func statusResponse(txID, status string) (*gateway.Response, error) {
	body, err := json.Marshal(StatusResult{ID: txID, Status: status})
	if err != nil {
		return nil, err
	}
	return &gateway.Response{StatusCode: 200, Body: body}, nil
}
