package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"payment-relay/internal/apperror"
	"payment-relay/internal/domain"
	"payment-relay/internal/gateway"
	"payment-relay/internal/repository"
	"payment-relay/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock Gateway ---

type fakeGateway struct {
	mu          sync.Mutex
	configured  bool
	createResp  *gateway.Response
	createErr   error
	statusResp  *gateway.Response
	statusErr   error
	requests    []domain.GatewayRequest
	createCtx   []error
	statusCalls int
}

func (f *fakeGateway) Configured() bool { return f.configured }

func (f *fakeGateway) Create(ctx context.Context, req domain.GatewayRequest) (*gateway.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	f.createCtx = append(f.createCtx, ctx.Err())
	if f.createErr != nil {
		return nil, f.createErr
	}
	resp := *f.createResp
	return &resp, nil
}

func (f *fakeGateway) GetStatus(_ context.Context, _ string) (*gateway.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	resp := *f.statusResp
	return &resp, nil
}

// --- Mock Notifier ---

type notification struct {
	tx   domain.Transaction
	attr domain.Attribution
}

type recordingNotifier struct {
	mu      sync.Mutex
	waiting []notification
	paid    []notification
}

func (r *recordingNotifier) NotifyWaiting(_ context.Context, tx domain.Transaction, attr domain.Attribution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waiting = append(r.waiting, notification{tx, attr})
}

func (r *recordingNotifier) NotifyPaid(_ context.Context, tx domain.Transaction, attr domain.Attribution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paid = append(r.paid, notification{tx, attr})
}

func (r *recordingNotifier) paidCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paid)
}

type harness struct {
	svc      *service.TransactionService
	gw       *fakeGateway
	attrs    *repository.MemoryAttributionStore
	notified *repository.MemoryNotifiedSet
	cards    *repository.MemoryCardStore
	notifier *recordingNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		gw: &fakeGateway{
			configured: true,
			createResp: &gateway.Response{StatusCode: http.StatusOK, Body: []byte(`{"data":{"id":"tx_1","status":"waiting_payment","amount":1000,"customer":{"name":"A","email":"a@x.com"}}}`)},
		},
		attrs:    repository.NewMemoryAttributionStore(),
		notified: repository.NewMemoryNotifiedSet(0),
		cards:    repository.NewMemoryCardStore(),
		notifier: &recordingNotifier{},
	}
	h.svc = service.NewTransactionService(service.Dependencies{
		Gateway:      h.gw,
		Attributions: h.attrs,
		Notified:     h.notified,
		Cards:        h.cards,
		Notifier:     h.notifier,
	}, service.Options{
		PublicBaseURL:   "https://relay.example.com",
		PostbackPath:    "/api/postbacks/korepay/",
		DisabledMethods: []string{"credit_card"},
	})
	return h
}

const createBody = `{"customer":{"name":"A","email":"a@x.com"},"amount":1000,"items":[{"title":"X","unitPrice":1000,"quantity":1}]}`

func createInput(body string, query url.Values) service.CreateInput {
	return service.CreateInput{Body: []byte(body), Query: query, ObservedBaseURL: "http://10.0.0.1:8000"}
}

func TestCreateForwardsPixAndStoresAttribution(t *testing.T) {
	h := newHarness(t)

	resp, err := h.svc.Create(context.Background(), createInput(createBody, url.Values{"utm_source": {"fb"}}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, h.gw.requests, 1)
	req := h.gw.requests[0]
	assert.Equal(t, int64(1000), req.Amount)
	assert.Equal(t, domain.PaymentMethodPix, req.PaymentMethod)
	require.NotNil(t, req.Pix)
	assert.Equal(t, "https://relay.example.com/api/postbacks/korepay/", req.PostbackURL)
	var meta struct {
		UTM map[string]string `json:"utm"`
	}
	require.NoError(t, json.Unmarshal([]byte(req.Metadata), &meta))
	assert.Equal(t, "fb", meta.UTM["utm_source"])

	stored, err := h.attrs.Get(context.Background(), "tx_1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "fb", stored.UTMSource)

	require.Len(t, h.notifier.waiting, 1)
	assert.Equal(t, "tx_1", string(h.notifier.waiting[0].tx.ID))
	assert.Equal(t, "fb", h.notifier.waiting[0].attr.UTMSource)
}

func TestPostbackUsesStoredAttributionOnce(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Create(context.Background(), createInput(createBody, url.Values{"utm_source": {"fb"}}))
	require.NoError(t, err)

	postback := []byte(`{"data":{"id":"tx_1","status":"paid","amount":1000,"customer":{"email":"a@x.com"}}}`)

	assert.Equal(t, service.PostbackNotified, h.svc.HandlePostback(context.Background(), postback))
	assert.Equal(t, service.PostbackDuplicate, h.svc.HandlePostback(context.Background(), postback))

	require.Len(t, h.notifier.paid, 1)
	assert.Equal(t, "fb", h.notifier.paid[0].attr.UTMSource)
	assert.Equal(t, "tx_1", string(h.notifier.paid[0].tx.ID))
}

func TestConcurrentPaidPostbacksNotifyExactlyOnce(t *testing.T) {
	h := newHarness(t)
	postback := []byte(`{"type":"transaction","data":{"id":"tx_race","status":"paid","amount":500}}`)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.svc.HandlePostback(context.Background(), postback)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, h.notifier.paidCount())
}

func TestPostbackForUnknownTransactionUsesDefaults(t *testing.T) {
	h := newHarness(t)

	outcome := h.svc.HandlePostback(context.Background(), []byte(`{"id":"tx_unknown","status":"paid"}`))

	assert.Equal(t, service.PostbackNotified, outcome)
	require.Len(t, h.notifier.paid, 1)
	assert.Equal(t, domain.DefaultAttribution(), h.notifier.paid[0].attr)
}

func TestPostbackFallsBackToMetadataAttribution(t *testing.T) {
	h := newHarness(t)

	h.svc.HandlePostback(context.Background(), []byte(`{"data":{"id":"tx_9","status":"paid","metadata":"{\"utm\":{\"utm_source\":\"tiktok\"}}"}}`))

	require.Len(t, h.notifier.paid, 1)
	assert.Equal(t, "tiktok", h.notifier.paid[0].attr.UTMSource)
}

func TestPostbackWithoutFanout(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, service.PostbackIgnored, h.svc.HandlePostback(context.Background(), []byte(`{"data":{"id":"tx_1","status":"waiting_payment"}}`)))
	assert.Equal(t, service.PostbackIgnored, h.svc.HandlePostback(context.Background(), []byte(`{"data":{"status":"paid"}}`)))
	assert.Equal(t, service.PostbackInvalid, h.svc.HandlePostback(context.Background(), []byte(`not json`)))
	assert.Empty(t, h.notifier.paid)
}

func TestPostbackUsesObjectIDFallback(t *testing.T) {
	h := newHarness(t)

	outcome := h.svc.HandlePostback(context.Background(), []byte(`{"objectId":"tx_obj","data":{"status":"PAID"}}`))

	assert.Equal(t, service.PostbackNotified, outcome)
	found, err := h.notified.Contains(context.Background(), "tx_obj")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestCreateWithMalformedMetadataUsesDefaults(t *testing.T) {
	h := newHarness(t)
	body := `{"amount":1000,"metadata":"{not json","items":[{"title":"X","unitPrice":1000}]}`

	resp, err := h.svc.Create(context.Background(), createInput(body, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stored, err := h.attrs.Get(context.Background(), "tx_1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, domain.DefaultAttribution(), *stored)
}

func TestCreateGatewayUnavailable(t *testing.T) {
	h := newHarness(t)
	h.gw.createErr = apperror.UpstreamUnavailable(errors.New("dial tcp: connection refused"))

	_, err := h.svc.Create(context.Background(), createInput(createBody, url.Values{"utm_source": {"fb"}}))

	assert.Equal(t, http.StatusBadGateway, apperror.HTTPStatus(err))
	stored, _ := h.attrs.Get(context.Background(), "tx_1")
	assert.Nil(t, stored)
	assert.Empty(t, h.notifier.waiting)
}

func TestCreateGatewayRejectionPassesThrough(t *testing.T) {
	h := newHarness(t)
	h.gw.createResp = &gateway.Response{StatusCode: http.StatusUnprocessableEntity, Body: []byte(`{"message":"invalid document"}`)}

	resp, err := h.svc.Create(context.Background(), createInput(createBody, nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.JSONEq(t, `{"message":"invalid document"}`, string(resp.Body))
	assert.Empty(t, h.notifier.waiting)
}

func TestCreateRejectsBadInput(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Create(context.Background(), createInput(`{"amount":`, nil))
	assert.Equal(t, http.StatusBadRequest, apperror.HTTPStatus(err))

	h.gw.configured = false
	_, err = h.svc.Create(context.Background(), createInput(createBody, nil))
	assert.Equal(t, apperror.KindConfiguration, apperror.KindOf(err))
	assert.Equal(t, http.StatusInternalServerError, apperror.HTTPStatus(err))
	assert.Empty(t, h.gw.requests)
}

func TestCreateDisabledCardIsRefusedAndRedacted(t *testing.T) {
	h := newHarness(t)
	body := `{"paymentMethod":"credit_card","amount":1000,"customer":{"email":"a@x.com"},
		"card":{"number":"4111111111111111","cvv":"123","holderName":"A","expMonth":"12","expYear":"2030"}}`

	_, err := h.svc.Create(context.Background(), createInput(body, nil))

	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusPaymentRequired, appErr.Code)
	assert.Equal(t, "Erro no meio de pagamento. Tente outro método.", appErr.Message)
	assert.Empty(t, h.gw.requests)

	cards := h.cards.List()
	require.Len(t, cards, 1)
	assert.Regexp(t, `^cc_\d+$`, cards[0].ID)
	assert.Equal(t, "1111", cards[0].Last4)
	assert.Equal(t, "a@x.com", cards[0].CustomerEmail)
}

func TestCreateWithEnabledCardSavesRedactedReference(t *testing.T) {
	h := newHarness(t)
	h.svc = service.NewTransactionService(service.Dependencies{
		Gateway: h.gw, Attributions: h.attrs, Notified: h.notified, Cards: h.cards, Notifier: h.notifier,
	}, service.Options{PostbackPath: "/api/postbacks/korepay/"})
	body := `{"paymentMethod":"card","amount":1000,"pix":{"expiresInDays":2},"customer":{"email":"a@x.com"},
		"card":{"number":"5500000000000004","cvv":"999","holderName":"A","expirationMonth":1,"expirationYear":2031}}`

	_, err := h.svc.Create(context.Background(), createInput(body, nil))
	require.NoError(t, err)

	require.Len(t, h.gw.requests, 1)
	assert.Nil(t, h.gw.requests[0].Pix)
	require.NotNil(t, h.gw.requests[0].Card)
	assert.Equal(t, "http://10.0.0.1:8000/api/postbacks/korepay/", h.gw.requests[0].PostbackURL)

	cards := h.cards.List()
	require.Len(t, cards, 1)
	assert.Equal(t, "tx_1", cards[0].TxID)
	assert.Equal(t, "0004", cards[0].Last4)
	assert.Equal(t, "mastercard", cards[0].Brand)
}

func TestCreateSurvivesCallerCancellation(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.svc.Create(ctx, createInput(createBody, url.Values{"utm_source": {"fb"}}))
	require.NoError(t, err)

	require.Len(t, h.gw.createCtx, 1)
	assert.NoError(t, h.gw.createCtx[0])
	stored, err := h.attrs.Get(context.Background(), "tx_1")
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestCreateRetryKeepsFirstAttribution(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Create(context.Background(), createInput(createBody, url.Values{"utm_source": {"fb"}}))
	require.NoError(t, err)
	_, err = h.svc.Create(context.Background(), createInput(createBody, url.Values{"utm_source": {"google"}}))
	require.NoError(t, err)

	stored, err := h.attrs.Get(context.Background(), "tx_1")
	require.NoError(t, err)
	assert.Equal(t, "fb", stored.UTMSource)
	require.Len(t, h.notifier.waiting, 2)
	assert.Equal(t, "fb", h.notifier.waiting[1].attr.UTMSource)
}

func decodeStatus(t *testing.T, resp *gateway.Response) service.StatusResult {
	t.Helper()
	var out service.StatusResult
	require.NoError(t, json.Unmarshal(resp.Body, &out))
	return out
}

func TestStatus(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Status(context.Background(), " ")
	assert.Equal(t, http.StatusBadRequest, apperror.HTTPStatus(err))

	h.gw.statusResp = &gateway.Response{StatusCode: http.StatusOK, Body: []byte(`{"data":{"id":"tx_1","status":"WAITING_PAYMENT"}}`)}
	resp, err := h.svc.Status(context.Background(), "tx_1")
	require.NoError(t, err)
	assert.Equal(t, service.StatusResult{ID: "tx_1", Status: "waiting_payment"}, decodeStatus(t, resp))

	h.gw.statusResp = &gateway.Response{StatusCode: http.StatusOK, Body: []byte(`{"id":"tx_1","status":"approved","paidAt":"2024-05-01T12:00:00Z"}`)}
	resp, err = h.svc.Status(context.Background(), "tx_1")
	require.NoError(t, err)
	assert.Equal(t, "paid", decodeStatus(t, resp).Status)

	h.gw.statusResp = &gateway.Response{StatusCode: http.StatusOK, Body: []byte(`{"id":"tx_1"}`)}
	resp, err = h.svc.Status(context.Background(), "tx_1")
	require.NoError(t, err)
	assert.Equal(t, "waiting_payment", decodeStatus(t, resp).Status)
}

func TestStatusEmptyGatewayBodyIsWaiting(t *testing.T) {
	h := newHarness(t)
	h.gw.statusResp = &gateway.Response{StatusCode: http.StatusOK}

	resp, err := h.svc.Status(context.Background(), "tx_1")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, service.StatusResult{ID: "tx_1", Status: "waiting_payment"}, decodeStatus(t, resp))
}

func TestStatusShortCircuitsConfirmedTransactions(t *testing.T) {
	h := newHarness(t)
	h.svc.HandlePostback(context.Background(), []byte(`{"data":{"id":"tx_1","status":"paid"}}`))

	resp, err := h.svc.Status(context.Background(), "tx_1")
	require.NoError(t, err)

	assert.Equal(t, "paid", decodeStatus(t, resp).Status)
	assert.Zero(t, h.gw.statusCalls)
}

func TestStatusUpstreamErrors(t *testing.T) {
	h := newHarness(t)

	h.gw.statusResp = &gateway.Response{StatusCode: http.StatusNotFound}
	resp, err := h.svc.Status(context.Background(), "tx_404")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"not found"}`, string(resp.Body))

	h.gw.statusErr = apperror.UpstreamUnavailable(errors.New("timeout"))
	_, err = h.svc.Status(context.Background(), "tx_404")
	assert.Equal(t, http.StatusBadGateway, apperror.HTTPStatus(err))
}
