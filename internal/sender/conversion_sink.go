package sender

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"payment-relay/internal/apperror"
	"payment-relay/internal/domain"
	"payment-relay/internal/normalizer"

	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/errgroup"
)

const ConversionSinkName = "meta_capi"

type ConversionConfig struct {
	GraphURL      string
	APIVersion    string
	TestEventCode string
	// Pixels maps each destination pixel to its access token.
	Pixels        map[string]string
	PublicBaseURL string
	ThankYouPath  string
	Currency      string
	Timeout       time.Duration
}

// ConversionSink sends a hashed purchase event to every configured pixel.
// Destinations are independent: one failing does not stop the others.
type ConversionSink struct {
	cfg    ConversionConfig
	client *fasthttp.Client
	now    func() time.Time
}

func NewConversionSink(cfg ConversionConfig) *ConversionSink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.GraphURL == "" {
		cfg.GraphURL = "https://graph.facebook.com"
	}
	return &ConversionSink{cfg: cfg, client: newHTTPClient(), now: time.Now}
}

func (s *ConversionSink) Name() string { return ConversionSinkName }

func (s *ConversionSink) Enabled() bool { return len(s.cfg.Pixels) > 0 }

func (s *ConversionSink) Send(ctx context.Context, tx domain.Transaction, attr *domain.Attribution) error {
	if !s.Enabled() {
		return nil
	}
	event := normalizer.BuildConversionEvent(tx, attr, normalizer.ConversionOptions{
		PublicBaseURL: s.cfg.PublicBaseURL,
		ThankYouPath:  s.cfg.ThankYouPath,
		Currency:      s.cfg.Currency,
		Now:           s.now(),
	})
	payload := map[string]any{"data": []domain.ConversionEvent{event}}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for pixel, token := range s.cfg.Pixels {
		pixel, token := pixel, token
		g.Go(func() error {
			_, _, err := postJSON(ctx, s.client, s.eventsURL(pixel, token), nil, payload, s.cfg.Timeout)
			entry := log.WithFields(log.Fields{"pixel": pixel, "event_id": event.EventID})
			if err != nil {
				entry.WithError(err).Warn("Conversion event delivery failed")
				mu.Lock()
				errs = append(errs, fmt.Errorf("pixel %s: %w", pixel, err))
				mu.Unlock()
				return nil
			}
			entry.Info("Conversion event delivered")
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		return apperror.SinkDelivery(ConversionSinkName, errors.Join(errs...))
	}
	return nil
}

func (s *ConversionSink) eventsURL(pixel, token string) string {
	q := url.Values{"access_token": {token}}
	if s.cfg.TestEventCode != "" {
		q.Set("test_event_code", s.cfg.TestEventCode)
	}
	return fmt.Sprintf("%s/%s/%s/events?%s",
		strings.TrimRight(s.cfg.GraphURL, "/"), s.cfg.APIVersion, url.PathEscape(pixel), q.Encode())
}
