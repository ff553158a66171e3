package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"payment-relay/internal/apperror"
	"payment-relay/internal/domain"

	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

// Response is the gateway's answer as received: status code and raw body.
// 4xx and 5xx answers are returned as responses, not errors.
type Response struct {
	StatusCode int
	Body       []byte
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type Config struct {
	BaseURL       string
	PublicKey     string
	SecretKey     string
	CreateTimeout time.Duration
	StatusTimeout time.Duration
}

type Client struct {
	cfg  Config
	http *fasthttp.Client
}

func NewClient(cfg Config) *Client {
	if cfg.CreateTimeout <= 0 {
		cfg.CreateTimeout = 30 * time.Second
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = 20 * time.Second
	}
	return &Client{
		cfg: cfg,
		http: &fasthttp.Client{
			Name:                "payment-relay",
			MaxIdleConnDuration: 90 * time.Second,
		},
	}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return strings.TrimSpace(c.cfg.PublicKey) != "" && strings.TrimSpace(c.cfg.SecretKey) != ""
}

func (c *Client) Create(ctx context.Context, req domain.GatewayRequest) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, apperror.ClientInput("Invalid transaction payload", err)
	}
	return c.do(ctx, fasthttp.MethodPost, "transactions", body, c.cfg.CreateTimeout)
}

func (c *Client) GetStatus(ctx context.Context, txID string) (*Response, error) {
	return c.do(ctx, fasthttp.MethodGet, "transactions/"+url.PathEscape(txID), nil, c.cfg.StatusTimeout)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, timeout time.Duration) (*Response, error) {
	if !c.Configured() {
		return nil, apperror.Configuration("Gateway credentials are not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, apperror.UpstreamUnavailable(err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.endpoint(path))
	req.Header.SetMethod(method)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.authorization())
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	start := time.Now()
	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		log.WithFields(log.Fields{
			"method": method,
			"path":   path,
			"error":  err,
		}).Error("Gateway request failed")
		return nil, apperror.UpstreamUnavailable(err)
	}

	out := &Response{
		StatusCode: resp.StatusCode(),
		Body:       append([]byte(nil), resp.Body()...),
	}
	log.WithFields(log.Fields{
		"method":  method,
		"path":    path,
		"status":  out.StatusCode,
		"elapsed": time.Since(start).String(),
	}).Debug("Gateway responded")
	return out, nil
}

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(c.cfg.BaseURL, "/"), strings.TrimLeft(path, "/"))
}

func (c *Client) authorization() string {
	creds := c.cfg.PublicKey + ":" + c.cfg.SecretKey
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
}
