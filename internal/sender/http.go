package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

func newHTTPClient() *fasthttp.Client {
	return &fasthttp.Client{
		Name:                "payment-relay",
		MaxIdleConnDuration: 90 * time.Second,
	}
}

// postJSON sends payload and returns the status code and a copy of the body.
// A non-2xx status is reported as an error.
func postJSON(ctx context.Context, client *fasthttp.Client, uri string, headers map[string]string, payload any, timeout time.Duration) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return 0, nil, err
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

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.SetBody(body)

	if err := client.DoTimeout(req, resp, timeout); err != nil {
		return 0, nil, err
	}
	status := resp.StatusCode()
	respBody := append([]byte(nil), resp.Body()...)
	if status < 200 || status >= 300 {
		return status, respBody, fmt.Errorf("unexpected status %d: %s", status, truncateBody(respBody))
	}
	return status, respBody, nil
}

func truncateBody(b []byte) string {
	const max = 300
	if len(b) > max {
		return string(b[:max])
	}
	return string(b)
}
