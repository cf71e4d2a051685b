// Package gateway holds the thin HTTP clients over the remote commerce API:
// the cart itself, the product catalog consulted for stock ceilings, and the
// active voucher catalog. The remote cart is the single source of truth; no
// state lives here.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/glowmart/cart-session/internal/config"
	"github.com/glowmart/cart-session/internal/errors"
	"github.com/glowmart/cart-session/internal/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg *config.Upstream) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// upstreamEnvelope is the error body shape of the commerce API.
type upstreamEnvelope struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) do(ctx context.Context, operation, method, path, token string, body, out any) error {

	var reqBody io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.InternalError("Failed to encode request").WithError(err)
		}

		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errors.InternalError("Failed to build upstream request").WithError(err)
	}

	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamFailures.WithLabelValues(operation).Inc()
		return errors.UpstreamError("Commerce API is unreachable").WithError(err)
	}

	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamFailures.WithLabelValues(operation).Inc()
		return errors.UpstreamError("Failed to read upstream response").WithError(err)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		if out != nil && len(raw) > 0 {
			if err := json.Unmarshal(raw, out); err != nil {
				metrics.UpstreamFailures.WithLabelValues(operation).Inc()
				return errors.UpstreamError("Malformed upstream response").WithError(err)
			}
		}

		return nil
	}

	message := upstreamMessage(raw)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errors.UnauthorizedError(messageOr(message, "Session credential rejected"))
	case resp.StatusCode == http.StatusForbidden:
		return errors.ForbiddenError(messageOr(message, "Session credential rejected"))
	case resp.StatusCode == http.StatusNotFound:
		return errors.NotFoundError(messageOr(message, "Resource not found"))
	case resp.StatusCode < http.StatusInternalServerError:
		// Business rejection; the upstream reason is surfaced verbatim.
		return errors.BadRequestError(messageOr(message, fmt.Sprintf("Upstream rejected the request (%d)", resp.StatusCode)))
	default:
		metrics.UpstreamFailures.WithLabelValues(operation).Inc()
		return errors.UpstreamError(messageOr(message, "Commerce API error"))
	}
}

func upstreamMessage(raw []byte) string {

	var envelope upstreamEnvelope

	if err := json.Unmarshal(raw, &envelope); err != nil {
		return ""
	}

	if envelope.Message != "" {
		return envelope.Message
	}

	return envelope.Error
}

func messageOr(message, fallback string) string {
	if message != "" {
		return message
	}

	return fallback
}
