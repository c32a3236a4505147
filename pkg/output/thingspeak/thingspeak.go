// Package thingspeak uploads cycle records to a ThingSpeak channel through
// its GET update API.
package thingspeak

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ericogr/envnode/pkg/sensor"
	"github.com/go-resty/resty/v2"
)

const DefaultURL = "http://api.thingspeak.com/update"

// ErrUpload marks a failed upload attempt.
var ErrUpload = errors.New("telemetry upload failed")

// rejectedBody is ThingSpeak's reply when an update is not accepted
// (rate limit or bad key).
const rejectedBody = "0"

type Uploader struct {
	client  *resty.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// NewUploader builds an uploader for baseURL (DefaultURL when empty). A zero
// timeout leaves the request unbounded.
func NewUploader(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Uploader {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	client := resty.New()
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &Uploader{client: client, baseURL: baseURL, apiKey: apiKey, logger: logger}
}

// UpdateURL renders the request URL for r. Fields are emitted in channel
// order with two decimals.
func (u *Uploader) UpdateURL(r sensor.Record) string {
	var b strings.Builder
	b.WriteString(u.baseURL)
	b.WriteString("?api_key=")
	b.WriteString(url.QueryEscape(u.apiKey))
	for i, v := range r.Fields() {
		fmt.Fprintf(&b, "&field%d=%.2f", i+1, v)
	}
	return b.String()
}

// Upload sends r once and returns the response body. Any transport fault or
// HTTP error status is reported as ErrUpload; retrying is up to the caller.
func (u *Uploader) Upload(ctx context.Context, r sensor.Record) (string, error) {
	target := u.UpdateURL(r)
	u.logger.Info("sending telemetry", "url", redact(target, u.apiKey))
	resp, err := u.client.R().SetContext(ctx).Get(target)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpload, err)
	}
	body := strings.TrimSpace(resp.String())
	if resp.IsError() {
		return body, fmt.Errorf("%w: status %d", ErrUpload, resp.StatusCode())
	}
	if body == rejectedBody {
		u.logger.Warn("telemetry endpoint did not accept update", "body", body)
	}
	return body, nil
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, url.QueryEscape(secret), "***")
}
