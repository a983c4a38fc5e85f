// Package push provides the platform push-notification transport. Sending
// fails softly: a Sender reports the outcome as a Result and never returns an
// error, so the calling pipeline is never aborted by push infrastructure.
package push

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Result is the delivery outcome of one push attempt.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Sender delivers one push notification to a device token.
type Sender interface {
	Send(ctx context.Context, deviceToken, title, body string, payload map[string]string) Result
}

// HTTPSender forwards notifications to a push gateway over HTTP.
type HTTPSender struct {
	http *resty.Client
	log  zerolog.Logger
}

// NewHTTPSender constructs a sender for the gateway at baseURL.
func NewHTTPSender(baseURL, apiKey string, timeout time.Duration, log zerolog.Logger) *HTTPSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &HTTPSender{http: c, log: log}
}

type sendRequest struct {
	Token string            `json:"token"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Send posts the notification to the gateway. Transport errors and non-200
// statuses are reported in the Result, never raised.
func (s *HTTPSender) Send(ctx context.Context, deviceToken, title, body string, payload map[string]string) Result {
	req := sendRequest{Token: deviceToken, Title: title, Body: body, Data: payload}
	resp, err := s.http.R().SetContext(ctx).SetBody(&req).Post("/v1/push")
	if err != nil {
		s.log.Warn().Err(err).Str("title", title).Msg("push send failed")
		return Result{Success: false, Error: err.Error()}
	}
	if resp.StatusCode() != http.StatusOK {
		s.log.Warn().Int("status", resp.StatusCode()).Str("title", title).Msg("push gateway rejected notification")
		return Result{Success: false, Error: "push gateway status " + resp.Status()}
	}
	return Result{Success: true}
}

// NopSender is used when no push gateway is configured. Notifications are
// logged and reported as undelivered, mirroring an unconfigured transport.
type NopSender struct {
	log zerolog.Logger
}

// NewNopSender constructs a NopSender.
func NewNopSender(log zerolog.Logger) *NopSender { return &NopSender{log: log} }

// Send logs the notification and reports it as not delivered.
func (s *NopSender) Send(ctx context.Context, deviceToken, title, body string, payload map[string]string) Result {
	s.log.Info().
		Str("title", title).
		Str("body", body).
		Msg("push transport not configured, notification logged only")
	return Result{Success: false, Error: "push transport not configured"}
}
