// Package transport issues the HTTP calls behind the generation adapter.
//
// DESIGN: The client is pure I/O — it ships a serialized request body and
// hands back either the raw completion body or the live stream reader.
// Endpoint, credentials, and organization/project ids are opaque strings
// passed through as headers, never interpreted. Transport failures (non-2xx,
// connection errors) are the only adapter errors that abort a request; they
// carry status and the provider's error body so the caller's retry policy
// can act.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	// DefaultTimeout bounds batch calls; streaming reads are bounded by the
	// caller's context only.
	DefaultTimeout = 60 * time.Second

	// maxResponseSize prevents OOM on unexpectedly large batch bodies (10MB).
	maxResponseSize = 10 * 1024 * 1024

	// maxErrorBodyLen limits error bodies kept in error values.
	maxErrorBodyLen = 500

	completionsPath = "/chat/completions"
)

// Config carries the connection surface for one provider endpoint.
type Config struct {
	Endpoint     string // base URL, e.g. https://api.openai.com/v1
	APIKey       string
	Organization string // optional, sent as OpenAI-Organization
	Project      string // optional, sent as OpenAI-Project
	Timeout      time.Duration

	// HTTPClient overrides the default client (connection pooling, test
	// servers, or a SigV4 signing transport).
	HTTPClient *http.Client
}

// Error is a transport-level failure: the one error category that aborts a
// generation outright, because no well-formed partial response exists.
type Error struct {
	Status    int
	Code      string
	Message   string
	Retryable bool
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider returned status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("transport error (%s): %s", e.Code, e.Message)
}

// Client issues chat-completions calls against one configured endpoint.
// Safe for concurrent use; each request is fully independent.
type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
}

// New creates a Client. Missing endpoint or API key surface on first use,
// not here, so construction never fails.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{} // timeouts via context, not client
	}
	return &Client{cfg: cfg, http: hc, log: log.Logger}
}

// Complete posts a batch completion request and returns the raw response
// body.
func (c *Client) Complete(ctx context.Context, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.post(ctx, body, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &Error{Code: "body_read", Message: err.Error(), Retryable: true}
	}
	return raw, nil
}

// StreamCompletion posts a streaming completion request and returns the live
// response body. The returned reader yields SSE frames; the caller owns it
// and must close it exactly once. Cancellation of ctx aborts the read loop
// promptly and releases the connection.
func (c *Client) StreamCompletion(ctx context.Context, body []byte) (io.ReadCloser, error) {
	// The stream flags ride on the serialized body so the translator stays
	// oblivious to delivery mode.
	body, err := patchStreamFlags(body)
	if err != nil {
		return nil, &Error{Code: "request_patch", Message: err.Error()}
	}

	resp, err := c.post(ctx, body, true)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) post(ctx context.Context, body []byte, stream bool) (*http.Response, error) {
	if c.cfg.Endpoint == "" {
		return nil, &Error{Code: "config", Message: "endpoint required"}
	}
	url := strings.TrimRight(c.cfg.Endpoint, "/") + completionsPath

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Code: "request_build", Message: err.Error()}
	}

	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if c.cfg.Organization != "" {
		req.Header.Set("OpenAI-Organization", c.cfg.Organization)
	}
	if c.cfg.Project != "" {
		req.Header.Set("OpenAI-Project", c.cfg.Project)
	}
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyNetworkErr(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		c.log.Warn().Int("status", resp.StatusCode).Str("url", url).Msg("provider request failed")
		return nil, errorFromBody(resp.StatusCode, raw)
	}
	return resp, nil
}

// patchStreamFlags sets stream and stream_options.include_usage on the
// serialized body. include_usage asks for running usage totals so the
// normalizer can prefer provider-reported counts over local estimates.
func patchStreamFlags(body []byte) ([]byte, error) {
	body, err := sjson.SetBytes(body, "stream", true)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(body, "stream_options.include_usage", true)
}

// errorFromBody builds a transport Error from a non-2xx response body,
// pulling the provider's structured error fields when present.
func errorFromBody(status int, raw []byte) *Error {
	msg := strings.TrimSpace(string(raw))
	if len(msg) > maxErrorBodyLen {
		msg = msg[:maxErrorBodyLen] + "... (truncated)"
	}
	code := "http_error"
	if m := gjson.GetBytes(raw, "error.message"); m.Exists() && m.String() != "" {
		msg = m.String()
		if c := gjson.GetBytes(raw, "error.code"); c.Exists() && c.String() != "" {
			code = c.String()
		} else if t := gjson.GetBytes(raw, "error.type"); t.Exists() && t.String() != "" {
			code = t.String()
		}
	}
	return &Error{
		Status:    status,
		Code:      code,
		Message:   msg,
		Retryable: shouldRetryStatus(status),
	}
}

func shouldRetryStatus(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		(status >= 500 && status <= 599)
}

// classifyNetworkErr distinguishes caller cancellation from provider-side
// connection failures. Cancellation is not retryable and must stay
// distinguishable from protocol-level finishes downstream.
func classifyNetworkErr(err error) *Error {
	switch {
	case errors.Is(err, context.Canceled):
		return &Error{Code: "canceled", Message: err.Error(), Retryable: false}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Code: "timeout", Message: err.Error(), Retryable: true}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Code: "timeout", Message: err.Error(), Retryable: true}
	}
	return &Error{Code: "network_error", Message: err.Error(), Retryable: true}
}
