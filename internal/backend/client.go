// Package backend is the typed HTTP client for the external commerce
// backend: customer profile, shipping quotes, order creation, and payment
// preference creation.
//
// Responses are decoded field by field at the boundary; malformed payloads
// become typed errors instead of zero-value field access. All calls run
// through a shared circuit breaker so a dead backend fails fast instead of
// tying up checkout requests.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrUnauthorized is returned when the backend rejects the bearer token.
// Callers treat it as a forced-logout signal.
var ErrUnauthorized = errors.New("backend: unauthorized")

// ErrBreakerOpen is returned while the circuit breaker is rejecting calls.
var ErrBreakerOpen = errors.New("backend: circuit open")

// StatusError is a non-2xx backend response outside the auth cases.
type StatusError struct {
	Op     string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend: %s returned status %d", e.Op, e.Status)
}

// DecodeError is a backend response whose body did not match the endpoint's
// documented shape.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("backend: decode %s response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Config holds the client configuration.
type Config struct {
	// BaseURL is the backend root, without a trailing slash.
	BaseURL string
	// Token is attached as a bearer credential to every request.
	Token string
	// Timeout bounds each request including body read.
	Timeout time.Duration
}

// Client talks to the commerce backend. It satisfies checkout.Backend and
// shipping.Quoter.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewClient creates a Client with an instrumented transport and a circuit
// breaker that opens after five consecutive failures and probes again after
// thirty seconds.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "commerce-backend",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// An invalid token is not a backend outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrUnauthorized)
		},
	})

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: breaker,
	}
}

// do issues a request through the breaker and returns the response body.
// A 401 or 403 maps to ErrUnauthorized.
func (c *Client) do(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	data, err := c.breaker.Execute(func() ([]byte, error) {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rd)
		if err != nil {
			return nil, errors.Wrap(err, "build request")
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.cfg.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, op)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, errors.Wrapf(err, "read %s response", op)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, ErrUnauthorized
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, &StatusError{Op: op, Status: resp.StatusCode}
		}
		return data, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrBreakerOpen
		}
		return nil, err
	}
	return data, nil
}
