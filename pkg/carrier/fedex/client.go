// Package fedex provides the FedEx REST API adapter: OAuth token
// caching, an authenticated request executor with retry/backoff, and
// the address, rating, shipping, tracking, pickup and location
// operations built on it.
package fedex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pagecrest/fulfillment/pkg/carrier"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const carrierName = "fedex"

// Environment selects the FedEx API environment. One process talks to
// exactly one environment.
type Environment string

const (
	EnvSandbox    Environment = "sandbox"
	EnvProduction Environment = "production"
)

func (e Environment) baseURL() string {
	if e == EnvProduction {
		return "https://apis.fedex.com"
	}
	return "https://apis-sandbox.fedex.com"
}

// Config holds FedEx adapter configuration.
type Config struct {
	ClientID      string
	ClientSecret  string
	AccountNumber string
	Environment   Environment
	BaseURL       string // optional override, defaults by environment
	Locale        string

	// Warehouse origins. Rate and ship origins are routed by
	// destination state, never caller-supplied.
	PrimaryWarehouse   carrier.Address
	SecondaryWarehouse carrier.Address
}

// RetryPolicy controls retries on throttled calls.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// DefaultRetryPolicy backs off 1s, 2s, 4s... and gives up after three
// attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff: func(attempt int) time.Duration {
			return time.Duration(1<<attempt) * 1000 * time.Millisecond
		},
	}
}

const callTimeout = 60 * time.Second

// Client is the FedEx API client. It implements carrier.Carrier.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	tokens     *TokenCache
	retry      RetryPolicy
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *otelzap.Logger
	tracer     trace.Tracer
}

// New creates a new FedEx client for the configured environment.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = cfg.Environment.baseURL()
	}
	if cfg.Locale == "" {
		cfg.Locale = "en_US"
	}
	httpClient := &http.Client{}
	return &Client{
		cfg:        cfg,
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens:     NewTokenCache(baseURL, cfg.ClientID, cfg.ClientSecret, httpClient),
		retry:      DefaultRetryPolicy(),
		sleep:      sleepOrDone,
		logger:     logger,
		tracer:     tracer,
	}
}

// WithRetryPolicy overrides the retry policy. Intended for tests and
// operator tuning.
func (c *Client) WithRetryPolicy(p RetryPolicy) *Client {
	c.retry = p
	return c
}

// WithSleep overrides the backoff sleeper so retry behavior is testable
// without wall-clock delays.
func (c *Client) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Client {
	c.sleep = sleep
	return c
}

// Name returns the carrier identifier.
func (c *Client) Name() string {
	return carrierName
}

// sleepOrDone waits for the duration or returns early on context
// cancellation.
func sleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// do executes an authenticated JSON request against the FedEx API.
//
// A 401 forces one token refresh and one retry of the same call; a
// second 401 is fatal. A 429 backs off per the retry policy and is
// surfaced as rate-limited once attempts are exhausted. Any other
// non-2xx status propagates immediately with its body attached.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling %s request: %w", path, err)
		}
	}

	attempt := 0
	forceRefresh := false
	for {
		token, err := c.tokens.Token(ctx, forceRefresh)
		if err != nil {
			return err
		}

		status, respBody, err := c.doOnce(ctx, method, path, payload, token)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				c.logger.Warn("FedEx call timed out",
					zap.String("path", path),
					zap.Int("attempt", attempt),
				)
				return carrier.NewError(carrierName, "TIMEOUT", "call to "+path+" timed out").
					WithCause(carrier.ErrTimeout).WithRetryable(true)
			}
			return carrier.NewError(carrierName, "TRANSPORT", "call to "+path+" failed").
				WithCause(err).WithRetryable(true)
		}

		// A non-401 answer means the current token is good; later
		// attempts in this loop reuse the cache.
		if status != http.StatusUnauthorized {
			forceRefresh = false
		}

		switch {
		case status == http.StatusUnauthorized:
			if forceRefresh {
				// Already retried with a fresh token once.
				return carrier.NewError(carrierName, "AUTH_FAILED", apiErrorMessage(respBody)).
					WithStatusCode(status).
					WithBody(string(respBody)).
					WithCause(carrier.ErrAuthFailed)
			}
			c.logger.Warn("FedEx returned 401, refreshing token", zap.String("path", path))
			forceRefresh = true
			continue

		case status == http.StatusTooManyRequests:
			attempt++
			if attempt >= c.retry.MaxAttempts {
				return carrier.NewError(carrierName, "RATE_LIMITED", "throttled by carrier").
					WithStatusCode(status).
					WithBody(string(respBody)).
					WithCause(carrier.ErrRateLimited).
					WithRetryable(true)
			}
			delay := c.retry.Backoff(attempt - 1)
			c.logger.Warn("FedEx throttled request, backing off",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
			continue

		case status >= 400:
			return carrier.NewError(carrierName, fmt.Sprintf("HTTP_%d", status), apiErrorMessage(respBody)).
				WithStatusCode(status).
				WithBody(string(respBody))
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decoding %s response: %w", path, err)
			}
		}
		return nil
	}
}

func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte, token string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-locale", c.cfg.Locale)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// apiErrorMessage extracts a human-readable message from a FedEx error
// body, falling back to the raw body.
func apiErrorMessage(body []byte) string {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && len(apiErr.Errors) > 0 {
		return apiErr.Errors[0].Message
	}
	var simple struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &simple); err == nil {
		if simple.Message != "" {
			return simple.Message
		}
		if simple.Error != "" {
			return simple.Error
		}
	}
	return string(body)
}

var _ carrier.Carrier = (*Client)(nil)
