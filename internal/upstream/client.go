// Package upstream holds the REST clients for the portfolio, asset and
// currency services. Every call goes through a circuit breaker; idempotent
// GETs are retried with exponential backoff.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-trader-orders/internal/logger"
	"github.com/imrishuroy/go-trader-orders/internal/orders"
)

type authKey struct{}

// WithAuthorization stores the caller's Authorization header so it is
// forwarded to upstream services.
func WithAuthorization(ctx context.Context, header string) context.Context {
	return context.WithValue(ctx, authKey{}, header)
}

func authorization(ctx context.Context) string {
	v, _ := ctx.Value(authKey{}).(string)
	return v
}

var errNotFound = errors.New("resource not found")

// Settings configure one upstream client.
type Settings struct {
	Name        string
	BaseURL     string
	Timeout     time.Duration
	MaxTries    uint
	MaxFailures uint32
	OpenTimeout time.Duration
	// HTTPClient overrides the default client, mostly in tests.
	HTTPClient *http.Client
}

// Client performs JSON GETs against one service. Responses are wrapped as
// {"data": ...}.
type Client struct {
	name     string
	baseURL  string
	http     *http.Client
	maxTries uint
	breaker  *gobreaker.CircuitBreaker[[]byte]
	backOff  func() backoff.BackOff
}

func NewClient(s Settings) *Client {
	httpClient := s.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: s.Timeout}
	}
	maxTries := s.MaxTries
	if maxTries == 0 {
		maxTries = 1
	}
	maxFailures := s.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    s.Name,
		Timeout: s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.L().Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &Client{
		name:     s.Name,
		baseURL:  strings.TrimRight(s.BaseURL, "/"),
		http:     httpClient,
		maxTries: maxTries,
		breaker:  breaker,
		backOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = time.Second
			return b
		},
	}
}

// getJSON decodes the data member of the response into out. It reports false
// when the service answered 404.
func (c *Client) getJSON(ctx context.Context, path string, out any) (bool, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return backoff.Retry(ctx, func() ([]byte, error) {
			return c.fetch(ctx, path)
		}, backoff.WithBackOff(c.backOff()), backoff.WithMaxTries(c.maxTries))
	})
	if errors.Is(err, errNotFound) {
		return false, nil
	}
	if err != nil {
		logger.Warn(ctx, "upstream call failed", zap.String("service", c.name), zap.String("path", path), zap.Error(err))
		return false, fmt.Errorf("%s %s: %w: %w", c.name, path, orders.ErrUpstreamUnavailable, err)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false, fmt.Errorf("%s %s: decode envelope: %w", c.name, path, err)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return false, fmt.Errorf("%s %s: decode data: %w", c.name, path, err)
	}
	return true, nil
}

// fetch does one GET. Client errors are permanent; 5xx and transport
// errors are retried.
func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if auth := authorization(ctx); auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if id := logger.RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-Id", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(errNotFound)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
	}
	return body, nil
}
