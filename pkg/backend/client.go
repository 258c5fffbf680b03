package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/fruteria-pos/pkg/config"
	"github.com/angelmondragon/fruteria-pos/pkg/logger"
	"github.com/sony/gobreaker/v2"
)

const maxResponseBytes = 4 << 20

// Client talks to the shop's REST backend, which owns products, stock and sales.
// Every call goes through one circuit breaker; business rejections (4xx) do
// not count against it.
type Client struct {
	http         *http.Client
	baseURL      *url.URL
	productsPath string
	salesPath    string
	token        string
	timeout      time.Duration
	breaker      *gobreaker.CircuitBreaker[[]byte]
	logg         *logger.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient swaps the transport, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New builds a backend client from config.
func New(cfg config.BackendConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing backend url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", cfg.BaseURL)
	}
	if logg == nil {
		logg = logger.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		http:         &http.Client{Timeout: timeout},
		baseURL:      base,
		productsPath: cfg.ProductsPath,
		salesPath:    cfg.SalesPath,
		token:        cfg.APIToken,
		timeout:      timeout,
		logg:         logg,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](breakerSettings(cfg, logg))
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func breakerSettings(cfg config.BackendConfig, logg *logger.Logger) gobreaker.Settings {
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	return gobreaker.Settings{
		Name:    "shop-backend",
		Timeout: cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var respErr *responseError
			return errors.As(err, &respErr) && respErr.rejected()
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			ctx := logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			logg.Warn(ctx, "backend.breaker_state_changed")
		},
	}
}

// responseError is a non-2xx answer from the backend.
type responseError struct {
	Status  int
	Message string
}

func (e *responseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend responded %d", e.Status)
	}
	return fmt.Sprintf("backend responded %d: %s", e.Status, e.Message)
}

func (e *responseError) rejected() bool {
	return e.Status >= 400 && e.Status < 500
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = encoded
	}

	return c.breaker.Execute(func() ([]byte, error) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &responseError{Status: resp.StatusCode, Message: errorMessage(data)}
		}
		return data, nil
	})
}

func (c *Client) endpoint(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL.String() + path
}

// errorMessage pulls a human readable message out of an error body. Both
// {"message": "..."} and {"error": {"message": "..."}} are understood.
func errorMessage(body []byte) string {
	var payload struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}
	if payload.Message != "" {
		return payload.Message
	}
	if len(payload.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
		var plain string
		if err := json.Unmarshal(payload.Error, &plain); err == nil {
			return plain
		}
	}
	return ""
}

// unwrapData accepts both bare payloads and {"data": ...} envelopes.
func unwrapData(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err == nil && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		return envelope.Data
	}
	return trimmed
}
