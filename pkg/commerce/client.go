package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

const (
	breakerName                 = "commerce"
	responseBodyLimit     int64 = 1 << 20
	errorBodyLogLimit           = 512
	idempotencyHeader           = "Idempotency-Key"
	defaultRequestTimeout       = 15 * time.Second
)

var errBaseURLRequired = errors.New("commerce base url is required")

// Recorder receives per-call latency and breaker transitions.
type Recorder interface {
	ObserveRequest(endpoint, outcome string, duration time.Duration)
	SetBreakerState(name string, state int)
}

// Client talks to the commerce API (orders, payments, catalog, accounts) behind a circuit breaker.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	breaker    *gobreaker.CircuitBreaker[*rawResponse]
	logger     *logger.Logger
	recorder   Recorder
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(c *Client) {
		c.recorder = rec
	}
}

// NewClient builds the commerce client from configuration.
func NewClient(cfg config.CommerceConfig, breakerCfg config.BreakerConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	if logg == nil {
		logg = logger.Nop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		logger:     logg,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	client.breaker = gobreaker.NewCircuitBreaker[*rawResponse](client.breakerSettings(breakerCfg))
	return client, nil
}

func (c *Client) breakerSettings(cfg config.BreakerConfig) gobreaker.Settings {
	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	return gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if c.recorder != nil {
				c.recorder.SetBreakerState(name, int(to))
			}
			ctx := c.logger.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			c.logger.Warn(ctx, "commerce breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			// Only transport failures and 5xx trip the breaker; caller cancellation does not.
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
}

type rawResponse struct {
	status int
	body   []byte
}

type serverStatusError struct {
	resp *rawResponse
}

func (e *serverStatusError) Error() string {
	return fmt.Sprintf("commerce status %d", e.resp.status)
}

type call struct {
	endpoint       string
	method         string
	path           string
	body           any
	idempotencyKey string
}

// do executes one call through the breaker and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, req call, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "commerce client not configured")
	}
	started := time.Now()
	resp, err := c.breaker.Execute(func() (*rawResponse, error) {
		return c.send(ctx, req)
	})
	if err != nil {
		c.observe(req.endpoint, "error", started)
		return c.mapFailure(ctx, req, err)
	}
	if resp.status >= 400 {
		c.observe(req.endpoint, "rejected", started)
		return mapStatus(resp, req.endpoint)
	}
	c.observe(req.endpoint, "ok", started)
	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decode %s response", req.endpoint))
	}
	return nil
}

func (c *Client) send(ctx context.Context, req call) (*rawResponse, error) {
	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.buildURL(req.path), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if req.idempotencyKey != "" {
		httpReq.Header.Set(idempotencyHeader, req.idempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if err != nil {
		return nil, err
	}
	raw := &rawResponse{status: resp.StatusCode, body: data}
	if resp.StatusCode >= 500 {
		return nil, &serverStatusError{resp: raw}
	}
	return raw, nil
}

func (c *Client) mapFailure(ctx context.Context, req call, err error) error {
	var statusErr *serverStatusError
	if errors.As(err, &statusErr) {
		mapped := mapStatus(statusErr.resp, req.endpoint)
		c.logFailure(ctx, req, mapped, statusErr.resp.status)
		return mapped
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		mapped := pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commerce api temporarily unavailable")
		c.logFailure(ctx, req, mapped, 0)
		return mapped
	}
	mapped := pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s request failed", req.endpoint))
	c.logFailure(ctx, req, mapped, 0)
	return mapped
}

func (c *Client) logFailure(ctx context.Context, req call, err error, status int) {
	fields := map[string]any{
		"endpoint": req.endpoint,
		"method":   req.method,
		"path":     req.path,
	}
	if status > 0 {
		fields["status"] = status
	}
	c.logger.Error(c.logger.WithFields(ctx, fields), "commerce request failed", err)
}

func (c *Client) observe(endpoint, outcome string, started time.Time) {
	if c.recorder == nil {
		return
	}
	c.recorder.ObserveRequest(endpoint, outcome, time.Since(started))
}

func (c *Client) buildURL(path string) string {
	return fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(path, "/"))
}
