package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultTimeout     = 5000 * time.Millisecond
	defaultMaxAttempts = 3
	defaultBackoffBase = 100 * time.Millisecond
)

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits; the client talks to a single backend host
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// Client issues requests against the backend REST API with per-attempt
// timeouts, failure classification and retry with exponential backoff.
//
// Every response is the uniform envelope {success, data, error}; Client
// decodes the envelope and unmarshals its data payload into the caller's
// type. Failures are classified per [Kind]: 4xx responses and timeouts
// fail immediately, everything else is retried up to the attempt budget
// with delays of backoffBase * 2^attempt between attempts.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	timeout     time.Duration
	maxAttempts int
	backoffBase time.Duration
	headers     map[string]string
	logger      *slog.Logger
}

// Option configures a [Client] during construction.
type Option func(*Client) error

// WithTimeout sets the per-attempt timeout. Defaults to 5000 ms.
// A timed-out attempt is classified [KindTimeout] and is not retried.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		c.timeout = d
		return nil
	}
}

// WithMaxAttempts sets the total number of attempts per request,
// including the first. Defaults to 3.
//
// Returns an error if the value is zero or negative.
func WithMaxAttempts(n int) Option {
	return func(c *Client) error {
		if n <= 0 {
			return errors.New("max attempts must be positive")
		}
		c.maxAttempts = n
		return nil
	}
}

// WithBackoffBase sets the base delay for exponential backoff between
// retry attempts. The wait before retry n is base * 2^(n-1). Defaults
// to 100 ms.
//
// Returns an error if the duration is zero or negative.
func WithBackoffBase(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return errors.New("backoff base must be positive")
		}
		c.backoffBase = d
		return nil
	}
}

// WithHTTPClient replaces the underlying [http.Client]. Useful for tests
// and for callers that need custom transports.
//
// Returns an error if the client is nil.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client cannot be nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) error {
		if key == "" {
			return errors.New("header key cannot be empty")
		}
		c.headers[key] = value
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. Defaults to [slog.Default].
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// New creates a backend API [Client] for the given base URL.
//
// The base URL must be absolute (http or https). A trailing slash is
// trimmed so endpoint paths can always start with "/".
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must use http or https", baseURL)
	}

	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		timeout:     defaultTimeout,
		maxAttempts: defaultMaxAttempts,
		backoffBase: defaultBackoffBase,
		headers:     make(map[string]string),
		httpClient: &http.Client{
			// no global timeout: per-attempt timeouts applied via context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c, nil
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Do performs a request against endpoint with the full retry policy and
// unmarshals the envelope's data payload into out (which may be nil when
// the caller does not need the payload).
//
// The returned error is a [*RequestError] for classified failures, or the
// context's error when ctx is cancelled. After the retry budget is
// exhausted the last observed transient error is returned.
func (c *Client) Do(ctx context.Context, method, endpoint string, body, out any) error {
	return c.do(ctx, method, endpoint, body, out, c.maxAttempts)
}

// Probe performs a single-attempt health check with no retries. Health
// probing has its own retry policy at the orchestration layer, so the
// client-level budget must not apply.
func (c *Client) Probe(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, 1)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any, attempts int) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return &RequestError{Kind: KindClient, Endpoint: endpoint, Err: fmt.Errorf("encode request body: %w", err)}
		}
	}

	requestID := uuid.NewString()

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.backoffBase * (1 << (attempt - 1))
			c.logger.Debug("retrying request",
				"endpoint", endpoint,
				"attempt", attempt+1,
				"delay", delay.String(),
				"request_id", requestID,
			)
			if !sleepContext(ctx, delay) {
				return fmt.Errorf("request %s: %w", endpoint, ctx.Err())
			}
		}

		err := c.attempt(ctx, method, endpoint, bodyBytes, out, requestID)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return err
		}
		var re *RequestError
		if !errors.As(err, &re) || re.Kind != KindTransient {
			return err
		}
	}
	return lastErr
}

// attempt performs one HTTP exchange and classifies its outcome.
func (c *Client) attempt(ctx context.Context, method, endpoint string, body []byte, out any, requestID string) error {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return &RequestError{Kind: KindClient, Endpoint: endpoint, Err: fmt.Errorf("create request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.classifyTransport(ctx, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return c.classifyTransport(ctx, endpoint, fmt.Errorf("read response body: %w", err))
	}

	var env envelope
	envErr := json.Unmarshal(data, &env)

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		re := &RequestError{Kind: KindClient, Endpoint: endpoint, StatusCode: resp.StatusCode}
		if envErr == nil && env.Error != nil {
			re.Code = env.Error.Code
			re.Message = env.Error.Message
		}
		return re
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		re := &RequestError{Kind: KindTransient, Endpoint: endpoint, StatusCode: resp.StatusCode}
		if envErr == nil && env.Error != nil {
			re.Code = env.Error.Code
			re.Message = env.Error.Message
		}
		return re
	}

	if envErr != nil {
		return &RequestError{
			Kind:       KindTransient,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decode response: %w", envErr),
		}
	}
	if !env.Success {
		re := &RequestError{Kind: KindTransient, Endpoint: endpoint, StatusCode: resp.StatusCode}
		if env.Error != nil {
			re.Code = env.Error.Code
			re.Message = env.Error.Message
		}
		return re
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &RequestError{
				Kind:       KindTransient,
				Endpoint:   endpoint,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("decode data payload: %w", err),
			}
		}
	}
	return nil
}

// classifyTransport maps a transport-level failure to a RequestError,
// distinguishing attempt timeouts from caller cancellation.
func (c *Client) classifyTransport(ctx context.Context, endpoint string, err error) error {
	if ctx.Err() != nil {
		// the caller's context ended, not our attempt deadline
		return fmt.Errorf("request %s: %w", endpoint, ctx.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &RequestError{Kind: KindTimeout, Endpoint: endpoint, Err: err}
	}
	return &RequestError{Kind: KindTransient, Endpoint: endpoint, Err: err}
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times. The client remains usable afterwards; new
// connections are established as needed.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	return c.Do(ctx, http.MethodGet, endpoint, nil, out)
}

func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	return c.Do(ctx, http.MethodPost, endpoint, body, out)
}

// sleepContext waits for d or until ctx is done, reporting whether the
// full delay elapsed.
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
