package metrics

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vitals/pkg/logging"

	"github.com/cenkalti/backoff/v5"
)

// Defaults for New.
const (
	DefaultTimeout     = 5 * time.Second
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
)

const maxResponseBytes = 10 << 20

// Endpoint paths relative to the base URL.
const (
	queryPath  = "api/v1/query"
	alertsPath = "api/v1/alerts"
)

// Client queries a Prometheus-compatible backend. It holds no per-call state
// and is safe for concurrent use.
type Client struct {
	baseURL     *url.URL
	httpClient  *http.Client
	timeout     time.Duration
	maxAttempts uint
	baseDelay   time.Duration
	notify      backoff.Notify
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Its own Timeout should be zero; the
// per-attempt timeout is applied through the request context.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.timeout = d }
}

// WithMaxAttempts sets the total number of attempts per call.
func WithMaxAttempts(n int) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.maxAttempts = uint(n)
		}
	}
}

// WithBaseDelay sets the delay before the second attempt. It doubles after
// every further failure.
func WithBaseDelay(d time.Duration) Option {
	return func(cl *Client) { cl.baseDelay = d }
}

// WithRetryNotify registers a callback invoked before every backoff sleep.
func WithRetryNotify(fn func(err error, delay time.Duration)) Option {
	return func(cl *Client) { cl.notify = fn }
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:     u,
		httpClient:  &http.Client{},
		timeout:     DefaultTimeout,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend base URL without the trailing slash.
func (c *Client) BaseURL() string {
	return strings.TrimSuffix(c.baseURL.String(), "/")
}

// Query runs an instant query. A blank expression fails with ErrEmptyQuery
// without touching the network.
func (c *Client) Query(ctx context.Context, expr string) (*QueryResult, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, ErrEmptyQuery
	}
	return c.get(ctx, queryPath, url.Values{"query": {expr}})
}

// Alerts returns the active alerts.
func (c *Client) Alerts(ctx context.Context) (*QueryResult, error) {
	return c.get(ctx, alertsPath, nil)
}

func (c *Client) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.baseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = 30 * time.Second
	return b
}

// get runs one logical call under the retry policy.
func (c *Client) get(ctx context.Context, path string, params url.Values) (*QueryResult, error) {
	endpoint := c.baseURL.JoinPath(path)
	if params != nil {
		endpoint.RawQuery = params.Encode()
	}

	attempts := 0
	permanent := false
	op := func() (*QueryResult, error) {
		attempts++
		result, err := c.attempt(ctx, endpoint.String())
		if err == nil {
			return result, nil
		}
		if !retryable(ctx, err) {
			permanent = true
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	notify := func(err error, delay time.Duration) {
		logging.Warn("Metrics", "Attempt %d/%d for %s failed: %v (retrying in %s)", attempts, c.maxAttempts, path, err, delay)
		if c.notify != nil {
			c.notify(err, delay)
		}
	}

	result, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(c.backOff()),
		backoff.WithMaxTries(c.maxAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	if err == nil {
		return result, nil
	}

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	if permanent {
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	logging.Error("Metrics", err, "Giving up on %s after %d attempts", path, attempts)
	return nil, &NetworkError{Attempts: attempts, Err: err}
}

// attempt performs a single bounded request and classifies the outcome.
func (c *Client) attempt(ctx context.Context, endpoint string) (*QueryResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, attemptCtx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(ctx, attemptCtx, err)
	}

	var result QueryResult
	decodeErr := json.Unmarshal(body, &result)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Prometheus answers bad queries with 4xx and an error envelope.
		if resp.StatusCode < 500 && decodeErr == nil && result.Status == StatusError {
			return nil, &BackendError{ErrorType: result.ErrorType, Message: result.Error}
		}
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, decodeErr)
	}
	if result.Status != StatusSuccess {
		msg := result.Error
		if msg == "" {
			msg = fmt.Sprintf("unexpected status %q", result.Status)
		}
		return nil, &BackendError{ErrorType: result.ErrorType, Message: msg}
	}
	return &result, nil
}

// transportError marks per-attempt deadline expiry as ErrTimeout so it is
// distinguishable from other network failures.
func transportError(parent, attemptCtx context.Context, err error) error {
	if parent.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

// retryable classifies an attempt error. Transport errors, timeouts and 5xx
// are transient; everything else is final.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	if errors.Is(err, ErrMalformedResponse) {
		return false
	}
	if errors.Is(err, ErrTimeout) {
		return true
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF)
}
