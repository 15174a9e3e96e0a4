// Package telemetry sends sign-in and usage events to the vitals backend.
// Delivery is best effort: failures are logged and never reach the caller.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"vitals/pkg/logging"

	"github.com/google/uuid"
)

// EventIDHeader carries a unique ID per delivery so the backend can dedupe.
const EventIDHeader = "X-Vitals-Event-Id"

// DefaultTimeout bounds each delivery.
const DefaultTimeout = 5 * time.Second

type userPayload struct {
	GithubID string `json:"githubId"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type eventPayload struct {
	GithubID   string         `json:"githubId,omitempty"`
	EventName  string         `json:"eventName"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Client posts events in the background. A Client with an empty base URL
// drops everything.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration

	wg sync.WaitGroup
}

// New creates a Client. An empty baseURL disables delivery.
func New(baseURL string, timeout time.Duration, httpClient *http.Client) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	c := &Client{httpClient: httpClient, timeout: timeout}
	if baseURL == "" {
		return c, nil
	}

	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid telemetry URL: %w", err)
	}
	c.baseURL = u
	return c, nil
}

// Enabled reports whether events are delivered.
func (c *Client) Enabled() bool {
	return c.baseURL != nil
}

// SyncUser registers or refreshes the user record.
func (c *Client) SyncUser(ctx context.Context, githubID, username, email string) {
	c.post(ctx, "users", userPayload{GithubID: githubID, Username: username, Email: email})
}

// LogEvent records a named event for subjectID.
func (c *Client) LogEvent(ctx context.Context, subjectID, eventName string, properties map[string]any) {
	c.post(ctx, "events", eventPayload{GithubID: subjectID, EventName: eventName, Properties: properties})
}

// Flush waits for in-flight deliveries or until ctx is done.
func (c *Client) Flush(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logging.Debug("Telemetry", "Flush abandoned with deliveries in flight")
	}
}

func (c *Client) post(ctx context.Context, path string, payload any) {
	if !c.Enabled() {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		logging.Warn("Telemetry", "Failed to encode %s payload: %v", path, err)
		return
	}
	endpoint := c.baseURL.JoinPath(path).String()
	// Deliveries outlive the caller's context but not the client timeout.
	sendCtx := context.WithoutCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.send(sendCtx, endpoint, body); err != nil {
			logging.Warn("Telemetry", "Delivery to %s failed: %v", path, err)
		}
	}()
}

func (c *Client) send(ctx context.Context, endpoint string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventIDHeader, uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	logging.Debug("Telemetry", "Delivered %s", endpoint)
	return nil
}
