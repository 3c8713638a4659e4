package heart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client implements Gateway over HTTP against a remote heart service.
// Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout (default 5s).
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRateLimit caps validate calls per second. Zero means unlimited.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// NewClient creates a gateway client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate posts one action to the remote gateway. Transport errors and
// non-200 responses are returned as errors so the caller can apply its
// transient-failure policy.
func (c *Client) Validate(ctx context.Context, action, intent string, complexity float64) (Verdict, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Verdict{}, fmt.Errorf("rate limiter: %w", err)
		}
	}

	body, err := json.Marshal(ValidateRequest{
		Action:     action,
		Intent:     intent,
		Complexity: complexity,
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to marshal validate request: %w", err)
	}

	var verdict Verdict
	if err := c.postJSON(ctx, "/validate", body, &verdict); err != nil {
		return Verdict{}, err
	}
	return verdict, nil
}

// Invariants fetches the remote threshold snapshot.
func (c *Client) Invariants(ctx context.Context) (Thresholds, error) {
	var thresholds Thresholds
	if err := c.getJSON(ctx, "/invariants", &thresholds); err != nil {
		return Thresholds{}, err
	}
	return thresholds, nil
}

// Health fetches the remote liveness status.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var health Health
	if err := c.getJSON(ctx, "/health", &health); err != nil {
		return Health{}, err
	}
	return health, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("heart unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("heart returned %d: %s", resp.StatusCode, string(data))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode heart response: %w", err)
	}
	return nil
}
