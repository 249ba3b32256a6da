package feedsim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/matchbar/pkg/logger"
)

// deliveryIDHeader names the header the ingest endpoint reads delivery ids from.
const deliveryIDHeader = "X-Delivery-ID"

// Client talks to the matchbar HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	log     logger.Logger
}

// NewClient creates a client with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.Discard()
	}
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}, log: log}
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	if err != nil {
		return err
	}
	defer c.closeBody(ctx, resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// SetActive replaces the service's active events.
func (c *Client) SetActive(ctx context.Context, keys []string) error {
	return c.sendJSON(ctx, http.MethodPut, "/api/active", map[string][]string{"events": keys}, http.StatusOK)
}

// Follow adds team to the service's follow set.
func (c *Client) Follow(ctx context.Context, team string) error {
	return c.sendJSON(ctx, http.MethodPost, "/api/follows", map[string]string{"team": team}, http.StatusOK)
}

// Push posts a snapshot for eventKey under deliveryID.
func (c *Client) Push(ctx context.Context, eventKey, deliveryID string, payload []byte) error {
	headers := map[string]string{"Content-Type": "application/json", deliveryIDHeader: deliveryID}
	resp, err := c.do(ctx, http.MethodPost, "/api/feed/"+url.PathEscape(eventKey), payload, headers)
	if err != nil {
		return err
	}
	defer c.closeBody(ctx, resp)
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("%w: %s status %d", ErrRejected, eventKey, resp.StatusCode)
	}
	return nil
}

// ServiceStats mirrors the fields of GET /stats the runner checks.
type ServiceStats struct {
	Started         bool     `json:"started"`
	ActiveEvents    []string `json:"active_events"`
	CachedSnapshots int      `json:"cached_snapshots"`
	Surfaces        int      `json:"surfaces"`
	DedupeEntries   int64    `json:"dedupe_entries"`
}

// Stats fetches GET /stats.
func (c *Client) Stats(ctx context.Context) (ServiceStats, error) {
	var out ServiceStats
	resp, err := c.do(ctx, http.MethodGet, "/stats", nil, nil)
	if err != nil {
		return out, err
	}
	defer c.closeBody(ctx, resp)
	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("%w: stats status %d", ErrUnhealthy, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode stats: %w", err)
	}
	return out, nil
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body any, want int) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	resp, err := c.do(ctx, method, path, data, map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return err
	}
	defer c.closeBody(ctx, resp)
	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s status %d: %s", ErrRejected, method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, headers map[string]string) (*http.Response, error) {
	var r io.Reader = http.NoBody
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func (c *Client) closeBody(ctx context.Context, resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	if err := resp.Body.Close(); err != nil {
		c.log.Error(ctx, "failed to close response body", logger.Error(err))
	}
}
