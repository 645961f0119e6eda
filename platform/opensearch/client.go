// Package opensearch provides a REST client for the OpenSearch full-text engine.
package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client is an HTTP client bound to one index or alias.
type Client struct {
	baseURL    string
	index      string
	username   string
	password   string
	httpClient *http.Client
}

// Config configures the OpenSearch client.
type Config struct {
	BaseURL  string
	Index    string
	Username string
	Password string
	// Timeout is a backstop. Callers bound each call with their own context.
	Timeout time.Duration
}

// NewClient creates a new OpenSearch client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:  cfg.BaseURL,
		index:    cfg.Index,
		username: cfg.Username,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Index returns the index or alias searches are sent to.
func (c *Client) Index() string {
	return c.index
}

// StatusError is returned when OpenSearch answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("opensearch returned %d: %s", e.StatusCode, e.Body)
}

// TotalHits is the hits.total object.
type TotalHits struct {
	Value    int64  `json:"value"`
	Relation string `json:"relation"`
}

// Hit is a single search hit.
type Hit struct {
	ID     string          `json:"_id"`
	Score  *float64        `json:"_score"`
	Source json.RawMessage `json:"_source"`
}

// SearchResponse is the subset of the _search response the service reads.
type SearchResponse struct {
	Took     int64 `json:"took"`
	TimedOut bool  `json:"timed_out"`
	Hits     struct {
		Total TotalHits `json:"total"`
		Hits  []Hit     `json:"hits"`
	} `json:"hits"`
}

// Search runs a query DSL body against the configured index.
func (c *Client) Search(ctx context.Context, body interface{}) (*SearchResponse, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/_search", c.baseURL, url.PathEscape(c.index))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var searchResp SearchResponse
	if err := c.do(req, &searchResp); err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	return &searchResp, nil
}

// Ping checks that the cluster answers its root endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create ping request: %w", err)
	}
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
