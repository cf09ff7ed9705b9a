package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// HTTPClient wraps http.Client with a per-session cookie jar.
type HTTPClient struct {
	client *http.Client
}

// newHTTPClient creates a client that keeps its own session cookie.
func newHTTPClient(timeout time.Duration) (*HTTPClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &HTTPClient{client: &http.Client{Timeout: timeout, Jar: jar}}, nil
}

// Get performs a GET request and decodes a JSON body into out when non-nil.
func (c *HTTPClient) Get(ctx context.Context, url string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, url string, body, out any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out any) (int, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if out != nil && resp.StatusCode < http.StatusBadRequest {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// simulateSession runs predict then feedback in a fresh session.
func simulateSession(ctx context.Context, cfg *Config, catalog Catalog) error {
	client, err := newHTTPClient(cfg.Timeout)
	if err != nil {
		return err
	}

	status, err := client.Post(ctx, cfg.BaseURL+"/api/predict", randomOrder(catalog), nil)
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("predict: unexpected status %d", status)
	}

	var receipt struct {
		Rows int `json:"rows"`
	}
	status, err = client.Post(ctx, cfg.BaseURL+"/api/feedback", randomFeedback(), &receipt)
	if err != nil {
		return fmt.Errorf("feedback: %w", err)
	}
	if status != http.StatusCreated {
		return fmt.Errorf("feedback: unexpected status %d", status)
	}
	if receipt.Rows != rowsPerSubmission {
		return fmt.Errorf("feedback: wrote %d rows, want %d", receipt.Rows, rowsPerSubmission)
	}
	return nil
}

// countRows reads the monitoring surface's unfiltered row count.
func countRows(ctx context.Context, cfg *Config) (int, error) {
	client, err := newHTTPClient(cfg.Timeout)
	if err != nil {
		return 0, err
	}
	var logs struct {
		Count int `json:"count"`
	}
	status, err := client.Get(ctx, cfg.MonitorURL+"/api/logs", &logs)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("logs: unexpected status %d", status)
	}
	return logs.Count, nil
}
