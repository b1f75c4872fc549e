package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/0xSaurabhSharma/code-correction-agent/core/history"
	"github.com/0xSaurabhSharma/code-correction-agent/core/types"
)

// Client talks to a running heal server.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// APIError is returned for any response with a status of 400 or more.
// State is set when the server returned the state of a failed run.
type APIError struct {
	StatusCode int
	Detail     string
	State      *types.RepairState
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Detail)
}

// NewClient returns a client. A zero timeout means 5 minutes, since a run
// waits on several model calls.
func NewClient(baseURL string, apiKey string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshaling request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Detail: string(data)}
		var payload struct {
			Detail string             `json:"detail"`
			State  *types.RepairState `json:"state"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Detail != "" {
			apiErr.Detail = payload.Detail
			apiErr.State = payload.State
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return err
	}
	if out.Status != "ok" {
		return fmt.Errorf("server is not healthy: %q", out.Status)
	}
	return nil
}

// RunAgent submits a function for a repair run. When the run fails on the
// server the returned error is an *APIError carrying the final state, and
// that state is returned as well.
func (c *Client) RunAgent(ctx context.Context, source string, args []any) (*types.RepairState, error) {
	if args == nil {
		args = []any{}
	}
	state := &types.RepairState{}
	err := c.doRequest(ctx, http.MethodPost, "/run_agent", map[string]any{
		"function_string": source,
		"arguments":       args,
	}, state)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.State != nil {
			return apiErr.State, err
		}
		return nil, err
	}
	return state, nil
}

func (c *Client) ListRuns(ctx context.Context, limit int) ([]*history.RunRecord, error) {
	var out struct {
		Runs []*history.RunRecord `json:"runs"`
	}
	path := "/api/runs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

func (c *Client) GetRun(ctx context.Context, id string) (*history.RunRecord, error) {
	run := &history.RunRecord{}
	if err := c.doRequest(ctx, http.MethodGet, "/api/runs/"+url.PathEscape(id), nil, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (c *Client) SearchMemory(ctx context.Context, query string, k int) ([]types.MemoryMatch, error) {
	var out struct {
		Matches []types.MemoryMatch `json:"matches"`
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("k", strconv.Itoa(k))
	if err := c.doRequest(ctx, http.MethodGet, "/api/memory/search?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Matches, nil
}
