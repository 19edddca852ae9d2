// Package apiclient is the HTTP client the CLI uses to talk to a running
// upliftd daemon.
package apiclient

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

	"uplift/internal/api"
	"uplift/internal/run"
)

const defaultTimeout = 30 * time.Second

// APIError carries the HTTP status and decoded message of a failed request.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("daemon returned status %d", e.StatusCode)
}

// IsNotFound reports whether the error is a 404 from the daemon.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to the upliftd HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New builds a client for the daemon at the given bind address or base URL.
func New(address string, opts ...Option) *Client {
	base := strings.TrimSpace(address)
	if base != "" && !strings.Contains(base, "://") {
		base = "http://" + base
	}
	c := &Client{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateDataset uploads a CSV panel.
func (c *Client) CreateDataset(ctx context.Context, req api.CreateDatasetRequest) (*api.DatasetDetail, error) {
	var detail api.DatasetDetail
	if err := c.do(ctx, http.MethodPost, "/api/datasets", req, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Datasets lists stored datasets.
func (c *Client) Datasets(ctx context.Context) ([]api.DatasetSummary, error) {
	var resp api.DatasetListResponse
	if err := c.do(ctx, http.MethodGet, "/api/datasets", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Datasets, nil
}

// DescribeDataset fetches one dataset with its validation summary.
func (c *Client) DescribeDataset(ctx context.Context, id string) (*api.DatasetDetail, error) {
	var detail api.DatasetDetail
	if err := c.do(ctx, http.MethodGet, "/api/datasets/"+url.PathEscape(id), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// DeleteDataset removes a dataset and its runs.
func (c *Client) DeleteDataset(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/datasets/"+url.PathEscape(id), nil, nil)
}

// CreateRun creates a run and starts its pipeline.
func (c *Client) CreateRun(ctx context.Context, req api.CreateRunRequest) (*api.RunDetail, error) {
	var detail api.RunDetail
	if err := c.do(ctx, http.MethodPost, "/api/runs", req, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Runs lists runs, optionally filtered by dataset.
func (c *Client) Runs(ctx context.Context, datasetID string) ([]api.RunSummary, error) {
	path := "/api/runs"
	if datasetID != "" {
		path += "?dataset=" + url.QueryEscape(datasetID)
	}
	var resp api.RunListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// DescribeRun fetches one run with its spec.
func (c *Client) DescribeRun(ctx context.Context, id string) (*api.RunDetail, error) {
	var detail api.RunDetail
	if err := c.do(ctx, http.MethodGet, "/api/runs/"+url.PathEscape(id), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// RunStatus fetches the lifecycle status of a run.
func (c *Client) RunStatus(ctx context.Context, id string) (run.Status, error) {
	var status run.Status
	if err := c.do(ctx, http.MethodGet, "/api/runs/"+url.PathEscape(id)+"/status", nil, &status); err != nil {
		return run.Status{}, err
	}
	return status, nil
}

// DeleteRun removes a run and its artifacts.
func (c *Client) DeleteRun(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/runs/"+url.PathEscape(id), nil, nil)
}

// Output fetches one run artifact payload.
func (c *Client) Output(ctx context.Context, runID, kind string) (json.RawMessage, error) {
	var resp api.OutputResponse
	path := "/api/runs/" + url.PathEscape(runID) + "/outputs/" + url.PathEscape(kind)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

// OutputKinds lists the artifact kinds available for a run.
func (c *Client) OutputKinds(ctx context.Context, runID string) ([]string, error) {
	var resp struct {
		Kinds []string `json:"kinds"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/runs/"+url.PathEscape(runID)+"/outputs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Kinds, nil
}

// DaemonStatus fetches daemon runtime information.
func (c *Client) DaemonStatus(ctx context.Context) (*api.DaemonStatus, error) {
	var status api.DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, dest any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect to daemon at %s: %w (is upliftd running?)", c.baseURL, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var decoded struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err == nil {
			apiErr.Message = decoded.Error
		}
		return apiErr
	}

	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
