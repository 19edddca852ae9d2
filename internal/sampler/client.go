package sampler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"uplift/internal/services"
)

const defaultHTTPTimeout = 30 * time.Minute

// Client submits sampling requests to an engine over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs an engine client for the given base URL.
func NewClient(baseURL string, timeoutSeconds int, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	client := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Sample posts the request to the engine's /sample endpoint and decodes the
// returned draws.
func (c *Client) Sample(ctx context.Context, req Request) (*Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "train", "sample",
			"encode sampling request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sample", bytes.NewReader(payload))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "train", "sample",
			"build sampling request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "train", "sample",
			"sampling engine unreachable", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, services.Wrap(services.ErrExternalTool, "train", "sample",
			fmt.Sprintf("sampling engine returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "train", "sample",
			"decode sampling response", err)
	}
	if err := validateResult(&result, req.Sampling.Chains); err != nil {
		return nil, err
	}
	return &result, nil
}

func validateResult(result *Result, wantChains int) error {
	chains := result.Posterior.Chains()
	if chains == 0 || result.Posterior.DrawsPerChain() == 0 {
		return services.Wrap(services.ErrExternalTool, "train", "sample",
			"sampling engine returned no draws", nil)
	}
	if wantChains > 0 && chains != wantChains {
		return services.Wrap(services.ErrExternalTool, "train", "sample",
			fmt.Sprintf("sampling engine returned %d chains, expected %d", chains, wantChains), nil)
	}
	draws := result.Posterior.DrawsPerChain()
	for chain := 0; chain < chains; chain++ {
		if len(result.Posterior.Intercept[chain]) != draws ||
			len(result.Posterior.Beta) != chains ||
			len(result.Posterior.Beta[chain]) != draws {
			return services.Wrap(services.ErrExternalTool, "train", "sample",
				"sampling engine returned ragged draw arrays", nil)
		}
	}
	return nil
}
