// Package tfserving calls a TensorFlow Serving REST endpoint that hosts the
// unconverted Keras classifier.
package tfserving

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const maxErrorBody = 4 << 10

// ErrProbabilityRange is returned when the served model answers outside [0, 1].
var ErrProbabilityRange = errors.New("probability out of range")

// Client posts padded sequences to {BaseURL}/v1/models/{Model}:predict.
type Client struct {
	baseURL string
	model   string
	maxLen  int
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient overrides the default client (30s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func New(baseURL, model string, maxLen int, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("serving url is required")
	}

	if model == "" {
		return nil, errors.New("serving model is required")
	}

	if maxLen < 1 {
		return nil, fmt.Errorf("max sequence length must be >= 1, got %d", maxLen)
	}

	c := &Client{
		baseURL: baseURL,
		model:   model,
		maxLen:  maxLen,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

type predictRequest struct {
	Instances [][]int64 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error"`
}

// PredictURL returns the REST predict endpoint.
func (c *Client) PredictURL() string {
	return fmt.Sprintf("%s/v1/models/%s:predict", c.baseURL, c.model)
}

// Classify sends one padded sequence and returns the AI probability.
func (c *Client) Classify(ctx context.Context, padded []int64) (float64, error) {
	if len(padded) != c.maxLen {
		return 0, fmt.Errorf("classify: sequence length %d, want %d", len(padded), c.maxLen)
	}

	body, err := json.Marshal(predictRequest{Instances: [][]int64{padded}})
	if err != nil {
		return 0, fmt.Errorf("encode predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.PredictURL(), bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("predict request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return 0, fmt.Errorf("predict failed: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode predict response: %w", err)
	}

	if out.Error != "" {
		return 0, fmt.Errorf("predict failed: %s", out.Error)
	}

	if len(out.Predictions) == 0 || len(out.Predictions[0]) == 0 {
		return 0, errors.New("predict response has no predictions")
	}

	p := out.Predictions[0][0]
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("classify: %w: %v", ErrProbabilityRange, p)
	}

	return p, nil
}

// MaxLen returns the fixed input length.
func (c *Client) MaxLen() int { return c.maxLen }

// Ping checks GET {BaseURL}/v1/models/{Model} for model availability.
func (c *Client) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/v1/models/%s", c.baseURL, c.model)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build status request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("status request: %w", err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("model %q not available: %s", c.model, resp.Status)
	}

	return nil
}

// Close is a no-op; the client holds no long-lived resources.
func (c *Client) Close() {}
