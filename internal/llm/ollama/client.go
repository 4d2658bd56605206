// Package ollama is an HTTP client for a local Ollama server, used for both
// embeddings and judge prompts.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/vijay-prabhu/jobrank/internal/llm"
	"github.com/vijay-prabhu/jobrank/internal/logger"
)

// Client talks to the Ollama REST API
type Client struct {
	baseURL     string
	model       string
	temperature float64
	numPredict  int
	opts        llm.Options
	httpClient  *http.Client
	log         *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithTemperature sets the sampling temperature for Generate
func WithTemperature(t float64) Option {
	return func(c *Client) { c.temperature = t }
}

// WithNumPredict caps the number of generated tokens
func WithNumPredict(n int) Option {
	return func(c *Client) { c.numPredict = n }
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for the given host and model. Timeouts and retries are
// applied per call through opts.
func New(baseURL, model string, opts llm.Options, options ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		opts:       opts,
		httpClient: &http.Client{},
	}
	for _, o := range options {
		o(c)
	}
	c.log = logger.WithService(c.log, "ollama", model)
	return c
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Embed implements llm.Embedder
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var out embedResponse
	err := llm.Retry(ctx, c.opts, func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, "/api/embed", embedRequest{Model: c.model, Input: text}, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}

	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, errors.New("ollama embed: empty embedding")
	}
	return out.Embeddings[0], nil
}

// Generate implements llm.Generator
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	req := generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Options: generateOptions{
			Temperature: c.temperature,
			NumPredict:  c.numPredict,
		},
	}

	c.log.Debug("sending prompt",
		zap.Int("prompt_length", len(prompt)),
		zap.String("prompt_preview", logger.Truncate(prompt, 120)),
	)

	var out generateResponse
	err := llm.Retry(ctx, c.opts, func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, "/api/generate", req, &out)
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}

	return strings.TrimSpace(out.Response), nil
}

// Health checks that the server is reachable and the model is pulled
func (c *Client) Health(ctx context.Context) error {
	var out tagsResponse
	err := llm.Retry(ctx, llm.Options{Timeout: c.opts.Timeout}, func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodGet, "/api/tags", nil, &out)
	})
	if err != nil {
		return fmt.Errorf("ollama not reachable at %s: %w", c.baseURL, err)
	}

	for _, m := range out.Models {
		if m.Name == c.model || strings.TrimSuffix(m.Name, ":latest") == c.model {
			return nil
		}
	}
	return fmt.Errorf("ollama model %q not found (run 'ollama pull %s')", c.model, c.model)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return llm.Permanent(fmt.Errorf("failed to marshal request: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return llm.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("request failed", zap.String("path", path), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &llm.HTTPError{StatusCode: resp.StatusCode, Body: logger.Truncate(string(raw), 200)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return llm.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
