// Package gemini adapts the Google GenAI SDK to the embedder and judge interfaces.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/vijay-prabhu/jobrank/internal/llm"
	"github.com/vijay-prabhu/jobrank/internal/logger"
)

// APIKeyEnv is read when no key is configured
const APIKeyEnv = "GEMINI_API_KEY"

// Client wraps a genai client bound to one model
type Client struct {
	client      *genai.Client
	model       string
	temperature float32
	opts        llm.Options
	log         *zap.Logger
}

// New creates a client for the Gemini API backend
func New(ctx context.Context, apiKey, model string, temperature float64, opts llm.Options, log *zap.Logger) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("gemini model is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{
		client:      client,
		model:       model,
		temperature: float32(temperature),
		opts:        opts,
		log:         logger.WithService(log, "gemini", model),
	}, nil
}

// LoadAPIKey resolves the key from a file, an inline value or the environment, in that order
func LoadAPIKey(value, file string) (string, error) {
	if file = strings.TrimSpace(file); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading gemini api key from %q: %w", file, err)
		}
		value = string(data)
	}

	if key := strings.TrimSpace(value); key != "" {
		return key, nil
	}

	if key := strings.TrimSpace(os.Getenv(APIKeyEnv)); key != "" {
		return key, nil
	}

	return "", fmt.Errorf("gemini api key is not configured (set gemini.api_key, gemini.api_key_file or %s)", APIKeyEnv)
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

// Generate implements llm.Generator
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
	}

	c.log.Debug("sending prompt",
		zap.Int("prompt_length", len(prompt)),
		zap.String("prompt_preview", logger.Truncate(prompt, 120)),
	)

	var output string
	err := llm.Retry(ctx, c.opts, func(ctx context.Context) error {
		resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
		if err != nil {
			return err
		}
		output = collectText(resp)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}
	return output, nil
}

// Embed implements llm.Embedder
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var values []float32
	err := llm.Retry(ctx, c.opts, func(ctx context.Context) error {
		resp, err := c.client.Models.EmbedContent(ctx, c.model, genai.Text(text), nil)
		if err != nil {
			return err
		}
		if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
			return llm.Permanent(errors.New("no embeddings returned"))
		}
		values = resp.Embeddings[0].Values
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}

	if len(values) == 0 {
		return nil, errors.New("gemini embed: empty embedding")
	}
	return values, nil
}

func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	return strings.TrimSpace(builder.String())
}
