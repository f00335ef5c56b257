// File: internal/oai/client.go

// Package oai is the model transport: it speaks the Responses API, keeping
// this repo's own item and tool schemas as the wire format.
package oai

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/config"
)

// Client calls the Responses API. Safe for concurrent use; the rate limiter
// is shared across all conversations in the process.
type Client struct {
	client  openai.Client
	model   string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// request is the Responses API request body. Truncation is pinned to "auto"
// so long screenshot-heavy conversations get trimmed server-side instead of
// erroring out.
type request struct {
	Model      string         `json:"model"`
	Input      []schemas.Item `json:"input"`
	Tools      []schemas.Tool `json:"tools,omitempty"`
	Truncation string         `json:"truncation"`
}

// New builds a transport from configuration. The API key falls back to the
// OPENAI_API_KEY environment variable when the config leaves it empty.
func New(cfg config.ModelConfig, logger *zap.Logger) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured: set model.api_key or OPENAI_API_KEY")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}

	return &Client{
		client:  openai.NewClient(opts...),
		model:   cfg.Name,
		limiter: rate.NewLimiter(rate.Limit(rpm/60.0), 1),
		logger:  logger.Named("oai"),
	}, nil
}

// Create sends the conversation and returns the model's new output items.
func (c *Client) Create(ctx context.Context, input []schemas.Item, tools []schemas.Tool) (*schemas.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body := request{
		Model:      c.model,
		Input:      input,
		Tools:      tools,
		Truncation: "auto",
	}

	start := time.Now()
	var resp schemas.Response
	if err := c.client.Post(ctx, "responses", body, &resp); err != nil {
		return nil, fmt.Errorf("responses API call failed: %w", err)
	}

	c.logger.Debug("Model call completed.",
		zap.String("model", c.model),
		zap.String("response_id", resp.ID),
		zap.Int("input_items", len(input)),
		zap.Int("output_items", len(resp.Output)),
		zap.Duration("duration", time.Since(start)),
	)
	return &resp, nil
}
