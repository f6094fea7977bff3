// Package openai adapts the OpenAI chat-completions API to the reasoning
// collaborator interface the council consumes.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"github.com/aristath/council/internal/council"
	"github.com/aristath/council/internal/domain"
)

// Config for the chat-completions client.
type Config struct {
	APIKey  string
	BaseURL string // empty means the SDK default
	Model   string
}

// Client calls the chat-completions endpoint and maps its failures onto the
// council failure taxonomy.
type Client struct {
	api   sdk.Client
	model string
	log   zerolog.Logger
}

// NewClient creates a chat-completions client.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		api:   sdk.NewClient(opts...),
		model: cfg.Model,
		log:   log.With().Str("client", "openai").Logger(),
	}
}

// Invoke sends one completion request and returns the raw reply text.
// Failures come back as *domain.InvokeError so the orchestrator can record
// the right failure kind.
func (c *Client) Invoke(ctx context.Context, req council.InvokeRequest) (string, error) {
	var messages []sdk.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, sdk.SystemMessage(req.System))
	}
	messages = append(messages, sdk.UserMessage(req.User))

	params := sdk.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = sdk.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		mapped := mapError(err)
		c.log.Warn().Err(err).Str("kind", string(mapped.Kind)).Msg("completion request failed")
		return "", mapped
	}

	if len(resp.Choices) == 0 {
		return "", &domain.InvokeError{Kind: domain.FailureService, Err: errors.New("completion returned no choices")}
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", &domain.InvokeError{Kind: domain.FailureService, Err: errors.New("completion returned empty content")}
	}
	return content, nil
}

// mapError classifies an SDK error into the failure taxonomy. 429 means
// rate limited, context expiry means timeout, everything else is a service
// failure.
func mapError(err error) *domain.InvokeError {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return &domain.InvokeError{Kind: domain.FailureRateLimited, Err: err}
		}
		return &domain.InvokeError{Kind: domain.FailureService, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &domain.InvokeError{Kind: domain.FailureTimeout, Err: err}
	}

	return &domain.InvokeError{Kind: domain.FailureService, Err: err}
}
