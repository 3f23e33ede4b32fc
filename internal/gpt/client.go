// Package gpt talks to OpenRouter's OpenAI-compatible chat API.
package gpt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"photocal/internal/models"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "anthropic/claude-3-haiku"

	analyzeMaxTokens = 500
	summaryMaxTokens = 1000
	temperature      = 0.7
)

// ErrNoAPIKey is returned by every call when no OpenRouter key is configured.
var ErrNoAPIKey = errors.New("API ключ не настроен. Укажите OPENROUTER_API_KEY")

// ErrEmptyResponse is returned when the model produced no choices.
var ErrEmptyResponse = errors.New("no response from model")

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Referer and Title identify the app to OpenRouter.
	Referer string
	Title   string
	Timeout time.Duration
}

type Client struct {
	client *openai.Client
	model  string
	hasKey bool
}

func NewClient(cfg Config) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = DefaultBaseURL
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	oc.HTTPClient = &http.Client{
		Timeout: timeout,
		Transport: &headerTransport{
			base:    http.DefaultTransport,
			referer: cfg.Referer,
			title:   cfg.Title,
		},
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		client: openai.NewClientWithConfig(oc),
		model:  model,
		hasKey: cfg.APIKey != "",
	}
}

func (c *Client) WithModel(model string) *Client {
	c.model = model
	return c
}

// AnalyzeFood asks the model to describe the photographed dish. The reply
// is returned verbatim; it is expected, but not guaranteed, to be JSON.
func (c *Client) AnalyzeFood(ctx context.Context, imageBase64, description string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: analyzeSystemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: AnalyzePrompt(description),
					},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: ImageURL(imageBase64)},
					},
				},
			},
		},
		MaxTokens:   analyzeMaxTokens,
		Temperature: temperature,
	}
	return c.complete(ctx, req)
}

// SummarizeDay asks for the four-part daily review of meals.
func (c *Client) SummarizeDay(ctx context.Context, meals []models.FoodEntry, info *models.UserProfile) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: summarySystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: SummaryPrompt(meals, info),
			},
		},
		MaxTokens:   summaryMaxTokens,
		Temperature: temperature,
	}
	return c.complete(ctx, req)
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	if !c.hasKey {
		return "", ErrNoAPIKey
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return resp.Choices[0].Message.Content, nil
}

type headerTransport struct {
	base    http.RoundTripper
	referer string
	title   string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.referer != "" {
		req.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		req.Header.Set("X-Title", t.title)
	}
	return t.base.RoundTrip(req)
}
