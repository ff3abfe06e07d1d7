package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"scooby-agent/internal/domain"
	"scooby-agent/internal/integrations/httpclient"
	"scooby-agent/internal/integrations/paramstore"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
)

// chatRequest is the minimal request shape for the Chat Completions endpoint.
type chatRequest struct {
	Model       string               `json:"model"`
	Messages    []domain.ChatMessage `json:"messages"`
	Temperature *float64             `json:"temperature,omitempty"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
}

// chatResponse is the minimal response shape returned by the Chat Completions endpoint.
type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Index   int                `json:"index"`
		Message domain.ChatMessage `json:"message"`
	} `json:"choices"`
}

// Client is a focused OpenAI-compatible client for chat completions.
type Client struct {
	baseURL     string
	model       string
	temperature *float64
	httpClient  *http.Client
	token       paramstore.TokenSource
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if m := strings.TrimSpace(model); m != "" {
			c.model = m
		}
	}
}

func WithTemperature(t float64) Option {
	return func(c *Client) {
		c.temperature = &t
	}
}

// NewClient creates a Client whose API key comes from token. With an SSM
// backed source the key is fetched on the first request and reused.
func NewClient(token paramstore.TokenSource, opts ...Option) (*Client, error) {
	if token == nil {
		return nil, errors.New("openai: token source must not be nil")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: httpclient.Default(),
		token:      token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func chatURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

// Generate sends one system and one user message and returns the first choice.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]domain.ChatMessage, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, domain.ChatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: userPrompt})
	return c.Chat(ctx, messages)
}

// Chat runs a chat completion over an arbitrary message list.
func (c *Client) Chat(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("openai: messages must not be empty")
	}
	apiKey, err := c.token.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("openai: resolve api key: %w", err)
	}
	if apiKey == "" {
		return "", errors.New("openai: API token is empty")
	}

	url := chatURL(c.baseURL)
	req, err := httpclient.NewJSONRequest(ctx, http.MethodPost, url, chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	raw, err := httpclient.Do(c.httpClient, req)
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}

	var payload chatResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("openai: decode response: %w", err)
	}
	if len(payload.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	return strings.TrimSpace(payload.Choices[0].Message.Content), nil
}
