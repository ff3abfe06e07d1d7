package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"scooby-agent/internal/integrations/paramstore"
)

const defaultModel = "gemini-1.5-flash"

// Client generates text with a Gemini model.
type Client struct {
	client    *genai.Client
	modelName string
}

// NewClient resolves the API key from token and dials the Gemini API.
func NewClient(ctx context.Context, token paramstore.TokenSource, modelName string) (*Client, error) {
	if token == nil {
		return nil, errors.New("gemini: token source must not be nil")
	}
	apiKey, err := token.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("gemini: resolve api key: %w", err)
	}
	if apiKey == "" {
		return nil, errors.New("gemini: API token is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultModel
	}
	return &Client{client: cl, modelName: modelName}, nil
}

func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m := c.client.GenerativeModel(c.modelName)
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}

	resp, err := m.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("gemini: generate: %w", err)
	}
	text := candidateText(resp)
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}

// candidateText joins the text parts of the first candidate.
func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String())
}
