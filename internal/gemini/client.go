package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/kalambet/frontdesk/internal/mentor"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

var (
	// ErrNoAPIKey is returned by New when the key is blank.
	ErrNoAPIKey = errors.New("gemini api key is empty")
	// ErrOffline is returned by Offline for every request.
	ErrOffline = errors.New("gemini is not configured")
)

// Client sends mentor requests to the Gemini API.
type Client struct {
	client *genai.Client
	model  string
}

// New creates a Client for the given key and model name.
func New(ctx context.Context, apiKey, model string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Client{client: cl, model: model}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Generate implements mentor.Generator.
func (c *Client) Generate(ctx context.Context, req mentor.Request) (string, error) {
	m := c.client.GenerativeModel(c.model)
	if req.System != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.JSON {
		m.GenerationConfig.ResponseMIMEType = "application/json"
	}

	resp, err := m.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return responseText(resp), nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// responseText joins the text parts of the first candidate that has content.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range cand.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}

// Offline is the generator used when no API key is configured. Every call fails,
// so each mentor operation returns its offline fallback.
type Offline struct{}

// Generate implements mentor.Generator.
func (Offline) Generate(context.Context, mentor.Request) (string, error) {
	return "", ErrOffline
}
