package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/strokeworks/vectorflow/internal/log"
	"github.com/strokeworks/vectorflow/tracing"
)

const (
	deepSeekEndpoint = "https://api.deepseek.com/chat/completions"
	deepSeekModel    = "deepseek-chat"
)

// DeepSeek is a client for the DeepSeek chat-completions API.
type DeepSeek struct {
	endpoint string
	model    string
	apiKey   string
	http     *http.Client
}

var _ Service = (*DeepSeek)(nil)

// DeepSeekOption customises the client.
type DeepSeekOption func(c *DeepSeek)

// WithDeepSeekEndpoint overrides the API endpoint, mainly for tests.
func WithDeepSeekEndpoint(endpoint string) DeepSeekOption {
	return func(c *DeepSeek) { c.endpoint = endpoint }
}

// WithDeepSeekModel selects the model.
func WithDeepSeekModel(model string) DeepSeekOption {
	return func(c *DeepSeek) { c.model = model }
}

// WithDeepSeekHTTPClient replaces the underlying HTTP client.
func WithDeepSeekHTTPClient(client *http.Client) DeepSeekOption {
	return func(c *DeepSeek) { c.http = client }
}

// NewDeepSeek builds a DeepSeek client with a 60s request timeout.
func NewDeepSeek(apiKey string, options ...DeepSeekOption) *DeepSeek {
	c := &DeepSeek{
		endpoint: deepSeekEndpoint,
		model:    deepSeekModel,
		apiKey:   apiKey,
		http:     newHTTPClient(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

// Generate sends the prompt as a single user message and returns the parsed
// text content.
func (c *DeepSeek) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "generation.deepseek", "CLIENT")
	content, err := c.generate(ctx, prompt)
	tracing.EndSpan(span, err)
	return content, err
}

func (c *DeepSeek) generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrProvider, err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", ErrProvider, err)
	}
	request.Header.Set("Authorization", "Bearer "+c.apiKey)
	request.Header.Set("Content-Type", "application/json")

	log.GetLogger().WithField("provider", "deepseek").
		WithField("model", c.model).
		WithField("promptLen", len(prompt)).
		WithField("apiKey", RedactKey(c.apiKey)).
		Debugf("dispatch prompt=%q", Preview(prompt))

	return roundTrip(c.http, request, "deepseek")
}
