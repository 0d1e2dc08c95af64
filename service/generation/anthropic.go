package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/strokeworks/vectorflow/internal/log"
	"github.com/strokeworks/vectorflow/tracing"
)

const (
	anthropicEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicVersion  = "2023-06-01"
	// DefaultAnthropicModel is used when the client is built without an
	// explicit model.
	DefaultAnthropicModel = "claude-sonnet-4-20250514"

	anthropicMaxTokens = 2048
)

// Anthropic is a client for the Anthropic messages API.
type Anthropic struct {
	endpoint string
	model    string
	apiKey   string
	http     *http.Client
}

var _ Service = (*Anthropic)(nil)

// AnthropicOption customises the client.
type AnthropicOption func(c *Anthropic)

// WithAnthropicEndpoint overrides the API endpoint, mainly for tests.
func WithAnthropicEndpoint(endpoint string) AnthropicOption {
	return func(c *Anthropic) { c.endpoint = endpoint }
}

// WithAnthropicModel selects the model.
func WithAnthropicModel(model string) AnthropicOption {
	return func(c *Anthropic) { c.model = model }
}

// WithAnthropicHTTPClient replaces the underlying HTTP client.
func WithAnthropicHTTPClient(client *http.Client) AnthropicOption {
	return func(c *Anthropic) { c.http = client }
}

// NewAnthropic builds an Anthropic client with a 60s request timeout.
func NewAnthropic(apiKey string, options ...AnthropicOption) *Anthropic {
	c := &Anthropic{
		endpoint: anthropicEndpoint,
		model:    DefaultAnthropicModel,
		apiKey:   apiKey,
		http:     newHTTPClient(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

// Generate sends the prompt as a single user message and returns the parsed
// text content.
func (c *Anthropic) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "generation.anthropic", "CLIENT")
	content, err := c.generate(ctx, prompt)
	tracing.EndSpan(span, err)
	return content, err
}

func (c *Anthropic) generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(anthropicRequest{
		Model:     c.model,
		MaxTokens: anthropicMaxTokens,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrProvider, err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", ErrProvider, err)
	}
	request.Header.Set("x-api-key", c.apiKey)
	request.Header.Set("anthropic-version", anthropicVersion)
	request.Header.Set("Content-Type", "application/json")

	log.GetLogger().WithField("provider", "anthropic").
		WithField("model", c.model).
		WithField("promptLen", len(prompt)).
		WithField("apiKey", RedactKey(c.apiKey)).
		Debugf("dispatch prompt=%q", Preview(prompt))

	return roundTrip(c.http, request, "anthropic")
}

// newHTTPClient builds the shared provider transport with the 60s overall
// timeout the backends expect.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// roundTrip executes a provider request, treating any transport error,
// non-2xx status or empty parsed content as ErrProvider.
func roundTrip(client *http.Client, request *http.Request, provider string) (string, error) {
	response, err := client.Do(request)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrProvider, provider, err)
	}
	defer func() { _ = response.Body.Close() }()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %s: read response: %v", ErrProvider, provider, err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s: status %d: %s", ErrProvider, provider, response.StatusCode, Preview(string(body)))
	}
	content := parseText(body)
	if content == "" {
		return "", fmt.Errorf("%w: %s: empty content in response", ErrProvider, provider)
	}
	log.GetLogger().WithField("provider", provider).
		WithField("contentLen", len(content)).
		Debugf("response content=%q", Preview(content))
	return content, nil
}
