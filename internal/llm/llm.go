// Package llm wraps the two supported language-model backends (Ollama and
// OpenAI) behind a single single-shot Complete call. Both the Intent
// Router's classifier and the Answer Path's summariser share this package;
// neither one keeps conversational history, unlike the assistant this
// daemon's predecessor was built from.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Provider is one LLM backend capable of a single-shot completion.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	HealthCheck(ctx context.Context) error
}

// Config selects and configures a provider. OllamaHost is used when Name
// selects ollama (an empty host means http://127.0.0.1:11434);
// OpenAIAPIKey is used when Name selects openai.
type Config struct {
	Name    string // "ollama" (default) or "openai"
	Model   string
	Timeout time.Duration

	OllamaHost string

	OpenAIAPIKey  string
	OpenAIBaseURL string // optional override, e.g. for a compatible gateway
}

// New constructs the configured provider.
func New(cfg Config) (Provider, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	switch strings.ToLower(cfg.Name) {
	case "", "ollama":
		return newOllamaProvider(cfg, timeout)
	case "openai":
		return newOpenAIProvider(cfg, timeout), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Name)
	}
}

// ollamaProvider talks to a local or remote Ollama server.
type ollamaProvider struct {
	client *api.Client
	model  string
}

func newOllamaProvider(cfg Config, timeout time.Duration) (*ollamaProvider, error) {
	host := strings.TrimSuffix(cfg.OllamaHost, "/")
	if host == "" {
		host = "http://127.0.0.1:11434"
	}
	parsedURL, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("llm: invalid ollama host: %w", err)
	}

	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &ollamaProvider{
		client: api.NewClient(parsedURL, httpClient),
		model:  cfg.Model,
	}, nil
}

func (p *ollamaProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	stream := false
	var response api.ChatResponse
	err := p.client.Chat(ctx, &api.ChatRequest{
		Model: p.model,
		Messages: []api.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream: &stream,
		Options: map[string]any{
			"temperature": 0.2,
			"num_predict": 300,
			"num_ctx":     2048,
		},
	}, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("llm: ollama chat request failed: %w", err)
	}
	return strings.TrimSpace(response.Message.Content), nil
}

func (p *ollamaProvider) HealthCheck(ctx context.Context) error {
	if err := p.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("llm: cannot reach ollama: %w", err)
	}
	return nil
}

// openaiProvider talks to the OpenAI chat completions API.
type openaiProvider struct {
	client openai.Client
	model  string
}

func newOpenAIProvider(cfg Config, timeout time.Duration) *openaiProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.OpenAIAPIKey),
		option.WithRequestTimeout(timeout),
	}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	return &openaiProvider{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (p *openaiProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Model: p.model,
	})
	if err != nil {
		return "", fmt.Errorf("llm: openai chat request failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("llm: openai returned no choices")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

func (p *openaiProvider) HealthCheck(ctx context.Context) error {
	_, err := p.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("llm: cannot reach openai: %w", err)
	}
	return nil
}
