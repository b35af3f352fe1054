package providers

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/cohere"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"golang.org/x/time/rate"
)

// Provider represents an AI provider type
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
	ProviderAnthropic Provider = "anthropic"
	ProviderCohere    Provider = "cohere"
	ProviderOllama    Provider = "ollama"
)

// ModelConfig contains the configuration for a specific model
type ModelConfig struct {
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	Model       string  `json:"model,omitempty"`
}

// ClientOptions contains options for creating a provider client
type ClientOptions struct {
	Provider     Provider       `json:"provider"`
	APIKey       string         `json:"api_key"`
	BaseURL      string         `json:"base_url,omitempty"`
	Instructions string         `json:"instructions,omitempty"`
	ModelConfig  ModelConfig    `json:"model_config,omitempty"`
	Passthrough  map[string]any `json:"options,omitempty"`

	// RequestsPerSecond caps outbound request rate; zero means unlimited.
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`
}

// TokenUsage carries token counts reported by a provider, or estimated
// locally when the provider reports none.
type TokenUsage struct {
	InputTokens  int  `json:"input_tokens"`
	OutputTokens int  `json:"output_tokens"`
	Estimated    bool `json:"estimated,omitempty"`
}

// Generation is the normalized result every provider adapter produces.
// Usage is nil when neither the provider nor local estimation yielded
// token counts.
type Generation struct {
	Text  string      `json:"text"`
	Usage *TokenUsage `json:"usage,omitempty"`
}

// Generator is the capability the orchestrator depends on. A failed call
// returns a nil Generation and a provider error.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*Generation, error)
	Model() string
	Name() Provider
}

// Client is a connection to one AI provider, normalized behind Generator.
type Client struct {
	provider Provider
	llm      llms.Model
	options  ClientOptions
	limiter  *rate.Limiter
}

// NewClient creates a client for the specified provider.
func NewClient(ctx context.Context, options ClientOptions) (*Client, error) {
	var model llms.Model
	var err error

	log.Debug().
		Str("provider", string(options.Provider)).
		Str("model", options.ModelConfig.Model).
		Float64("temperature", options.ModelConfig.Temperature).
		Msg("Creating provider client")

	switch options.Provider {
	case ProviderOpenAI:
		model, err = createOpenAIModel(ctx, options)
	case ProviderGemini:
		model, err = createGeminiModel(ctx, options)
	case ProviderAnthropic:
		model, err = createAnthropicModel(ctx, options)
	case ProviderCohere:
		model, err = createCohereModel(ctx, options)
	case ProviderOllama:
		model, err = createOllamaModel(ctx, options)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", options.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create model for provider %s: %w", options.Provider, err)
	}

	var limiter *rate.Limiter
	if options.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(options.RequestsPerSecond), 1)
	}

	return &Client{
		provider: options.Provider,
		llm:      model,
		options:  options,
		limiter:  limiter,
	}, nil
}

// Helper functions to create models for specific providers

func createOpenAIModel(ctx context.Context, options ClientOptions) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(options.ModelConfig.Model),
		openai.WithToken(options.APIKey),
	}

	if options.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(options.BaseURL))
	}

	return openai.New(opts...)
}

func createGeminiModel(ctx context.Context, options ClientOptions) (llms.Model, error) {
	opts := []googleai.Option{
		googleai.WithAPIKey(options.APIKey),
	}
	if options.ModelConfig.Model != "" {
		opts = append(opts, googleai.WithDefaultModel(options.ModelConfig.Model))
	}

	return googleai.New(ctx, opts...)
}

func createAnthropicModel(ctx context.Context, options ClientOptions) (llms.Model, error) {
	opts := []anthropic.Option{
		anthropic.WithToken(options.APIKey),
		anthropic.WithModel(options.ModelConfig.Model),
	}

	return anthropic.New(opts...)
}

func createCohereModel(ctx context.Context, options ClientOptions) (llms.Model, error) {
	opts := []cohere.Option{
		cohere.WithToken(options.APIKey),
		cohere.WithModel(options.ModelConfig.Model),
	}

	if options.BaseURL != "" {
		opts = append(opts, cohere.WithBaseURL(options.BaseURL))
	}

	return cohere.New(opts...)
}

func createOllamaModel(ctx context.Context, options ClientOptions) (llms.Model, error) {
	if options.BaseURL == "" {
		options.BaseURL = "http://localhost:11434"
	}

	opts := []ollama.Option{
		ollama.WithServerURL(options.BaseURL),
		ollama.WithModel(options.ModelConfig.Model),
	}

	return ollama.New(opts...)
}

// Generate calls the provider with the given prompt and returns a
// normalized result. The session's configured instructions are sent as the
// system message; model options are forwarded verbatim.
func (c *Client) Generate(ctx context.Context, prompt string) (*Generation, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter interrupted: %w", err)
		}
	}

	messages := []llms.MessageContent{}
	if c.options.Instructions != "" {
		messages = append(messages, llms.TextParts(schema.ChatMessageTypeSystem, c.options.Instructions))
	}
	messages = append(messages, llms.TextParts(schema.ChatMessageTypeHuman, prompt))

	callOptions := []llms.CallOption{}
	if c.options.ModelConfig.Model != "" {
		callOptions = append(callOptions, llms.WithModel(c.options.ModelConfig.Model))
	}
	if c.options.ModelConfig.Temperature > 0 {
		callOptions = append(callOptions, llms.WithTemperature(c.options.ModelConfig.Temperature))
	}
	if c.options.ModelConfig.MaxTokens > 0 {
		callOptions = append(callOptions, llms.WithMaxTokens(c.options.ModelConfig.MaxTokens))
	}
	if c.options.ModelConfig.TopP > 0 {
		callOptions = append(callOptions, llms.WithTopP(c.options.ModelConfig.TopP))
	}

	resp, err := c.llm.GenerateContent(ctx, messages, callOptions...)
	if err != nil {
		return nil, fmt.Errorf("provider %s call failed: %w", c.provider, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("provider %s returned no choices", c.provider)
	}

	choice := resp.Choices[0]
	gen := &Generation{
		Text:  choice.Content,
		Usage: usageFromGenerationInfo(choice.GenerationInfo),
	}

	// Providers that report no usage get a local estimate so traces still
	// carry token counts.
	if gen.Usage == nil {
		gen.Usage = estimateUsage(prompt, c.options.Instructions, gen.Text)
	}

	return gen, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.options.ModelConfig.Model
}

// Name returns the provider of this client.
func (c *Client) Name() Provider {
	return c.provider
}
