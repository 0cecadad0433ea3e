package reasoning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/cohere"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/metrics"
)

// Provider names accepted by the LangChain backend.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderCohere    = "cohere"
	ProviderOllama    = "ollama"
)

// LangChainConfig selects a hosted or local model.
type LangChainConfig struct {
	Provider    string  `koanf:"provider"`
	Model       string  `koanf:"model"`
	APIKey      string  `koanf:"api_key"`
	BaseURL     string  `koanf:"base_url"`
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
}

// LangChainBackend answers through a langchaingo model. It cannot run the MCP tools the
// CLI backend has, so it suits plain question answering.
type LangChainBackend struct {
	cfg     LangChainConfig
	llm     llms.Model
	prompts PromptOptions
}

// NewLangChainBackend creates the model for cfg.Provider.
func NewLangChainBackend(ctx context.Context, cfg LangChainConfig, prompts PromptOptions) (*LangChainBackend, error) {
	log.Debug().
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Float64("temperature", cfg.Temperature).
		Msg("Creating LangChain reasoning backend")

	var (
		model llms.Model
		err   error
	)
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		model, err = createOpenAIModel(cfg)
	case ProviderAnthropic, "claude":
		model, err = createAnthropicModel(cfg)
	case ProviderGemini, "googleai":
		model, err = createGeminiModel(ctx, cfg)
	case ProviderCohere:
		model, err = createCohereModel(cfg)
	case ProviderOllama:
		model, err = createOllamaModel(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create model for provider %s: %w", cfg.Provider, err)
	}
	return NewLangChainBackendWithModel(model, cfg, prompts), nil
}

// NewLangChainBackendWithModel wraps an already constructed model.
func NewLangChainBackendWithModel(model llms.Model, cfg LangChainConfig, prompts PromptOptions) *LangChainBackend {
	return &LangChainBackend{cfg: cfg, llm: model, prompts: prompts}
}

func (b *LangChainBackend) Name() string { return "langchain" }

func (b *LangChainBackend) GenerateReply(ctx context.Context, req Request) (string, error) {
	start := time.Now()

	var opts []llms.CallOption
	if b.cfg.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(b.cfg.Temperature))
	}
	if b.cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(b.cfg.MaxTokens))
	}
	if b.cfg.Model != "" {
		opts = append(opts, llms.WithModel(b.cfg.Model))
	}

	prompt := SystemContext(b.prompts, req.Identity, req.Task) + req.Prompt
	out, err := llms.GenerateFromSinglePrompt(ctx, b.llm, prompt, opts...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		metrics.ObserveExternal("reasoning", b.Name(), start, ctxErr)
		return "", fmt.Errorf("langchain generation interrupted: %w", ctxErr)
	}
	metrics.ObserveExternal("reasoning", b.Name(), start, err)
	if err != nil {
		return "", fmt.Errorf("langchain generation failed: %w", err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyReply
	}
	return out, nil
}

func createOpenAIModel(cfg LangChainConfig) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}

func createAnthropicModel(cfg LangChainConfig) (llms.Model, error) {
	return anthropic.New(
		anthropic.WithToken(cfg.APIKey),
		anthropic.WithModel(cfg.Model),
	)
}

func createGeminiModel(ctx context.Context, cfg LangChainConfig) (llms.Model, error) {
	opts := []googleai.Option{googleai.WithAPIKey(cfg.APIKey)}
	if cfg.Model != "" {
		opts = append(opts, googleai.WithDefaultModel(cfg.Model))
	}
	return googleai.New(ctx, opts...)
}

func createCohereModel(cfg LangChainConfig) (llms.Model, error) {
	opts := []cohere.Option{
		cohere.WithToken(cfg.APIKey),
		cohere.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, cohere.WithBaseURL(cfg.BaseURL))
	}
	return cohere.New(opts...)
}

func createOllamaModel(cfg LangChainConfig) (llms.Model, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	return ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
}
