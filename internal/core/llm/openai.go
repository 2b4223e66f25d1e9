package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/markdave123-py/contexta/internal/core"
)

// OpenAIConfig points the provider at any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // empty means api.openai.com
	EmbedModel string
	GenModel   string
	Generation GenerationOptions
}

// OpenAIProvider implements both embedding and generation over langchaingo.
type OpenAIProvider struct {
	client   *openai.LLM
	embedder embeddings.Embedder
	opts     GenerationOptions
	logger   *slog.Logger
}

var (
	_ core.EmbeddingProvider = (*OpenAIProvider)(nil)
	_ core.LLMProvider       = (*OpenAIProvider)(nil)
)

func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	token := cfg.APIKey
	if token == "" {
		// Local OpenAI-compatible servers usually ignore the token.
		token = "none"
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.EmbedModel),
	}
	if cfg.GenModel != "" {
		opts = append(opts, openai.WithModel(cfg.GenModel))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("openai embedder: %w", err)
	}

	return &OpenAIProvider{
		client:   client,
		embedder: embedder,
		opts:     cfg.Generation,
		logger:   slog.Default().With("component", "openai-provider"),
	}, nil
}

// EmbedTexts embeds texts in a single request.
func (p *OpenAIProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	p.logger.Debug("generating embeddings", "count", len(texts))
	return p.embedder.EmbedDocuments(ctx, texts)
}

func (p *OpenAIProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var content []llms.MessageContent
	if systemPrompt != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, userPrompt))

	callOpts := []llms.CallOption{llms.WithTemperature(float64(p.opts.Temperature))}
	if p.opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(int(p.opts.MaxTokens)))
	}

	resp, err := p.client.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		p.logger.Debug("no choices returned from model")
		return "", nil
	}
	return resp.Choices[0].Content, nil
}
