package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/contexta/internal/core"
)

const (
	DefaultGeminiEmbedModel = "text-embedding-004"
	DefaultGeminiGenModel   = "gemini-1.5-flash"
)

// GenerationOptions are the sampling knobs passed with every generation request.
type GenerationOptions struct {
	Temperature float32
	MaxTokens   int32
}

// GeminiConfig selects the models behind one API key.
type GeminiConfig struct {
	APIKey     string
	EmbedModel string
	GenModel   string
	Generation GenerationOptions
}

// GeminiProvider serves embeddings and generation from a single client. One
// EmbedTexts call is one BatchEmbedContents request; batching, retries and
// shape checks live in BatchEmbedder and RetryingLLM.
type GeminiProvider struct {
	client   *genai.Client
	embedder *genai.EmbeddingModel
	gen      *genai.GenerativeModel
	logger   *slog.Logger
}

var (
	_ core.EmbeddingProvider = (*GeminiProvider)(nil)
	_ core.LLMProvider       = (*GeminiProvider)(nil)
)

func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	embedModel := cfg.EmbedModel
	if embedModel == "" {
		embedModel = DefaultGeminiEmbedModel
	}
	genModel := cfg.GenModel
	if genModel == "" {
		genModel = DefaultGeminiGenModel
	}

	gen := cl.GenerativeModel(genModel)
	gen.SetTemperature(cfg.Generation.Temperature)
	if cfg.Generation.MaxTokens > 0 {
		gen.SetMaxOutputTokens(cfg.Generation.MaxTokens)
	}

	return &GeminiProvider{
		client:   cl,
		embedder: cl.EmbeddingModel(embedModel),
		gen:      gen,
		logger:   slog.Default().With("component", "gemini-provider", "embed_model", embedModel, "gen_model", genModel),
	}, nil
}

func (g *GeminiProvider) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batch := g.embedder.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}
	g.logger.Debug("embedding batch", "count", len(texts))

	resp, err := g.embedder.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini batch embed: %w", err)
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("gemini batch embed: empty embedding at position %d", i)
		}
		out[i] = e.Values
	}
	return out, nil
}

// Generate answers userPrompt under systemPrompt. The model value is copied
// per call so concurrent requests never share a system instruction.
func (g *GeminiProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m := *g.gen
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}

	resp, err := m.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return responseText(resp)
}

// responseText returns the text parts of the first candidate. An empty or
// blocked response is an error so it never reads as a successful answer.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: gemini returned no candidates", core.ErrGeneration)
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: gemini response blocked by safety filters", core.ErrGeneration)
	}
	if cand.Content == nil {
		return "", fmt.Errorf("%w: gemini candidate has no content", core.ErrGeneration)
	}

	var b strings.Builder
	for _, p := range cand.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}
