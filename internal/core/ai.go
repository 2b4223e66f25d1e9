package core

import "context"

// EmbeddingProvider turns texts into vectors. Output order matches input order.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// QueryEmbedder is the single-text path used by retrieval.
type QueryEmbedder interface {
	EmbeddingProvider
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}
