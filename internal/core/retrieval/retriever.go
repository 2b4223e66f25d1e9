package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/markdave123-py/contexta/internal/core"
	"github.com/markdave123-py/contexta/internal/models"
)

var (
	ErrEmbedderRequired = errors.New("query embedder is required")
	ErrStoreRequired    = errors.New("database client is required")
)

// Retriever finds the chunks nearest to a question.
type Retriever struct {
	embedder core.QueryEmbedder
	store    core.DbClient
	logger   *slog.Logger
}

func NewRetriever(embedder core.QueryEmbedder, store core.DbClient, logger *slog.Logger) (*Retriever, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embedder: embedder, store: store, logger: logger.With("component", "retriever")}, nil
}

// Retrieve returns up to topK candidates, most similar first. topK <= 0
// yields an empty result without calling the embedding service; so does an
// empty store.
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int, filters models.Filters) ([]models.Candidate, error) {
	cands, _, err := r.RetrieveWithQuery(ctx, question, topK, filters)
	return cands, err
}

// RetrieveWithQuery is Retrieve that also hands back the question's
// embedding (nil when no embedding was made), for reranking.
func (r *Retriever) RetrieveWithQuery(ctx context.Context, question string, topK int, filters models.Filters) ([]models.Candidate, []float32, error) {
	if strings.TrimSpace(question) == "" {
		return nil, nil, fmt.Errorf("%w: question is empty", core.ErrValidation)
	}
	if unknown := filters.UnknownKeys(); len(unknown) > 0 {
		return nil, nil, fmt.Errorf("%w: unknown filters %v", core.ErrValidation, unknown)
	}
	if topK <= 0 {
		return []models.Candidate{}, nil, nil
	}

	vec, err := r.embedder.EmbedText(ctx, question)
	if err != nil {
		if !errors.Is(err, core.ErrEmbedding) {
			err = fmt.Errorf("%w: %w", core.ErrEmbedding, err)
		}
		return nil, nil, fmt.Errorf("embed question: %w", err)
	}

	cands, err := r.store.SearchChunks(ctx, vec, topK, filters)
	if err != nil {
		return nil, nil, fmt.Errorf("search chunks: %w", err)
	}
	if cands == nil {
		cands = []models.Candidate{}
	}
	r.logger.Debug("retrieved candidates", "count", len(cands), "top_k", topK)
	return cands, vec, nil
}
