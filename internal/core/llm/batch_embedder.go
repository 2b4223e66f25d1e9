package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/markdave123-py/contexta/internal/core"
	"github.com/markdave123-py/contexta/internal/core/retry"
)

const DefaultBatchSize = 100

// BatchEmbedder turns any single-request EmbeddingProvider into the
// pipeline's embedding client: sequential batches, retry on transient
// failures, optional rate limiting and caching, and strict shape checks.
type BatchEmbedder struct {
	provider  core.EmbeddingProvider
	dim       int
	batchSize int
	policy    retry.Policy
	limiter   *rate.Limiter
	cache     *EmbeddingCache
	logger    *slog.Logger
}

var _ core.QueryEmbedder = (*BatchEmbedder)(nil)

// BatchOption configures a BatchEmbedder.
type BatchOption func(*BatchEmbedder)

// WithBatchSize sets the number of texts per request (default 100).
func WithBatchSize(n int) BatchOption {
	return func(b *BatchEmbedder) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithRateLimit caps requests per second; rps <= 0 disables limiting.
func WithRateLimit(rps float64) BatchOption {
	return func(b *BatchEmbedder) {
		if rps > 0 {
			b.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithCache serves repeated texts from c.
func WithCache(c *EmbeddingCache) BatchOption {
	return func(b *BatchEmbedder) {
		b.cache = c
	}
}

// WithRetryPolicy replaces the default 3 attempts / 2s / 10s cap policy.
func WithRetryPolicy(p retry.Policy) BatchOption {
	return func(b *BatchEmbedder) {
		b.policy = p
	}
}

// EmbedRetryPolicy is the default policy for embedding requests.
func EmbedRetryPolicy() retry.Policy {
	return retry.Policy{
		Name:        "embed",
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    10 * time.Second,
		Retryable:   IsTransient,
	}
}

func NewBatchEmbedder(provider core.EmbeddingProvider, dim int, opts ...BatchOption) (*BatchEmbedder, error) {
	if provider == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}
	b := &BatchEmbedder{
		provider:  provider,
		dim:       dim,
		batchSize: DefaultBatchSize,
		policy:    EmbedRetryPolicy(),
		logger:    slog.Default().With("component", "embedder"),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.policy.Logger == nil {
		b.policy.Logger = b.logger
	}
	return b, nil
}

// EmbedTexts returns one vector per text, in input order.
func (b *BatchEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, len(texts))
	pending := make([]int, len(texts))
	for i := range pending {
		pending[i] = i
	}

	if b.cache != nil {
		cached, missing, err := b.cache.Lookup(texts)
		if err != nil {
			b.logger.Warn("embedding cache unavailable, embedding everything", "err", err)
		} else {
			for i, v := range cached {
				if v != nil && len(v) == b.dim {
					out[i] = v
				}
			}
			pending = pending[:0]
			for i := range out {
				if out[i] == nil {
					pending = append(pending, i)
				}
			}
			b.logger.Debug("embedding cache", "hits", len(texts)-len(pending), "misses", len(missing))
		}
	}

	for start := 0; start < len(pending); start += b.batchSize {
		end := min(start+b.batchSize, len(pending))
		idx := pending[start:end]

		batch := make([]string, len(idx))
		for j, i := range idx {
			batch[j] = texts[i]
		}

		vecs, err := b.embedBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("%w: batch %d-%d of %d: %w", core.ErrEmbedding, start, end, len(pending), err)
		}
		for j, i := range idx {
			out[i] = vecs[j]
		}

		if b.cache != nil {
			if err := b.cache.Store(batch, vecs); err != nil {
				b.logger.Warn("could not cache embeddings", "err", err)
			}
		}
	}
	return out, nil
}

// EmbedText embeds a single query text.
func (b *BatchEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := b.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (b *BatchEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	return retry.DoValue(ctx, b.policy, func(ctx context.Context) ([][]float32, error) {
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		vecs, err := b.provider.EmbedTexts(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("got %d vectors for %d texts", len(vecs), len(batch))
		}
		for i, v := range vecs {
			if len(v) != b.dim {
				return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), b.dim)
			}
		}
		return vecs, nil
	})
}
