package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/markdave123-py/contexta/internal/core"
	"github.com/markdave123-py/contexta/internal/core/retry"
)

// RetryingLLM retries transient generation failures and tags every failure
// with core.ErrGeneration.
type RetryingLLM struct {
	next   core.LLMProvider
	policy retry.Policy
}

var _ core.LLMProvider = (*RetryingLLM)(nil)

// GenerateRetryPolicy mirrors the embedding policy.
func GenerateRetryPolicy() retry.Policy {
	return retry.Policy{
		Name:        "generate",
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    10 * time.Second,
		Retryable:   IsTransient,
	}
}

func NewRetryingLLM(next core.LLMProvider, policy retry.Policy) *RetryingLLM {
	return &RetryingLLM{next: next, policy: policy}
}

func (r *RetryingLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	out, err := retry.DoValue(ctx, r.policy, func(ctx context.Context) (string, error) {
		return r.next.Generate(ctx, systemPrompt, userPrompt)
	})
	if errors.Is(err, core.ErrGeneration) {
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrGeneration, err)
	}
	return out, nil
}
