package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/markdave123-py/contexta/internal/core"
	"github.com/markdave123-py/contexta/internal/core/retrieval"
	"github.com/markdave123-py/contexta/internal/models"
)

// NoContextAnswer is returned when retrieval finds nothing to ground an answer on.
const NoContextAnswer = "I could not find any relevant context in the knowledge base to answer this question."

const systemPrompt = "You are an intelligent assistant answering based only on the given document content. " +
	"If unsure, say 'I cannot find this in the document.'"

var (
	ErrRetrieverRequired = errors.New("retriever is required")
	ErrRerankerRequired  = errors.New("reranker is required")
	ErrLLMRequired       = errors.New("llm provider is required")
)

// AskOptions tunes one Answer call. Zero values select the defaults.
type AskOptions struct {
	TopK    int
	FetchK  int // candidates fetched before reranking; defaults to 4*TopK
	Lambda  *float64
	Filters models.Filters
}

// Answer is a generated reply and the chunks it was grounded on.
type Answer struct {
	Answer  string             `json:"answer"`
	Sources []models.Candidate `json:"sources"`
}

type AnswerService struct {
	retriever *retrieval.Retriever
	reranker  *retrieval.Reranker
	llm       core.LLMProvider
	logger    *slog.Logger
}

func NewAnswerService(retriever *retrieval.Retriever, reranker *retrieval.Reranker, llm core.LLMProvider, logger *slog.Logger) (*AnswerService, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if reranker == nil {
		return nil, ErrRerankerRequired
	}
	if llm == nil {
		return nil, ErrLLMRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerService{retriever: retriever, reranker: reranker, llm: llm, logger: logger.With("component", "answer")}, nil
}

// Retrieve returns the raw nearest chunks, without reranking.
func (s *AnswerService) Retrieve(ctx context.Context, question string, topK int, filters models.Filters) ([]models.Candidate, error) {
	return s.retriever.Retrieve(ctx, question, topK, filters)
}

// Answer retrieves FetchK candidates, reranks them down to TopK and asks the
// generator to answer from them.
func (s *AnswerService) Answer(ctx context.Context, question string, opts AskOptions) (*Answer, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}
	fetchK := opts.FetchK
	if fetchK < topK {
		fetchK = 4 * topK
	}
	lambda := retrieval.DefaultLambda
	if opts.Lambda != nil {
		lambda = *opts.Lambda
	}

	cands, queryVec, err := s.retriever.RetrieveWithQuery(ctx, question, fetchK, opts.Filters)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		s.logger.Info("no candidates found", "question_len", len(question))
		return &Answer{Answer: NoContextAnswer, Sources: []models.Candidate{}}, nil
	}

	sources := s.reranker.Rerank(queryVec, cands, topK, lambda)
	reply, err := s.llm.Generate(ctx, systemPrompt, buildPrompt(question, sources))
	if err != nil {
		if !errors.Is(err, core.ErrGeneration) {
			err = fmt.Errorf("%w: %w", core.ErrGeneration, err)
		}
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	s.logger.Debug("answered", "candidates", len(cands), "sources", len(sources))
	return &Answer{Answer: reply, Sources: sources}, nil
}

func buildPrompt(question string, sources []models.Candidate) string {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	for _, c := range sources {
		fmt.Fprintf(&sb, "[document %s, chunk %d]\n%s\n---\n", c.DocumentID, c.ChunkIndex, c.Text)
	}
	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	return sb.String()
}
