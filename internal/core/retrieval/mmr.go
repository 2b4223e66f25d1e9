package retrieval

import (
	"math"

	"github.com/markdave123-py/contexta/internal/models"
)

const (
	DefaultTopK   = 5
	DefaultLambda = 0.5
)

// Reranker reorders candidates by Max-Marginal-Relevance.
type Reranker struct {
	sim Similarity
}

// NewReranker returns a reranker scoring with sim (GonumCosine when nil).
func NewReranker(sim Similarity) *Reranker {
	if sim == nil {
		sim = GonumCosine
	}
	return &Reranker{sim: sim}
}

// Rerank greedily picks topK candidates. The first pick is the one most
// similar to query; each further pick maximizes
//
//	lambda*sim(query, c) - (1-lambda)*max(sim(c, s) for s already picked)
//
// Ties go to the earlier input position. When there are no more than topK
// candidates the input is returned unchanged. lambda is clamped to [0, 1];
// topK <= 0 means DefaultTopK.
func (r *Reranker) Rerank(query []float32, cands []models.Candidate, topK int, lambda float64) []models.Candidate {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if len(cands) <= topK {
		return cands
	}
	lambda = min(max(lambda, 0), 1)

	relevance := make([]float64, len(cands))
	for i, c := range cands {
		relevance[i] = r.sim(query, c.Embedding)
	}

	// redundancy[i] is the highest similarity of candidate i to any pick so far.
	redundancy := make([]float64, len(cands))
	for i := range redundancy {
		redundancy[i] = math.Inf(-1)
	}

	remaining := make([]int, len(cands))
	for i := range remaining {
		remaining[i] = i
	}

	out := make([]models.Candidate, 0, topK)
	for len(out) < topK {
		best, bestPos := -1, -1
		bestScore := math.Inf(-1)
		for pos, i := range remaining {
			score := relevance[i]
			if len(out) > 0 {
				score = lambda*relevance[i] - (1-lambda)*redundancy[i]
			}
			if best == -1 || score > bestScore {
				best, bestPos, bestScore = i, pos, score
			}
		}

		out = append(out, cands[best])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
		for _, i := range remaining {
			redundancy[i] = max(redundancy[i], r.sim(cands[i].Embedding, cands[best].Embedding))
		}
	}
	return out
}
