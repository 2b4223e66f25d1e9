package retrieval

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	SimilarityGonum  = "gonum"
	SimilarityManual = "manual"
)

// Similarity scores two vectors; higher is more similar.
type Similarity func(a, b []float32) float64

// NewSimilarity returns the cosine implementation named by kind.
func NewSimilarity(kind string) (Similarity, error) {
	switch kind {
	case "", SimilarityGonum:
		return GonumCosine, nil
	case SimilarityManual:
		return ManualCosine, nil
	default:
		return nil, fmt.Errorf("unknown similarity %q", kind)
	}
}

// GonumCosine computes cosine similarity with gonum's BLAS-backed kernels.
// Mismatched lengths and zero vectors score 0.
func GonumCosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	x, y := widen(a), widen(b)
	na, nb := floats.Norm(x, 2), floats.Norm(y, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(x, y) / (na * nb)
}

// ManualCosine is the plain-loop equivalent of GonumCosine.
func ManualCosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
