package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineStrategiesAgree(t *testing.T) {
	pairs := [][2][]float32{
		{{1, 0, 0}, {1, 0, 0}},
		{{1, 0, 0}, {0, 1, 0}},
		{{1, 2, 3}, {-3, 2, 1}},
		{{0.9, 0.1, 0}, {0.6, -0.8, 0}},
		{{1, 1}, {-1, -1}},
	}
	for _, p := range pairs {
		assert.InDelta(t, ManualCosine(p[0], p[1]), GonumCosine(p[0], p[1]), 1e-9)
	}
	assert.InDelta(t, 1.0, GonumCosine([]float32{2, 0}, []float32{5, 0}), 1e-9)
	assert.InDelta(t, -1.0, ManualCosine([]float32{1, 1}, []float32{-1, -1}), 1e-9)
}

func TestCosine_DegenerateInputs(t *testing.T) {
	for _, sim := range []Similarity{GonumCosine, ManualCosine} {
		assert.Zero(t, sim([]float32{0, 0, 0}, []float32{1, 2, 3}))
		assert.Zero(t, sim([]float32{1, 2}, []float32{1, 2, 3}))
		assert.Zero(t, sim(nil, nil))
	}
}

func TestNewSimilarity(t *testing.T) {
	for _, kind := range []string{"", SimilarityGonum, SimilarityManual} {
		sim, err := NewSimilarity(kind)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, sim([]float32{1, 1}, []float32{1, 1}), 1e-9)
	}
	_, err := NewSimilarity("dot")
	assert.Error(t, err)
}
