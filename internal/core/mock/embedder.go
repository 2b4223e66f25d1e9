package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync"

	"github.com/markdave123-py/contexta/internal/core"
)

// MockEmbedder is a test double for core.QueryEmbedder.
type MockEmbedder struct {
	Dim            int
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	mu      sync.Mutex
	calls   int
	batches [][]string
}

var _ core.QueryEmbedder = (*MockEmbedder)(nil)

// NewMockEmbedder returns an embedder producing deterministic unit vectors of dim.
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{Dim: dim}
}

func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.batches = append(m.batches, append([]string(nil), texts...))
	m.mu.Unlock()

	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = DeterministicVector(t, m.Dim)
	}
	return out, nil
}

func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// CallCount returns how many EmbedTexts/EmbedText calls were made.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Batches returns the texts of every call, in call order.
func (m *MockEmbedder) Batches() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.batches...)
}

// DeterministicVector derives a normalized vector from the hash of text.
func DeterministicVector(text string, dim int) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	v := make([]float32, dim)
	var norm float64
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		f := float64(int64(seed>>11))/float64(1<<52) - 1
		v[i] = float32(f)
		norm += f * f
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
