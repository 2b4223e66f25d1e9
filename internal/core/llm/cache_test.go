package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingCache_RoundTripAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	c, err := OpenEmbeddingCache(dir, "model-a")
	require.NoError(t, err)
	require.NoError(t, c.Store([]string{"x", "y"}, [][]float32{{0.5, -1.25}, {3, 4}}))
	require.NoError(t, c.Close())

	c, err = OpenEmbeddingCache(dir, "model-a")
	require.NoError(t, err)
	defer c.Close()

	got, missing, err := c.Lookup([]string{"y", "z", "x"})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, missing)
	assert.Equal(t, []float32{3, 4}, got[0])
	assert.Nil(t, got[1])
	assert.Equal(t, []float32{0.5, -1.25}, got[2])
}

func TestEmbeddingCache_KeyedByModel(t *testing.T) {
	dir := t.TempDir()

	a, err := OpenEmbeddingCache(dir, "model-a")
	require.NoError(t, err)
	require.NoError(t, a.Store([]string{"x"}, [][]float32{{1}}))
	require.NoError(t, a.Close())

	b, err := OpenEmbeddingCache(dir, "model-b")
	require.NoError(t, err)
	defer b.Close()

	_, missing, err := b.Lookup([]string{"x"})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, missing)
}

func TestEmbeddingCache_StoreMismatch(t *testing.T) {
	c, err := OpenEmbeddingCache("", "m")
	require.NoError(t, err)
	defer c.Close()

	assert.Error(t, c.Store([]string{"a", "b"}, [][]float32{{1}}))
}

func TestDecodeVector_Corrupt(t *testing.T) {
	_, err := decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
