package ingestion_engine

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta/internal/core"
)

// nineCharWords returns n distinct nine-character words joined by spaces.
func nineCharWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("word%05d", i)
	}
	return strings.Join(words, " ")
}

// sentences returns n single-spaced sentences built from format, which takes
// the sentence number.
func sentences(n int, format string) string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf(format, i)
	}
	return strings.Join(out, " ")
}

// assertCoversEveryCharacter checks that chunks are in-order slices of text
// and that together they cover every non-space character of it.
func assertCoversEveryCharacter(t *testing.T, text string, chunks []string) {
	t.Helper()
	covered := make([]bool, len(text))
	from := 0
	for i, ch := range chunks {
		at := strings.Index(text[from:], ch)
		require.GreaterOrEqual(t, at, 0, "chunk %d is not a slice of the input", i)
		at += from
		for j := at; j < at+len(ch); j++ {
			covered[j] = true
		}
		from = at + 1
	}
	for j, ok := range covered {
		if !ok && !unicode.IsSpace(rune(text[j])) {
			assert.Failf(t, "character not covered", "%q at offset %d", text[j], j)
			return
		}
	}
}

func TestRecursiveChunker_ThreeChunksWithOverlap(t *testing.T) {
	text := nineCharWords(240)
	require.Len(t, text, 2399)

	chunks, err := NewRecursiveChunker(1000, 200).Split(text)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch), 1000)
	}
	assert.True(t, strings.HasPrefix(chunks[0], "word00000 "))
	assert.True(t, strings.HasPrefix(chunks[1], "word00080 "))
	assert.True(t, strings.HasPrefix(chunks[2], "word00160 "))
	assert.True(t, strings.HasSuffix(chunks[2], "word00239"))

	// Consecutive chunks share about 200 characters.
	overlap := chunks[0][len(chunks[0])-199:]
	assert.True(t, strings.HasPrefix(chunks[1], overlap))
}

func TestRecursiveChunker_PrefersParagraphs(t *testing.T) {
	para := strings.Repeat("a", 30)
	text := para + "\n\n" + para + "\n\n" + para

	chunks, err := NewRecursiveChunker(70, 0).Split(text)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, para+"\n\n"+para, chunks[0])
	assert.Equal(t, para, chunks[1])
}

func TestChunkers_CoverEveryWordWithinBound(t *testing.T) {
	text := nineCharWords(731)
	size, overlap := 300, 60

	for _, strategy := range []string{StrategyRecursive, StrategyWindow} {
		t.Run(strategy, func(t *testing.T) {
			c, err := NewChunker(strategy, size, overlap)
			require.NoError(t, err)

			chunks, err := c.Split(text)
			require.NoError(t, err)
			require.NotEmpty(t, chunks)

			seen := map[string]bool{}
			for _, ch := range chunks {
				for _, w := range strings.Fields(ch) {
					seen[w] = true
				}
			}
			for _, w := range strings.Fields(text) {
				assert.True(t, seen[w], "word %s missing", w)
			}

			units := len(text)
			if strategy == StrategyWindow {
				units = len(strings.Fields(text))
			}
			bound := int(math.Ceil(float64(units)/float64(size-overlap))) + 1
			assert.LessOrEqual(t, len(chunks), bound)
		})
	}
}

func TestChunkers_KeepPunctuationAtBoundaries(t *testing.T) {
	// Every sentence is longer than the overlap, so each boundary falls
	// right after a sentence end.
	text := sentences(60, "Quarter %02d review covered the regional revenue figures in detail for the board.")
	size, overlap := 300, 60

	for _, strategy := range []string{StrategyRecursive, StrategyWindow} {
		t.Run(strategy, func(t *testing.T) {
			c, err := NewChunker(strategy, size, overlap)
			require.NoError(t, err)

			chunks, err := c.Split(text)
			require.NoError(t, err)
			require.Greater(t, len(chunks), 1)

			assertCoversEveryCharacter(t, text, chunks)
			if strategy == StrategyRecursive {
				for _, ch := range chunks {
					assert.LessOrEqual(t, len(ch), size)
				}
			}
		})
	}
}

func TestWindowChunker_Windows(t *testing.T) {
	chunks, err := NewWindowChunker(4, 1).Split("a b c d e f g h i j")
	require.NoError(t, err)
	assert.Equal(t, []string{"a b c d", "d e f g", "g h i j"}, chunks)
}

func TestChunkers_EmptyInput(t *testing.T) {
	for _, c := range []core.Chunker{NewRecursiveChunker(100, 10), NewWindowChunker(100, 10)} {
		chunks, err := c.Split("   \n\t ")
		require.NoError(t, err)
		assert.Empty(t, chunks)
	}
}

func TestClampChunkParams(t *testing.T) {
	tests := []struct {
		size, overlap         int
		wantSize, wantOverlap int
	}{
		{1000, 200, 1000, 200},
		{1000, 1000, 1000, 250},
		{100, 500, 100, 25},
		{100, -5, 100, 0},
		{0, 10, DefaultChunkSize, 10},
		{-1, 2000, DefaultChunkSize, 250},
		{1, 1, 1, 0},
	}
	for _, tt := range tests {
		size, overlap := clampChunkParams(tt.size, tt.overlap)
		assert.Equal(t, tt.wantSize, size, "size for %d/%d", tt.size, tt.overlap)
		assert.Equal(t, tt.wantOverlap, overlap, "overlap for %d/%d", tt.size, tt.overlap)
	}
}

func TestWindowChunker_AlwaysAdvances(t *testing.T) {
	// size 1 clamps overlap to 0, so every word is its own window.
	chunks, err := NewWindowChunker(1, 1).Split("x y z")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, chunks)
}

func TestNewChunker_UnknownStrategy(t *testing.T) {
	_, err := NewChunker("semantic", 100, 10)
	assert.ErrorIs(t, err, core.ErrValidation)
}
