package ingestion_engine

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/markdave123-py/contexta/internal/core"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	StrategyRecursive = "recursive"
	StrategyWindow    = "window"
)

// recursiveSeparators are tried in order, coarsest first; "" falls back to characters.
var recursiveSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", ", ", " ", ""}

// NewChunker builds the chunker for strategy. Size and overlap are clamped:
// a non-positive size becomes DefaultChunkSize, a negative overlap 0, and an
// overlap not smaller than size becomes size/4.
func NewChunker(strategy string, size, overlap int) (core.Chunker, error) {
	size, overlap = clampChunkParams(size, overlap)
	switch strategy {
	case "", StrategyRecursive:
		return NewRecursiveChunker(size, overlap), nil
	case StrategyWindow:
		return NewWindowChunker(size, overlap), nil
	default:
		return nil, fmt.Errorf("%w: unknown chunker %q", core.ErrValidation, strategy)
	}
}

func clampChunkParams(size, overlap int) (int, int) {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}
	return size, overlap
}

// RecursiveChunker splits on paragraph, line, sentence, clause and word
// boundaries in turn, producing chunks of at most size characters that share
// up to overlap characters with their predecessor. Separators stay attached
// to the text that follows them, so every chunk is a contiguous slice of the
// input and no punctuation is lost at a boundary.
type RecursiveChunker struct {
	splitter textsplitter.RecursiveCharacter
}

func NewRecursiveChunker(size, overlap int) *RecursiveChunker {
	size, overlap = clampChunkParams(size, overlap)
	return &RecursiveChunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators(recursiveSeparators),
			textsplitter.WithKeepSeparator(true),
		),
	}
}

func (c *RecursiveChunker) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return []string{}, nil
	}
	chunks, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}
	out := chunks[:0]
	for _, ch := range chunks {
		if ch = strings.TrimSpace(ch); ch != "" {
			out = append(out, ch)
		}
	}
	return out, nil
}

// WindowChunker emits windows of size words, advancing by size-overlap words.
type WindowChunker struct {
	size    int
	overlap int
}

func NewWindowChunker(size, overlap int) *WindowChunker {
	size, overlap = clampChunkParams(size, overlap)
	return &WindowChunker{size: size, overlap: overlap}
}

func (c *WindowChunker) Split(text string) ([]string, error) {
	words := strings.Fields(text)
	out := []string{}
	if len(words) == 0 {
		return out, nil
	}

	step := max(c.size-c.overlap, 1)
	for start := 0; start < len(words); start += step {
		end := min(start+c.size, len(words))
		out = append(out, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return out, nil
}
