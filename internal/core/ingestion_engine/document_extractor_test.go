package ingestion_engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta/internal/core"
	"github.com/markdave123-py/contexta/internal/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestDocconvExtractor_PlainAndMarkdown(t *testing.T) {
	e := NewDocconvExtractor(false)

	txt := writeFile(t, "notes.txt", "  Hello,\n\n  world!\t\tBye.\r\n")
	got, err := e.Extract(context.Background(), txt, models.SourceText)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world! Bye.", got)

	md := writeFile(t, "readme.md", "# Title\n\nSome *text*\n- item\n")
	got, err = e.Extract(context.Background(), md, models.SourceMarkdown)
	require.NoError(t, err)
	assert.Equal(t, "# Title Some *text* - item", got)
}

func TestDocconvExtractor_EmptyTextIsExtractionError(t *testing.T) {
	p := writeFile(t, "blank.txt", " \n\n\t ")
	_, err := NewDocconvExtractor(false).Extract(context.Background(), p, models.SourceText)
	assert.ErrorIs(t, err, core.ErrExtraction)
}

func TestDocconvExtractor_MissingFile(t *testing.T) {
	_, err := NewDocconvExtractor(false).Extract(context.Background(), filepath.Join(t.TempDir(), "nope.txt"), models.SourceText)
	assert.ErrorIs(t, err, core.ErrExtraction)
}

func TestDocconvExtractor_UnsupportedType(t *testing.T) {
	p := writeFile(t, "a.txt", "x")
	_, err := NewDocconvExtractor(false).Extract(context.Background(), p, "docx")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestDocconvExtractor_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := writeFile(t, "a.txt", "x")
	_, err := NewDocconvExtractor(false).Extract(ctx, p, models.SourceText)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalizeWhitespace_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"a",
		"  a\n\nb\tc  ",
		"line one\r\nline two three",
	}
	for _, in := range inputs {
		once := NormalizeWhitespace(in)
		assert.Equal(t, once, NormalizeWhitespace(once))
		assert.NotContains(t, once, "  ")
	}
}

func TestJoinPages_SkipsEmptyPages(t *testing.T) {
	assert.Equal(t, "page one page three", joinPages("page one\f  \fpage three"))
	assert.Equal(t, "", joinPages("\f\f"))
}
