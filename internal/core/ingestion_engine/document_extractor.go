package ingestion_engine

import (
	"context"
	"fmt"
	"os"
	"strings"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/contexta/internal/core"
	"github.com/markdave123-py/contexta/internal/models"
)

// DocconvExtractor implements core.DocumentExtractor. PDFs go through
// docconv (pdftotext); text and markdown are read as-is.
type DocconvExtractor struct {
	useReadability bool
}

var _ core.DocumentExtractor = (*DocconvExtractor)(nil)

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

// Extract returns the normalized text of the file at path.
func (e *DocconvExtractor) Extract(ctx context.Context, path string, sourceType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var (
		raw string
		err error
	)
	switch sourceType {
	case models.SourcePDF:
		raw, err = e.extractPDF(path)
	case models.SourceText, models.SourceMarkdown:
		raw, err = extractPlain(path)
	default:
		return "", fmt.Errorf("%w: unsupported source type %q", core.ErrValidation, sourceType)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", core.ErrExtraction, path, err)
	}

	text := NormalizeWhitespace(raw)
	if text == "" {
		return "", fmt.Errorf("%w: %s: no extractable text", core.ErrExtraction, path)
	}
	return text, nil
}

func (e *DocconvExtractor) extractPDF(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	res, err := docconv.Convert(f, "application/pdf", e.useReadability)
	if err != nil {
		return "", fmt.Errorf("docconv: %w", err)
	}
	return joinPages(res.Body), nil
}

func extractPlain(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(b), " "), nil
}

// joinPages drops empty pages (form-feed separated) and joins the rest with a
// space. The pdftotext backend runs with -nopgbrk, so this only matters for
// docconv backends that keep page breaks.
func joinPages(body string) string {
	pages := strings.Split(body, "\f")
	kept := pages[:0]
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// NormalizeWhitespace collapses every whitespace run to one space and trims.
// Applying it twice gives the same result as applying it once.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
