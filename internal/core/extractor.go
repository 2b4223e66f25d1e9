package core

import (
	"context"
)

// DocumentExtractor defines the interface for extracting text from various document types.
type DocumentExtractor interface {
	// Extract reads the file at path and returns its text with all whitespace
	// runs collapsed to single spaces. The sourceType picks the parsing strategy.
	Extract(ctx context.Context, path string, sourceType string) (string, error)
}

// Chunker splits normalized text into ordered, overlapping passages.
type Chunker interface {
	Split(text string) ([]string, error)
}
