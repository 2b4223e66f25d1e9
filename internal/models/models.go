package models

import (
	"sort"
	"time"
)

// Source types accepted by the ingestion pipeline.
const (
	SourcePDF      = "pdf"
	SourceText     = "txt"
	SourceMarkdown = "markdown"
)

// Document is the metadata row for one ingested file. It is written once,
// before any of its chunks, and never updated.
type Document struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id,omitempty"`
	Title      string    `db:"title" json:"title"`
	FileName   string    `db:"file_name" json:"file_name"`
	StorageURL string    `db:"file_path" json:"storage_url"` // object storage locator
	SourceType string    `db:"source_type" json:"source_type"` // pdf | txt | markdown
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// DocumentChunk represents one text chunk from a document.
type DocumentChunk struct {
	ID         int64     `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	Index      int       `db:"chunk_index" json:"chunk_index"`
	Text       string    `db:"chunk_text" json:"text"`
	Embedding  []float32 `db:"embedding" json:"-"` // pgvector column
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Candidate is a chunk returned by a similarity search. It only lives for the
// duration of one retrieval request.
type Candidate struct {
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
	DocumentID string    `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Similarity float64   `json:"similarity"`
}

// Filters restricts a similarity search. Keys are predicate names (source_type,
// user_id, document_id, title, source); all predicates are ANDed.
type Filters map[string]string

// Filter keys. Title and source match case-insensitive substrings, the rest
// match exactly.
const (
	FilterSourceType = "source_type"
	FilterUserID     = "user_id"
	FilterDocumentID = "document_id"
	FilterTitle      = "title"
	FilterSource     = "source"
)

// UnknownKeys returns the sorted keys of f that are not filter keys.
func (f Filters) UnknownKeys() []string {
	var out []string
	for k := range f {
		switch k {
		case FilterSourceType, FilterUserID, FilterDocumentID, FilterTitle, FilterSource:
		default:
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// IngestionReport summarises a successful ingestion.
type IngestionReport struct {
	DocumentID string        `json:"document_id"`
	ChunkCount int           `json:"chunk_count"`
	StorageURL string        `json:"storage_url"`
	Elapsed    time.Duration `json:"elapsed"`
}
