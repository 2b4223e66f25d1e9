package ingestion_engine

import (
	"errors"
	"log/slog"

	"github.com/markdave123-py/contexta/internal/core"
)

var (
	ErrStoreRequired     = errors.New("database client is required")
	ErrObjectsRequired   = errors.New("object client is required")
	ErrEmbedderRequired  = errors.New("embedding client is required")
	ErrExtractorRequired = errors.New("document extractor is required")
	ErrChunkerRequired   = errors.New("chunker is required")
	ErrIngestorRequired  = errors.New("ingestor is required")
)

// DefaultMaxFileBytes caps a single upload at 100MB.
const DefaultMaxFileBytes int64 = 100 << 20

// IngestConfig tunes the pipeline.
//
// Bucket:       object storage bucket receiving the raw files.
// MaxFileBytes: largest accepted file (0 = DefaultMaxFileBytes).
type IngestConfig struct {
	Bucket       string
	MaxFileBytes int64
}

// IngestRequest describes one file to ingest.
//
// SourceType may be empty, in which case it is inferred from the extension.
// Title defaults to the file name without extension. Temporary marks
// FilePath as a scratch copy that the pipeline removes on every exit path;
// FileName then carries the name the file was uploaded under.
type IngestRequest struct {
	FilePath   string
	FileName   string
	Title      string
	SourceType string
	UserID     string
	Temporary  bool
}

// DocumentIngestor runs the ingestion pipeline for a single file:
//
// db:        persistence for the document row and its chunks.
// obj:       object storage for the raw upload.
// embedder:  batched embedding client.
// extractor: file to normalized text.
// chunker:   text to ordered passages.
type DocumentIngestor struct {
	db        core.DbClient
	obj       core.ObjectClient
	embedder  core.EmbeddingProvider
	extractor core.DocumentExtractor
	chunker   core.Chunker
	cfg       IngestConfig
	logger    *slog.Logger
}
