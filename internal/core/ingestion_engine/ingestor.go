package ingestion_engine

import (
	"context"

	"github.com/markdave123-py/contexta/internal/models"
)

// Ingestor turns one file into a stored document with embedded chunks.
type Ingestor interface {
	Ingest(ctx context.Context, req IngestRequest) (*models.IngestionReport, error)
}

// Enqueuer accepts ingestion work without waiting for it.
type Enqueuer interface {
	Enqueue(req IngestRequest) error
}
