package core

import (
	"context"

	"github.com/markdave123-py/contexta/internal/models"
)

// DbClient defines all persistence operations the pipeline needs.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
// Every call acquires a pooled connection for its own duration only.
type DbClient interface {
	// CreateDocument inserts the document row and commits immediately.
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocumentsByUser(ctx context.Context, userID string) ([]models.Document, error)
	// ListDocumentsWithoutChunks returns documents whose ingestion never stored chunks.
	ListDocumentsWithoutChunks(ctx context.Context) ([]models.Document, error)

	// InsertDocumentChunks writes all chunks in one transaction, or none of them.
	InsertDocumentChunks(ctx context.Context, chunks []models.DocumentChunk) error
	// SearchChunks returns at most topK chunks ordered by cosine distance to queryVec.
	SearchChunks(ctx context.Context, queryVec []float32, topK int, filters models.Filters) ([]models.Candidate, error)

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
// It's abstract so you can replace AWS with MinIO, GCP, etc. easily.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
}
