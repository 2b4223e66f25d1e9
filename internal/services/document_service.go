package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/markdave123-py/contexta/internal/core"
	"github.com/markdave123-py/contexta/internal/core/ingestion_engine"
	"github.com/markdave123-py/contexta/internal/models"
)

var (
	ErrStoreRequired    = errors.New("database client is required")
	ErrIngestorRequired = errors.New("ingestor is required")
)

type DocumentService struct {
	db       core.DbClient
	ingestor ingestion_engine.Ingestor
}

func NewDocumentService(db core.DbClient, ingestor ingestion_engine.Ingestor) (*DocumentService, error) {
	if db == nil {
		return nil, ErrStoreRequired
	}
	if ingestor == nil {
		return nil, ErrIngestorRequired
	}
	return &DocumentService{db: db, ingestor: ingestor}, nil
}

// Ingest runs the full pipeline for one file and reports the stored document.
func (s *DocumentService) Ingest(ctx context.Context, req ingestion_engine.IngestRequest) (*models.IngestionReport, error) {
	return s.ingestor.Ingest(ctx, req)
}

func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: document id is empty", core.ErrValidation)
	}
	return s.db.GetDocumentByID(ctx, id)
}

func (s *DocumentService) ListByUser(ctx context.Context, userID string) ([]models.Document, error) {
	return s.db.ListDocumentsByUser(ctx, strings.TrimSpace(userID))
}

// ListIncomplete returns documents whose ingestion failed after the document
// row was committed.
func (s *DocumentService) ListIncomplete(ctx context.Context) ([]models.Document, error) {
	return s.db.ListDocumentsWithoutChunks(ctx)
}
