package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/contexta/internal/core"
	"github.com/markdave123-py/contexta/internal/models"
)

var _ Ingestor = (*DocumentIngestor)(nil)

// NewDocumentIngestor wires the pipeline. All collaborators are required.
func NewDocumentIngestor(
	db core.DbClient,
	obj core.ObjectClient,
	embedder core.EmbeddingProvider,
	extractor core.DocumentExtractor,
	chunker core.Chunker,
	cfg IngestConfig,
	logger *slog.Logger,
) (*DocumentIngestor, error) {
	switch {
	case db == nil:
		return nil, ErrStoreRequired
	case obj == nil:
		return nil, ErrObjectsRequired
	case embedder == nil:
		return nil, ErrEmbedderRequired
	case extractor == nil:
		return nil, ErrExtractorRequired
	case chunker == nil:
		return nil, ErrChunkerRequired
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = DefaultMaxFileBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentIngestor{
		db:        db,
		obj:       obj,
		embedder:  embedder,
		extractor: extractor,
		chunker:   chunker,
		cfg:       cfg,
		logger:    logger.With("component", "ingestor"),
	}, nil
}

// Ingest validates, uploads, records, extracts, chunks, embeds and stores one
// file. The document row is committed before any chunk work starts; chunks
// are written in a single transaction only after every embedding succeeded,
// so a failure leaves the document with zero chunks.
func (i *DocumentIngestor) Ingest(ctx context.Context, req IngestRequest) (*models.IngestionReport, error) {
	start := time.Now()
	if req.Temporary {
		defer func() {
			if err := os.Remove(req.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
				i.logger.Warn("could not remove temporary file", "path", req.FilePath, "err", err)
			}
		}()
	}

	file, err := validateRequest(req, i.cfg.MaxFileBytes)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(file.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", core.ErrValidation, file.path, err)
	}

	docID := uuid.NewString()
	key := path.Join(file.sourceType, docID, file.fileName)
	logger := i.logger.With("document_id", docID, "file", file.fileName)

	url, err := i.obj.UploadFile(ctx, i.cfg.Bucket, key, data, contentTypes[file.sourceType])
	if err != nil {
		return nil, withKind(core.ErrStorage, "upload", err)
	}

	doc := &models.Document{
		ID:         docID,
		UserID:     req.UserID,
		Title:      file.title,
		FileName:   file.fileName,
		StorageURL: url,
		SourceType: file.sourceType,
	}
	if err := i.db.CreateDocument(ctx, doc); err != nil {
		if delErr := i.obj.DeleteFile(ctx, i.cfg.Bucket, key); delErr != nil {
			logger.Warn("could not remove orphaned upload", "key", key, "err", delErr)
		}
		return nil, withKind(core.ErrDatabase, "create document", err)
	}
	logger.Info("document recorded", "source_type", file.sourceType, "bytes", file.size)

	n, err := i.storeChunks(ctx, docID, file)
	if err != nil {
		logger.Error("ingestion failed after document was recorded", "err", err)
		return nil, err
	}

	report := &models.IngestionReport{
		DocumentID: docID,
		ChunkCount: n,
		StorageURL: url,
		Elapsed:    time.Since(start),
	}
	logger.Info("document ingested", "chunks", n, "elapsed", report.Elapsed)
	return report, nil
}

// storeChunks extracts, chunks, embeds and bulk-inserts; it returns the chunk count.
func (i *DocumentIngestor) storeChunks(ctx context.Context, docID string, file *validatedFile) (int, error) {
	text, err := i.extractor.Extract(ctx, file.path, file.sourceType)
	if err != nil {
		return 0, withKind(core.ErrExtraction, "extract", err)
	}

	passages, err := i.chunker.Split(text)
	if err != nil {
		return 0, withKind(core.ErrExtraction, "chunk", err)
	}
	if len(passages) == 0 {
		return 0, fmt.Errorf("%w: chunk: no chunks produced", core.ErrExtraction)
	}

	vectors, err := i.embedder.EmbedTexts(ctx, passages)
	if err != nil {
		return 0, withKind(core.ErrEmbedding, "embed", err)
	}
	if len(vectors) != len(passages) {
		return 0, fmt.Errorf("%w: embed: got %d vectors for %d chunks", core.ErrEmbedding, len(vectors), len(passages))
	}

	chunks := make([]models.DocumentChunk, len(passages))
	for idx, text := range passages {
		chunks[idx] = models.DocumentChunk{
			DocumentID: docID,
			Index:      idx,
			Text:       text,
			Embedding:  vectors[idx],
		}
	}
	if err := i.db.InsertDocumentChunks(ctx, chunks); err != nil {
		return 0, withKind(core.ErrDatabase, "insert chunks", err)
	}
	return len(chunks), nil
}

// withKind tags err with kind unless it already carries a store-level kind.
func withKind(kind error, stage string, err error) error {
	for _, k := range []error{kind, core.ErrValidation, core.ErrConnection, core.ErrPoolExhausted, core.ErrDatabase, core.ErrNotFound} {
		if errors.Is(err, k) {
			return fmt.Errorf("%s: %w", stage, err)
		}
	}
	return fmt.Errorf("%w: %s: %w", kind, stage, err)
}
