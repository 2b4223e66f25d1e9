package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta/internal/core"
	"github.com/markdave123-py/contexta/internal/core/ingestion_engine"
	"github.com/markdave123-py/contexta/internal/core/mock"
	"github.com/markdave123-py/contexta/internal/models"
)

type ingestFunc func(ctx context.Context, req ingestion_engine.IngestRequest) (*models.IngestionReport, error)

func (f ingestFunc) Ingest(ctx context.Context, req ingestion_engine.IngestRequest) (*models.IngestionReport, error) {
	return f(ctx, req)
}

func TestDocumentService(t *testing.T) {
	ctx := context.Background()
	emb := mock.NewMockEmbedder(dim)
	store := mock.NewMockStore()
	done := seed(t, store, emb, "done", "text")

	pending := &models.Document{Title: "pending", UserID: "u1", SourceType: models.SourcePDF}
	require.NoError(t, store.CreateDocument(ctx, pending))

	var got ingestion_engine.IngestRequest
	svc, err := NewDocumentService(store, ingestFunc(func(_ context.Context, req ingestion_engine.IngestRequest) (*models.IngestionReport, error) {
		got = req
		return &models.IngestionReport{DocumentID: "new", ChunkCount: 1}, nil
	}))
	require.NoError(t, err)

	rep, err := svc.Ingest(ctx, ingestion_engine.IngestRequest{FilePath: "/tmp/a.txt", Title: "A"})
	require.NoError(t, err)
	assert.Equal(t, "new", rep.DocumentID)
	assert.Equal(t, "A", got.Title)

	doc, err := svc.Get(ctx, done)
	require.NoError(t, err)
	assert.Equal(t, "done", doc.Title)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = svc.Get(ctx, "  ")
	assert.ErrorIs(t, err, core.ErrValidation)

	docs, err := svc.ListByUser(ctx, " u1 ")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, pending.ID, docs[0].ID)

	incomplete, err := svc.ListIncomplete(ctx)
	require.NoError(t, err)
	require.Len(t, incomplete, 1)
	assert.Equal(t, "pending", incomplete[0].Title)
}

func TestNewDocumentService_RequiresCollaborators(t *testing.T) {
	_, err := NewDocumentService(nil, ingestFunc(nil))
	assert.ErrorIs(t, err, ErrStoreRequired)
	_, err = NewDocumentService(mock.NewMockStore(), nil)
	assert.ErrorIs(t, err, ErrIngestorRequired)
}
