package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta/internal/api/handlers"
	"github.com/markdave123-py/contexta/internal/config"
	db "github.com/markdave123-py/contexta/internal/core/database"
	"github.com/markdave123-py/contexta/internal/core/mock"
	"github.com/markdave123-py/contexta/internal/models"
	"github.com/markdave123-py/contexta/internal/services"
)

type fakePool struct{}

func (fakePool) Stat() db.PoolStat { return db.PoolStat{Total: 2, Idle: 1, Acquired: 1, Max: 4} }

type testApp struct {
	*App
	store    *mock.MockStore
	embedder *mock.MockEmbedder
	llm      *mock.MockLLM
	handler  http.Handler
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	cfg := &config.Config{
		BucketName:     "docs",
		Chunker:        "recursive",
		ChunkSize:      1000,
		ChunkOverlap:   200,
		MaxUploadBytes: 1 << 20,
		IngestWorkers:  2,
		Similarity:     "gonum",
		Port:           "0",
	}
	ta := &testApp{
		store:    mock.NewMockStore(),
		embedder: mock.NewMockEmbedder(8),
		llm:      mock.NewMockLLM(),
	}
	a, err := assemble(cfg, components{
		db:       ta.store,
		pool:     fakePool{},
		objects:  mock.NewMockObjectClient(),
		embedder: ta.embedder,
		llm:      ta.llm,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	ta.App = a
	ta.handler = a.Server.httpServer.Handler
	return ta
}

func (ta *testApp) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	ta.handler.ServeHTTP(rec, req)
	return rec
}

func (ta *testApp) postJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return ta.do(t, req)
}

func (ta *testApp) upload(t *testing.T, name, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-ID", "u1")
	return ta.do(t, req)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAPI_UploadListAndGet(t *testing.T) {
	ta := newTestApp(t)

	rec := ta.upload(t, "handbook.txt", strings.Repeat("Refunds are accepted within thirty days. ", 60), map[string]string{"title": "Handbook"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	report := decode[models.IngestionReport](t, rec)
	assert.Positive(t, report.ChunkCount)
	assert.Contains(t, report.StorageURL, "/handbook.txt")

	rec = ta.do(t, httptest.NewRequest(http.MethodGet, "/api/documents?user_id=u1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	docs := decode[[]models.Document](t, rec)
	require.Len(t, docs, 1)
	assert.Equal(t, "Handbook", docs[0].Title)
	assert.Equal(t, "handbook.txt", docs[0].FileName)

	rec = ta.do(t, httptest.NewRequest(http.MethodGet, "/api/documents/"+report.DocumentID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, report.DocumentID, decode[models.Document](t, rec).ID)

	rec = ta.do(t, httptest.NewRequest(http.MethodGet, "/api/documents/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_UploadRejectsUnsupportedFile(t *testing.T) {
	ta := newTestApp(t)

	rec := ta.upload(t, "setup.exe", "MZ", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, ta.store.DocumentCount())

	req := httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	assert.Equal(t, http.StatusBadRequest, ta.do(t, req).Code)
}

func TestAPI_EmptyDocumentIsUnprocessable(t *testing.T) {
	ta := newTestApp(t)

	rec := ta.upload(t, "blank.md", "   \n\n  ", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAPI_FailedIngestionIsListedAsIncomplete(t *testing.T) {
	ta := newTestApp(t)
	ta.embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("embedding service down")
	}

	rec := ta.upload(t, "notes.txt", "some notes worth keeping", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "embedding service down")

	rec = ta.do(t, httptest.NewRequest(http.MethodGet, "/api/documents/incomplete", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	docs := decode[[]models.Document](t, rec)
	require.Len(t, docs, 1)
	assert.Equal(t, "notes", docs[0].Title)
}

func TestAPI_RetrieveAndChat(t *testing.T) {
	ta := newTestApp(t)

	rec := ta.postJSON(t, "/api/chat/query", map[string]any{"question": "what is the refund window?"})
	require.Equal(t, http.StatusOK, rec.Code)
	empty := decode[services.Answer](t, rec)
	assert.Equal(t, services.NoContextAnswer, empty.Answer)
	assert.Empty(t, empty.Sources)
	assert.Zero(t, ta.llm.CallCount())

	rec = ta.upload(t, "policy.txt", "Refunds are accepted within thirty days of purchase.", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ta.postJSON(t, "/api/retrieve", map[string]any{"question": "refunds", "top_k": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[handlers.RetrieveResponse](t, rec)
	require.Len(t, got.Candidates, 1)
	assert.NotContains(t, rec.Body.String(), "embedding")

	rec = ta.postJSON(t, "/api/retrieve", map[string]any{"question": "refunds", "top_k": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[handlers.RetrieveResponse](t, rec).Candidates)

	rec = ta.postJSON(t, "/api/retrieve", map[string]any{"question": "refunds", "filters": map[string]string{"color": "red"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ta.postJSON(t, "/api/chat/query", map[string]any{"question": "refunds", "top_k": 2, "lambda": 0.7})
	require.Equal(t, http.StatusOK, rec.Code)
	answer := decode[services.Answer](t, rec)
	assert.Equal(t, "mock answer", answer.Answer)
	assert.Len(t, answer.Sources, 1)

	rec = ta.postJSON(t, "/api/chat/query", map[string]any{"question": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ta.postJSON(t, "/api/chat/query", map[string]any{"query": "old field name"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Healthz(t *testing.T) {
	ta := newTestApp(t)

	rec := ta.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[handlers.HealthResponse](t, rec)
	assert.Equal(t, "ok", health.Status)
	require.NotNil(t, health.Pool)
	assert.Equal(t, int32(4), health.Pool.Max)
}

func TestApp_RunRequiresWork(t *testing.T) {
	ta := newTestApp(t)
	assert.Error(t, ta.Run(context.Background(), RunOptions{}))
}

func TestApp_RunWatchStopsWithContext(t *testing.T) {
	ta := newTestApp(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.NoError(t, ta.Run(ctx, RunOptions{WatchDir: t.TempDir()}))
}

func TestAssemble_RejectsUnknownStrategies(t *testing.T) {
	comps := components{
		db:       mock.NewMockStore(),
		objects:  mock.NewMockObjectClient(),
		embedder: mock.NewMockEmbedder(4),
		llm:      mock.NewMockLLM(),
	}
	_, err := assemble(&config.Config{Chunker: "semantic", Similarity: "gonum"}, comps, nil)
	assert.Error(t, err)
	_, err = assemble(&config.Config{Chunker: "window", Similarity: "jaccard"}, comps, nil)
	assert.Error(t, err)
}
