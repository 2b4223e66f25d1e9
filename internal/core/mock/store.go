package mock

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/contexta/internal/core"
	"github.com/markdave123-py/contexta/internal/models"
)

// MockStore is an in-memory core.DbClient. Search is a brute-force cosine
// scan with the same filter keys as the real store.
type MockStore struct {
	CreateDocumentFunc       func(ctx context.Context, doc *models.Document) error
	InsertDocumentChunksFunc func(ctx context.Context, chunks []models.DocumentChunk) error
	SearchChunksFunc         func(ctx context.Context, queryVec []float32, topK int, filters models.Filters) ([]models.Candidate, error)

	mu       sync.Mutex
	docs     map[string]models.Document
	order    []string
	chunks   map[string][]models.DocumentChunk
	searches int
}

var _ core.DbClient = (*MockStore)(nil)

func NewMockStore() *MockStore {
	return &MockStore{
		docs:   map[string]models.Document{},
		chunks: map[string][]models.DocumentChunk{},
	}
}

func (m *MockStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	if m.CreateDocumentFunc != nil {
		return m.CreateDocumentFunc(ctx, doc)
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.CreatedAt = time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = *doc
	m.order = append(m.order, doc.ID)
	return nil
}

func (m *MockStore) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", core.ErrNotFound, id)
	}
	return &d, nil
}

func (m *MockStore) ListDocumentsByUser(_ context.Context, userID string) ([]models.Document, error) {
	return m.list(func(d models.Document) bool { return d.UserID == userID }), nil
}

func (m *MockStore) ListDocumentsWithoutChunks(_ context.Context) ([]models.Document, error) {
	return m.list(func(d models.Document) bool { return len(m.chunks[d.ID]) == 0 }), nil
}

// list returns matching documents newest first. Callers must not hold mu.
func (m *MockStore) list(keep func(models.Document) bool) []models.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Document{}
	for i := len(m.order) - 1; i >= 0; i-- {
		if d := m.docs[m.order[i]]; keep(d) {
			out = append(out, d)
		}
	}
	return out
}

func (m *MockStore) InsertDocumentChunks(ctx context.Context, chunks []models.DocumentChunk) error {
	if m.InsertDocumentChunksFunc != nil {
		return m.InsertDocumentChunksFunc(ctx, chunks)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range chunks {
		if _, ok := m.docs[ch.DocumentID]; !ok {
			return fmt.Errorf("%w: chunk references unknown document %s", core.ErrDatabase, ch.DocumentID)
		}
	}
	for _, ch := range chunks {
		ch.CreatedAt = time.Now().UTC()
		m.chunks[ch.DocumentID] = append(m.chunks[ch.DocumentID], ch)
	}
	return nil
}

func (m *MockStore) SearchChunks(ctx context.Context, queryVec []float32, topK int, filters models.Filters) ([]models.Candidate, error) {
	m.mu.Lock()
	m.searches++
	m.mu.Unlock()

	if m.SearchChunksFunc != nil {
		return m.SearchChunksFunc(ctx, queryVec, topK, filters)
	}
	out := []models.Candidate{}
	if topK <= 0 {
		return out, nil
	}
	if unknown := filters.UnknownKeys(); len(unknown) > 0 {
		return nil, fmt.Errorf("%w: unknown filters %v", core.ErrValidation, unknown)
	}

	m.mu.Lock()
	for _, id := range m.order {
		d := m.docs[id]
		if !matches(d, filters) {
			continue
		}
		for _, ch := range m.chunks[id] {
			out = append(out, models.Candidate{
				Text:       ch.Text,
				Embedding:  ch.Embedding,
				DocumentID: ch.DocumentID,
				ChunkIndex: ch.Index,
				Similarity: cosine(queryVec, ch.Embedding),
			})
		}
	}
	m.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (m *MockStore) Close() error { return nil }

// Chunks returns the stored chunks of a document.
func (m *MockStore) Chunks(docID string) []models.DocumentChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.DocumentChunk(nil), m.chunks[docID]...)
}

// DocumentCount returns how many documents were created.
func (m *MockStore) DocumentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

// SearchCount returns how many searches were issued.
func (m *MockStore) SearchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searches
}

func matches(d models.Document, filters models.Filters) bool {
	for k, v := range filters {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		switch k {
		case models.FilterSourceType:
			if d.SourceType != v {
				return false
			}
		case models.FilterUserID:
			if d.UserID != v {
				return false
			}
		case models.FilterDocumentID:
			if d.ID != v {
				return false
			}
		case models.FilterTitle:
			if !strings.Contains(strings.ToLower(d.Title), strings.ToLower(v)) {
				return false
			}
		case models.FilterSource:
			if !strings.Contains(strings.ToLower(d.StorageURL), strings.ToLower(v)) {
				return false
			}
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
