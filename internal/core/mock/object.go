package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/markdave123-py/contexta/internal/core"
)

// MockObjectClient keeps uploaded objects in memory.
type MockObjectClient struct {
	UploadFileFunc func(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error)
	DeleteFileFunc func(ctx context.Context, bucket, key string) error

	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

var _ core.ObjectClient = (*MockObjectClient)(nil)

func NewMockObjectClient() *MockObjectClient {
	return &MockObjectClient{objects: map[string][]byte{}}
}

func (m *MockObjectClient) UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	if m.UploadFileFunc != nil {
		return m.UploadFileFunc(ctx, bucket, key, data, contentType)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = append([]byte(nil), data...)
	return fmt.Sprintf("mem://%s/%s", bucket, key), nil
}

func (m *MockObjectClient) DeleteFile(ctx context.Context, bucket, key string) error {
	m.mu.Lock()
	m.deleted = append(m.deleted, bucket+"/"+key)
	delete(m.objects, bucket+"/"+key)
	m.mu.Unlock()

	if m.DeleteFileFunc != nil {
		return m.DeleteFileFunc(ctx, bucket, key)
	}
	return nil
}

// Objects returns the keys ("bucket/key") currently stored.
func (m *MockObjectClient) Objects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	return out
}

// Deleted returns every key passed to DeleteFile.
func (m *MockObjectClient) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}
