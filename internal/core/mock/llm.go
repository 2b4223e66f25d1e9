package mock

import (
	"context"
	"sync"

	"github.com/markdave123-py/contexta/internal/core"
)

// MockLLM is a test double for core.LLMProvider.
type MockLLM struct {
	GenerateFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	mu         sync.Mutex
	calls      int
	lastUser   string
	lastSystem string
}

var _ core.LLMProvider = (*MockLLM)(nil)

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.lastSystem, m.lastUser = systemPrompt, userPrompt
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, systemPrompt, userPrompt)
	}
	return "mock answer", nil
}

func (m *MockLLM) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastPrompts returns the system and user prompts of the latest call.
func (m *MockLLM) LastPrompts() (system, user string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSystem, m.lastUser
}
