package llm

import (
	"context"
	"sync"

	"tyforge-web/internal/domain"
)

// MockClient permite tests y el harness sin llamar al servicio real.
type MockClient struct {
	mu sync.Mutex

	Response string
	Err      error
	Summary  string
	SumErr   error
	Idea     string
	IdeaErr  error

	Calls        int
	LastMessages []domain.ChatMessage
	LastOptions  Options
	LastText     string
}

func (m *MockClient) Complete(_ context.Context, messages []domain.ChatMessage, opts Options) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.LastMessages = append([]domain.ChatMessage(nil), messages...)
	m.LastOptions = opts
	return m.Response, m.Err
}

func (m *MockClient) Summarize(_ context.Context, text string, opts Options) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastText = text
	m.LastOptions = opts
	return m.Summary, m.SumErr
}

func (m *MockClient) GenerateIdea(_ context.Context, interests string, opts Options) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastText = interests
	m.LastOptions = opts
	return m.Idea, m.IdeaErr
}

// CallCount devuelve cuantas veces se llamo Complete.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}
