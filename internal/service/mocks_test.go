package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Rrens/agent-platform/internal/domain"
)

// MockAgentCatalog mocks domain.AgentCatalog
type MockAgentCatalog struct {
	mock.Mock
}

func (m *MockAgentCatalog) ListAgentNames(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockAgentCatalog) LoadAgentConfig(ctx context.Context, name string) (*domain.AgentConfig, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AgentConfig), args.Error(1)
}

// MockConversationStore mocks domain.ConversationStore
type MockConversationStore struct {
	mock.Mock
}

func (m *MockConversationStore) Get(ctx context.Context, key domain.ConversationKey) (*domain.Conversation, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationStore) Create(ctx context.Context, key domain.ConversationKey, state map[string]any) (*domain.Conversation, error) {
	args := m.Called(ctx, key, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationStore) List(ctx context.Context, appName, userID string) ([]*domain.Conversation, error) {
	args := m.Called(ctx, appName, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Conversation), args.Error(1)
}

func (m *MockConversationStore) Delete(ctx context.Context, key domain.ConversationKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
