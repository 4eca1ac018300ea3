package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/agent-platform/internal/domain"
)

// ConversationService exposes the conversation store directly, keyed by
// application, user and session id.
type ConversationService struct {
	store domain.ConversationStore
}

// NewConversationService creates a new conversation service
func NewConversationService(store domain.ConversationStore) *ConversationService {
	return &ConversationService{store: store}
}

// Get returns a conversation or domain.ErrNotFound
func (s *ConversationService) Get(ctx context.Context, key domain.ConversationKey) (*domain.Conversation, error) {
	conv, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", domain.NewCollaboratorError("store.get", err))
	}
	if conv == nil {
		return nil, fmt.Errorf("session '%s': %w", key.SessionID, domain.ErrNotFound)
	}
	return conv, nil
}

// List returns one user's conversations of an app
func (s *ConversationService) List(ctx context.Context, appName, userID string) ([]*domain.Conversation, error) {
	convs, err := s.store.List(ctx, appName, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", domain.NewCollaboratorError("store.list", err))
	}
	return convs, nil
}

// Create creates a conversation. An empty session id gets a generated one;
// a caller-chosen id never overwrites an existing conversation.
func (s *ConversationService) Create(ctx context.Context, key domain.ConversationKey, state map[string]any) (*domain.Conversation, error) {
	if key.SessionID == "" {
		key.SessionID = uuid.NewString()
	}

	existing, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", domain.NewCollaboratorError("store.get", err))
	}
	if existing != nil {
		return nil, fmt.Errorf("session already exists: %s: %w", key.SessionID, domain.ErrAlreadyExists)
	}

	conv, err := s.store.Create(ctx, key, state)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", domain.NewCollaboratorError("store.create", err))
	}

	log.Info().Str("session_id", key.SessionID).Str("app", key.AppName).Msg("new conversation session created")
	return conv, nil
}

// Delete removes a conversation; a missing one is not an error
func (s *ConversationService) Delete(ctx context.Context, key domain.ConversationKey) error {
	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", domain.NewCollaboratorError("store.delete", err))
	}
	return nil
}
