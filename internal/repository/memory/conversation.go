// Package memory provides the in-process conversation store backed by the
// trpc-agent-go in-memory session service.
package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"trpc.group/trpc-go/trpc-agent-go/session"
	"trpc.group/trpc-go/trpc-agent-go/session/inmemory"

	"github.com/Rrens/agent-platform/internal/domain"
)

// ConversationStore adapts an agent session service to domain.ConversationStore
type ConversationStore struct {
	svc *inmemory.SessionService
}

// NewConversationStore creates an empty in-memory store
func NewConversationStore() *ConversationStore {
	return &ConversationStore{svc: inmemory.NewSessionService()}
}

func sessionKey(key domain.ConversationKey) session.Key {
	return session.Key{AppName: key.AppName, UserID: key.UserID, SessionID: key.SessionID}
}

func (s *ConversationStore) Get(ctx context.Context, key domain.ConversationKey) (*domain.Conversation, error) {
	sess, err := s.svc.GetSession(ctx, sessionKey(key))
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}
	return toConversation(key, sess), nil
}

func (s *ConversationStore) Create(ctx context.Context, key domain.ConversationKey, state map[string]any) (*domain.Conversation, error) {
	existing, err := s.svc.GetSession(ctx, sessionKey(key))
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("conversation %s: %w", key.SessionID, domain.ErrAlreadyExists)
	}

	encoded, err := encodeState(state)
	if err != nil {
		return nil, err
	}
	sess, err := s.svc.CreateSession(ctx, sessionKey(key), encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return toConversation(key, sess), nil
}

func (s *ConversationStore) List(ctx context.Context, appName, userID string) ([]*domain.Conversation, error) {
	sessions, err := s.svc.ListSessions(ctx, session.UserKey{AppName: appName, UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	convs := make([]*domain.Conversation, 0, len(sessions))
	for _, sess := range sessions {
		key := domain.ConversationKey{AppName: appName, UserID: userID, SessionID: sess.ID}
		convs = append(convs, toConversation(key, sess))
	}
	domain.SortConversations(convs)
	return convs, nil
}

func (s *ConversationStore) Delete(ctx context.Context, key domain.ConversationKey) error {
	if err := s.svc.DeleteSession(ctx, sessionKey(key)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Close stops the session service
func (s *ConversationStore) Close() error {
	return s.svc.Close()
}

func encodeState(state map[string]any) (session.StateMap, error) {
	encoded := make(session.StateMap, len(state))
	for k, v := range state {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode state %q: %w", k, err)
		}
		encoded[k] = b
	}
	return encoded, nil
}

// decodeState keeps values that are not JSON as plain strings
func decodeState(state session.StateMap) map[string]any {
	decoded := make(map[string]any, len(state))
	for k, raw := range state {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			decoded[k] = string(raw)
			continue
		}
		decoded[k] = v
	}
	return decoded
}

func toConversation(key domain.ConversationKey, sess *session.Session) *domain.Conversation {
	return &domain.Conversation{
		ConversationKey: key,
		State:           decodeState(sess.State),
		CreatedAt:       sess.CreatedAt.UTC(),
		UpdatedAt:       sess.UpdatedAt.UTC(),
	}
}
