package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Rrens/agent-platform/internal/domain"
)

const conversationPrefix = "conversation:"

// ConversationStore keeps conversations as JSON values in Redis
type ConversationStore struct {
	client *Client
	ttl    time.Duration
	now    func() time.Time
}

// NewConversationStore creates a Redis conversation store. A zero ttl keeps
// conversations until they are deleted.
func NewConversationStore(client *Client, ttl time.Duration) *ConversationStore {
	return &ConversationStore{client: client, ttl: ttl, now: time.Now}
}

func conversationKey(key domain.ConversationKey) string {
	return fmt.Sprintf("%s%s:%s:%s", conversationPrefix, key.AppName, key.UserID, key.SessionID)
}

// Get retrieves a conversation; a missing key yields (nil, nil)
func (s *ConversationStore) Get(ctx context.Context, key domain.ConversationKey) (*domain.Conversation, error) {
	data, err := s.client.rdb.Get(ctx, conversationKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	var conv domain.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	return &conv, nil
}

// Create stores a new conversation without overwriting an existing one
func (s *ConversationStore) Create(ctx context.Context, key domain.ConversationKey, state map[string]any) (*domain.Conversation, error) {
	if state == nil {
		state = map[string]any{}
	}
	now := s.now().UTC()
	conv := &domain.Conversation{
		ConversationKey: key,
		State:           state,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	data, err := json.Marshal(conv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal conversation: %w", err)
	}

	ok, err := s.client.rdb.SetNX(ctx, conversationKey(key), data, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to store conversation: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", key.SessionID, domain.ErrAlreadyExists)
	}
	return conv, nil
}

// Delete removes a conversation
func (s *ConversationStore) Delete(ctx context.Context, key domain.ConversationKey) error {
	return s.client.rdb.Del(ctx, conversationKey(key)).Err()
}

// Ping checks the backing Redis server
func (s *ConversationStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// List scans one user's conversations of an app
func (s *ConversationStore) List(ctx context.Context, appName, userID string) ([]*domain.Conversation, error) {
	prefix := fmt.Sprintf("%s%s:%s:", conversationPrefix, appName, userID)
	pattern := globEscaper.Replace(prefix) + "*"
	var cursor uint64
	convs := []*domain.Conversation{}

	for {
		keys, nextCursor, err := s.client.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		if len(keys) > 0 {
			values, err := s.client.rdb.MGet(ctx, keys...).Result()
			if err != nil {
				return nil, fmt.Errorf("failed to get conversations: %w", err)
			}
			for _, v := range values {
				raw, ok := v.(string)
				if !ok {
					continue // expired between SCAN and MGET
				}
				var conv domain.Conversation
				if err := json.Unmarshal([]byte(raw), &conv); err != nil {
					return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
				}
				// user ids containing ':' can share a key prefix
				if conv.AppName != appName || conv.UserID != userID {
					continue
				}
				convs = append(convs, &conv)
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	domain.SortConversations(convs)
	return convs, nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)
