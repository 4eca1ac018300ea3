package domain

import (
	"cmp"
	"context"
	"slices"
	"time"
)

// ConversationKey addresses one conversation session in a store
type ConversationKey struct {
	AppName   string `json:"appName"`
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

// Conversation is the agent framework's stateful dialogue record
type Conversation struct {
	ConversationKey
	State     map[string]any `json:"state"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// ConversationStore defines the interface for conversation session storage.
// Get returns (nil, nil) when the conversation does not exist and Delete
// treats a missing conversation as success. List returns one user's
// conversations of an app ordered by SortConversations.
type ConversationStore interface {
	Get(ctx context.Context, key ConversationKey) (*Conversation, error)
	List(ctx context.Context, appName, userID string) ([]*Conversation, error)
	Create(ctx context.Context, key ConversationKey, state map[string]any) (*Conversation, error)
	Delete(ctx context.Context, key ConversationKey) error
}

// Pinger is implemented by stores that can report backend connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// SortConversations orders conversations oldest first, ties by session id
func SortConversations(convs []*Conversation) {
	slices.SortFunc(convs, func(a, b *Conversation) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.SessionID, b.SessionID)
	})
}
