package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Rrens/agent-platform/internal/domain"
)

// ConversationRepository implements domain.ConversationStore on Postgres
type ConversationRepository struct {
	pool *pgxpool.Pool
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

func (r *ConversationRepository) Get(ctx context.Context, key domain.ConversationKey) (*domain.Conversation, error) {
	query := `
		SELECT state, created_at, updated_at
		FROM conversations
		WHERE app_name = $1 AND user_id = $2 AND session_id = $3
	`
	conv := domain.Conversation{ConversationKey: key}
	var state []byte
	err := r.pool.QueryRow(ctx, query, key.AppName, key.UserID, key.SessionID).Scan(
		&state,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if err := json.Unmarshal(state, &conv.State); err != nil {
		return nil, fmt.Errorf("failed to decode conversation state: %w", err)
	}
	return &conv, nil
}

func (r *ConversationRepository) Create(ctx context.Context, key domain.ConversationKey, state map[string]any) (*domain.Conversation, error) {
	if state == nil {
		state = map[string]any{}
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode conversation state: %w", err)
	}

	query := `
		INSERT INTO conversations (app_name, user_id, session_id, state)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (app_name, user_id, session_id) DO NOTHING
		RETURNING created_at, updated_at
	`
	conv := domain.Conversation{ConversationKey: key, State: state}
	err = r.pool.QueryRow(ctx, query, key.AppName, key.UserID, key.SessionID, data).Scan(
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", key.SessionID, domain.ErrAlreadyExists)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return &conv, nil
}

func (r *ConversationRepository) List(ctx context.Context, appName, userID string) ([]*domain.Conversation, error) {
	query := `
		SELECT session_id, state, created_at, updated_at
		FROM conversations
		WHERE app_name = $1 AND user_id = $2
		ORDER BY created_at, session_id
	`
	rows, err := r.pool.Query(ctx, query, appName, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	convs := []*domain.Conversation{}
	for rows.Next() {
		conv := domain.Conversation{ConversationKey: domain.ConversationKey{AppName: appName, UserID: userID}}
		var state []byte
		if err := rows.Scan(&conv.SessionID, &state, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		if err := json.Unmarshal(state, &conv.State); err != nil {
			return nil, fmt.Errorf("failed to decode conversation state: %w", err)
		}
		convs = append(convs, &conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

func (r *ConversationRepository) Delete(ctx context.Context, key domain.ConversationKey) error {
	query := `DELETE FROM conversations WHERE app_name = $1 AND user_id = $2 AND session_id = $3`
	_, err := r.pool.Exec(ctx, query, key.AppName, key.UserID, key.SessionID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// Ping verifies database connectivity
func (r *ConversationRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
