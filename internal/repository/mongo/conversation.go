package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Rrens/agent-platform/internal/config"
	"github.com/Rrens/agent-platform/internal/domain"
)

type conversationDoc struct {
	ID        string         `bson:"_id"`
	AppName   string         `bson:"app_name"`
	UserID    string         `bson:"user_id"`
	SessionID string         `bson:"session_id"`
	State     map[string]any `bson:"state"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

// ConversationStore keeps conversations in a MongoDB collection
type ConversationStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

// Connect opens a client and selects the configured collection
func Connect(ctx context.Context, cfg config.MongoConfig) (*ConversationStore, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}

	clientOpts := options.Client().ApplyURI(cfg.URI).SetConnectTimeout(10 * time.Second)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "app_name", Value: 1}, {Key: "user_id", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &ConversationStore{client: client, coll: coll, now: time.Now}, nil
}

func documentID(key domain.ConversationKey) string {
	return key.AppName + "/" + key.UserID + "/" + key.SessionID
}

func (s *ConversationStore) Get(ctx context.Context, key domain.ConversationKey) (*domain.Conversation, error) {
	var doc conversationDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": documentID(key)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return &domain.Conversation{
		ConversationKey: key,
		State:           doc.State,
		CreatedAt:       doc.CreatedAt.UTC(),
		UpdatedAt:       doc.UpdatedAt.UTC(),
	}, nil
}

func (s *ConversationStore) Create(ctx context.Context, key domain.ConversationKey, state map[string]any) (*domain.Conversation, error) {
	if state == nil {
		state = map[string]any{}
	}
	// BSON stores milliseconds
	now := s.now().UTC().Truncate(time.Millisecond)
	doc := conversationDoc{
		ID:        documentID(key),
		AppName:   key.AppName,
		UserID:    key.UserID,
		SessionID: key.SessionID,
		State:     state,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("conversation %s: %w", key.SessionID, domain.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return &domain.Conversation{
		ConversationKey: key,
		State:           state,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (s *ConversationStore) List(ctx context.Context, appName, userID string) ([]*domain.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "session_id", Value: 1}})
	cursor, err := s.coll.Find(ctx, bson.M{"app_name": appName, "user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	var docs []conversationDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}

	convs := make([]*domain.Conversation, 0, len(docs))
	for _, doc := range docs {
		convs = append(convs, &domain.Conversation{
			ConversationKey: domain.ConversationKey{AppName: doc.AppName, UserID: doc.UserID, SessionID: doc.SessionID},
			State:           doc.State,
			CreatedAt:       doc.CreatedAt.UTC(),
			UpdatedAt:       doc.UpdatedAt.UTC(),
		})
	}
	return convs, nil
}

func (s *ConversationStore) Delete(ctx context.Context, key domain.ConversationKey) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": documentID(key)}); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// Ping checks the server is reachable
func (s *ConversationStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client
func (s *ConversationStore) Close() error {
	return s.client.Disconnect(context.Background())
}
