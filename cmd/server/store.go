package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/agent-platform/internal/config"
	"github.com/Rrens/agent-platform/internal/domain"
	"github.com/Rrens/agent-platform/internal/repository/memory"
	"github.com/Rrens/agent-platform/internal/repository/mongo"
	"github.com/Rrens/agent-platform/internal/repository/postgres"
	"github.com/Rrens/agent-platform/internal/repository/redis"
	"github.com/Rrens/agent-platform/internal/repository/sqlstore"
)

// openStore builds the conversation store selected by store.driver. The
// returned func releases it.
func openStore(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (domain.ConversationStore, func(), error) {
	closeWith := func(name string, fn func() error) func() {
		return func() {
			if err := fn(); err != nil {
				log.Warn().Err(err).Str("store", name).Msg("failed to close conversation store")
			}
		}
	}

	switch cfg.Store.Driver {
	case config.StoreMemory:
		s := memory.NewConversationStore()
		return s, closeWith("memory", s.Close), nil

	case config.StoreRedis:
		if redisClient == nil {
			return nil, nil, fmt.Errorf("redis store requires a redis client")
		}
		return redis.NewConversationStore(redisClient, cfg.Store.RedisTTL), func() {}, nil

	case config.StorePostgres:
		repo, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil

	case config.StoreSQLite:
		s, err := sqlstore.OpenSQLite(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, closeWith("sqlite", s.Close), nil

	case config.StoreMySQL:
		s, err := sqlstore.OpenMySQL(ctx, cfg.Store.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, closeWith("mysql", s.Close), nil

	case config.StoreMongo:
		s, err := mongo.Connect(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		return s, closeWith("mongo", s.Close), nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
