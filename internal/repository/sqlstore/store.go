// Package sqlstore keeps conversations in a database/sql backend (SQLite or MySQL).
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/Rrens/agent-platform/internal/domain"
)

type dialect struct {
	name         string
	schema       string
	insertIgnore string
}

var sqliteDialect = dialect{
	name: "sqlite",
	schema: `CREATE TABLE IF NOT EXISTS conversations (
		app_name   TEXT    NOT NULL,
		user_id    TEXT    NOT NULL,
		session_id TEXT    NOT NULL,
		state      TEXT    NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (app_name, user_id, session_id)
	)`,
	insertIgnore: "INSERT OR IGNORE INTO",
}

var mysqlDialect = dialect{
	name: "mysql",
	schema: `CREATE TABLE IF NOT EXISTS conversations (
		app_name   VARCHAR(255) NOT NULL,
		user_id    VARCHAR(255) NOT NULL,
		session_id VARCHAR(255) NOT NULL,
		state      LONGTEXT     NOT NULL,
		created_at BIGINT       NOT NULL,
		updated_at BIGINT       NOT NULL,
		PRIMARY KEY (app_name, user_id, session_id)
	)`,
	insertIgnore: "INSERT IGNORE INTO",
}

// Store implements domain.ConversationStore on database/sql
type Store struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

// OpenSQLite opens (creating if needed) a SQLite database file
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database file path is required")
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)

	return newStore(ctx, db, sqliteDialect)
}

// OpenMySQL connects to MySQL using a go-sql-driver DSN
func OpenMySQL(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create mysql connector: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	return newStore(ctx, db, mysqlDialect)
}

func newStore(ctx context.Context, db *sql.DB, d dialect) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", d.name, err)
	}
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create conversations table: %w", err)
	}
	return &Store{db: db, dialect: d, now: time.Now}, nil
}

// Driver returns the dialect name
func (s *Store) Driver() string {
	return s.dialect.name
}

func (s *Store) Get(ctx context.Context, key domain.ConversationKey) (*domain.Conversation, error) {
	query := `SELECT state, created_at, updated_at FROM conversations
		WHERE app_name = ? AND user_id = ? AND session_id = ?`

	var (
		state            string
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx, query, key.AppName, key.UserID, key.SessionID).
		Scan(&state, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	conv := &domain.Conversation{
		ConversationKey: key,
		CreatedAt:       time.Unix(0, created).UTC(),
		UpdatedAt:       time.Unix(0, updated).UTC(),
	}
	if err := json.Unmarshal([]byte(state), &conv.State); err != nil {
		return nil, fmt.Errorf("failed to decode conversation state: %w", err)
	}
	return conv, nil
}

func (s *Store) Create(ctx context.Context, key domain.ConversationKey, state map[string]any) (*domain.Conversation, error) {
	if state == nil {
		state = map[string]any{}
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode conversation state: %w", err)
	}

	now := s.now().UTC()
	query := s.dialect.insertIgnore + ` conversations
		(app_name, user_id, session_id, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query,
		key.AppName, key.UserID, key.SessionID, string(data), now.UnixNano(), now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("conversation %s: %w", key.SessionID, domain.ErrAlreadyExists)
	}

	return &domain.Conversation{
		ConversationKey: key,
		State:           state,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (s *Store) List(ctx context.Context, appName, userID string) ([]*domain.Conversation, error) {
	query := `SELECT session_id, state, created_at, updated_at FROM conversations
		WHERE app_name = ? AND user_id = ?
		ORDER BY created_at, session_id`

	rows, err := s.db.QueryContext(ctx, query, appName, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	convs := []*domain.Conversation{}
	for rows.Next() {
		var (
			sessionID, state string
			created, updated int64
		)
		if err := rows.Scan(&sessionID, &state, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conv := &domain.Conversation{
			ConversationKey: domain.ConversationKey{AppName: appName, UserID: userID, SessionID: sessionID},
			CreatedAt:       time.Unix(0, created).UTC(),
			UpdatedAt:       time.Unix(0, updated).UTC(),
		}
		if err := json.Unmarshal([]byte(state), &conv.State); err != nil {
			return nil, fmt.Errorf("failed to decode conversation state: %w", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

func (s *Store) Delete(ctx context.Context, key domain.ConversationKey) error {
	query := `DELETE FROM conversations WHERE app_name = ? AND user_id = ? AND session_id = ?`
	if _, err := s.db.ExecContext(ctx, query, key.AppName, key.UserID, key.SessionID); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// Ping verifies the connection is alive
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
