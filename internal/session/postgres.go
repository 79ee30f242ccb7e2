package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/knoguchi/supportagent/internal/model"
	"github.com/knoguchi/supportagent/internal/repository/postgres"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS support_sessions (
	session_id TEXT PRIMARY KEY,
	turns      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps histories as JSONB rows. Rows older than ttl are
// treated as absent.
type PostgresStore struct {
	db          *postgres.DB
	maxMessages int
	ttl         time.Duration
}

// NewPostgresStore creates the sessions table if needed.
func NewPostgresStore(ctx context.Context, db *postgres.DB, maxMessages int, ttl time.Duration) (*PostgresStore, error) {
	if _, err := db.Pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}
	return &PostgresStore{db: db, maxMessages: maxMessages, ttl: ttl}, nil
}

func (s *PostgresStore) cutoff() time.Time {
	return time.Now().Add(-s.ttl)
}

func (s *PostgresStore) Get(ctx context.Context, sessionID string) ([]model.Turn, error) {
	var data []byte
	err := s.db.Pool.QueryRow(ctx,
		`SELECT turns FROM support_sessions WHERE session_id = $1 AND updated_at > $2`,
		sessionID, s.cutoff(),
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return []model.Turn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var turns []model.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return turns, nil
}

func (s *PostgresStore) Put(ctx context.Context, sessionID string, turns []model.Turn) error {
	data, err := json.Marshal(Trim(turns, s.maxMessages))
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	query := `
		INSERT INTO support_sessions (session_id, turns, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (session_id) DO UPDATE SET turns = EXCLUDED.turns, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.Pool.Exec(ctx, query, sessionID, data); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM support_sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM support_sessions WHERE updated_at > $1`, s.cutoff(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error {
	return nil
}

var _ Store = (*PostgresStore)(nil)
