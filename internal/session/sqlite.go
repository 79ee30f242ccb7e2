package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/knoguchi/supportagent/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	turns      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore keeps histories in a local SQLite database.
type SQLiteStore struct {
	db          *sql.DB
	maxMessages int
	ttl         time.Duration
	now         func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string, maxMessages int, ttl time.Duration) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, maxMessages: maxMessages, ttl: ttl, now: time.Now}, nil
}

func (s *SQLiteStore) cutoff() int64 {
	return s.now().Add(-s.ttl).UnixNano()
}

func (s *SQLiteStore) Get(ctx context.Context, sessionID string) ([]model.Turn, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT turns FROM sessions WHERE session_id = ? AND updated_at > ?`,
		sessionID, s.cutoff(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return []model.Turn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var turns []model.Turn
	if err := json.Unmarshal([]byte(data), &turns); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return turns, nil
}

func (s *SQLiteStore) Put(ctx context.Context, sessionID string, turns []model.Turn) error {
	data, err := json.Marshal(Trim(turns, s.maxMessages))
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, turns, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET turns = excluded.turns, updated_at = excluded.updated_at
	`, sessionID, string(data), s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM sessions WHERE updated_at > ?`, s.cutoff()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
