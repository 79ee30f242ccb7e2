package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/knoguchi/supportagent/internal/repository/postgres"
)

// undefinedTable is the SQLSTATE for a missing relation.
const undefinedTable = "42P01"

// PgVectorStore implements VectorStore over a pgvector table with columns
// (id, content, source_file, category, embedding). The pool must be created
// with postgres.WithVectorTypes.
type PgVectorStore struct {
	db    *postgres.DB
	table string
}

func NewPgVectorStore(db *postgres.DB, table string) *PgVectorStore {
	return &PgVectorStore{db: db, table: table}
}

func (s *PgVectorStore) Collection() string {
	return s.table
}

func (s *PgVectorStore) Ready(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, s.table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return exists, nil
}

func (s *PgVectorStore) Count(ctx context.Context) (uint64, error) {
	var n int64
	query := fmt.Sprintf(`SELECT count(*) FROM %s`, pgx.Identifier{s.table}.Sanitize())
	if err := s.db.Pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, s.classify(fmt.Errorf("failed to count chunks: %w", err))
	}
	return uint64(n), nil
}

// Search orders by cosine distance and reports similarity as 1 - distance.
func (s *PgVectorStore) Search(ctx context.Context, vector []float32, limit int) ([]Candidate, error) {
	query := fmt.Sprintf(`
		SELECT id::text, content, COALESCE(source_file, ''), COALESCE(category, ''), embedding,
		       (1 - (embedding <=> $1))::real AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgx.Identifier{s.table}.Sanitize())

	rows, err := s.db.Pool.Query(ctx, query, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, s.classify(fmt.Errorf("failed to search: %w", err))
	}
	defer rows.Close()

	var results []Candidate
	for rows.Next() {
		var (
			c   Candidate
			emb pgvector.Vector
		)
		if err := rows.Scan(&c.ID, &c.Content, &c.Source, &c.Category, &emb, &c.Score); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c.Vector = emb.Slice()
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify(fmt.Errorf("failed to read chunks: %w", err))
	}
	return results, nil
}

func (s *PgVectorStore) classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == undefinedTable {
			return fmt.Errorf("%w: %w", ErrNotReady, err)
		}
		return err
	}
	if pgconn.SafeToRetry(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

var _ VectorStore = (*PgVectorStore)(nil)
