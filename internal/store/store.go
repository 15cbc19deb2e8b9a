// Package store implements the similarity index on PostgreSQL + pgvector.
//
// Chunks live in a single table keyed by their content-hash id; re-indexing
// an unchanged chunk upserts in place. Similarity search uses cosine distance
// (the <=> operator), which matches the score = 1 - distance contract.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/askdocs/askdocs/internal/log"
	"github.com/askdocs/askdocs/internal/rag"
)

// VectorDimension is the embedding width of the chunks table. The embedder
// must be configured to produce vectors of this size.
const VectorDimension = 768

// Querier is the subset of pgxpool.Pool the store uses. Defined here, by the
// consumer, so tests can substitute a fake (like http.RoundTripper).
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Querier = (*pgxpool.Pool)(nil)

const (
	upsertSQL = `INSERT INTO chunks (id, content, embedding, metadata, indexed_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (id) DO UPDATE
SET content = EXCLUDED.content,
    embedding = EXCLUDED.embedding,
    metadata = EXCLUDED.metadata,
    indexed_at = now()`

	querySQL = `SELECT content, metadata, embedding <=> $1 AS distance
FROM chunks
ORDER BY embedding <=> $1
LIMIT $2`

	countSQL = `SELECT count(*) FROM chunks`

	deleteByFileSQL = `DELETE FROM chunks WHERE metadata->>'file_path' = $1`

	truncateSQL = `TRUNCATE chunks`
)

// Store is a rag.SimilarityIndex backed by PostgreSQL + pgvector.
// Safe for concurrent use.
type Store struct {
	db     Querier
	logger log.Logger
}

var _ rag.SimilarityIndex = (*Store)(nil)

// New creates a Store on the given querier (normally a *pgxpool.Pool).
func New(db Querier, logger log.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Upsert inserts or overwrites chunks by id. Re-adding an existing id never
// duplicates.
func (s *Store) Upsert(ctx context.Context, entries []rag.IndexEntry) error {
	for _, e := range entries {
		if len(e.Vector) != VectorDimension {
			return fmt.Errorf("chunk %q: vector dimension %d, want %d", e.ID, len(e.Vector), VectorDimension)
		}

		metadata, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for chunk %q: %w", e.ID, err)
		}

		vec := pgvector.NewVector(e.Vector)
		if _, err := s.db.Exec(ctx, upsertSQL, e.ID, e.Text, vec, metadata); err != nil {
			return fmt.Errorf("upserting chunk %q: %w", e.ID, err)
		}
	}
	return nil
}

// Query returns up to k matches ordered by ascending cosine distance.
func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]rag.Match, error) {
	rows, err := s.db.Query(ctx, querySQL, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var matches []rag.Match
	for rows.Next() {
		var (
			content  string
			metadata []byte
			distance float64
		)
		if err := rows.Scan(&content, &metadata, &distance); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}

		md := map[string]string{}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &md); err != nil {
				return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
			}
		}

		matches = append(matches, rag.Match{Text: content, Metadata: md, Distance: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunk rows: %w", err)
	}

	return matches, nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, countSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// DeleteByFilePath removes all chunks indexed from one source file. Used when
// a watched file changes, so sections deleted from the file don't linger.
func (s *Store) DeleteByFilePath(ctx context.Context, filePath string) (int64, error) {
	tag, err := s.db.Exec(ctx, deleteByFileSQL, filePath)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks for %q: %w", filePath, err)
	}
	return tag.RowsAffected(), nil
}

// Reset removes every stored chunk.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, truncateSQL); err != nil {
		return fmt.Errorf("truncating chunks: %w", err)
	}
	s.logger.Info("vector store reset, all chunks removed")
	return nil
}
