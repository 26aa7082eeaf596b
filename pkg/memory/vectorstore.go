package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// VectorStore persists {key -> embedding} and performs brute-force
// nearest-neighbor search against a query vector.
type VectorStore interface {
	Upsert(ctx context.Context, key string, embedding EmbeddingVector) error
	Search(ctx context.Context, query EmbeddingVector, limit int) ([]VectorResult, error)
	Delete(ctx context.Context, key string) error
	Count(ctx context.Context) (int, error)
	// Close releases resources owned exclusively by this store. A
	// SQLite-shared implementation must leave the borrowed handle open.
	Close() error
}

// SQLiteSharedVectorStore stores embeddings in the memory_embeddings
// table of a *sql.DB it borrows from the primary backend. It never
// closes that handle.
type SQLiteSharedVectorStore struct {
	db *sql.DB
}

// NewSQLiteSharedVectorStore wraps a borrowed handle, creating the
// memory_embeddings table if absent.
func NewSQLiteSharedVectorStore(db *sql.DB) (*SQLiteSharedVectorStore, error) {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS memory_embeddings (
	memory_key TEXT PRIMARY KEY,
	embedding BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`)
	if err != nil {
		return nil, newErr(VectorStoreFailure, "NewSQLiteSharedVectorStore", err)
	}
	return &SQLiteSharedVectorStore{db: db}, nil
}

func (s *SQLiteSharedVectorStore) Upsert(ctx context.Context, key string, embedding EmbeddingVector) error {
	blob := vecToBytes(embedding)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO memory_embeddings(memory_key, embedding, updated_at) VALUES(?, ?, ?)
ON CONFLICT(memory_key) DO UPDATE SET embedding = excluded.embedding, updated_at = excluded.updated_at`,
		key, blob, time.Now().UTC().UnixMilli())
	if err != nil {
		return newErr(VectorStoreFailure, "Upsert", err)
	}
	return nil
}

func (s *SQLiteSharedVectorStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memory_embeddings WHERE memory_key = ?`, key); err != nil {
		return newErr(VectorStoreFailure, "Delete", err)
	}
	return nil
}

func (s *SQLiteSharedVectorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_embeddings`).Scan(&n); err != nil {
		return 0, newErr(VectorStoreFailure, "Count", err)
	}
	return n, nil
}

// Search reads every row, scores it by cosine similarity against
// query, sorts descending, and truncates to limit. Brute force by
// design; the spec bounds the corpus this runs against.
func (s *SQLiteSharedVectorStore) Search(ctx context.Context, query EmbeddingVector, limit int) ([]VectorResult, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `SELECT memory_key, embedding FROM memory_embeddings`)
	if err != nil {
		return nil, newErr(VectorStoreFailure, "Search", err)
	}
	defer rows.Close()

	var results []VectorResult
	for rows.Next() {
		var key string
		var blob []byte
		if err := rows.Scan(&key, &blob); err != nil {
			return nil, newErr(VectorStoreFailure, "Search", err)
		}
		vec, err := bytesToVec(blob)
		if err != nil {
			return nil, newErr(Serialization, "Search", fmt.Errorf("decode embedding for %q: %w", key, err))
		}
		results = append(results, VectorResult{Key: key, Score: cosineSimilarity(query, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, newErr(VectorStoreFailure, "Search", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Close is a no-op: the underlying *sql.DB is owned by the primary backend.
func (s *SQLiteSharedVectorStore) Close() error { return nil }
