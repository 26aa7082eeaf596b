package memory

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"
)

// ResponseCacheConfig mirrors the response_cache.* configuration surface.
type ResponseCacheConfig struct {
	Enabled    bool
	TTL        time.Duration
	MaxEntries int
}

// ResponseCache is a bounded, TTL'd cache of full search responses
// keyed by (query, session_id, rollout decision), backed by its own
// SQLite file so entries survive a process restart, fronted by an
// in-process LRU for the hot path.
type ResponseCache struct {
	cfg ResponseCacheConfig
	db  *sql.DB
	hot *lru.Cache[string, cachedResponse]
}

type cachedResponse struct {
	Candidates []RetrievalCandidate
	ExpiresAt  time.Time
}

// NewResponseCache opens response_cache.db under workspace.
func NewResponseCache(workspace string, cfg ResponseCacheConfig) (*ResponseCache, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 5000
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 60 * time.Minute
	}

	path := filepath.Join(workspace, "response_cache.db")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, newErr(BackendIo, "NewResponseCache", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)")
	if err != nil {
		return nil, newErr(BackendIo, "NewResponseCache", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS response_cache (
	cache_key TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	expires_at_ms INTEGER NOT NULL
)`); err != nil {
		_ = db.Close()
		return nil, newErr(BackendIo, "NewResponseCache", err)
	}

	hot, err := lru.New[string, cachedResponse](cfg.MaxEntries)
	if err != nil {
		_ = db.Close()
		return nil, newErr(BackendIo, "NewResponseCache", fmt.Errorf("build lru: %w", err))
	}

	return &ResponseCache{cfg: cfg, db: db, hot: hot}, nil
}

// CacheKey derives a stable key from the query, session scope, and
// rollout decision, so hybrid and keyword-only results never collide.
func CacheKey(query, sessionID string, mode SearchMode) string {
	sum := sha1.Sum([]byte(query + "\x00" + sessionID + "\x00" + string(mode)))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached candidates for key, if present and unexpired.
func (c *ResponseCache) Get(ctx context.Context, key string) ([]RetrievalCandidate, bool) {
	if !c.cfg.Enabled {
		return nil, false
	}
	if hit, ok := c.hot.Get(key); ok {
		if time.Now().Before(hit.ExpiresAt) {
			return hit.Candidates, true
		}
		c.hot.Remove(key)
		return nil, false
	}

	var payload string
	var expiresMS int64
	err := c.db.QueryRowContext(ctx, `SELECT payload, expires_at_ms FROM response_cache WHERE cache_key = ?`, key).
		Scan(&payload, &expiresMS)
	if err != nil {
		return nil, false
	}
	if time.Now().UnixMilli() >= expiresMS {
		return nil, false
	}
	var candidates []RetrievalCandidate
	if err := json.Unmarshal([]byte(payload), &candidates); err != nil {
		return nil, false
	}
	c.hot.Add(key, cachedResponse{Candidates: candidates, ExpiresAt: time.UnixMilli(expiresMS)})
	return candidates, true
}

// Put stores candidates under key with the cache's configured TTL.
func (c *ResponseCache) Put(ctx context.Context, key string, candidates []RetrievalCandidate) error {
	if !c.cfg.Enabled {
		return nil
	}
	expiresAt := time.Now().Add(c.cfg.TTL)
	c.hot.Add(key, cachedResponse{Candidates: candidates, ExpiresAt: expiresAt})

	payload, err := json.Marshal(candidates)
	if err != nil {
		return newErr(Serialization, "Put", err)
	}
	_, err = c.db.ExecContext(ctx, `
INSERT INTO response_cache(cache_key, payload, expires_at_ms) VALUES(?, ?, ?)
ON CONFLICT(cache_key) DO UPDATE SET payload = excluded.payload, expires_at_ms = excluded.expires_at_ms`,
		key, string(payload), expiresAt.UnixMilli())
	if err != nil {
		return newErr(BackendIo, "Put", err)
	}
	return nil
}

// Invalidate drops every cached response. Called whenever a store
// touches the namespace a cached response was computed against, since
// the cache has no per-key dependency tracking.
func (c *ResponseCache) Invalidate(ctx context.Context) error {
	c.hot.Purge()
	if _, err := c.db.ExecContext(ctx, `DELETE FROM response_cache`); err != nil {
		return newErr(BackendIo, "Invalidate", err)
	}
	return nil
}

func (c *ResponseCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}
