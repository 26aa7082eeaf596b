package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteBackend is the primary, authoritative backend: entries live in
// an FTS5-indexed table inside memory.db. The vector store and outbox
// share this same *sql.DB handle; SQLiteBackend is the only owner that
// may close it.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens or creates memory.db under workspace.
func NewSQLiteBackend(workspace string) (*SQLiteBackend, error) {
	path := filepath.Join(workspace, "memory.db")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, newErr(BackendIo, "NewSQLiteBackend", fmt.Errorf("create workspace dir: %w", err))
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, newErr(BackendIo, "NewSQLiteBackend", fmt.Errorf("open db: %w", err))
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	b := &SQLiteBackend{db: db}
	if err := b.migrate(); err != nil {
		_ = db.Close()
		return nil, newErr(BackendIo, "NewSQLiteBackend", err)
	}
	return b, nil
}

// DB exposes the shared handle for the vector store and outbox to
// borrow. Callers must never close the returned handle.
func (b *SQLiteBackend) DB() *sql.DB { return b.db }

func (b *SQLiteBackend) migrate() error {
	stmts := []string{
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS memory_entries (
			id TEXT PRIMARY KEY,
			key TEXT NOT NULL UNIQUE,
			content TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT 'core',
			session_id TEXT NOT NULL DEFAULT '',
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS memory_entries_category_idx ON memory_entries(category, session_id);`,
		`CREATE INDEX IF NOT EXISTS memory_entries_created_idx ON memory_entries(created_at_ms);`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS memory_entries_fts USING fts5(
			key, content,
			content='memory_entries',
			content_rowid='rowid'
		);`,
		`CREATE TRIGGER IF NOT EXISTS memory_entries_ai AFTER INSERT ON memory_entries BEGIN
			INSERT INTO memory_entries_fts(rowid, key, content) VALUES (new.rowid, new.key, new.content);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS memory_entries_ad AFTER DELETE ON memory_entries BEGIN
			INSERT INTO memory_entries_fts(memory_entries_fts, rowid, key, content) VALUES('delete', old.rowid, old.key, old.content);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS memory_entries_au AFTER UPDATE ON memory_entries BEGIN
			INSERT INTO memory_entries_fts(memory_entries_fts, rowid, key, content) VALUES('delete', old.rowid, old.key, old.content);
			INSERT INTO memory_entries_fts(rowid, key, content) VALUES (new.rowid, new.key, new.content);
		END;`,
	}
	for _, stmt := range stmts {
		if _, err := b.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate sqlite backend on %q: %w", trimSQL(stmt), err)
		}
	}
	return nil
}

func trimSQL(stmt string) string {
	line := strings.TrimSpace(stmt)
	if len(line) > 80 {
		return line[:80] + "..."
	}
	return line
}

func (b *SQLiteBackend) Name() string { return "sqlite" }

func (b *SQLiteBackend) Capabilities() Capabilities {
	return Capabilities{
		SupportsSessionStore: true,
		SupportsKeywordRank:  true,
		SupportsTransactions: true,
		SupportsOutbox:       true,
	}
}

func (b *SQLiteBackend) Store(ctx context.Context, key, content string, category MemoryCategory, sessionID string) (MemoryEntry, error) {
	if strings.TrimSpace(key) == "" {
		return MemoryEntry{}, newErr(BackendInvalid, "Store", errors.New("empty key"))
	}
	now := time.Now().UTC()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return MemoryEntry{}, newErr(BackendIo, "Store", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existingID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM memory_entries WHERE key = ?`, key).Scan(&existingID)
	id := existingID
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return MemoryEntry{}, newErr(BackendIo, "Store", err)
		}
		id = uuid.NewString()
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO memory_entries(id, key, content, category, session_id, created_at_ms)
VALUES(?, ?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
	content = excluded.content,
	category = excluded.category,
	session_id = excluded.session_id,
	created_at_ms = excluded.created_at_ms`,
		id, key, content, category.String(), sessionID, now.UnixMilli())
	if err != nil {
		return MemoryEntry{}, newErr(BackendIo, "Store", err)
	}

	if err := tx.Commit(); err != nil {
		return MemoryEntry{}, newErr(BackendIo, "Store", err)
	}

	return MemoryEntry{
		ID:        id,
		Key:       key,
		Content:   content,
		Category:  category,
		Timestamp: now,
		SessionID: sessionID,
	}, nil
}

func (b *SQLiteBackend) Recall(ctx context.Context, query string, limit int, sessionID string) ([]MemoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	args := []any{ftsQuery(query)}
	sessionClause := ""
	if sessionID != "" {
		sessionClause = " AND m.session_id = ?"
		args = append(args, sessionID)
	}
	args = append(args, limit)

	rows, err := b.db.QueryContext(ctx, fmt.Sprintf(`
SELECT m.id, m.key, m.content, m.category, m.session_id, m.created_at_ms
FROM memory_entries_fts f
JOIN memory_entries m ON m.rowid = f.rowid
WHERE memory_entries_fts MATCH ?%s
ORDER BY bm25(memory_entries_fts)
LIMIT ?`, sessionClause), args...)
	if err != nil {
		return nil, newErr(BackendIo, "Recall", err)
	}
	defer rows.Close()

	var out []MemoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, newErr(BackendIo, "Recall", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ftsQuery escapes a raw query for FTS5's MATCH operator by quoting
// each token so punctuation in user input cannot be read as syntax.
func ftsQuery(q string) string {
	fields := strings.Fields(q)
	if len(fields) == 0 {
		return `""`
	}
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, `""`)
		quoted = append(quoted, `"`+f+`"*`)
	}
	return strings.Join(quoted, " OR ")
}

func (b *SQLiteBackend) Get(ctx context.Context, key string) (MemoryEntry, bool, error) {
	row := b.db.QueryRowContext(ctx, `
SELECT id, key, content, category, session_id, created_at_ms
FROM memory_entries WHERE key = ?`, key)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MemoryEntry{}, false, nil
		}
		return MemoryEntry{}, false, newErr(BackendIo, "Get", err)
	}
	return e, true, nil
}

func (b *SQLiteBackend) List(ctx context.Context, category MemoryCategory, hasCategory bool, sessionID string) ([]MemoryEntry, error) {
	where := []string{"1=1"}
	var args []any
	if hasCategory {
		where = append(where, "category = ?")
		args = append(args, category.String())
	}
	if sessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, sessionID)
	}
	query := fmt.Sprintf(`
SELECT id, key, content, category, session_id, created_at_ms
FROM memory_entries WHERE %s ORDER BY created_at_ms DESC`, strings.Join(where, " AND "))

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, newErr(BackendIo, "List", err)
	}
	defer rows.Close()

	var out []MemoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, newErr(BackendIo, "List", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) Forget(ctx context.Context, key string) (bool, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM memory_entries WHERE key = ?`, key)
	if err != nil {
		return false, newErr(BackendIo, "Forget", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (b *SQLiteBackend) Count(ctx context.Context) (int, error) {
	var n int
	if err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_entries`).Scan(&n); err != nil {
		return 0, newErr(BackendIo, "Count", err)
	}
	return n, nil
}

func (b *SQLiteBackend) HealthCheck(ctx context.Context) bool {
	var one int
	return b.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one) == nil
}

func (b *SQLiteBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Archive implements Hygienic.
func (b *SQLiteBackend) Archive(ctx context.Context, cutoff int64) (int, error) {
	res, err := b.db.ExecContext(ctx, `
UPDATE memory_entries SET category = ?
WHERE category NOT IN (?, ?) AND created_at_ms < ?`,
		CategoryArchive.String(), CategoryCore.String(), CategoryArchive.String(), cutoff)
	if err != nil {
		return 0, newErr(BackendIo, "Archive", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (b *SQLiteBackend) Purge(ctx context.Context, cutoff int64) (int, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM memory_entries WHERE created_at_ms < ?`, cutoff)
	if err != nil {
		return 0, newErr(BackendIo, "Purge", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (b *SQLiteBackend) TrimConversations(ctx context.Context, cutoff int64) (int, error) {
	res, err := b.db.ExecContext(ctx, `
DELETE FROM memory_entries WHERE category = ? AND created_at_ms < ?`,
		CategoryConversation.String(), cutoff)
	if err != nil {
		return 0, newErr(BackendIo, "TrimConversations", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ExportAll implements Exportable.
func (b *SQLiteBackend) ExportAll(ctx context.Context) ([]MemoryEntry, error) {
	rows, err := b.db.QueryContext(ctx, `
SELECT id, key, content, category, session_id, created_at_ms
FROM memory_entries ORDER BY created_at_ms ASC`)
	if err != nil {
		return nil, newErr(BackendIo, "ExportAll", err)
	}
	defer rows.Close()

	var out []MemoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, newErr(BackendIo, "ExportAll", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) ImportAll(ctx context.Context, entries []MemoryEntry) (int, error) {
	imported := 0
	for _, e := range entries {
		if _, err := b.Store(ctx, e.Key, e.Content, e.Category, e.SessionID); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (MemoryEntry, error) {
	var e MemoryEntry
	var category string
	var createdMS int64
	if err := row.Scan(&e.ID, &e.Key, &e.Content, &category, &e.SessionID, &createdMS); err != nil {
		return MemoryEntry{}, err
	}
	e.Category = ParseCategory(category)
	e.Timestamp = time.UnixMilli(createdMS).UTC()
	return e, nil
}
