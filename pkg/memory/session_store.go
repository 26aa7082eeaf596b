package memory

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// SessionStore is an append-only per-session chat history capability.
type SessionStore interface {
	SaveMessage(ctx context.Context, sessionID string, role MessageRole, content string, autoSaved bool) (MessageEntry, error)
	Messages(ctx context.Context, sessionID string, limit int) ([]MessageEntry, error)
	ClearMessages(ctx context.Context, sessionID string) (int, error)
	ClearAutoSaved(ctx context.Context, sessionID string) (int, error)

	// AllMessages enumerates every stored message across all sessions,
	// ordered by creation time, for snapshot export.
	AllMessages(ctx context.Context) ([]MessageEntry, error)
	// RestoreMessages reinserts messages with their original id and
	// timestamp, for snapshot hydration. It returns the count restored.
	RestoreMessages(ctx context.Context, messages []MessageEntry) (int, error)

	Close() error
}

// SQLiteSessionStore stores messages in the messages table of a
// borrowed *sql.DB. It never closes that handle.
type SQLiteSessionStore struct {
	db *sql.DB
}

// NewSQLiteSessionStore wraps a borrowed handle, creating the messages
// table if absent.
func NewSQLiteSessionStore(db *sql.DB) (*SQLiteSessionStore, error) {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at_ms INTEGER NOT NULL,
	auto_saved INTEGER NOT NULL DEFAULT 0
)`)
	if err != nil {
		return nil, newErr(BackendIo, "NewSQLiteSessionStore", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS messages_session_idx ON messages(session_id, created_at_ms)`); err != nil {
		return nil, newErr(BackendIo, "NewSQLiteSessionStore", err)
	}
	return &SQLiteSessionStore{db: db}, nil
}

func (s *SQLiteSessionStore) SaveMessage(ctx context.Context, sessionID string, role MessageRole, content string, autoSaved bool) (MessageEntry, error) {
	if !role.Valid() {
		return MessageEntry{}, newErr(BackendInvalid, "SaveMessage", errInvalidRole)
	}
	msg := MessageEntry{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		AutoSaved: autoSaved,
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO messages(id, session_id, role, content, created_at_ms, auto_saved) VALUES(?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, string(msg.Role), msg.Content, msg.Timestamp.UnixMilli(), boolToInt(autoSaved))
	if err != nil {
		return MessageEntry{}, newErr(BackendIo, "SaveMessage", err)
	}
	return msg, nil
}

type invalidRoleError struct{}

func (invalidRoleError) Error() string { return "invalid message role" }

var errInvalidRole = invalidRoleError{}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLiteSessionStore) Messages(ctx context.Context, sessionID string, limit int) ([]MessageEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, role, content, created_at_ms, auto_saved
FROM messages WHERE session_id = ? ORDER BY created_at_ms ASC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, newErr(BackendIo, "Messages", err)
	}
	defer rows.Close()

	var out []MessageEntry
	for rows.Next() {
		var m MessageEntry
		var role string
		var createdMS int64
		var autoSaved int
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &createdMS, &autoSaved); err != nil {
			return nil, newErr(BackendIo, "Messages", err)
		}
		m.Role = MessageRole(role)
		m.Timestamp = time.UnixMilli(createdMS).UTC()
		m.AutoSaved = autoSaved != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteSessionStore) ClearMessages(ctx context.Context, sessionID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, newErr(BackendIo, "ClearMessages", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteSessionStore) ClearAutoSaved(ctx context.Context, sessionID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ? AND auto_saved = 1`, sessionID)
	if err != nil {
		return 0, newErr(BackendIo, "ClearAutoSaved", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteSessionStore) AllMessages(ctx context.Context) ([]MessageEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, role, content, created_at_ms, auto_saved
FROM messages ORDER BY created_at_ms ASC`)
	if err != nil {
		return nil, newErr(BackendIo, "AllMessages", err)
	}
	defer rows.Close()

	var out []MessageEntry
	for rows.Next() {
		var m MessageEntry
		var role string
		var createdMS int64
		var autoSaved int
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &createdMS, &autoSaved); err != nil {
			return nil, newErr(BackendIo, "AllMessages", err)
		}
		m.Role = MessageRole(role)
		m.Timestamp = time.UnixMilli(createdMS).UTC()
		m.AutoSaved = autoSaved != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteSessionStore) RestoreMessages(ctx context.Context, messages []MessageEntry) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, newErr(BackendIo, "RestoreMessages", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR REPLACE INTO messages(id, session_id, role, content, created_at_ms, auto_saved) VALUES(?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, newErr(BackendIo, "RestoreMessages", err)
	}
	defer stmt.Close()

	restored := 0
	for _, m := range messages {
		if _, err := stmt.ExecContext(ctx, m.ID, m.SessionID, string(m.Role), m.Content, m.Timestamp.UnixMilli(), boolToInt(m.AutoSaved)); err != nil {
			return restored, newErr(BackendIo, "RestoreMessages", err)
		}
		restored++
	}
	if err := tx.Commit(); err != nil {
		return restored, newErr(BackendIo, "RestoreMessages", err)
	}
	return restored, nil
}

// Close is a no-op: the underlying *sql.DB is owned by the primary backend.
func (s *SQLiteSessionStore) Close() error { return nil }
