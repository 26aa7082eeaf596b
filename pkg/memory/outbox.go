package memory

import (
	"context"
	"database/sql"
	"time"
)

// OutboxOp names a pending vector-sync operation.
type OutboxOp string

const (
	OutboxUpsert OutboxOp = "upsert"
	OutboxDelete OutboxOp = "delete"
)

const outboxMaxRetries = 5

// VectorOutbox is a persistent queue of pending vector-sync operations,
// co-located with the primary SQLite database, drained asynchronously
// with bounded retries and exponential backoff. It borrows the primary
// backend's handle and never closes it.
type VectorOutbox struct {
	db *sql.DB
}

// NewVectorOutbox wraps a borrowed handle, creating the outbox table
// if absent.
func NewVectorOutbox(db *sql.DB) (*VectorOutbox, error) {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS outbox (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	memory_key TEXT NOT NULL,
	operation TEXT NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 0,
	next_attempt_at INTEGER NOT NULL DEFAULT 0
)`)
	if err != nil {
		return nil, newErr(BackendIo, "NewVectorOutbox", err)
	}
	return &VectorOutbox{db: db}, nil
}

// Enqueue appends a pending operation. Append-only: repeated enqueues
// for the same key each get their own row and are drained in order.
func (o *VectorOutbox) Enqueue(ctx context.Context, key string, op OutboxOp) error {
	_, err := o.db.ExecContext(ctx, `
INSERT INTO outbox(memory_key, operation, attempts, next_attempt_at) VALUES(?, ?, 0, ?)`,
		key, string(op), time.Now().UTC().UnixMilli())
	if err != nil {
		return newErr(BackendIo, "Enqueue", err)
	}
	return nil
}

type outboxRow struct {
	id            int64
	key           string
	op            OutboxOp
	attempts      int
	nextAttemptAt int64
}

// ContentResolver looks up the current content for a memory key so a
// queued upsert can be re-embedded at drain time. It returns ok=false
// if the key no longer exists, in which case the upsert is dropped.
type ContentResolver func(ctx context.Context, key string) (content string, ok bool, err error)

// Drain processes due entries in FIFO order: for each, if the breaker
// denies, drain stops; otherwise it applies the operation via provider
// (upsert, re-embedding via resolve) or vs (delete). Success removes
// the row and records a breaker success; failure increments attempts
// and either reschedules with exponential backoff or drops the row at
// outboxMaxRetries, recording a breaker failure either way. Returns
// the count of entries completed, whether by success or by drop.
func (o *VectorOutbox) Drain(ctx context.Context, resolve ContentResolver, provider Embedder, vs VectorStore, breaker *CircuitBreaker) (int, error) {
	rows, err := o.db.QueryContext(ctx, `
SELECT id, memory_key, operation, attempts, next_attempt_at FROM outbox
WHERE next_attempt_at <= ? ORDER BY id ASC`, time.Now().UTC().UnixMilli())
	if err != nil {
		return 0, newErr(BackendIo, "Drain", err)
	}
	var pending []outboxRow
	for rows.Next() {
		var r outboxRow
		var op string
		if err := rows.Scan(&r.id, &r.key, &op, &r.attempts, &r.nextAttemptAt); err != nil {
			rows.Close()
			return 0, newErr(BackendIo, "Drain", err)
		}
		r.op = OutboxOp(op)
		pending = append(pending, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, newErr(BackendIo, "Drain", err)
	}

	applied := 0
	for _, r := range pending {
		if breaker != nil && !breaker.Allow() {
			break
		}

		applyErr := o.apply(ctx, resolve, provider, vs, r)
		if applyErr == nil {
			if breaker != nil {
				breaker.RecordSuccess()
			}
			if _, err := o.db.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, r.id); err != nil {
				return applied, newErr(BackendIo, "Drain", err)
			}
			applied++
			continue
		}

		if breaker != nil {
			breaker.RecordFailure()
		}
		attempts := r.attempts + 1
		if attempts >= outboxMaxRetries {
			if _, err := o.db.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, r.id); err != nil {
				return applied, newErr(BackendIo, "Drain", err)
			}
			applied++
			continue
		}
		backoff := time.Duration(1<<uint(attempts)) * time.Second
		nextAt := time.Now().UTC().Add(backoff).UnixMilli()
		if _, err := o.db.ExecContext(ctx, `
UPDATE outbox SET attempts = ?, next_attempt_at = ? WHERE id = ?`, attempts, nextAt, r.id); err != nil {
			return applied, newErr(BackendIo, "Drain", err)
		}
	}
	return applied, nil
}

func (o *VectorOutbox) apply(ctx context.Context, resolve ContentResolver, provider Embedder, vs VectorStore, r outboxRow) error {
	switch r.op {
	case OutboxDelete:
		return vs.Delete(ctx, r.key)
	case OutboxUpsert:
		content, ok, err := resolve(ctx, r.key)
		if err != nil {
			return newErr(BackendIo, "apply", err)
		}
		if !ok {
			return nil // key no longer exists; treat as applied
		}
		vec, err := provider.Embed(ctx, content)
		if err != nil {
			return err
		}
		return vs.Upsert(ctx, r.key, vec)
	default:
		return nil
	}
}

func (o *VectorOutbox) Count(ctx context.Context) (int, error) {
	var n int
	if err := o.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox`).Scan(&n); err != nil {
		return 0, newErr(BackendIo, "Count", err)
	}
	return n, nil
}

// Close is a no-op: the underlying *sql.DB is owned by the primary backend.
func (o *VectorOutbox) Close() error { return nil }
