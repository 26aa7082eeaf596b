package memory

import "context"

// Backend is the primary, authoritative key->entry store with keyword
// search. Implementations: SQLite+FTS5, markdown files, null, and a
// variant that shells out to an external sync tool.
type Backend interface {
	// Name is a stable short identifier used for routing, e.g. "sqlite".
	Name() string

	// Store upserts by key. An existing entry with the same key is
	// replaced atomically from the reader's perspective.
	Store(ctx context.Context, key, content string, category MemoryCategory, sessionID string) (MemoryEntry, error)

	// Recall returns entries ranked by backend-native relevance, length
	// at most limit. Order defines 1-based keyword rank. An empty
	// sessionID means search across sessions.
	Recall(ctx context.Context, query string, limit int, sessionID string) ([]MemoryEntry, error)

	// Get returns the entry for key, or ok=false if absent.
	Get(ctx context.Context, key string) (MemoryEntry, bool, error)

	// List returns entries matching both filters with AND semantics;
	// an empty category/sessionID means "any".
	List(ctx context.Context, category MemoryCategory, hasCategory bool, sessionID string) ([]MemoryEntry, error)

	// Forget removes key, reporting whether anything was removed.
	Forget(ctx context.Context, key string) (bool, error)

	// Count returns the total number of live entries.
	Count(ctx context.Context) (int, error)

	// HealthCheck reports liveness, e.g. whether a statement can be prepared.
	HealthCheck(ctx context.Context) bool

	// Capabilities describes optional features consumers may opt into.
	Capabilities() Capabilities

	// Close releases any resources this backend owns exclusively.
	Close() error
}

// Hygienic is implemented by backends that support the lifecycle
// archive/purge sweep directly against their storage.
type Hygienic interface {
	// Archive moves entries older than cutoff (category != core) into
	// CategoryArchive, returning the count moved.
	Archive(ctx context.Context, cutoff int64) (int, error)
	// Purge deletes entries older than cutoff, returning the count removed.
	Purge(ctx context.Context, cutoff int64) (int, error)
	// TrimConversations deletes conversation-category entries older than cutoff.
	TrimConversations(ctx context.Context, cutoff int64) (int, error)
}

// Exportable is implemented by backends that can serialize their full
// entry set for snapshotting and restore it on hydrate.
type Exportable interface {
	ExportAll(ctx context.Context) ([]MemoryEntry, error)
	ImportAll(ctx context.Context, entries []MemoryEntry) (int, error)
}

// NewBackend is the factory named by the "backend" configuration option.
func NewBackend(name, workspace string, syncCommand string) (Backend, error) {
	switch name {
	case "", "sqlite":
		return NewSQLiteBackend(workspace)
	case "markdown":
		return NewMarkdownBackend(workspace)
	case "none":
		return NewNullBackend(), nil
	case "sync":
		return NewSyncBackend(syncCommand)
	default:
		return nil, newErr(BackendInvalid, "NewBackend", errUnknownBackend(name))
	}
}

type unknownBackendError string

func (e unknownBackendError) Error() string { return "unknown backend: " + string(e) }

func errUnknownBackend(name string) error { return unknownBackendError(name) }
