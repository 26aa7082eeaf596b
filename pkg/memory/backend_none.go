package memory

import "context"

// NullBackend is the "none" primary backend: every write and read is
// a no-op, recall always returns empty. Used when memory is disabled
// entirely but the runtime still needs a Backend to hold.
type NullBackend struct{}

func NewNullBackend() *NullBackend { return &NullBackend{} }

func (NullBackend) Name() string { return "none" }

func (NullBackend) Capabilities() Capabilities { return Capabilities{} }

func (NullBackend) Store(ctx context.Context, key, content string, category MemoryCategory, sessionID string) (MemoryEntry, error) {
	return MemoryEntry{Key: key, Content: content, Category: category, SessionID: sessionID}, nil
}

func (NullBackend) Recall(ctx context.Context, query string, limit int, sessionID string) ([]MemoryEntry, error) {
	return nil, nil
}

func (NullBackend) Get(ctx context.Context, key string) (MemoryEntry, bool, error) {
	return MemoryEntry{}, false, nil
}

func (NullBackend) List(ctx context.Context, category MemoryCategory, hasCategory bool, sessionID string) ([]MemoryEntry, error) {
	return nil, nil
}

func (NullBackend) Forget(ctx context.Context, key string) (bool, error) { return false, nil }

func (NullBackend) Count(ctx context.Context) (int, error) { return 0, nil }

func (NullBackend) HealthCheck(ctx context.Context) bool { return true }

func (NullBackend) Close() error { return nil }
