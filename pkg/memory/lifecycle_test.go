package memory

import (
	"context"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	workspace := t.TempDir()
	backend, err := NewSQLiteBackend(workspace)
	if err != nil {
		t.Fatalf("NewSQLiteBackend: %v", err)
	}

	for _, k := range []string{"a", "b", "c"} {
		if _, err := backend.Store(ctx, k, "content-"+k, CategoryCore, ""); err != nil {
			t.Fatalf("Store: %v", err)
		}
	}

	sessionStore, err := NewSQLiteSessionStore(backend.DB())
	if err != nil {
		t.Fatalf("NewSQLiteSessionStore: %v", err)
	}
	if _, err := sessionStore.SaveMessage(ctx, "s1", RoleUser, "hello", false); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if _, err := sessionStore.SaveMessage(ctx, "s1", RoleAssistant, "hi there", false); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}

	entries, err := backend.ExportAll(ctx)
	if err != nil {
		t.Fatalf("ExportAll: %v", err)
	}
	messages, err := sessionStore.AllMessages(ctx)
	if err != nil {
		t.Fatalf("AllMessages: %v", err)
	}
	if err := ExportSnapshot(workspace, entries, messages); err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}
	_ = backend.Close()

	// Re-init against a fresh, empty backend in another directory, as if
	// the db had been wiped; the snapshot is still read from workspace.
	fresh, err := NewSQLiteBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewSQLiteBackend: %v", err)
	}
	defer fresh.Close()
	freshSessions, err := NewSQLiteSessionStore(fresh.DB())
	if err != nil {
		t.Fatalf("NewSQLiteSessionStore: %v", err)
	}

	due, snap, err := ShouldHydrate(ctx, fresh, workspace)
	if err != nil {
		t.Fatalf("ShouldHydrate: %v", err)
	}
	if !due {
		t.Fatal("expected hydrate to be due for an empty store with a snapshot present")
	}

	nEntries, nMessages, err := Hydrate(ctx, fresh, freshSessions, snap)
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if nEntries != 3 {
		t.Fatalf("expected 3 entries hydrated, got %d", nEntries)
	}
	if nMessages != 2 {
		t.Fatalf("expected 2 messages hydrated, got %d", nMessages)
	}

	count, _ := fresh.Count(ctx)
	if count != 3 {
		t.Fatalf("expected count 3 after hydrate, got %d", count)
	}
	for _, k := range []string{"a", "b", "c"} {
		if _, ok, _ := fresh.Get(ctx, k); !ok {
			t.Fatalf("expected key %q to be present after hydrate", k)
		}
	}

	restored, err := freshSessions.Messages(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(restored) != 2 {
		t.Fatalf("expected 2 restored messages for session s1, got %d", len(restored))
	}
}

func TestShouldHydrateFalseWhenStoreNonEmpty(t *testing.T) {
	ctx := context.Background()
	workspace := t.TempDir()
	backend, err := NewSQLiteBackend(workspace)
	if err != nil {
		t.Fatalf("NewSQLiteBackend: %v", err)
	}
	defer backend.Close()

	if _, err := backend.Store(ctx, "k", "v", CategoryCore, ""); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := ExportSnapshot(workspace, []MemoryEntry{{Key: "k", Content: "v"}}, nil); err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}

	due, _, err := ShouldHydrate(ctx, backend, workspace)
	if err != nil {
		t.Fatalf("ShouldHydrate: %v", err)
	}
	if due {
		t.Fatal("expected hydrate not due when store already has entries")
	}
}

func TestHygienePurgesDirectly(t *testing.T) {
	ctx := context.Background()
	backend := newTestSQLiteBackend(t)

	if _, err := backend.Store(ctx, "daily_old", "old", CategoryDaily, ""); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := backend.Store(ctx, "convo_old", "old convo", CategoryConversation, "s1"); err != nil {
		t.Fatalf("Store: %v", err)
	}

	farFuture := int64(1) << 50 // every entry's created_at_ms predates this
	purged, err := backend.Purge(ctx, farFuture)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if purged != 2 {
		t.Fatalf("expected both entries purged, got %d", purged)
	}

	count, _ := backend.Count(ctx)
	if count != 0 {
		t.Fatalf("expected empty store after purge, got count %d", count)
	}
}
