package memory

import (
	"context"
	"testing"
)

func TestMarkdownBackendStoreRecallGet(t *testing.T) {
	ctx := context.Background()
	b, err := NewMarkdownBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewMarkdownBackend: %v", err)
	}

	if _, err := b.Store(ctx, "zig_pref", "User prefers Zig", CategoryCore, ""); err != nil {
		t.Fatalf("Store: %v", err)
	}

	entry, ok, err := b.Get(ctx, "zig_pref")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if entry.Content != "User prefers Zig" || entry.Category != CategoryCore {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	results, err := b.Recall(ctx, "zig", 10, "")
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(results) != 1 || results[0].Key != "zig_pref" {
		t.Fatalf("expected zig_pref match, got %+v", results)
	}
}

func TestMarkdownBackendForgetAndCount(t *testing.T) {
	ctx := context.Background()
	b, err := NewMarkdownBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewMarkdownBackend: %v", err)
	}

	if _, err := b.Store(ctx, "a", "content a", CategoryCore, ""); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := b.Store(ctx, "b", "content b", CategoryCore, ""); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if n, err := b.Count(ctx); n != 2 || err != nil {
		t.Fatalf("expected count 2, got %d err %v", n, err)
	}

	removed, err := b.Forget(ctx, "a")
	if err != nil || !removed {
		t.Fatalf("Forget: removed=%v err=%v", removed, err)
	}
	if n, _ := b.Count(ctx); n != 1 {
		t.Fatalf("expected count 1 after forget, got %d", n)
	}

	removedAgain, err := b.Forget(ctx, "a")
	if err != nil || removedAgain {
		t.Fatalf("expected second Forget to report false, got %v, %v", removedAgain, err)
	}
}

func TestMarkdownBackendListFiltersByCategoryAndSession(t *testing.T) {
	ctx := context.Background()
	b, err := NewMarkdownBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewMarkdownBackend: %v", err)
	}

	if _, err := b.Store(ctx, "core1", "core entry", CategoryCore, ""); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := b.Store(ctx, "convo1", "convo entry", CategoryConversation, "s1"); err != nil {
		t.Fatalf("Store: %v", err)
	}

	coreOnly, err := b.List(ctx, CategoryCore, true, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(coreOnly) != 1 || coreOnly[0].Key != "core1" {
		t.Fatalf("expected only core1, got %+v", coreOnly)
	}

	sessionOnly, err := b.List(ctx, MemoryCategory{}, false, "s1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sessionOnly) != 1 || sessionOnly[0].Key != "convo1" {
		t.Fatalf("expected only convo1, got %+v", sessionOnly)
	}
}

func TestMarkdownBackendArchivePurgeTrim(t *testing.T) {
	ctx := context.Background()
	b, err := NewMarkdownBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewMarkdownBackend: %v", err)
	}

	if _, err := b.Store(ctx, "daily1", "daily", CategoryDaily, ""); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := b.Store(ctx, "convo1", "convo", CategoryConversation, "s1"); err != nil {
		t.Fatalf("Store: %v", err)
	}

	farFuture := int64(1) << 50

	archived, err := b.Archive(ctx, farFuture)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if archived != 2 {
		t.Fatalf("expected 2 entries archived (daily1, convo1), got %d", archived)
	}
	entry, ok, err := b.Get(ctx, "daily1")
	if err != nil || !ok || entry.Category != CategoryArchive {
		t.Fatalf("expected daily1 to now be archived, got %+v ok=%v err=%v", entry, ok, err)
	}

	trimmed, err := b.TrimConversations(ctx, farFuture)
	if err != nil {
		t.Fatalf("TrimConversations: %v", err)
	}
	if trimmed != 0 {
		t.Fatalf("expected no conversation left to trim after archive, got %d", trimmed)
	}

	purged, err := b.Purge(ctx, farFuture)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if purged != 2 {
		t.Fatalf("expected both archived entries purged, got %d", purged)
	}
	if n, _ := b.Count(ctx); n != 0 {
		t.Fatalf("expected empty store after purge, got %d", n)
	}
}

func TestMarkdownBackendExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src, err := NewMarkdownBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewMarkdownBackend: %v", err)
	}
	if _, err := src.Store(ctx, "a", "content a", CategoryCore, ""); err != nil {
		t.Fatalf("Store: %v", err)
	}

	entries, err := src.ExportAll(ctx)
	if err != nil {
		t.Fatalf("ExportAll: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 exported entry, got %d", len(entries))
	}

	dst, err := NewMarkdownBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewMarkdownBackend: %v", err)
	}
	imported, err := dst.ImportAll(ctx, entries)
	if err != nil {
		t.Fatalf("ImportAll: %v", err)
	}
	if imported != 1 {
		t.Fatalf("expected 1 imported entry, got %d", imported)
	}
	if n, _ := dst.Count(ctx); n != 1 {
		t.Fatalf("expected count 1 on destination, got %d", n)
	}
}
