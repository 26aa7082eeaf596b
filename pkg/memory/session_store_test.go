package memory

import (
	"context"
	"testing"
)

func TestSessionStoreSaveAndList(t *testing.T) {
	ctx := context.Background()
	backend := newTestSQLiteBackend(t)
	store, err := NewSQLiteSessionStore(backend.DB())
	if err != nil {
		t.Fatalf("NewSQLiteSessionStore: %v", err)
	}

	if _, err := store.SaveMessage(ctx, "s1", RoleUser, "hello", false); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if _, err := store.SaveMessage(ctx, "s1", RoleAssistant, "hi there", true); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}

	msgs, err := store.Messages(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[1].Role != RoleAssistant {
		t.Fatalf("unexpected message order/roles: %+v", msgs)
	}
}

func TestSessionStoreRejectsInvalidRole(t *testing.T) {
	ctx := context.Background()
	backend := newTestSQLiteBackend(t)
	store, err := NewSQLiteSessionStore(backend.DB())
	if err != nil {
		t.Fatalf("NewSQLiteSessionStore: %v", err)
	}

	if _, err := store.SaveMessage(ctx, "s1", MessageRole("bogus"), "x", false); err == nil {
		t.Fatal("expected error for invalid role")
	}
}

func TestSessionStoreClearAutoSaved(t *testing.T) {
	ctx := context.Background()
	backend := newTestSQLiteBackend(t)
	store, err := NewSQLiteSessionStore(backend.DB())
	if err != nil {
		t.Fatalf("NewSQLiteSessionStore: %v", err)
	}

	if _, err := store.SaveMessage(ctx, "s1", RoleUser, "manual", false); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if _, err := store.SaveMessage(ctx, "s1", RoleAssistant, "auto", true); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}

	n, err := store.ClearAutoSaved(ctx, "s1")
	if err != nil {
		t.Fatalf("ClearAutoSaved: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 auto-saved message cleared, got %d", n)
	}

	remaining, err := store.Messages(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Content != "manual" {
		t.Fatalf("expected only the manual message left, got %+v", remaining)
	}
}

func TestSessionStoreAllMessagesSpansSessions(t *testing.T) {
	ctx := context.Background()
	backend := newTestSQLiteBackend(t)
	store, err := NewSQLiteSessionStore(backend.DB())
	if err != nil {
		t.Fatalf("NewSQLiteSessionStore: %v", err)
	}

	if _, err := store.SaveMessage(ctx, "s1", RoleUser, "from s1", false); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	if _, err := store.SaveMessage(ctx, "s2", RoleUser, "from s2", false); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}

	all, err := store.AllMessages(ctx)
	if err != nil {
		t.Fatalf("AllMessages: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected messages from both sessions, got %d", len(all))
	}
}

func TestSessionStoreRestoreMessagesPreservesIdentity(t *testing.T) {
	ctx := context.Background()
	backend := newTestSQLiteBackend(t)
	store, err := NewSQLiteSessionStore(backend.DB())
	if err != nil {
		t.Fatalf("NewSQLiteSessionStore: %v", err)
	}

	saved, err := store.SaveMessage(ctx, "s1", RoleUser, "original", false)
	if err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	exported, err := store.AllMessages(ctx)
	if err != nil {
		t.Fatalf("AllMessages: %v", err)
	}

	other := newTestSQLiteBackend(t)
	target, err := NewSQLiteSessionStore(other.DB())
	if err != nil {
		t.Fatalf("NewSQLiteSessionStore: %v", err)
	}

	restored, err := target.RestoreMessages(ctx, exported)
	if err != nil {
		t.Fatalf("RestoreMessages: %v", err)
	}
	if restored != 1 {
		t.Fatalf("expected 1 message restored, got %d", restored)
	}

	msgs, err := target.Messages(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != saved.ID || msgs[0].Timestamp.UnixMilli() != saved.Timestamp.UnixMilli() {
		t.Fatalf("expected restored message to preserve id/timestamp, got %+v", msgs)
	}
}
