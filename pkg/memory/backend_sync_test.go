package memory

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// fakeSyncCommand writes a tiny shell script that answers the handful
// of ops SyncBackend issues, so the backend can be exercised without
// any real external memory tool.
func fakeSyncCommand(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake sync command script is POSIX shell only")
	}
	script := `#!/bin/sh
case "$1" in
  store)
    cat
    ;;
  count)
    echo "3"
    ;;
  health)
    exit 0
    ;;
  forget)
    echo "true"
    ;;
  recall|list)
    echo "[]"
    ;;
  get)
    echo ""
    ;;
  *)
    exit 1
    ;;
esac
`
	path := filepath.Join(t.TempDir(), "fake-sync.sh")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestSyncBackendStoreEchoesEntry(t *testing.T) {
	ctx := context.Background()
	b, err := NewSyncBackend(fakeSyncCommand(t))
	if err != nil {
		t.Fatalf("NewSyncBackend: %v", err)
	}

	entry, err := b.Store(ctx, "k", "content", CategoryCore, "")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if entry.Key != "k" || entry.Content != "content" || entry.Category != CategoryCore {
		t.Fatalf("unexpected round-tripped entry: %+v", entry)
	}
}

func TestSyncBackendCountAndHealth(t *testing.T) {
	ctx := context.Background()
	b, err := NewSyncBackend(fakeSyncCommand(t))
	if err != nil {
		t.Fatalf("NewSyncBackend: %v", err)
	}

	n, err := b.Count(ctx)
	if err != nil || n != 3 {
		t.Fatalf("expected count 3, got %d err %v", n, err)
	}
	if !b.HealthCheck(ctx) {
		t.Fatal("expected health check to succeed against the fake command")
	}
}

func TestSyncBackendForget(t *testing.T) {
	ctx := context.Background()
	b, err := NewSyncBackend(fakeSyncCommand(t))
	if err != nil {
		t.Fatalf("NewSyncBackend: %v", err)
	}
	removed, err := b.Forget(ctx, "k")
	if err != nil || !removed {
		t.Fatalf("expected removed=true, got %v err %v", removed, err)
	}
}

func TestNewSyncBackendRejectsEmptyCommand(t *testing.T) {
	if _, err := NewSyncBackend("   "); err == nil {
		t.Fatal("expected error for blank command")
	}
}
