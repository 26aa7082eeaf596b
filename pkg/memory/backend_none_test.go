package memory

import (
	"context"
	"testing"
)

func TestNullBackendIsAllNoops(t *testing.T) {
	ctx := context.Background()
	b := NewNullBackend()

	if _, err := b.Store(ctx, "k", "v", CategoryCore, ""); err != nil {
		t.Fatalf("Store: %v", err)
	}
	entries, err := b.Recall(ctx, "v", 10, "")
	if err != nil || entries != nil {
		t.Fatalf("expected nil, nil from Recall, got %+v, %v", entries, err)
	}
	if _, ok, err := b.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("expected absent, nil; got ok=%v err=%v", ok, err)
	}
	if n, err := b.Count(ctx); n != 0 || err != nil {
		t.Fatalf("expected count 0, got %d err %v", n, err)
	}
	if !b.HealthCheck(ctx) {
		t.Fatal("expected null backend to always report healthy")
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
