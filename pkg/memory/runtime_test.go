package memory

import (
	"context"
	"testing"
)

func testRuntimeConfig(workspace string) RuntimeConfig {
	return RuntimeConfig{
		Workspace:           workspace,
		BackendName:         "sqlite",
		AutoHydrate:         false,
		EmbeddingProvider:   "hash",
		EmbeddingModel:      "test",
		EmbeddingDimensions: 32,
		Hybrid:              HybridConfig{Enabled: true, CandidateMultiplier: 3},
		RRFK:                60,
		TopK:                5,
		Rollout:             RolloutOn,
		CircuitBreakerFailures:   5,
		CircuitBreakerCooldownMS: 1000,
	}
}

func TestRuntimeStoreThenSearch(t *testing.T) {
	ctx := context.Background()
	rt, err := NewMemoryRuntime(ctx, testRuntimeConfig(t.TempDir()), nil)
	if err != nil {
		t.Fatalf("NewMemoryRuntime: %v", err)
	}
	defer rt.Deinit()

	if _, err := rt.Store(ctx, "zig_pref", "User prefers Zig", CategoryCore, ""); err != nil {
		t.Fatalf("Store: %v", err)
	}

	results, err := rt.Search(ctx, "zig", "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 || results[0].Key != "zig_pref" {
		t.Fatalf("expected zig_pref in results, got %+v", results)
	}
}

func TestRuntimeHealthRegistryTracksBackend(t *testing.T) {
	ctx := context.Background()
	rt, err := NewMemoryRuntime(ctx, testRuntimeConfig(t.TempDir()), nil)
	if err != nil {
		t.Fatalf("NewMemoryRuntime: %v", err)
	}
	defer rt.Deinit()

	readiness := rt.Health().Ready()
	if readiness.Status != "ready" {
		t.Fatalf("expected ready after successful init, got %s: %+v", readiness.Status, readiness.Checks)
	}
}

func TestRuntimeStoreEnqueuesOutboxWhileBreakerOpen(t *testing.T) {
	ctx := context.Background()
	cfg := testRuntimeConfig(t.TempDir())
	rt, err := NewMemoryRuntime(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("NewMemoryRuntime: %v", err)
	}
	defer rt.Deinit()

	// Force the breaker open so syncVectorAfterStore enqueues instead
	// of embedding inline.
	rt.breaker.RecordFailure()
	rt.breaker.RecordFailure()
	rt.breaker.RecordFailure()
	rt.breaker.RecordFailure()
	rt.breaker.RecordFailure()

	if _, err := rt.Store(ctx, "k", "deferred content", CategoryCore, ""); err != nil {
		t.Fatalf("Store: %v", err)
	}

	n, err := rt.outbox.Count(ctx)
	if err != nil {
		t.Fatalf("outbox.Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pending outbox entry while breaker is open, got %d", n)
	}
}
