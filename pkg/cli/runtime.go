package cli

import (
	"context"
	"time"

	"github.com/haloctl/halo/pkg/config"
	"github.com/haloctl/halo/pkg/health"
	"github.com/haloctl/halo/pkg/memory"
)

// buildRuntime assembles a MemoryRuntime from the loaded configuration,
// with a fresh health registry. Callers own the returned runtime and
// must Deinit it.
func buildRuntime(ctx context.Context, cfg *config.Config) (*memory.MemoryRuntime, error) {
	return buildRuntimeWithRegistry(ctx, cfg, health.NewRegistry())
}

// buildRuntimeWithRegistry is buildRuntime for callers (the gateway)
// that need to keep the registry alive past the runtime, e.g. to
// serve it over HTTP.
func buildRuntimeWithRegistry(ctx context.Context, cfg *config.Config, registry *health.Registry) (*memory.MemoryRuntime, error) {
	m := cfg.Memory

	rtCfg := memory.RuntimeConfig{
		Workspace:   cfg.WorkspacePath(),
		BackendName: m.Backend,
		SyncCommand: m.SyncCommand,

		Hygiene: memory.HygieneConfig{
			ArchiveAfterDays:      m.ArchiveAfterDays,
			PurgeAfterDays:        m.PurgeAfterDays,
			ConversationRetention: m.ConversationRetentionDays,
		},
		HygieneEnabled: m.HygieneEnabled,

		SnapshotEnabled:   m.SnapshotEnabled,
		SnapshotOnHygiene: m.SnapshotOnHygiene,
		AutoHydrate:       m.AutoHydrate,

		EmbeddingProvider:   m.EmbeddingProvider,
		EmbeddingModel:      m.EmbeddingModel,
		EmbeddingDimensions: m.EmbeddingDimensions,

		Hybrid:   memory.HybridConfig{Enabled: m.Hybrid.Enabled, CandidateMultiplier: m.Hybrid.CandidateMultiplier},
		RRFK:     m.RRFK,
		TopK:     m.MaxResults,
		MinScore: m.MinScore,

		Rollout:       memory.RolloutMode(m.RolloutMode),
		CanaryPercent: m.CanaryHybridPercent,
		ShadowPercent: m.ShadowHybridPercent,

		CircuitBreakerFailures:   m.CircuitBreakerFailures,
		CircuitBreakerCooldownMS: m.CircuitBreakerCooldownMS,

		ResponseCache: memory.ResponseCacheConfig{
			Enabled:    m.ResponseCache.Enabled,
			TTL:        time.Duration(m.ResponseCache.TTLMinutes) * time.Minute,
			MaxEntries: m.ResponseCache.MaxEntries,
		},
	}

	if m.MarkdownSourceDir != "" {
		rtCfg.ExtraSources = []memory.Source{memory.NewMarkdownQuerySource(m.MarkdownSourceDir, true)}
	}

	return memory.NewMemoryRuntime(ctx, rtCfg, registry)
}
