package memory

import (
	"context"
	"time"

	"github.com/haloctl/halo/pkg/health"
	"github.com/haloctl/halo/pkg/logger"
)

const (
	componentPrimaryBackend = "memory.primary_backend"
	componentVectorPlane    = "memory.vector_plane"
	componentSessionStore   = "memory.session_store"
)

// RuntimeConfig assembles a MemoryRuntime.
type RuntimeConfig struct {
	Workspace string

	BackendName string
	SyncCommand string

	Hygiene        HygieneConfig
	HygieneEnabled bool

	SnapshotEnabled   bool
	SnapshotOnHygiene bool
	AutoHydrate       bool

	EmbeddingProvider   string
	EmbeddingModel      string
	EmbeddingDimensions int

	Hybrid   HybridConfig
	RRFK     int
	TopK     int
	MinScore float64

	Rollout       RolloutMode
	CanaryPercent int
	ShadowPercent int

	CircuitBreakerFailures   int
	CircuitBreakerCooldownMS int

	ResponseCache ResponseCacheConfig

	ExtraSources []Source
}

// MemoryRuntime is the assembled object applications hold: it owns
// the primary backend, session store, response cache, retrieval
// engine, embedding provider, vector store, breaker, and outbox.
type MemoryRuntime struct {
	cfg RuntimeConfig

	backend      Backend
	sessionStore SessionStore
	cache        *ResponseCache
	engine       *RetrievalEngine
	embedder     Embedder
	vectorStore  VectorStore
	breaker      *CircuitBreaker
	outbox       *VectorOutbox
	rollout      *RolloutPolicy

	registry *health.Registry
}

// NewMemoryRuntime constructs and wires every owned component,
// hydrating from a snapshot first if one applies.
func NewMemoryRuntime(ctx context.Context, cfg RuntimeConfig, registry *health.Registry) (*MemoryRuntime, error) {
	if registry == nil {
		registry = health.NewRegistry()
	}

	backend, err := NewBackend(cfg.BackendName, cfg.Workspace, cfg.SyncCommand)
	if err != nil {
		registry.MarkError(componentPrimaryBackend, err.Error())
		return nil, err
	}

	r := &MemoryRuntime{cfg: cfg, backend: backend, registry: registry}

	sqliteBackend, isSQLite := backend.(*SQLiteBackend)

	if isSQLite {
		sessionStore, serr := NewSQLiteSessionStore(sqliteBackend.DB())
		if serr != nil {
			registry.MarkError(componentSessionStore, serr.Error())
			return nil, serr
		}
		r.sessionStore = sessionStore

		vstore, verr := NewSQLiteSharedVectorStore(sqliteBackend.DB())
		if verr != nil {
			registry.MarkError(componentVectorPlane, verr.Error())
			return nil, verr
		}
		r.vectorStore = vstore

		outbox, oerr := NewVectorOutbox(sqliteBackend.DB())
		if oerr != nil {
			registry.MarkError(componentVectorPlane, oerr.Error())
			return nil, oerr
		}
		r.outbox = outbox
	}

	if cfg.AutoHydrate {
		if due, snap, herr := ShouldHydrate(ctx, backend, cfg.Workspace); herr == nil && due {
			nEntries, nMessages, ierr := Hydrate(ctx, backend, r.sessionStore, snap)
			if ierr != nil {
				logger.WarnCF("memory.lifecycle", "hydrate failed", logger.Fields{"error": ierr.Error()})
			} else {
				logger.InfoCF("memory.lifecycle", "hydrated from snapshot", logger.Fields{"entries": nEntries, "messages": nMessages})
			}
		}
	}

	r.embedder = NewEmbedder(cfg.EmbeddingProvider, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
	r.breaker = NewCircuitBreaker(cfg.CircuitBreakerFailures, time.Duration(cfg.CircuitBreakerCooldownMS)*time.Millisecond)
	r.rollout = NewRolloutPolicy(cfg.Rollout, cfg.CanaryPercent, cfg.ShadowPercent)

	if cfg.ResponseCache.Enabled {
		cache, cerr := NewResponseCache(cfg.Workspace, cfg.ResponseCache)
		if cerr != nil {
			logger.WarnCF("memory.response_cache", "disabling response cache", logger.Fields{"error": cerr.Error()})
		} else {
			r.cache = cache
		}
	}

	sources := append([]Source{NewPrimarySource(backend, false)}, cfg.ExtraSources...)
	var engineOpts []EngineOption
	if r.vectorStore != nil {
		engineOpts = append(engineOpts, WithHybrid(r.embedder, r.vectorStore, r.breaker, cfg.Hybrid))
	}
	r.engine = NewRetrievalEngine(sources, cfg.RRFK, engineOpts...)

	registry.MarkOk(componentPrimaryBackend)
	if r.vectorStore != nil {
		registry.MarkOk(componentVectorPlane)
	}
	if r.sessionStore != nil {
		registry.MarkOk(componentSessionStore)
	}

	if cfg.HygieneEnabled {
		if hygienic, ok := backend.(Hygienic); ok {
			interval := time.Duration(cfg.Hygiene.PurgeAfterDays) * 24 * time.Hour
			if HygieneDue(cfg.Workspace, interval) {
				report, herr := RunHygiene(ctx, hygienic, cfg.Hygiene)
				if herr != nil {
					logger.WarnCF("memory.lifecycle", "hygiene sweep failed", logger.Fields{"error": herr.Error()})
				} else {
					logger.InfoCF("memory.lifecycle", "hygiene sweep complete", logger.Fields{
						"archived": report.Archived, "purged": report.Purged, "trimmed": report.ConversationsTrimmed,
					})
					_ = MarkHygieneRun(cfg.Workspace)
					if cfg.SnapshotOnHygiene {
						_ = r.snapshotNow(ctx)
					}
				}
			}
		}
	}

	return r, nil
}

// Store writes to the primary backend (strict) and kicks off
// best-effort vector sync (never raises).
func (r *MemoryRuntime) Store(ctx context.Context, key, content string, category MemoryCategory, sessionID string) (MemoryEntry, error) {
	entry, err := r.backend.Store(ctx, key, content, category, sessionID)
	if err != nil {
		r.registry.MarkError(componentPrimaryBackend, err.Error())
		return MemoryEntry{}, err
	}
	r.registry.MarkOk(componentPrimaryBackend)

	if r.cache != nil {
		_ = r.cache.Invalidate(ctx)
	}

	r.syncVectorAfterStore(ctx, key, content)
	return entry, nil
}

// syncVectorAfterStore best-effort embeds and upserts; on failure it
// enqueues to the outbox (if configured) and records a breaker
// failure. It never raises to the caller of Store.
func (r *MemoryRuntime) syncVectorAfterStore(ctx context.Context, key, content string) {
	if r.embedder == nil || r.vectorStore == nil {
		return
	}
	if r.breaker != nil && !r.breaker.Allow() {
		r.enqueueVectorSync(ctx, key, OutboxUpsert)
		return
	}

	vec, err := r.embedder.Embed(ctx, content)
	if err != nil {
		if r.breaker != nil {
			r.breaker.RecordFailure()
		}
		r.enqueueVectorSync(ctx, key, OutboxUpsert)
		return
	}

	if err := r.vectorStore.Upsert(ctx, key, vec); err != nil {
		if r.breaker != nil {
			r.breaker.RecordFailure()
		}
		r.registry.MarkError(componentVectorPlane, err.Error())
		r.enqueueVectorSync(ctx, key, OutboxUpsert)
		return
	}

	if r.breaker != nil {
		r.breaker.RecordSuccess()
	}
	r.registry.MarkOk(componentVectorPlane)
}

// enqueueVectorSync enqueues unconditionally if an outbox is
// configured; otherwise it is a no-op.
func (r *MemoryRuntime) enqueueVectorSync(ctx context.Context, key string, op OutboxOp) {
	if r.outbox == nil {
		return
	}
	if err := r.outbox.Enqueue(ctx, key, op); err != nil {
		logger.WarnCF("memory.outbox", "enqueue failed", logger.Fields{"error": err.Error()})
	}
}

// DrainOutbox drains pending vector-sync operations, called
// opportunistically by the host (e.g. per agent turn).
func (r *MemoryRuntime) DrainOutbox(ctx context.Context) (int, error) {
	if r.outbox == nil {
		return 0, nil
	}
	resolve := func(ctx context.Context, key string) (string, bool, error) {
		entry, ok, err := r.backend.Get(ctx, key)
		return entry.Content, ok, err
	}
	return r.outbox.Drain(ctx, resolve, r.embedder, r.vectorStore, r.breaker)
}

// Search applies the rollout decision and returns a ranked candidate
// list, consulting and populating the response cache when enabled.
func (r *MemoryRuntime) Search(ctx context.Context, query string, sessionID string) ([]RetrievalCandidate, error) {
	mode := r.rollout.Decide(sessionID)

	if r.cache != nil {
		if hit, ok := r.cache.Get(ctx, CacheKey(query, sessionID, mode)); ok {
			return hit, nil
		}
	}

	var results []RetrievalCandidate
	var err error
	switch mode {
	case ModeKeywordOnly:
		results, err = r.searchKeywordOnly(ctx, query, sessionID)
	case ModeHybrid:
		results, err = r.engine.Search(ctx, query, r.cfg.TopK, r.cfg.MinScore, sessionID)
	case ModeShadowHybrid:
		results, err = r.searchKeywordOnly(ctx, query, sessionID)
		go r.runShadowHybrid(query, sessionID)
	default:
		results, err = r.searchKeywordOnly(ctx, query, sessionID)
	}
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		_ = r.cache.Put(ctx, CacheKey(query, sessionID, mode), results)
	}
	return results, nil
}

// searchKeywordOnly runs the engine with hybrid forced off for this
// one call, without mutating the engine's configured hybrid state.
func (r *MemoryRuntime) searchKeywordOnly(ctx context.Context, query, sessionID string) ([]RetrievalCandidate, error) {
	engine := NewRetrievalEngine([]Source{NewPrimarySource(r.backend, false)}, r.cfg.RRFK)
	return engine.Search(ctx, query, r.cfg.TopK, r.cfg.MinScore, sessionID)
}

// runShadowHybrid runs the hybrid path for observation only; a
// failure here never affects the served result. It is fired with a
// background context since the serving request may already have
// returned.
func (r *MemoryRuntime) runShadowHybrid(query, sessionID string) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hybridResults, err := r.engine.Search(ctx, query, r.cfg.TopK, r.cfg.MinScore, sessionID)
	if err != nil {
		logger.DebugCF("memory.shadow", "shadow hybrid failed", logger.Fields{"error": err.Error()})
		return
	}
	keywordResults, _ := r.searchKeywordOnly(ctx, query, sessionID)
	overlap := 0
	seen := make(map[string]bool, len(keywordResults))
	for _, c := range keywordResults {
		seen[c.Key] = true
	}
	for _, c := range hybridResults {
		if seen[c.Key] {
			overlap++
		}
	}
	logger.DebugCF("memory.shadow", "shadow hybrid observation", logger.Fields{
		"keyword_result_count": len(keywordResults),
		"hybrid_result_count":  len(hybridResults),
		"overlap_count":        overlap,
		"wallclock_ms":         time.Since(start).Milliseconds(),
	})
}

// Snapshot exports the current entry set and session messages.
func (r *MemoryRuntime) Snapshot(ctx context.Context) error {
	return r.snapshotNow(ctx)
}

func (r *MemoryRuntime) snapshotNow(ctx context.Context) error {
	if !r.cfg.SnapshotEnabled {
		return nil
	}
	exportable, ok := r.backend.(Exportable)
	if !ok {
		return nil
	}
	entries, err := exportable.ExportAll(ctx)
	if err != nil {
		logger.WarnCF("memory.lifecycle", "snapshot export failed", logger.Fields{"error": err.Error()})
		return err
	}

	var messages []MessageEntry
	if r.sessionStore != nil {
		messages, err = r.sessionStore.AllMessages(ctx)
		if err != nil {
			logger.WarnCF("memory.lifecycle", "snapshot message export failed", logger.Fields{"error": err.Error()})
			return err
		}
	}

	if err := ExportSnapshot(r.cfg.Workspace, entries, messages); err != nil {
		logger.WarnCF("memory.lifecycle", "snapshot export failed", logger.Fields{"error": err.Error()})
		return err
	}
	return nil
}

// SessionStore exposes the runtime's session store, if the primary
// backend supports one.
func (r *MemoryRuntime) SessionStore() SessionStore { return r.sessionStore }

// Health exposes the runtime's health registry.
func (r *MemoryRuntime) Health() *health.Registry { return r.registry }

// Backend exposes the primary backend directly, for get/list/count
// operations that read the authoritative store without participating
// in retrieval fan-out.
func (r *MemoryRuntime) Backend() Backend { return r.backend }

// Forget removes key from the primary backend and invalidates the
// response cache, mirroring Store's cache-invalidation behavior.
func (r *MemoryRuntime) Forget(ctx context.Context, key string) (bool, error) {
	removed, err := r.backend.Forget(ctx, key)
	if err != nil {
		r.registry.MarkError(componentPrimaryBackend, err.Error())
		return false, err
	}
	r.registry.MarkOk(componentPrimaryBackend)
	if r.cache != nil {
		_ = r.cache.Invalidate(ctx)
	}
	return removed, nil
}

// Deinit destroys outbox, breaker, vector store, embedding provider,
// retrieval engine, response cache, and primary backend, in that
// order.
func (r *MemoryRuntime) Deinit() error {
	if r.outbox != nil {
		_ = r.outbox.Close()
	}
	r.breaker = nil
	if r.vectorStore != nil {
		_ = r.vectorStore.Close()
	}
	r.embedder = nil
	if r.engine != nil {
		_ = r.engine.Deinit()
	}
	if r.cache != nil {
		_ = r.cache.Close()
	}
	if r.backend != nil {
		return r.backend.Close()
	}
	return nil
}
