package memory

import (
	"context"
	"sort"
)

// HybridConfig gates the vector fan-out step of a search.
type HybridConfig struct {
	Enabled             bool
	CandidateMultiplier int
}

// RetrievalEngine fans out to registered sources, optionally fans out
// to the vector store, and merges everything with Reciprocal Rank
// Fusion. The first registered source is treated as primary: its
// failure is fatal, all others degrade to an empty list.
type RetrievalEngine struct {
	sources  []Source
	provider Embedder
	vstore   VectorStore
	breaker  *CircuitBreaker
	hybrid   HybridConfig
	rrfK     int
}

// EngineOption configures optional vector-plane wiring at construction.
type EngineOption func(*RetrievalEngine)

func WithHybrid(provider Embedder, vstore VectorStore, breaker *CircuitBreaker, cfg HybridConfig) EngineOption {
	return func(e *RetrievalEngine) {
		e.provider = provider
		e.vstore = vstore
		e.breaker = breaker
		e.hybrid = cfg
	}
}

// NewRetrievalEngine builds an engine over sources (first is primary).
// rrfK defaults to 60 if non-positive.
func NewRetrievalEngine(sources []Source, rrfK int, opts ...EngineOption) *RetrievalEngine {
	if rrfK <= 0 {
		rrfK = 60
	}
	e := &RetrievalEngine{sources: sources, rrfK: rrfK}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search fans the query out to every source (plus the vector store when
// hybrid is allowed) and fuses the ranked lists with RRF.
func (e *RetrievalEngine) Search(ctx context.Context, query string, topK int, minScore float64, sessionID string) ([]RetrievalCandidate, error) {
	if len(e.sources) == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = 6
	}

	fetchLimit := topK * 2
	var lists [][]RetrievalCandidate
	for i, src := range e.sources {
		cands, err := src.KeywordCandidates(ctx, query, fetchLimit, sessionID)
		if err != nil {
			if i == 0 {
				return nil, newErr(BackendIo, "Search", err)
			}
			continue // non-primary source failure degrades to empty
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if len(cands) > 0 {
			lists = append(lists, cands)
		}
	}

	var vectorList []RetrievalCandidate
	if e.hybridAllowed(query) {
		vec, err := e.provider.Embed(ctx, query)
		if err != nil {
			e.breaker.RecordFailure()
		} else {
			e.breaker.RecordSuccess()
			mult := e.hybrid.CandidateMultiplier
			if mult <= 0 {
				mult = 3
			}
			results, verr := e.vstore.Search(ctx, vec, topK*mult)
			if verr == nil {
				vectorList = make([]RetrievalCandidate, 0, len(results))
				for i, r := range results {
					vectorList = append(vectorList, RetrievalCandidate{
						Key:         r.Key,
						VectorScore: r.Score,
						HasVector:   true,
						Source:      "vector",
						KeywordRank: i + 1, // rank within the vector list, for RRF purposes
					})
				}
			}
		}
	}

	allLists := lists
	if len(vectorList) > 0 {
		allLists = append(append([][]RetrievalCandidate{}, lists...), vectorList)
	}

	var merged []RetrievalCandidate
	if len(lists) == 1 && len(vectorList) == 0 {
		merged = make([]RetrievalCandidate, len(lists[0]))
		copy(merged, lists[0])
		for i := range merged {
			merged[i].FinalScore = 1 / float64(merged[i].KeywordRank+e.rrfK)
		}
	} else {
		merged = rrfMerge(allLists, e.rrfK)
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].FinalScore > merged[j].FinalScore })

	// Two-pass score -> filter -> truncate, deliberately not an
	// in-place partition over merged: keep the fused-then-decided
	// stages independent of each other's backing storage.
	filtered := make([]RetrievalCandidate, 0, len(merged))
	for _, c := range merged {
		if c.FinalScore < minScore {
			continue
		}
		filtered = append(filtered, c)
	}
	if len(filtered) > topK {
		filtered = filtered[:topK]
	}
	return filtered, nil
}

func (e *RetrievalEngine) hybridAllowed(query string) bool {
	return e.hybrid.Enabled && e.provider != nil && e.vstore != nil && e.breaker != nil && e.breaker.Allow() && query != ""
}

// rrfMerge implements Reciprocal Rank Fusion: score(item) = sum over
// lists where item appears at rank r of 1/(r+k). A two-pass
// score-then-collect approach, with no in-place mutation while
// iterating.
func rrfMerge(lists [][]RetrievalCandidate, k int) []RetrievalCandidate {
	scores := make(map[string]float64)
	payload := make(map[string]RetrievalCandidate)

	for _, list := range lists {
		for _, c := range list {
			rank := c.KeywordRank
			scores[c.Key] += 1 / float64(rank+k)
			if _, ok := payload[c.Key]; !ok {
				payload[c.Key] = c
			}
		}
	}

	out := make([]RetrievalCandidate, 0, len(scores))
	for key, score := range scores {
		c := payload[key]
		c.FinalScore = score
		out = append(out, c)
	}
	return out
}

// Deinit destroys owned sources and leaves borrowed ones alone.
func (e *RetrievalEngine) Deinit() error {
	var firstErr error
	for _, src := range e.sources {
		if !src.OwnsSelf() {
			continue
		}
		if err := src.Deinit(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
