package memory

import "hash/fnv"

// RolloutMode selects how MemoryRuntime.search decides between
// keyword-only and hybrid retrieval.
type RolloutMode string

const (
	RolloutOff    RolloutMode = "off"
	RolloutShadow RolloutMode = "shadow"
	RolloutCanary RolloutMode = "canary"
	RolloutOn     RolloutMode = "on"
)

// SearchMode is the per-call decision produced by a RolloutPolicy.
type SearchMode string

const (
	ModeKeywordOnly  SearchMode = "keyword_only"
	ModeHybrid       SearchMode = "hybrid"
	ModeShadowHybrid SearchMode = "shadow_hybrid"
)

// RolloutPolicy deterministically decides, per call, whether search
// runs keyword-only, hybrid, or shadow-hybrid. Canary stickiness is
// derived from FNV1a32(session_id) so a given session always gets the
// same decision for the lifetime of a policy instance.
type RolloutPolicy struct {
	Mode          RolloutMode
	CanaryPercent int
	ShadowPercent int
}

// NewRolloutPolicy builds a policy; an unrecognized mode behaves as off.
func NewRolloutPolicy(mode RolloutMode, canaryPercent, shadowPercent int) *RolloutPolicy {
	return &RolloutPolicy{Mode: mode, CanaryPercent: canaryPercent, ShadowPercent: shadowPercent}
}

// Decide returns the search mode for sessionID under this policy.
func (p *RolloutPolicy) Decide(sessionID string) SearchMode {
	switch p.Mode {
	case RolloutOn:
		return ModeHybrid
	case RolloutShadow:
		return ModeShadowHybrid
	case RolloutCanary:
		if sessionID == "" {
			return ModeKeywordOnly
		}
		if fnv1a32(sessionID)%100 < uint32(p.CanaryPercent) {
			return ModeHybrid
		}
		return ModeKeywordOnly
	case RolloutOff:
		return ModeKeywordOnly
	default:
		return ModeKeywordOnly
	}
}

func fnv1a32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
