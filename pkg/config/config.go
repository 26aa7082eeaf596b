package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	// Try []interface{} to handle mixed types
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Workspace string         `json:"workspace" env:"HALO_WORKSPACE"`
	LogLevel  string         `json:"log_level" env:"HALO_LOG_LEVEL"`
	Channels  ChannelsConfig `json:"channels"`
	Gateway   GatewayConfig  `json:"gateway"`
	Memory    MemoryConfig   `json:"memory"`
	mu        sync.RWMutex
}

type ChannelsConfig struct {
	Discord DiscordConfig `json:"discord"`
}

type DiscordConfig struct {
	Token     string              `json:"token" env:"HALO_CHANNELS_DISCORD_TOKEN"`
	AllowFrom FlexibleStringSlice `json:"allow_from" env:"HALO_CHANNELS_DISCORD_ALLOW_FROM"`
}

type GatewayConfig struct {
	Host string `json:"host" env:"HALO_GATEWAY_HOST"`
	Port int    `json:"port" env:"HALO_GATEWAY_PORT"`
}

// HybridConfig controls whether the vector plane participates in
// retrieval alongside keyword search, and how many vector candidates
// are pulled per query relative to the final result size.
type HybridConfig struct {
	Enabled             bool `json:"enabled" env:"HALO_MEMORY_HYBRID_ENABLED"`
	CandidateMultiplier int  `json:"candidate_multiplier" env:"HALO_MEMORY_HYBRID_CANDIDATE_MULTIPLIER"`
}

// ResponseCacheConfig mirrors the response_cache.* surface from the
// memory config table.
type ResponseCacheConfig struct {
	Enabled    bool `json:"enabled" env:"HALO_MEMORY_RESPONSE_CACHE_ENABLED"`
	TTLMinutes int  `json:"ttl_minutes" env:"HALO_MEMORY_RESPONSE_CACHE_TTL_MINUTES"`
	MaxEntries int  `json:"max_entries" env:"HALO_MEMORY_RESPONSE_CACHE_MAX_ENTRIES"`
}

type MemoryConfig struct {
	Backend                   string              `json:"backend" env:"HALO_MEMORY_BACKEND"`
	HygieneEnabled            bool                `json:"hygiene_enabled" env:"HALO_MEMORY_HYGIENE_ENABLED"`
	ArchiveAfterDays          int                 `json:"archive_after_days" env:"HALO_MEMORY_ARCHIVE_AFTER_DAYS"`
	PurgeAfterDays            int                 `json:"purge_after_days" env:"HALO_MEMORY_PURGE_AFTER_DAYS"`
	ConversationRetentionDays int                 `json:"conversation_retention_days" env:"HALO_MEMORY_CONVERSATION_RETENTION_DAYS"`
	SnapshotEnabled           bool                `json:"snapshot_enabled" env:"HALO_MEMORY_SNAPSHOT_ENABLED"`
	SnapshotOnHygiene         bool                `json:"snapshot_on_hygiene" env:"HALO_MEMORY_SNAPSHOT_ON_HYGIENE"`
	AutoHydrate               bool                `json:"auto_hydrate" env:"HALO_MEMORY_AUTO_HYDRATE"`
	EmbeddingProvider         string              `json:"embedding_provider" env:"HALO_MEMORY_EMBEDDING_PROVIDER"`
	EmbeddingModel            string              `json:"embedding_model" env:"HALO_MEMORY_EMBEDDING_MODEL"`
	EmbeddingDimensions       int                 `json:"embedding_dimensions" env:"HALO_MEMORY_EMBEDDING_DIMENSIONS"`
	Hybrid                    HybridConfig        `json:"hybrid"`
	RRFK                      int                 `json:"rrf_k" env:"HALO_MEMORY_RRF_K"`
	MaxResults                int                 `json:"max_results" env:"HALO_MEMORY_MAX_RESULTS"`
	MinScore                  float64             `json:"min_score" env:"HALO_MEMORY_MIN_SCORE"`
	RolloutMode               string              `json:"rollout_mode" env:"HALO_MEMORY_ROLLOUT_MODE"`
	CanaryHybridPercent       int                 `json:"canary_hybrid_percent" env:"HALO_MEMORY_CANARY_HYBRID_PERCENT"`
	ShadowHybridPercent       int                 `json:"shadow_hybrid_percent" env:"HALO_MEMORY_SHADOW_HYBRID_PERCENT"`
	CircuitBreakerFailures    int                 `json:"circuit_breaker_failures" env:"HALO_MEMORY_CIRCUIT_BREAKER_FAILURES"`
	CircuitBreakerCooldownMS  int                 `json:"circuit_breaker_cooldown_ms" env:"HALO_MEMORY_CIRCUIT_BREAKER_COOLDOWN_MS"`
	ResponseCache             ResponseCacheConfig `json:"response_cache"`
	SyncCommand               string              `json:"sync_command" env:"HALO_MEMORY_SYNC_COMMAND"`
	MarkdownSourceDir         string              `json:"markdown_source_dir" env:"HALO_MEMORY_MARKDOWN_SOURCE_DIR"`
}

func DefaultConfig() *Config {
	return &Config{
		Workspace: "~/.halo/workspace",
		LogLevel:  "info",
		Channels: ChannelsConfig{
			Discord: DiscordConfig{
				Token:     "",
				AllowFrom: FlexibleStringSlice{},
			},
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 18790,
		},
		Memory: MemoryConfig{
			Backend:                   "sqlite",
			HygieneEnabled:            true,
			ArchiveAfterDays:          7,
			PurgeAfterDays:            30,
			ConversationRetentionDays: 30,
			SnapshotEnabled:           false,
			SnapshotOnHygiene:         false,
			AutoHydrate:               true,
			EmbeddingProvider:         "none",
			EmbeddingModel:            "",
			EmbeddingDimensions:       1536,
			Hybrid: HybridConfig{
				Enabled:             false,
				CandidateMultiplier: 4,
			},
			RRFK:                     60,
			MaxResults:               6,
			MinScore:                 0.0,
			RolloutMode:              "off",
			CanaryHybridPercent:      0,
			ShadowHybridPercent:      0,
			CircuitBreakerFailures:   5,
			CircuitBreakerCooldownMS: 30000,
			ResponseCache: ResponseCacheConfig{
				Enabled:    false,
				TTLMinutes: 60,
				MaxEntries: 5000,
			},
			SyncCommand:       "",
			MarkdownSourceDir: "",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Workspace)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
