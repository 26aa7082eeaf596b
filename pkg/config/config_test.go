package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDefaultConfig_Workspace(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Workspace == "" {
		t.Error("Workspace should not be empty")
	}
}

func TestDefaultConfig_Gateway(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Gateway.Host != "0.0.0.0" {
		t.Error("Gateway host should have default value")
	}
	if cfg.Gateway.Port == 0 {
		t.Error("Gateway port should have default value")
	}
}

func TestDefaultConfig_Channels(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Channels.Discord.Token != "" {
		t.Error("Discord token should be empty by default")
	}
}

func TestDefaultConfig_MemoryHygiene(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Memory.HygieneEnabled {
		t.Error("hygiene should be enabled by default")
	}
	if cfg.Memory.ArchiveAfterDays != 7 {
		t.Errorf("ArchiveAfterDays = %d, want 7", cfg.Memory.ArchiveAfterDays)
	}
	if cfg.Memory.PurgeAfterDays != 30 {
		t.Errorf("PurgeAfterDays = %d, want 30", cfg.Memory.PurgeAfterDays)
	}
	if cfg.Memory.ConversationRetentionDays != 30 {
		t.Errorf("ConversationRetentionDays = %d, want 30", cfg.Memory.ConversationRetentionDays)
	}
}

func TestDefaultConfig_MemorySnapshotAndHydrate(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Memory.SnapshotEnabled {
		t.Error("snapshot should be disabled by default")
	}
	if !cfg.Memory.AutoHydrate {
		t.Error("auto_hydrate should be enabled by default")
	}
}

func TestDefaultConfig_MemoryEmbedding(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Memory.EmbeddingProvider != "none" {
		t.Errorf("EmbeddingProvider = %q, want %q", cfg.Memory.EmbeddingProvider, "none")
	}
	if cfg.Memory.EmbeddingDimensions != 1536 {
		t.Errorf("EmbeddingDimensions = %d, want 1536", cfg.Memory.EmbeddingDimensions)
	}
}

func TestDefaultConfig_MemoryRetrievalPolicy(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Memory.Hybrid.Enabled {
		t.Error("hybrid should be disabled by default")
	}
	if cfg.Memory.RRFK != 60 {
		t.Errorf("RRFK = %d, want 60", cfg.Memory.RRFK)
	}
	if cfg.Memory.MaxResults != 6 {
		t.Errorf("MaxResults = %d, want 6", cfg.Memory.MaxResults)
	}
	if cfg.Memory.MinScore != 0.0 {
		t.Errorf("MinScore = %v, want 0.0", cfg.Memory.MinScore)
	}
}

func TestDefaultConfig_MemoryRollout(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Memory.RolloutMode != "off" {
		t.Errorf("RolloutMode = %q, want %q", cfg.Memory.RolloutMode, "off")
	}
	if cfg.Memory.CircuitBreakerFailures != 5 {
		t.Errorf("CircuitBreakerFailures = %d, want 5", cfg.Memory.CircuitBreakerFailures)
	}
	if cfg.Memory.CircuitBreakerCooldownMS != 30000 {
		t.Errorf("CircuitBreakerCooldownMS = %d, want 30000", cfg.Memory.CircuitBreakerCooldownMS)
	}
}

func TestDefaultConfig_ResponseCache(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Memory.ResponseCache.Enabled {
		t.Error("response cache should be disabled by default")
	}
	if cfg.Memory.ResponseCache.TTLMinutes != 60 {
		t.Errorf("TTLMinutes = %d, want 60", cfg.Memory.ResponseCache.TTLMinutes)
	}
	if cfg.Memory.ResponseCache.MaxEntries != 5000 {
		t.Errorf("MaxEntries = %d, want 5000", cfg.Memory.ResponseCache.MaxEntries)
	}
}

func TestSaveConfig_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file permission bits are not enforced on Windows")
	}

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := DefaultConfig()
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}

	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("config file has permission %04o, want 0600", perm)
	}
}

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-config.json")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Memory.Backend != "sqlite" {
		t.Fatalf("expected default backend sqlite, got %q", cfg.Memory.Backend)
	}
}

func TestLoadConfig_EnvOverridesWithoutFile(t *testing.T) {
	t.Setenv("HALO_MEMORY_BACKEND", "markdown")
	t.Setenv("HALO_MEMORY_ROLLOUT_MODE", "canary")
	path := filepath.Join(t.TempDir(), "missing-config.json")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got := cfg.Memory.Backend; got != "markdown" {
		t.Fatalf("expected env override backend, got %q", got)
	}
	if got := cfg.Memory.RolloutMode; got != "canary" {
		t.Fatalf("expected env override rollout mode, got %q", got)
	}
}

func TestLoadConfig_DiscordEnvOverrides(t *testing.T) {
	t.Setenv("HALO_CHANNELS_DISCORD_TOKEN", "fake-token")
	path := filepath.Join(t.TempDir(), "missing-config.json")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got := cfg.Channels.Discord.Token; got != "fake-token" {
		t.Fatalf("expected discord token from env, got %q", got)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"memory":{"backend":"sync","max_results":12}}`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Memory.Backend != "sync" {
		t.Fatalf("expected backend sync from file, got %q", cfg.Memory.Backend)
	}
	if cfg.Memory.MaxResults != 12 {
		t.Fatalf("expected max_results 12 from file, got %d", cfg.Memory.MaxResults)
	}
}
