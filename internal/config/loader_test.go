package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// setupTestHome points HOME at a temp dir so ~/.config/vectord resolves
// inside the test sandbox. Returns the config dir, created with 0700.
func setupTestHome(t *testing.T) string {
	t.Helper()

	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	configDir := filepath.Join(tmpHome, ".config", "vectord")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	return configDir
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoadWithFile_DefaultsWhenNoFile(t *testing.T) {
	setupTestHome(t)

	cfg, err := LoadWithFile("")
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.Server.Port != 9091 {
		t.Errorf("Server.Port = %d, want 9091", cfg.Server.Port)
	}
	if cfg.Mongo.Database != "cqintelligence" {
		t.Errorf("Mongo.Database = %q, want cqintelligence", cfg.Mongo.Database)
	}
	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled = false, want enabled by default")
	}
	if !cfg.Log.Sampling {
		t.Error("Log.Sampling = false, want enabled by default")
	}
	if !cfg.Telemetry.MetricsEnabled {
		t.Error("Telemetry.MetricsEnabled = false, want enabled by default")
	}
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	configDir := setupTestHome(t)

	yamlContent := `server:
  http_port: 8088
  shutdown_timeout: 20s

mongo:
  uri: mongodb://admin:pw@db.internal:27017
  database: analytics
  max_pool_size: 25
  breaker_failure_threshold: 3
  breaker_reset_timeout: 30s

cache:
  max_size: 500
  ttl: 2m

search:
  default_limit: 20

retention:
  max_age: 720h
  sweep_interval: 1h
`
	configPath := writeConfig(t, configDir, yamlContent, 0600)

	cfg, err := LoadWithFile(configPath)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.Server.Port != 8088 {
		t.Errorf("Server.Port = %d, want 8088", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout.Duration() != 20*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 20s", cfg.Server.ShutdownTimeout.Duration())
	}
	if cfg.Mongo.URI.Value() != "mongodb://admin:pw@db.internal:27017" {
		t.Errorf("Mongo.URI = %q", cfg.Mongo.URI.Value())
	}
	if cfg.Mongo.Database != "analytics" {
		t.Errorf("Mongo.Database = %q, want analytics", cfg.Mongo.Database)
	}
	if cfg.Mongo.MaxPoolSize != 25 {
		t.Errorf("Mongo.MaxPoolSize = %d, want 25", cfg.Mongo.MaxPoolSize)
	}
	if cfg.Mongo.BreakerFailureThreshold != 3 {
		t.Errorf("BreakerFailureThreshold = %d, want 3", cfg.Mongo.BreakerFailureThreshold)
	}
	if cfg.Mongo.BreakerResetTimeout.Duration() != 30*time.Second {
		t.Errorf("BreakerResetTimeout = %v, want 30s", cfg.Mongo.BreakerResetTimeout.Duration())
	}
	if cfg.Cache.MaxSize != 500 || cfg.Cache.TTL.Duration() != 2*time.Minute {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Search.DefaultLimit != 20 {
		t.Errorf("Search.DefaultLimit = %d, want 20", cfg.Search.DefaultLimit)
	}
	if cfg.Retention.MaxAge.Duration() != 720*time.Hour {
		t.Errorf("Retention.MaxAge = %v, want 720h", cfg.Retention.MaxAge.Duration())
	}
	if cfg.Retention.SweepInterval.Duration() != time.Hour {
		t.Errorf("Retention.SweepInterval = %v, want 1h", cfg.Retention.SweepInterval.Duration())
	}

	// Unset sections still get defaults.
	if cfg.Mongo.Collection != "vectordocuments" {
		t.Errorf("Mongo.Collection = %q, want default", cfg.Mongo.Collection)
	}
	if cfg.Search.MaxLimit != 100 {
		t.Errorf("Search.MaxLimit = %d, want default 100", cfg.Search.MaxLimit)
	}
}

func TestLoadWithFile_EnvironmentOverride(t *testing.T) {
	configDir := setupTestHome(t)

	yamlContent := `server:
  http_port: 8088

mongo:
  database: from_yaml
`
	configPath := writeConfig(t, configDir, yamlContent, 0600)

	t.Setenv("SERVER_HTTP_PORT", "7777")
	t.Setenv("MONGO_DATABASE", "from_env")
	t.Setenv("MONGO_BREAKER_FAILURE_THRESHOLD", "9")
	t.Setenv("CACHE_TTL", "90s")

	cfg, err := LoadWithFile(configPath)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want env override 7777", cfg.Server.Port)
	}
	if cfg.Mongo.Database != "from_env" {
		t.Errorf("Mongo.Database = %q, want from_env", cfg.Mongo.Database)
	}
	if cfg.Mongo.BreakerFailureThreshold != 9 {
		t.Errorf("BreakerFailureThreshold = %d, want 9", cfg.Mongo.BreakerFailureThreshold)
	}
	if cfg.Cache.TTL.Duration() != 90*time.Second {
		t.Errorf("Cache.TTL = %v, want 90s", cfg.Cache.TTL.Duration())
	}
}

func TestLoadWithFile_ExplicitFalseSurvivesDefaults(t *testing.T) {
	configDir := setupTestHome(t)

	yamlContent := `cache:
  enabled: false

log:
  sampling: false
`
	configPath := writeConfig(t, configDir, yamlContent, 0600)

	cfg, err := LoadWithFile(configPath)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.Cache.Enabled {
		t.Error("Cache.Enabled = true, want explicit false respected")
	}
	if cfg.Log.Sampling {
		t.Error("Log.Sampling = true, want explicit false respected")
	}
}

func TestLoadWithFile_RejectsWorldReadable(t *testing.T) {
	configDir := setupTestHome(t)
	configPath := writeConfig(t, configDir, "server:\n  http_port: 8088\n", 0644)

	_, err := LoadWithFile(configPath)
	if err == nil {
		t.Fatal("LoadWithFile() = nil, want permission error")
	}
	if !strings.Contains(err.Error(), "insecure config file permissions") {
		t.Errorf("error = %q, want permissions complaint", err.Error())
	}
}

func TestLoadWithFile_AcceptsReadOnly(t *testing.T) {
	configDir := setupTestHome(t)
	configPath := writeConfig(t, configDir, "server:\n  http_port: 8088\n", 0400)

	cfg, err := LoadWithFile(configPath)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil for 0400", err)
	}
	if cfg.Server.Port != 8088 {
		t.Errorf("Server.Port = %d, want 8088", cfg.Server.Port)
	}
}

func TestLoadWithFile_RejectsPathOutsideAllowedDirs(t *testing.T) {
	setupTestHome(t)

	outside := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(outside, []byte("server:\n  http_port: 8088\n"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_, err := LoadWithFile(outside)
	if err == nil {
		t.Fatal("LoadWithFile() = nil, want path validation error")
	}
	if !strings.Contains(err.Error(), "~/.config/vectord/ or /etc/vectord/") {
		t.Errorf("error = %q, want allowed-dirs complaint", err.Error())
	}
}

func TestLoadWithFile_RejectsOversizeFile(t *testing.T) {
	configDir := setupTestHome(t)

	big := "# padding\n" + strings.Repeat("# x\n", maxConfigFileSize/4)
	configPath := writeConfig(t, configDir, big, 0600)

	_, err := LoadWithFile(configPath)
	if err == nil {
		t.Fatal("LoadWithFile() = nil, want size error")
	}
	if !strings.Contains(err.Error(), "config file too large") {
		t.Errorf("error = %q, want size complaint", err.Error())
	}
}

func TestLoadWithFile_RejectsMalformedYAML(t *testing.T) {
	configDir := setupTestHome(t)
	configPath := writeConfig(t, configDir, "server: [unclosed\n", 0600)

	_, err := LoadWithFile(configPath)
	if err == nil {
		t.Fatal("LoadWithFile() = nil, want parse error")
	}
}

func TestLoadWithFile_ValidationFailureSurfaces(t *testing.T) {
	configDir := setupTestHome(t)
	configPath := writeConfig(t, configDir, "log:\n  level: shouty\n", 0600)

	_, err := LoadWithFile(configPath)
	if err == nil {
		t.Fatal("LoadWithFile() = nil, want validation error")
	}
	if !strings.Contains(err.Error(), "log.level") {
		t.Errorf("error = %q, want log.level complaint", err.Error())
	}
}

func TestEnsureConfigDir(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	if err := EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(tmpHome, ".config", "vectord"))
	if err != nil {
		t.Fatalf("config dir missing: %v", err)
	}
	if !info.IsDir() {
		t.Error("config path is not a directory")
	}
	if perm := info.Mode().Perm(); perm != 0700 {
		t.Errorf("config dir permissions = %v, want 0700", perm)
	}

	// Idempotent on second call.
	if err := EnsureConfigDir(); err != nil {
		t.Errorf("EnsureConfigDir() second call error = %v", err)
	}
}
